package store

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

type pebbleKV struct {
	db *pebble.DB
}

// OpenPebble opens or creates a pebble database at path.
func OpenPebble(path string) (*Store, error) {
	cache := pebble.NewCache(8 << 20)
	defer cache.Unref()
	db, err := pebble.Open(path, &pebble.Options{Cache: cache})
	if err != nil {
		return nil, fmt.Errorf("store: open pebble %q: %w", path, err)
	}
	return &Store{db: &pebbleKV{db: db}}, nil
}

func (p *pebbleKV) get(key []byte) ([]byte, error) {
	val, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte{}, val...), nil
}

func (p *pebbleKV) set(key, val []byte) error {
	return p.db.Set(key, val, pebble.Sync)
}

func (p *pebbleKV) keys(prefix []byte) ([][]byte, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, append([]byte{}, iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return nil, err
	}
	return out, iter.Close()
}

func (p *pebbleKV) close() error { return p.db.Close() }
