package store

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type levelKV struct {
	db *leveldb.DB
}

// OpenLevelDB opens or creates a leveldb database at path.
func OpenLevelDB(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open leveldb %q: %w", path, err)
	}
	return &Store{db: &levelKV{db: db}}, nil
}

func (l *levelKV) get(key []byte) ([]byte, error) {
	val, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

func (l *levelKV) set(key, val []byte) error {
	return l.db.Put(key, val, nil)
}

func (l *levelKV) keys(prefix []byte) ([][]byte, error) {
	iter := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	var out [][]byte
	for iter.Next() {
		out = append(out, append([]byte{}, iter.Key()...))
	}
	return out, iter.Error()
}

func (l *levelKV) close() error { return l.db.Close() }
