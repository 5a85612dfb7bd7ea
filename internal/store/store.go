// Package store persists per-application feature reports keyed by sha256.
// Records are JSON compressed with xz; pebble and leveldb back the key space.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrBackend  = errors.New("store: unknown backend")
)

// Backend names.
const (
	Pebble  = "pebble"
	LevelDB = "leveldb"
)

var prefixReport = []byte("app:")

// kv is the ordered key-value surface both engines provide.
type kv interface {
	get(key []byte) ([]byte, error) // ErrNotFound when absent
	set(key, val []byte) error
	keys(prefix []byte) ([][]byte, error)
	close() error
}

// Store is safe for concurrent use; both engines synchronize internally.
type Store struct {
	db kv
}

// Open opens the named backend at path.
func Open(backend, path string) (*Store, error) {
	switch backend {
	case Pebble, "":
		return OpenPebble(path)
	case LevelDB:
		return OpenLevelDB(path)
	}
	return nil, fmt.Errorf("%w: %q", ErrBackend, backend)
}

// Put stores v under the application hash.
func (s *Store) Put(sha256 string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", sha256, err)
	}
	packed, err := compress(data)
	if err != nil {
		return fmt.Errorf("store: compress %s: %w", sha256, err)
	}
	return s.db.set(reportKey(sha256), packed)
}

// Get loads the record for sha256 into v.
func (s *Store) Get(sha256 string, v any) error {
	packed, err := s.db.get(reportKey(sha256))
	if err != nil {
		return fmt.Errorf("store: get %s: %w", sha256, err)
	}
	data, err := decompress(packed)
	if err != nil {
		return fmt.Errorf("store: decompress %s: %w", sha256, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: decode %s: %w", sha256, err)
	}
	return nil
}

// Has reports whether a record exists for sha256.
func (s *Store) Has(sha256 string) (bool, error) {
	_, err := s.db.get(reportKey(sha256))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	}
	return false, err
}

// Keys returns the stored application hashes in key order.
func (s *Store) Keys() ([]string, error) {
	raw, err := s.db.keys(prefixReport)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(raw))
	for i, k := range raw {
		out[i] = string(k[len(prefixReport):])
	}
	return out, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.close() }

func reportKey(sha256 string) []byte {
	return append(append([]byte{}, prefixReport...), sha256...)
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(packed []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(packed))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
