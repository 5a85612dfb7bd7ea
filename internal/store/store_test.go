package store

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string         `json:"name"`
	Perms []int          `json:"perms"`
	APIs  map[string]int `json:"apis"`
}

func backends(t *testing.T) map[string]*Store {
	t.Helper()
	out := make(map[string]*Store)
	for _, b := range []string{Pebble, LevelDB} {
		s, err := Open(b, filepath.Join(t.TempDir(), b))
		require.NoError(t, err, b)
		t.Cleanup(func() { s.Close() })
		out[b] = s
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			in := record{Name: "a.apk", Perms: []int{1, 0, 1}, APIs: map[string]int{"Landroid/util/Log;->d": 3}}
			require.NoError(t, s.Put("bbb", in))
			require.NoError(t, s.Put("aaa", record{Name: "b.apk"}))

			var out record
			require.NoError(t, s.Get("bbb", &out))
			assert.Equal(t, in, out)

			ok, err := s.Has("aaa")
			require.NoError(t, err)
			assert.True(t, ok)

			keys, err := s.Keys()
			require.NoError(t, err)
			assert.Equal(t, []string{"aaa", "bbb"}, keys)
		})
	}
}

func TestNotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var out record
			err := s.Get("missing", &out)
			assert.True(t, errors.Is(err, ErrNotFound), "err = %v", err)

			ok, err := s.Has("missing")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestConcurrentPut(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, s.Put(string(rune('a'+i)), record{Name: "x"}))
				}(i)
			}
			wg.Wait()
			keys, err := s.Keys()
			require.NoError(t, err)
			assert.Len(t, keys, 8)
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("bolt", t.TempDir())
	assert.True(t, errors.Is(err, ErrBackend))
}

func TestCompressRoundTrip(t *testing.T) {
	data := []byte(`{"a":1}`)
	packed, err := compress(data)
	require.NoError(t, err)
	got, err := decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("app;"), prefixEnd([]byte("app:")))
	assert.Equal(t, []byte{0x02}, prefixEnd([]byte{0x01, 0xff}))
	assert.Nil(t, prefixEnd([]byte{0xff}))
}
