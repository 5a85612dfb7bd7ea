package kfcm

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"smesys/internal/smali"
)

// Hash returns the hex md5 of the colon-joined system calls in calls.
// Call order is preserved.
func Hash(calls []string, sysPkgs []string) string {
	s := strings.Join(smali.SystemCalls(calls, sysPkgs), ":")
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashMatrix replaces every name in plain with the hash of that function's
// original call list. Rows and columns are visited in sorted order; when two
// names share a hash the later one wins.
func HashMatrix(plain Matrix, g *smali.Graph, sysPkgs []string) (Matrix, map[string]string, error) {
	table := make(map[string]string)
	lookup := func(name string) (string, error) {
		if h, ok := table[name]; ok {
			return h, nil
		}
		e, ok := g.Entries[name]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownFunction, name)
		}
		h := Hash(e.Calls, sysPkgs)
		table[name] = h
		return h, nil
	}

	hashed := make(Matrix)
	for _, r := range plain.Rows() {
		rh, err := lookup(r)
		if err != nil {
			return nil, nil, err
		}
		row := plain[r]
		cols := make([]string, 0, len(row))
		for c := range row {
			cols = append(cols, c)
		}
		sort.Strings(cols)

		hrow := make(map[string]int, len(row))
		for _, c := range cols {
			ch, err := lookup(c)
			if err != nil {
				return nil, nil, err
			}
			hrow[ch] = row[c]
		}
		hashed[rh] = hrow
	}
	return hashed, table, nil
}
