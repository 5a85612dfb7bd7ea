// Package pixel encodes per-method instruction streams as colored points and
// rasterizes them into a fixed-size feature image.
package pixel

import (
	"crypto/md5"
	"encoding/binary"
	"strings"
	"unicode"
)

// HashBits is the width of the simhash fingerprint.
const HashBits = 48

const shingleWidth = 4

// Simhash returns the 48-bit simhash of s.
//
// s is lowercased and reduced to its word characters, then split into
// overlapping 4-rune shingles. Each distinct shingle votes on every bit with
// a weight equal to its count, using the low bits of its md5 digest.
func Simhash(s string) uint64 {
	var v [HashBits]int
	for feat, w := range shingles(normalize(s)) {
		h := lowBits(feat)
		for i := 0; i < HashBits; i++ {
			if h>>i&1 == 1 {
				v[i] += w
			} else {
				v[i] -= w
			}
		}
	}
	var out uint64
	for i, x := range v {
		if x > 0 {
			out |= 1 << i
		}
	}
	return out
}

func normalize(s string) []rune {
	s = strings.ToLower(s)
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) {
			out = append(out, r)
		}
	}
	return out
}

// shingles counts the overlapping windows of text. Text shorter than a
// window yields a single shingle of the whole text.
func shingles(text []rune) map[string]int {
	n := len(text) - shingleWidth + 1
	if n < 1 {
		n = 1
	}
	out := make(map[string]int, n)
	for i := 0; i < n; i++ {
		end := min(i+shingleWidth, len(text))
		out[string(text[i:end])]++
	}
	return out
}

// lowBits returns the low 64 bits of the md5 digest read as a big-endian integer.
func lowBits(s string) uint64 {
	sum := md5.Sum([]byte(s))
	return binary.BigEndian.Uint64(sum[8:])
}
