// Package sim scores the similarity of two hashed call matrices.
package sim

import (
	"errors"
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"smesys/internal/kfcm"
)

// ErrComparison reports a score that is not a finite value in [0, 1].
var ErrComparison = errors.New("sim: comparison failed")

// Failed is the level reported alongside ErrComparison.
const Failed = -1.0

// Result is the outcome of comparing two matrices.
type Result struct {
	Level   float64  `json:"level"`
	CommKey []string `json:"commkey"`
}

// Comparator compares hashed matrices.
type Comparator struct {
	log logrus.FieldLogger
}

// NewComparator returns a comparator. A nil logger discards output.
func NewComparator(log logrus.FieldLogger) *Comparator {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Comparator{log: log}
}

// Compare scores alpha against beta over the hashes they share.
//
// Both matrices are restricted to the common fields and laid out densely in
// sorted order. Each cell that is nonzero on either side counts once in the
// denominator; equal nonzero cells score 1, cells zero on one side score 0,
// other cells score min/max.
func (c *Comparator) Compare(alpha, beta kfcm.Matrix) (Result, error) {
	common := intersect(alpha.Fields(), beta.Fields())
	res := Result{CommKey: common}
	if len(common) == 0 {
		return res, nil
	}

	keep := make(map[string]struct{}, len(common))
	for _, k := range common {
		keep[k] = struct{}{}
	}
	a := alpha.Restrict(keep).Dense(common)
	b := beta.Restrict(keep).Dense(common)
	if allZero(a) || allZero(b) {
		return res, nil
	}

	var num, den float64
	for r := range a {
		for col := range a[r] {
			x, y := a[r][col], b[r][col]
			switch {
			case x == y && x != 0:
				num++
			case x == 0 || y == 0:
			default:
				num += float64(min(x, y)) / float64(max(x, y))
			}
			if x != 0 || y != 0 {
				den++
			}
		}
	}

	level := num / den
	if math.IsNaN(level) || math.IsInf(level, 0) || level < 0 || level > 1 {
		c.log.WithFields(logrus.Fields{
			"numerator":   num,
			"denominator": den,
			"common":      len(common),
		}).Error("similarity out of range")
		res.Level = Failed
		return res, ErrComparison
	}
	res.Level = level
	return res, nil
}

// intersect returns the common elements of two sorted slices, sorted.
func intersect(a, b []string) []string {
	out := []string{}
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func allZero(m [][]int) bool {
	for _, row := range m {
		for _, v := range row {
			if v != 0 {
				return false
			}
		}
	}
	return true
}
