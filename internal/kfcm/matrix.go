package kfcm

import "sort"

// Matrix is a sparse call matrix: caller -> callee -> weight.
type Matrix map[string]map[string]int

// Fields returns the sorted union of row and column names.
func (m Matrix) Fields() []string {
	set := make(map[string]struct{}, len(m))
	for r, row := range m {
		set[r] = struct{}{}
		for c := range row {
			set[c] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Rows returns the sorted row names.
func (m Matrix) Rows() []string {
	rows := make([]string, 0, len(m))
	for r := range m {
		rows = append(rows, r)
	}
	sort.Strings(rows)
	return rows
}

// Restrict returns a copy of m holding only rows and columns in keep.
func (m Matrix) Restrict(keep map[string]struct{}) Matrix {
	out := make(Matrix)
	for r, row := range m {
		if _, ok := keep[r]; !ok {
			continue
		}
		nrow := make(map[string]int)
		for c, w := range row {
			if _, ok := keep[c]; ok {
				nrow[c] = w
			}
		}
		out[r] = nrow
	}
	return out
}

// Dense lays m out over fields: rows[i][j] is the weight fields[i] -> fields[j],
// zero when absent.
func (m Matrix) Dense(fields []string) [][]int {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f] = i
	}
	out := make([][]int, len(fields))
	for i := range out {
		out[i] = make([]int, len(fields))
	}
	for r, row := range m {
		i, ok := idx[r]
		if !ok {
			continue
		}
		for c, w := range row {
			if j, ok := idx[c]; ok {
				out[i][j] = w
			}
		}
	}
	return out
}

// Edges returns the number of nonzero cells.
func (m Matrix) Edges() int {
	n := 0
	for _, row := range m {
		n += len(row)
	}
	return n
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
