package kfcm

import (
	"sort"

	"smesys/internal/smali"
)

// node is one function in the reduction arena.
type node struct {
	name  string
	key   bool
	alive bool
	out   map[int]int      // callee -> weight
	in    map[int]struct{} // callers
}

// arena holds the call matrix as index-addressed nodes so that folding a
// node visits only its callers instead of every row.
type arena struct {
	nodes []node
	index map[string]int
}

func newArena(g *smali.Graph) *arena {
	a := &arena{
		nodes: make([]node, 0, len(g.Order)),
		index: make(map[string]int, len(g.Order)),
	}
	for _, name := range g.Order {
		a.index[name] = len(a.nodes)
		a.nodes = append(a.nodes, node{
			name:  name,
			key:   g.Entries[name].Key,
			alive: true,
			out:   make(map[int]int),
			in:    make(map[int]struct{}),
		})
	}
	for i := range a.nodes {
		for _, callee := range g.Entries[a.nodes[i].name].Calls {
			j, ok := a.index[callee]
			if !ok {
				continue
			}
			a.nodes[i].out[j] = 1
			a.nodes[j].in[i] = struct{}{}
		}
	}
	return a
}

// fold removes node n, rewiring each caller F of n to each callee K of n:
// an existing F->K keeps min(F->K, n->K), a new one gets n->K + 1.
func (a *arena) fold(n int) {
	nn := &a.nodes[n]
	for f := range nn.in {
		if f == n {
			continue
		}
		fn := &a.nodes[f]
		for k, w := range nn.out {
			if k == n {
				continue
			}
			if cur, ok := fn.out[k]; ok {
				if w < cur {
					fn.out[k] = w
				}
				continue
			}
			fn.out[k] = w + 1
			a.nodes[k].in[f] = struct{}{}
		}
		delete(fn.out, n)
	}
	for k := range nn.out {
		delete(a.nodes[k].in, n)
	}
	nn.out, nn.in, nn.alive = nil, nil, false
}

// matrix renders the live nodes. Rows without callees are omitted.
func (a *arena) matrix() Matrix {
	m := make(Matrix)
	for i := range a.nodes {
		nd := &a.nodes[i]
		if !nd.alive || len(nd.out) == 0 {
			continue
		}
		row := make(map[string]int, len(nd.out))
		for k, w := range nd.out {
			row[a.nodes[k].name] = w
		}
		m[nd.name] = row
	}
	return m
}

// foldOrder returns the normal node indices in the order they are folded.
// Names in preferred come first; remaining normals follow in discovery order.
func (a *arena) foldOrder(preferred []string) []int {
	seen := make(map[int]bool)
	var order []int
	for _, name := range preferred {
		i, ok := a.index[name]
		if !ok || a.nodes[i].key || seen[i] {
			continue
		}
		seen[i] = true
		order = append(order, i)
	}
	for i := range a.nodes {
		if !a.nodes[i].key && !seen[i] {
			order = append(order, i)
		}
	}
	return order
}

// Reduction is the outcome of folding every normal function.
type Reduction struct {
	Keys    []string // retained key functions in discovery order
	Plain   Matrix   // non-empty rows of the reduced matrix
	Removed []string // folded normal functions in fold order
}

// Reduce builds the initial call matrix from g and folds away every normal
// function. Only key functions remain as rows and columns.
func Reduce(g *smali.Graph, order []string) (*Reduction, error) {
	if g == nil || g.Len() == 0 {
		return nil, ErrEmptyGraph
	}
	a := newArena(g)
	r := &Reduction{}
	for _, i := range a.foldOrder(order) {
		a.fold(i)
		r.Removed = append(r.Removed, a.nodes[i].name)
	}
	for i := range a.nodes {
		if a.nodes[i].alive {
			r.Keys = append(r.Keys, a.nodes[i].name)
		}
	}
	r.Plain = a.matrix()
	return r, nil
}

// callers returns the sorted live callers of name. Used by tests and diagnostics.
func (a *arena) callers(name string) []string {
	i, ok := a.index[name]
	if !ok {
		return nil
	}
	var out []string
	for f := range a.nodes[i].in {
		out = append(out, a.nodes[f].name)
	}
	sort.Strings(out)
	return out
}
