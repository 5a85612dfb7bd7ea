// Package callgraph converts call graphs into lattice graphs for DOT export.
package callgraph

import (
	"sort"

	"github.com/zboralski/lattice"

	"smesys/internal/disasm"
	"smesys/internal/kfcm"
	"smesys/internal/smali"
)

// FuncInfo holds the data needed to build call graph and CFG for one native function.
type FuncInfo struct {
	Name      string
	Insts     []disasm.Inst
	CallEdges []disasm.CallEdge
}

// BuildCallGraph constructs a lattice.Graph from disassembled functions.
// BLR sites have no static target and are skipped.
func BuildCallGraph(funcs []FuncInfo) *lattice.Graph {
	g := &lattice.Graph{}
	for _, f := range funcs {
		g.Nodes = append(g.Nodes, f.Name)
		for _, e := range f.CallEdges {
			callee := e.Callee()
			if callee == "" {
				continue
			}
			g.Edges = append(g.Edges, lattice.Edge{Caller: f.Name, Callee: callee})
		}
	}
	g.Dedup()
	return g
}

// FromGraph converts the retained methods of a collected smali graph.
// Nodes follow discovery order; repeated calls collapse into one edge.
func FromGraph(sg *smali.Graph) *lattice.Graph {
	g := &lattice.Graph{}
	for _, name := range sg.Order {
		g.Nodes = append(g.Nodes, name)
		for _, callee := range sg.Entries[name].Calls {
			g.Edges = append(g.Edges, lattice.Edge{Caller: name, Callee: callee})
		}
	}
	g.Dedup()
	return g
}

// FromMatrix converts a KFCM (plain or hashed). Nodes are the sorted
// fields; edge weights are dropped.
func FromMatrix(m kfcm.Matrix) *lattice.Graph {
	g := &lattice.Graph{Nodes: m.Fields()}
	for _, caller := range m.Rows() {
		row := m[caller]
		callees := make([]string, 0, len(row))
		for c := range row {
			callees = append(callees, c)
		}
		sort.Strings(callees)
		for _, c := range callees {
			g.Edges = append(g.Edges, lattice.Edge{Caller: caller, Callee: c})
		}
	}
	return g
}
