package native

import (
	"sort"

	"smesys/internal/disasm"
)

// topN bounds the caller and callee rankings.
const topN = 20

// Stats summarizes the call edges of one library.
type Stats struct {
	BLEdges    int         `json:"bl_edges"`
	BLREdges   int         `json:"blr_edges"`
	Resolved   int         `json:"resolved"` // BL edges whose target has a symbol
	TopCallers []NameCount `json:"top_callers,omitempty"`
	TopCallees []NameCount `json:"top_callees,omitempty"`
}

// NameCount pairs a function name with a count.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ComputeStats counts edges by kind and ranks the busiest callers and callees.
func ComputeStats(funcs []disasm.FuncRecord, edges []disasm.CallEdgeRecord) Stats {
	var s Stats
	named := make(map[string]bool, len(funcs))
	for _, f := range funcs {
		named[f.Name] = true
	}

	callers := make(map[string]int)
	callees := make(map[string]int)
	for _, e := range edges {
		callers[e.FromFunc]++
		if e.Kind != "bl" {
			s.BLREdges++
			continue
		}
		s.BLEdges++
		if e.Target == "" {
			continue
		}
		callees[e.Target]++
		if named[e.Target] {
			s.Resolved++
		}
	}
	s.TopCallers = topCounts(callers, topN)
	s.TopCallees = topCounts(callees, topN)
	return s
}

// topCounts returns the n largest entries of m, count descending then name.
func topCounts(m map[string]int, n int) []NameCount {
	out := make([]NameCount, 0, len(m))
	for name, c := range m {
		out = append(out, NameCount{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
