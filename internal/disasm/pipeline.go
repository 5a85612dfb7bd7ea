package disasm

import "fmt"

// FuncRecord is one line in native_functions.jsonl.
type FuncRecord struct {
	Lib        string `json:"lib"`
	PC         string `json:"pc"`
	Size       int    `json:"size"`
	Name       string `json:"name"`
	Insts      int    `json:"insts"`
	Blocks     int    `json:"blocks"`
	Complexity int    `json:"complexity"`
	Calls      int    `json:"calls"`
}

// CallEdgeRecord is one line in native_call_edges.jsonl.
type CallEdgeRecord struct {
	Lib      string `json:"lib"`
	FromFunc string `json:"from_func"`
	FromPC   string `json:"from_pc"`
	Kind     string `json:"kind"`             // "bl" or "blr"
	Target   string `json:"target,omitempty"` // resolved name or sub_<addr>
	Reg      string `json:"reg,omitempty"`    // blr only
}

// NewFuncRecord summarizes one disassembled function.
func NewFuncRecord(lib string, cfg FuncCFG, addr uint64, size int, edges []CallEdge) FuncRecord {
	return FuncRecord{
		Lib:        lib,
		PC:         fmt.Sprintf("0x%x", addr),
		Size:       size,
		Name:       cfg.Name,
		Insts:      len(cfg.Insts),
		Blocks:     len(cfg.Blocks),
		Complexity: cfg.Complexity(),
		Calls:      len(edges),
	}
}

// NewCallEdgeRecords converts the call edges of fn.
func NewCallEdgeRecords(lib, fn string, edges []CallEdge) []CallEdgeRecord {
	out := make([]CallEdgeRecord, 0, len(edges))
	for _, e := range edges {
		out = append(out, CallEdgeRecord{
			Lib:      lib,
			FromFunc: fn,
			FromPC:   fmt.Sprintf("0x%x", e.FromPC),
			Kind:     e.Kind,
			Target:   e.Callee(),
			Reg:      e.Reg,
		})
	}
	return out
}
