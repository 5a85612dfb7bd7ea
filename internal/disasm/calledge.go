package disasm

import "fmt"

// CallEdge is a call site found in a function body.
type CallEdge struct {
	FromPC     uint64 `json:"from_pc"`
	Kind       string `json:"kind"`                // "bl" or "blr"
	TargetPC   uint64 `json:"target_pc,omitempty"` // bl only
	TargetName string `json:"target_name,omitempty"`
	Reg        string `json:"reg,omitempty"` // blr only
}

// Callee names the edge target: the resolved symbol, a sub_<addr>
// placeholder for unresolved BL targets, or "" for BLR.
func (e CallEdge) Callee() string {
	switch {
	case e.TargetName != "":
		return e.TargetName
	case e.Kind == "bl":
		return fmt.Sprintf("sub_%x", e.TargetPC)
	}
	return ""
}

// ExtractCallEdges scans instructions for BL and BLR call sites. symbols
// resolves BL targets to names and may be nil.
func ExtractCallEdges(insts []Inst, symbols SymbolLookup) []CallEdge {
	var edges []CallEdge
	for _, inst := range insts {
		if target, ok := DecodeCall(inst.Raw, inst.Addr); ok {
			e := CallEdge{FromPC: inst.Addr, Kind: "bl", TargetPC: target}
			if symbols != nil {
				if name, found := symbols(target); found {
					e.TargetName = name
				}
			}
			edges = append(edges, e)
			continue
		}
		if rn, ok := DecodeIndirectCall(inst.Raw); ok {
			edges = append(edges, CallEdge{FromPC: inst.Addr, Kind: "blr", Reg: fmt.Sprintf("X%d", rn)})
		}
	}
	return edges
}
