package callgraph

import (
	"github.com/zboralski/lattice"

	"smesys/internal/disasm"
)

// BuildCFG constructs a lattice.CFGGraph from disassembled functions.
func BuildCFG(funcs []FuncInfo) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, f := range funcs {
		lcfg, _ := BuildFuncCFG(f.Name, f.Insts, f.CallEdges)
		cg.Funcs = append(cg.Funcs, lcfg)
	}
	return cg
}

// BuildFuncCFG builds a single-function lattice.FuncCFG from instructions and
// call edges, and returns its basic block count.
func BuildFuncCFG(name string, insts []disasm.Inst, edges []disasm.CallEdge) (*lattice.FuncCFG, int) {
	dcfg := disasm.BuildCFG(name, insts)
	return convertFuncCFG(&dcfg, edges), len(dcfg.Blocks)
}

// convertFuncCFG maps a disasm.FuncCFG to a lattice.FuncCFG. Call sites are
// placed in the block holding their PC; BLR sites show the register.
func convertFuncCFG(dcfg *disasm.FuncCFG, edges []disasm.CallEdge) *lattice.FuncCFG {
	edgeByPC := make(map[uint64]disasm.CallEdge, len(edges))
	for _, e := range edges {
		edgeByPC[e.FromPC] = e
	}

	lcfg := &lattice.FuncCFG{Name: dcfg.Name}
	for _, db := range dcfg.Blocks {
		lb := &lattice.BasicBlock{
			ID:    db.ID,
			Start: db.Start,
			End:   db.End,
			Term:  db.Term,
		}
		for _, ds := range db.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{BlockID: ds.BlockID, Cond: ds.Cond})
		}
		for idx := db.Start; idx < db.End && idx < len(dcfg.Insts); idx++ {
			e, ok := edgeByPC[dcfg.Insts[idx].Addr]
			if !ok {
				continue
			}
			callee := e.Callee()
			if callee == "" {
				callee = "blr " + e.Reg
			}
			lb.Calls = append(lb.Calls, lattice.CallSite{Offset: idx, Callee: callee})
		}
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}
