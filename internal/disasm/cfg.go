package disasm

import "sort"

// BasicBlock is a run of instructions entered only at its first one.
// Start and End index FuncCFG.Insts, End exclusive.
type BasicBlock struct {
	ID    int
	Start int
	End   int
	Succs []Succ
	Term  bool // ends in RET or a branch leaving the function
}

// Succ is a control-flow edge. Cond is "" for unconditional edges, "T" for
// the taken side of a conditional branch and "F" for its fallthrough.
type Succ struct {
	BlockID int
	Cond    string
}

// FuncCFG is the control-flow graph of one function.
type FuncCFG struct {
	Name   string
	Blocks []BasicBlock
	Insts  []Inst
}

// BuildCFG splits insts into basic blocks and links them. Blocks start at
// index 0, at in-function branch targets and after every branch or RET.
// BL and BLR return to the next instruction and do not end a block.
func BuildCFG(name string, insts []Inst) FuncCFG {
	cfg := FuncCFG{Name: name, Insts: insts}
	if len(insts) == 0 {
		return cfg
	}
	b := newCFGBuilder(insts)
	starts := b.leaders()
	cfg.Blocks = make([]BasicBlock, len(starts))
	for i, s := range starts {
		end := len(insts)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		cfg.Blocks[i] = BasicBlock{ID: i, Start: s, End: end}
		b.blockAt[s] = i
	}
	for i := range cfg.Blocks {
		b.link(&cfg.Blocks[i])
	}
	return cfg
}

type cfgBuilder struct {
	insts   []Inst
	lo, hi  uint64 // function address range, hi exclusive
	index   map[uint64]int
	blockAt map[int]int // leader instruction index -> block ID
}

func newCFGBuilder(insts []Inst) *cfgBuilder {
	b := &cfgBuilder{
		insts:   insts,
		lo:      insts[0].Addr,
		hi:      insts[len(insts)-1].Addr + 4,
		index:   make(map[uint64]int, len(insts)),
		blockAt: make(map[int]int),
	}
	for i, in := range insts {
		b.index[in.Addr] = i
	}
	return b
}

// local returns the instruction index of an in-function address.
func (b *cfgBuilder) local(addr uint64) (int, bool) {
	if addr < b.lo || addr >= b.hi {
		return 0, false
	}
	i, ok := b.index[addr]
	return i, ok
}

func (b *cfgBuilder) leaders() []int {
	set := map[int]struct{}{0: {}}
	for i, in := range b.insts {
		br, ok := DecodeBranch(in.Raw, in.Addr)
		if !ok {
			continue
		}
		if i+1 < len(b.insts) {
			set[i+1] = struct{}{}
		}
		if br.Ret() {
			continue
		}
		if t, ok := b.local(br.Target); ok {
			set[t] = struct{}{}
		}
	}
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (b *cfgBuilder) link(blk *BasicBlock) {
	next, hasNext := b.blockAt[blk.End]
	last := b.insts[blk.End-1]
	br, ok := DecodeBranch(last.Raw, last.Addr)
	switch {
	case !ok:
		if hasNext {
			blk.Succs = append(blk.Succs, Succ{BlockID: next})
		}
		return
	case br.Ret():
		blk.Term = true
		return
	}

	target := -1
	if t, ok := b.local(br.Target); ok {
		target = b.blockAt[t]
	}
	if !br.Cond {
		if target < 0 {
			blk.Term = true
			return
		}
		blk.Succs = append(blk.Succs, Succ{BlockID: target})
		return
	}
	if target >= 0 {
		blk.Succs = append(blk.Succs, Succ{BlockID: target, Cond: "T"})
	}
	if hasNext {
		blk.Succs = append(blk.Succs, Succ{BlockID: next, Cond: "F"})
	}
}

// Edges returns the number of successor edges.
func (c FuncCFG) Edges() int {
	n := 0
	for _, b := range c.Blocks {
		n += len(b.Succs)
	}
	return n
}

// Complexity returns the cyclomatic complexity E - N + 2, or 0 for an
// empty function.
func (c FuncCFG) Complexity() int {
	if len(c.Blocks) == 0 {
		return 0
	}
	return c.Edges() - len(c.Blocks) + 2
}
