package disasm

// Branch is a decoded control transfer that ends a basic block.
type Branch struct {
	Op     string // b, b.cond, cbz, cbnz, tbz, tbnz, ret
	Target uint64 // absolute; 0 for ret
	Cond   bool   // has a fallthrough successor
}

// Ret reports whether b returns from the function.
func (b Branch) Ret() bool { return b.Op == "ret" }

// branchForm is one PC-relative branch encoding: raw&mask == value, with a
// signed word offset of width bits starting at bit shift.
type branchForm struct {
	op          string
	mask, value uint32
	shift, bits uint
	cond        bool
}

var branchForms = []branchForm{
	{op: "b", mask: 0xFC000000, value: 0x14000000, shift: 0, bits: 26},
	{op: "b.cond", mask: 0xFF000010, value: 0x54000000, shift: 5, bits: 19, cond: true},
	{op: "cbz", mask: 0x7F000000, value: 0x34000000, shift: 5, bits: 19, cond: true},
	{op: "cbnz", mask: 0x7F000000, value: 0x35000000, shift: 5, bits: 19, cond: true},
	{op: "tbz", mask: 0x7F000000, value: 0x36000000, shift: 5, bits: 14, cond: true},
	{op: "tbnz", mask: 0x7F000000, value: 0x37000000, shift: 5, bits: 14, cond: true},
}

// DecodeBranch decodes B, B.cond, CBZ/CBNZ, TBZ/TBNZ and RET Xn at pc.
// BL and BLR are calls and are not reported.
func DecodeBranch(raw uint32, pc uint64) (Branch, bool) {
	if raw&0xFFFFFC1F == 0xD65F0000 {
		return Branch{Op: "ret"}, true
	}
	for _, f := range branchForms {
		if raw&f.mask != f.value {
			continue
		}
		imm := raw >> f.shift & (1<<f.bits - 1)
		return Branch{Op: f.op, Target: relTarget(pc, imm, f.bits), Cond: f.cond}, true
	}
	return Branch{}, false
}

// relTarget adds a signed word offset of the given width to pc.
func relTarget(pc uint64, imm uint32, bits uint) uint64 {
	return uint64(int64(pc) + int64(signExtend(imm, bits))*4)
}

// signExtend interprets the low bits of val as two's complement.
func signExtend(val uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(val<<shift) >> shift
}

// DecodeCall decodes BL and returns its absolute target.
func DecodeCall(raw uint32, pc uint64) (target uint64, ok bool) {
	if raw&0xFC000000 != 0x94000000 {
		return 0, false
	}
	return relTarget(pc, raw&0x03FFFFFF, 26), true
}

// DecodeIndirectCall decodes BLR Xn and returns n.
func DecodeIndirectCall(raw uint32) (rn int, ok bool) {
	if raw&0xFFFFFC1F != 0xD63F0000 {
		return 0, false
	}
	return int(raw >> 5 & 0x1F), true
}
