// Package disasm provides ARM64 disassembly for the native libraries shipped
// inside Android applications.
package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
)

// Inst is a decoded ARM64 instruction with address and raw bytes.
type Inst struct {
	Addr     uint64
	Raw      uint32
	Size     int // always 4 for ARM64
	Mnemonic string
	Operands string
	Text     string // full disassembly line
}

// SymbolLookup resolves an address to a symbolic name. Returns ("", false) if unknown.
type SymbolLookup func(addr uint64) (name string, ok bool)

// Options controls disassembly behavior.
type Options struct {
	BaseAddr uint64 // VA of the first byte in data
	MaxSteps int    // maximum instructions to decode; 0 = 1M
}

const defaultMaxSteps = 1_000_000

func (o Options) effectiveMax() int {
	if o.MaxSteps > 0 {
		return o.MaxSteps
	}
	return defaultMaxSteps
}

// Disassemble decodes ARM64 instructions from a byte region.
// Undecodable words become ".word" pseudo-instructions.
func Disassemble(data []byte, opts Options) []Inst {
	n := len(data) / 4
	if limit := opts.effectiveMax(); n > limit {
		n = limit
	}

	result := make([]Inst, 0, n)
	for i := 0; i < n; i++ {
		off := i * 4
		word := data[off : off+4]
		raw := binary.LittleEndian.Uint32(word)

		inst := Inst{Addr: opts.BaseAddr + uint64(off), Raw: raw, Size: 4}
		dec, err := arm64asm.Decode(word)
		if err != nil {
			inst.Mnemonic = ".word"
			inst.Operands = fmt.Sprintf("0x%08x", raw)
			inst.Text = ".word " + inst.Operands
		} else {
			inst.Text = dec.String()
			inst.Mnemonic, inst.Operands, _ = strings.Cut(inst.Text, " ")
		}
		result = append(result, inst)
	}
	return result
}

// Mnemonics concatenates the lower-cased mnemonics of insts, skipping
// undecodable words. The result feeds the same simhash projection as smali
// opcode streams.
func Mnemonics(insts []Inst) string {
	var b strings.Builder
	for _, inst := range insts {
		if inst.Mnemonic == ".word" {
			continue
		}
		b.WriteString(strings.ToLower(inst.Mnemonic))
	}
	return b.String()
}

// Format renders instructions as stable text: <addr>  <hex bytes>  <disasm>,
// with a "; <name>" comment where lookup resolves the address or a BL target.
func Format(insts []Inst, lookup SymbolLookup) string {
	var b strings.Builder
	for _, inst := range insts {
		fmt.Fprintf(&b, "0x%08x  ", inst.Addr)
		fmt.Fprintf(&b, "%02x %02x %02x %02x  ",
			byte(inst.Raw), byte(inst.Raw>>8), byte(inst.Raw>>16), byte(inst.Raw>>24))
		b.WriteString(inst.Text)
		if lookup != nil {
			if name, ok := lookup(inst.Addr); ok {
				fmt.Fprintf(&b, "  ; <%s>", name)
			} else if target, ok := DecodeCall(inst.Raw, inst.Addr); ok {
				if name, ok := lookup(target); ok {
					fmt.Fprintf(&b, "  ; %s", name)
				}
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// MapLookup returns a SymbolLookup backed by a fixed address table.
func MapLookup(names map[uint64]string) SymbolLookup {
	return func(addr uint64) (string, bool) {
		name, ok := names[addr]
		return name, ok
	}
}
