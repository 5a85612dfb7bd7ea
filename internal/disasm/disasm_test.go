package disasm

import (
	"encoding/binary"
	"strings"
	"testing"
)

// words encodes raws little-endian.
func words(raws ...uint32) []byte {
	data := make([]byte, 4*len(raws))
	for i, r := range raws {
		binary.LittleEndian.PutUint32(data[4*i:], r)
	}
	return data
}

func TestDisassemble(t *testing.T) {
	insts := Disassemble(words(opNOP, opRET), Options{BaseAddr: 0x1000})
	if len(insts) != 2 {
		t.Fatalf("got %d instructions, want 2", len(insts))
	}
	for i, want := range []struct {
		addr uint64
		mn   string
	}{{0x1000, "NOP"}, {0x1004, "RET"}} {
		if insts[i].Addr != want.addr || insts[i].Mnemonic != want.mn {
			t.Errorf("inst %d = {0x%x %s}, want {0x%x %s}", i, insts[i].Addr, insts[i].Mnemonic, want.addr, want.mn)
		}
	}
}

func TestDisassembleLimits(t *testing.T) {
	many := make([]uint32, 100)
	for i := range many {
		many[i] = opNOP
	}
	if n := len(Disassemble(words(many...), Options{MaxSteps: 10})); n != 10 {
		t.Errorf("max steps: got %d instructions, want 10", n)
	}
	if n := len(Disassemble(nil, Options{})); n != 0 {
		t.Errorf("nil data: got %d instructions", n)
	}
	if n := len(Disassemble([]byte{0x01, 0x02}, Options{})); n != 0 {
		t.Errorf("short data: got %d instructions", n)
	}
}

func TestFormat(t *testing.T) {
	insts := Disassemble(words(opNOP, opNOP), Options{BaseAddr: 0x1000})
	lookup := MapLookup(map[uint64]string{0x1000: "entry"})
	text := Format(insts, lookup)
	if !strings.HasPrefix(text, "0x00001000  1f 20 03 d5  NOP  ; <entry>\n") {
		t.Errorf("unexpected listing:\n%s", text)
	}
	if strings.Count(text, "\n") != 2 {
		t.Errorf("want 2 lines:\n%s", text)
	}
	if again := Format(insts, lookup); again != text {
		t.Error("listing not stable")
	}
}

func TestFormatCallTarget(t *testing.T) {
	insts := []Inst{{Addr: 0x1000, Raw: 0x94000004, Text: "BL .+0x10"}}
	text := Format(insts, MapLookup(map[uint64]string{0x1010: "memcpy"}))
	if !strings.HasSuffix(text, "  ; memcpy\n") {
		t.Errorf("missing call target comment: %q", text)
	}
}

func TestMnemonics(t *testing.T) {
	insts := []Inst{
		{Mnemonic: "NOP"},
		{Mnemonic: ".word", Operands: "0x00000000"},
		{Mnemonic: "RET"},
	}
	if got := Mnemonics(insts); got != "nopret" {
		t.Errorf("Mnemonics = %q, want nopret", got)
	}
}
