// Package elfxtest builds minimal AArch64 shared objects for tests.
package elfxtest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// Sym is a function symbol placed in .text. Off is relative to TextAddr.
type Sym struct {
	Name string
	Off  uint64
	Size uint64
}

// TextAddr is the virtual address (and file offset) of .text.
const TextAddr = 0x100

// Lib describes the library to build.
type Lib struct {
	Machine elf.Machine // 0 = EM_AARCH64
	Text    []byte
	Syms    []Sym
}

// Build lays out ELF header, one PT_LOAD covering the file, then .text,
// .symtab, .strtab and .shstrtab followed by the section headers.
func Build(l Lib) []byte {
	machine := l.Machine
	if machine == 0 {
		machine = elf.EM_AARCH64
	}

	strtab := []byte{0}
	symtab := new(bytes.Buffer)
	binary.Write(symtab, binary.LittleEndian, elf.Sym64{})
	for _, s := range l.Syms {
		name := uint32(len(strtab))
		strtab = append(strtab, s.Name...)
		strtab = append(strtab, 0)
		binary.Write(symtab, binary.LittleEndian, elf.Sym64{
			Name:  name,
			Info:  elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC),
			Shndx: 1,
			Value: TextAddr + s.Off,
			Size:  s.Size,
		})
	}
	shstrtab := []byte("\x00.text\x00.symtab\x00.strtab\x00.shstrtab\x00")

	textOff := uint64(TextAddr)
	symOff := align8(textOff + uint64(len(l.Text)))
	strOff := symOff + uint64(symtab.Len())
	shstrOff := strOff + uint64(len(strtab))
	shOff := align8(shstrOff + uint64(len(shstrtab)))
	const shnum = 5
	total := shOff + shnum*64

	var hdr elf.Header64
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr.Type = uint16(elf.ET_DYN)
	hdr.Machine = uint16(machine)
	hdr.Version = uint32(elf.EV_CURRENT)
	hdr.Phoff = 64
	hdr.Shoff = shOff
	hdr.Ehsize = 64
	hdr.Phentsize = 56
	hdr.Phnum = 1
	hdr.Shentsize = 64
	hdr.Shnum = shnum
	hdr.Shstrndx = 4

	out := make([]byte, total)
	w := bytes.NewBuffer(out[:0])
	binary.Write(w, binary.LittleEndian, hdr)
	binary.Write(w, binary.LittleEndian, elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Filesz: total,
		Memsz:  total,
		Align:  0x1000,
	})
	copy(out[textOff:], l.Text)
	copy(out[symOff:], symtab.Bytes())
	copy(out[strOff:], strtab)
	copy(out[shstrOff:], shstrtab)

	sections := []elf.Section64{
		{},
		{Name: 1, Type: uint32(elf.SHT_PROGBITS), Flags: uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR),
			Addr: textOff, Off: textOff, Size: uint64(len(l.Text)), Addralign: 4},
		{Name: 7, Type: uint32(elf.SHT_SYMTAB), Off: symOff, Size: uint64(symtab.Len()),
			Link: 3, Info: 1, Addralign: 8, Entsize: 24},
		{Name: 15, Type: uint32(elf.SHT_STRTAB), Off: strOff, Size: uint64(len(strtab)), Addralign: 1},
		{Name: 23, Type: uint32(elf.SHT_STRTAB), Off: shstrOff, Size: uint64(len(shstrtab)), Addralign: 1},
	}
	sw := bytes.NewBuffer(out[shOff:shOff])
	for _, s := range sections {
		binary.Write(sw, binary.LittleEndian, s)
	}
	return out
}

// Write builds l into dir/name and returns the path.
func Write(t testing.TB, dir, name string, l Lib) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, Build(l), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// Words encodes ARM64 instruction words little-endian.
func Words(ws ...uint32) []byte {
	b := make([]byte, 4*len(ws))
	for i, w := range ws {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	return b
}

func align8(n uint64) uint64 { return (n + 7) &^ 7 }
