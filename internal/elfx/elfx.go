// Package elfx loads the AArch64 shared objects packed under lib/ in Android
// applications.
package elfx

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

var (
	ErrNotELF    = errors.New("elfx: not an ELF file")
	ErrNotARM64  = errors.New("elfx: not ARM64 (EM_AARCH64)")
	ErrNotShared = errors.New("elfx: not a shared object")
	ErrNot64Bit  = errors.New("elfx: not 64-bit ELF")
	ErrNoSegment = errors.New("elfx: no PT_LOAD segment covers address")
	ErrNoFuncs   = errors.New("elfx: no sized function symbols")
)

// File wraps a debug/elf.File for native library analysis.
type File struct {
	ELF  *elf.File
	raw  io.ReaderAt
	size int64
}

// Open opens an ELF file and validates it is an ARM64 shared object.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfx: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("elfx: stat: %w", err)
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}

	var verr error
	switch {
	case ef.Class != elf.ELFCLASS64:
		verr = ErrNot64Bit
	case ef.Machine != elf.EM_AARCH64:
		verr = ErrNotARM64
	case ef.Type != elf.ET_DYN:
		verr = ErrNotShared
	}
	if verr != nil {
		ef.Close()
		f.Close()
		return nil, verr
	}

	return &File{ELF: ef, raw: f, size: info.Size()}, nil
}

// Close releases resources.
func (f *File) Close() error {
	err := f.ELF.Close()
	if c, ok := f.raw.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// FileSize returns the size of the underlying file.
func (f *File) FileSize() int64 { return f.size }

// Func is a defined function symbol.
type Func struct {
	Name string `json:"name"`
	Addr uint64 `json:"addr"`
	Size uint64 `json:"size"`
}

// Functions returns the defined, sized STT_FUNC symbols sorted by address.
// The static symbol table is preferred; stripped libraries fall back to the
// dynamic one. Aliases at the same address keep the lexically first name.
func (f *File) Functions() ([]Func, error) {
	syms, err := f.ELF.Symbols()
	if err != nil || len(syms) == 0 {
		syms, err = f.ELF.DynamicSymbols()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoFuncs, err)
		}
	}

	byAddr := make(map[uint64]Func)
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Section == elf.SHN_UNDEF || s.Size == 0 || s.Value == 0 {
			continue
		}
		if prev, ok := byAddr[s.Value]; ok && prev.Name <= s.Name {
			continue
		}
		byAddr[s.Value] = Func{Name: s.Name, Addr: s.Value, Size: s.Size}
	}
	if len(byAddr) == 0 {
		return nil, ErrNoFuncs
	}

	out := make([]Func, 0, len(byAddr))
	for _, fn := range byAddr {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out, nil
}

// JNIExports returns the exported JNI entry points (Java_* and JNI_OnLoad),
// sorted by name.
func (f *File) JNIExports() ([]string, error) {
	syms, err := f.ELF.DynamicSymbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("elfx: dynsym: %w", err)
	}
	var out []string
	for _, s := range syms {
		if s.Section == elf.SHN_UNDEF {
			continue
		}
		if s.Name == "JNI_OnLoad" || strings.HasPrefix(s.Name, "Java_") {
			out = append(out, s.Name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// VAToFileOffset converts a virtual address to a file offset using PT_LOAD segments.
func (f *File) VAToFileOffset(va uint64) (uint64, error) {
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if va >= p.Vaddr && va < p.Vaddr+p.Filesz {
			offset := va - p.Vaddr + p.Off
			if offset >= uint64(f.size) {
				return 0, fmt.Errorf("elfx: VA 0x%x maps to offset 0x%x beyond file size 0x%x", va, offset, f.size)
			}
			return offset, nil
		}
	}
	return 0, fmt.Errorf("%w: VA 0x%x", ErrNoSegment, va)
}

// ReadBytesAtVA reads up to n bytes starting at the given virtual address,
// clamped to the end of the file.
func (f *File) ReadBytesAtVA(va uint64, n int) ([]byte, error) {
	off, err := f.VAToFileOffset(va)
	if err != nil {
		return nil, err
	}
	avail := f.size - int64(off)
	if n < 0 || int64(n) > avail {
		n = int(avail)
	}
	buf := make([]byte, n)
	_, err = f.raw.ReadAt(buf, int64(off))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("elfx: read at 0x%x: %w", off, err)
	}
	return buf, nil
}

// FuncBytes returns the code bytes of fn.
func (f *File) FuncBytes(fn Func) ([]byte, error) {
	return f.ReadBytesAtVA(fn.Addr, int(fn.Size))
}
