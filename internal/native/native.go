// Package native analyzes the arm64 shared objects of a decoded application:
// function symbols, BL/BLR call edges, per-function CFG metrics and the
// mnemonic streams that feed the perceptual encoder.
package native

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"smesys/internal/callgraph"
	"smesys/internal/disasm"
	"smesys/internal/elfx"
)

// DefaultABI is the only ABI analyzed.
const DefaultABI = "arm64-v8a"

// Options bounds the work done per library.
type Options struct {
	MaxFuncs int // 0 = all
	MaxSteps int // per-function instruction cap; 0 = disasm default
}

// Library is the analysis of one .so file.
type Library struct {
	Name    string                  `json:"name"`
	Size    int64                   `json:"size"`
	JNI     []string                `json:"jni,omitempty"`
	Funcs   []disasm.FuncRecord     `json:"funcs"`
	Edges   []disasm.CallEdgeRecord `json:"edges,omitempty"`
	Stats   Stats                   `json:"stats"`
	Streams []string                `json:"-"`
	Infos   []callgraph.FuncInfo    `json:"-"`
}

// Analyzer disassembles native libraries.
type Analyzer struct {
	opts Options
	log  logrus.FieldLogger
}

// NewAnalyzer returns an Analyzer. A nil logger discards output.
func NewAnalyzer(opts Options, log logrus.FieldLogger) *Analyzer {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Analyzer{opts: opts, log: log}
}

// Analyze disassembles every sized function of the library at path.
// A stripped library without function symbols yields an empty Library.
func (a *Analyzer) Analyze(path string) (*Library, error) {
	ef, err := elfx.Open(path)
	if err != nil {
		return nil, err
	}
	defer ef.Close()

	lib := &Library{Name: filepath.Base(path), Size: ef.FileSize()}
	if lib.JNI, err = ef.JNIExports(); err != nil {
		return nil, err
	}

	fns, err := ef.Functions()
	if errors.Is(err, elfx.ErrNoFuncs) {
		a.log.WithField("lib", lib.Name).Debug("no function symbols")
		return lib, nil
	}
	if err != nil {
		return nil, err
	}
	if a.opts.MaxFuncs > 0 && len(fns) > a.opts.MaxFuncs {
		fns = fns[:a.opts.MaxFuncs]
	}

	names := make(map[uint64]string, len(fns))
	for _, fn := range fns {
		names[fn.Addr] = fn.Name
	}
	lookup := disasm.MapLookup(names)

	for _, fn := range fns {
		code, err := ef.FuncBytes(fn)
		if err != nil {
			a.log.WithFields(logrus.Fields{"lib": lib.Name, "func": fn.Name}).WithError(err).Warn("skip function")
			continue
		}
		insts := disasm.Disassemble(code, disasm.Options{BaseAddr: fn.Addr, MaxSteps: a.opts.MaxSteps})
		edges := disasm.ExtractCallEdges(insts, lookup)
		cfg := disasm.BuildCFG(fn.Name, insts)

		lib.Funcs = append(lib.Funcs, disasm.NewFuncRecord(lib.Name, cfg, fn.Addr, int(fn.Size), edges))
		lib.Edges = append(lib.Edges, disasm.NewCallEdgeRecords(lib.Name, fn.Name, edges)...)
		lib.Infos = append(lib.Infos, callgraph.FuncInfo{Name: fn.Name, Insts: insts, CallEdges: edges})
		if s := disasm.Mnemonics(insts); s != "" {
			lib.Streams = append(lib.Streams, s)
		}
	}
	lib.Stats = ComputeStats(lib.Funcs, lib.Edges)
	a.log.WithFields(logrus.Fields{
		"lib":   lib.Name,
		"funcs": len(lib.Funcs),
		"edges": len(lib.Edges),
		"jni":   len(lib.JNI),
	}).Debug("native library analyzed")
	return lib, nil
}

// AnalyzeAll analyzes each path. Libraries that are not arm64 shared objects
// are logged and skipped; other errors abort.
func (a *Analyzer) AnalyzeAll(paths []string) ([]*Library, error) {
	var libs []*Library
	for _, p := range paths {
		lib, err := a.Analyze(p)
		switch {
		case errors.Is(err, elfx.ErrNotELF), errors.Is(err, elfx.ErrNotARM64),
			errors.Is(err, elfx.ErrNotShared), errors.Is(err, elfx.ErrNot64Bit):
			a.log.WithField("lib", filepath.Base(p)).WithError(err).Warn("skip library")
			continue
		case err != nil:
			return libs, fmt.Errorf("native: %s: %w", filepath.Base(p), err)
		}
		libs = append(libs, lib)
	}
	return libs, nil
}

// Streams returns the mnemonic streams of all libraries in order.
func Streams(libs []*Library) []string {
	var out []string
	for _, l := range libs {
		out = append(out, l.Streams...)
	}
	return out
}
