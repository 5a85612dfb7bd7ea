package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/zboralski/lattice/render"

	"smesys/internal/callgraph"
	"smesys/internal/disasm"
	"smesys/internal/native"
	"smesys/internal/output"
)

func cmdNative(args []string) error {
	fs := flag.NewFlagSet("native", flag.ExitOnError)
	common := addCommon(fs)
	libPath := fs.String("lib", "", "path to an arm64 .so")
	outDir := fs.String("out", "", "output directory")
	maxFuncs := fs.Int("max-funcs", 0, "limit functions analyzed (0 = all)")
	asm := fs.Bool("asm", false, "write per-function disassembly under asm/")
	graphs := fs.Bool("graphs", false, "write callgraph.dot and cfg.dot")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *libPath == "" {
		return fmt.Errorf("--lib is required")
	}
	if *outDir == "" {
		return fmt.Errorf("--out is required")
	}

	cfg, log, err := common.load()
	if err != nil {
		return err
	}
	opts := cfg.NativeOptions()
	if *maxFuncs > 0 {
		opts.MaxFuncs = *maxFuncs
	}
	lib, err := native.NewAnalyzer(opts, log).Analyze(*libPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	if err := output.WriteNative(*outDir, []*native.Library{lib}); err != nil {
		return err
	}

	if *asm {
		names := make(map[uint64]string, len(lib.Infos))
		for _, fi := range lib.Infos {
			if len(fi.Insts) > 0 {
				names[fi.Insts[0].Addr] = fi.Name
			}
		}
		lookup := disasm.MapLookup(names)
		base := strings.TrimSuffix(lib.Name, ".so")
		for _, fi := range lib.Infos {
			if err := output.WriteASM(*outDir, base+"/"+fi.Name, fi.Insts, lookup); err != nil {
				return err
			}
		}
	}

	if *graphs {
		if err := output.WriteDOT(*outDir, output.CallGraphDOT, render.DOT(callgraph.BuildCallGraph(lib.Infos), lib.Name)); err != nil {
			return err
		}
		if err := output.WriteDOT(*outDir, "cfg.dot", render.DOTCFG(callgraph.BuildCFG(lib.Infos), lib.Name)); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stderr, "%s: %d funcs, %d edges, %d jni exports\n", lib.Name, len(lib.Funcs), len(lib.Edges), len(lib.JNI))
	return nil
}
