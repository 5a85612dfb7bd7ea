package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zboralski/lattice/render"

	"smesys/internal/callgraph"
	"smesys/internal/kfcm"
	"smesys/internal/output"
	"smesys/internal/smali"
)

func cmdGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	common := addCommon(fs)
	smaliDir := fs.String("smali", "", "decoded tree or single .smali file")
	outDir := fs.String("out", "", "output directory")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *smaliDir == "" {
		return fmt.Errorf("--smali is required")
	}
	if *outDir == "" {
		return fmt.Errorf("--out is required")
	}

	cfg, log, err := common.load()
	if err != nil {
		return err
	}
	g, err := smali.NewCollector(cfg.SmaliOptions(), log).Collect(*smaliDir)
	if err != nil {
		return err
	}
	res, err := kfcm.NewBuilder(cfg.KFCMOptions(), log).Build(g)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	title := filepath.Base(*smaliDir)
	if err := output.WriteDOT(*outDir, output.CallGraphDOT, render.DOT(callgraph.FromGraph(g), title)); err != nil {
		return err
	}
	if err := output.WriteDOT(*outDir, output.KFCMDOT, render.DOT(callgraph.FromMatrix(res.Plain), title+" kfcm")); err != nil {
		return err
	}
	if err := output.WriteKFCM(*outDir, res); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d functions, %d key, %d matrix edges\n", g.Len(), len(res.Keys), res.Plain.Edges())
	return nil
}
