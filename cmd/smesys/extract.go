package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"smesys/internal/apk"
	"smesys/internal/batch"
	"smesys/internal/config"
)

func cmdExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	common := addCommon(fs)
	apkPath := fs.String("apk", "", "path to the application")
	outDir := fs.String("out", "", "output directory (default batch.out_dir)")
	graphs := fs.Bool("graphs", false, "also write callgraph.dot and kfcm.dot")
	keep := fs.Bool("keep", false, "keep the decoded tree")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *apkPath == "" {
		return fmt.Errorf("--apk is required")
	}

	cfg, log, err := common.load()
	if err != nil {
		return err
	}
	if *outDir != "" {
		cfg.Batch.OutDir = *outDir
	}
	cfg.Batch.Graphs = cfg.Batch.Graphs || *graphs
	cfg.Batch.KeepDecoded = cfg.Batch.KeepDecoded || *keep

	dec, err := apk.NewDecoder(cfg.DecoderOptions(filepath.Join(cfg.Batch.WorkDir, "decoded")), log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := batch.NewRunner(runnerOptions(cfg), dec, nil, nil, log)
	res := r.Process(ctx, *apkPath)
	switch res.Status {
	case batch.Failed:
		return fmt.Errorf("%s: %w", res.Stage, res.Err)
	case batch.AlreadyExists:
		fmt.Fprintf(os.Stderr, "exists %s\n", res.OutDir)
	default:
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", res.Stage, res.Err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", res.OutDir)
	}
	return nil
}

func runnerOptions(cfg *config.Config) batch.Options {
	return batch.Options{
		Workers:     cfg.Batch.Workers,
		OutDir:      cfg.Batch.OutDir,
		KeepDecoded: cfg.Batch.KeepDecoded,
		Graphs:      cfg.Batch.Graphs,
		Native:      cfg.Analysis.Native,
		Smali:       cfg.SmaliOptions(),
		KFCM:        cfg.KFCMOptions(),
		Features:    cfg.FeatureOptions(),
		NativeOpts:  cfg.NativeOptions(),
		Permissions: cfg.Features.Permissions,
		APIs:        cfg.Features.APIs,
	}
}
