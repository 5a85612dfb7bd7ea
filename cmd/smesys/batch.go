package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"smesys/internal/apk"
	"smesys/internal/batch"
	"smesys/internal/metrics"
	"smesys/internal/store"
)

func cmdBatch(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	common := addCommon(fs)
	dir := fs.String("dir", "", "directory of *.apk files")
	outDir := fs.String("out", "", "output directory (default batch.out_dir)")
	workers := fs.Int("workers", 0, "concurrent applications (default batch.workers)")
	graphs := fs.Bool("graphs", false, "also write callgraph.dot and kfcm.dot")
	noStore := fs.Bool("no-store", false, "do not record reports in the store")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		return fmt.Errorf("--dir is required")
	}

	cfg, log, err := common.load()
	if err != nil {
		return err
	}
	if *outDir != "" {
		cfg.Batch.OutDir = *outDir
	}
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}
	cfg.Batch.Graphs = cfg.Batch.Graphs || *graphs

	paths, err := batch.Discover(*dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no *.apk files in %s", *dir)
	}

	work := cfg.Batch.WorkDir
	if err := os.MkdirAll(work, 0o755); err != nil {
		return err
	}
	if swept, err := apk.SweepExpired(work, time.Now()); err != nil {
		log.WithError(err).Warn("sweep work dir")
	} else if len(swept) > 0 {
		log.WithField("dirs", len(swept)).Info("removed expired work dirs")
	}
	wd, err := apk.MkTempDir(work, 24*time.Hour)
	if err != nil {
		return err
	}
	dec, err := apk.NewDecoder(cfg.DecoderOptions(filepath.Join(wd.Dir, "decoded")), log)
	if err != nil {
		return err
	}

	var st *store.Store
	if !*noStore {
		st, err = store.Open(cfg.Store.Backend, cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen); err != nil {
				log.WithError(err).Error("metrics endpoint")
			}
		}()
	}

	r := batch.NewRunner(runnerOptions(cfg), dec, st, m, log)
	results, err := r.Run(ctx, paths)
	if err != nil {
		return err
	}

	counts := make(map[batch.Status]int)
	for _, res := range results {
		counts[res.Status]++
	}
	fmt.Fprintf(os.Stderr, "%d apps: %d extracted, %d already present, %d failed\n",
		len(results), counts[batch.Extracted], counts[batch.AlreadyExists], counts[batch.Failed])
	if !cfg.Batch.KeepDecoded {
		os.RemoveAll(wd.Dir)
	}
	return nil
}
