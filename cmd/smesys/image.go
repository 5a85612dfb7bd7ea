package main

import (
	"flag"
	"fmt"
	"os"

	"smesys/internal/apk"
	"smesys/internal/features"
	"smesys/internal/native"
	"smesys/internal/output"
	"smesys/internal/pixel"
	"smesys/internal/smali"
)

func cmdImage(args []string) error {
	fs := flag.NewFlagSet("image", flag.ExitOnError)
	common := addCommon(fs)
	smaliDir := fs.String("smali", "", "decoded tree")
	outDir := fs.String("out", "", "output directory")
	withNative := fs.Bool("native", false, "also write native.png from lib/arm64-v8a functions")

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
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	points := pixel.Points(features.Extract(g.Methods, cfg.FeatureOptions()).Streams)
	img, err := pixel.Rasterize(points)
	if err != nil {
		return err
	}
	if err := output.WritePNG(*outDir, img); err != nil {
		return err
	}

	if *withNative {
		paths, err := apk.DecodedLibs(*smaliDir, native.DefaultABI)
		if err != nil {
			return err
		}
		libs, err := native.NewAnalyzer(cfg.NativeOptions(), log).AnalyzeAll(paths)
		if err != nil {
			return err
		}
		if np := pixel.Points(native.Streams(libs)); len(np) > 0 {
			nimg, err := pixel.Rasterize(np)
			if err != nil {
				return err
			}
			if err := output.WritePNGAs(*outDir, output.NativeImage, nimg); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%d native points\n", len(np))
		}
	}
	fmt.Fprintf(os.Stderr, "%d points\n", len(points))
	return nil
}
