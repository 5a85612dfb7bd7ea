package batch

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/zboralski/lattice/render"

	"smesys/internal/apk"
	"smesys/internal/callgraph"
	"smesys/internal/features"
	"smesys/internal/kfcm"
	"smesys/internal/native"
	"smesys/internal/output"
	"smesys/internal/pixel"
	"smesys/internal/smali"
)

// Options configures the pipeline.
type Options struct {
	Workers     int
	OutDir      string // per-application results go to OutDir/<sha256>
	KeepDecoded bool
	Graphs      bool // also write callgraph.dot and kfcm.dot
	Native      bool // disassemble lib/arm64-v8a/*.so into extra color points

	Smali       smali.Options
	KFCM        kfcm.Options
	Features    features.Options
	NativeOpts  native.Options
	Permissions []string // permission vocabulary; nil = features.DefaultPermissions
	APIs        []string // API vocabulary for the frequency vector
}

// extraction holds everything derived from one decoded tree.
type extraction struct {
	stage    string // stage that failed, for error reporting
	graph    *smali.Graph
	kfcm     *kfcm.Result
	report   *output.Report
	libs     []*native.Library
	img      image.Image
	imageErr error
	native   image.Image // native.png; nil without native points
}

func (r *Runner) extract(app *apk.App, dir string) (*extraction, error) {
	ext := &extraction{}
	log := r.log.WithField("app", app.Name)

	start := time.Now()
	ext.stage = "collect"
	g, err := smali.NewCollector(r.opts.Smali, log).Collect(dir)
	if err != nil {
		return ext, err
	}
	ext.graph = g
	r.observe("collect", start)
	if r.metrics != nil {
		r.metrics.Methods.WithLabelValues("key").Add(float64(g.Stat.Key))
		r.metrics.Methods.WithLabelValues("norm").Add(float64(g.Stat.Norm))
		r.metrics.Methods.WithLabelValues("exile").Add(float64(g.Stat.Exile))
	}

	start = time.Now()
	ext.stage = "kfcm"
	if ext.kfcm, err = kfcm.NewBuilder(r.opts.KFCM, log).Build(g); err != nil {
		return ext, err
	}
	r.observe("kfcm", start)

	start = time.Now()
	ext.stage = "features"
	data := features.Extract(g.Methods, r.opts.Features)
	report := &output.Report{App: app, Features: data}
	man, err := features.ParseManifest(filepath.Join(dir, "AndroidManifest.xml"))
	switch {
	case err == nil:
		data.Permissions = man.Permissions
		report.Package, report.VersionName = man.Package, man.VersionName
	case errors.Is(err, os.ErrNotExist):
		log.Warn("no AndroidManifest.xml")
	default:
		return ext, err
	}
	report.Vector = features.Assemble(data, r.opts.Permissions, r.opts.APIs)
	if report.NativeLibs, err = apk.NativeLibs(app.Path); err != nil {
		log.WithError(err).Debug("native library listing failed")
	}

	if r.opts.Native {
		ext.stage = "native"
		paths, err := apk.DecodedLibs(dir, native.DefaultABI)
		if err != nil {
			return ext, err
		}
		ext.libs, err = native.NewAnalyzer(r.opts.NativeOpts, log).AnalyzeAll(paths)
		if err != nil {
			return ext, err
		}
		report.Native = ext.libs
	}
	points := pixel.Points(data.Streams)
	report.Points = len(points)
	r.observe("features", start)

	start = time.Now()
	img, err := pixel.Rasterize(points)
	if err != nil {
		log.WithError(err).Warn("image skipped")
		ext.imageErr = err
		report.ImageError = err.Error()
	} else {
		ext.img = img
		report.Image = true
	}

	// Native points go to their own canvas so image.png depends on the
	// Dalvik code alone.
	if np := pixel.Points(native.Streams(ext.libs)); len(np) > 0 {
		report.NativePoints = len(np)
		if nimg, err := pixel.Rasterize(np); err != nil {
			log.WithError(err).Warn("native image skipped")
			report.NativeImageError = err.Error()
		} else {
			ext.native = nimg
			report.NativeImage = true
		}
	}
	r.observe("image", start)

	ext.stage = ""
	ext.report = report
	return ext, nil
}

func (r *Runner) write(dir string, ext *extraction) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := output.WriteKFCM(dir, ext.kfcm); err != nil {
		return err
	}
	if err := output.WriteFeatures(dir, ext.report); err != nil {
		return err
	}
	if ext.img != nil {
		if err := output.WritePNG(dir, ext.img); err != nil {
			return err
		}
	}
	if ext.native != nil {
		if err := output.WritePNGAs(dir, output.NativeImage, ext.native); err != nil {
			return err
		}
	}
	if len(ext.libs) > 0 {
		if err := output.WriteNative(dir, ext.libs); err != nil {
			return err
		}
	}
	if !r.opts.Graphs {
		return nil
	}
	if err := output.WriteDOT(dir, output.CallGraphDOT, render.DOT(callgraph.FromGraph(ext.graph), "call graph")); err != nil {
		return err
	}
	return output.WriteDOT(dir, output.KFCMDOT, render.DOT(callgraph.FromMatrix(ext.kfcm.Plain), "kfcm"))
}
