// Package batch runs the per-application extraction pipeline over many
// applications concurrently.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"smesys/internal/apk"
	"smesys/internal/metrics"
	"smesys/internal/output"
	"smesys/internal/store"
)

// Status is the outcome of one application.
type Status int

const (
	AlreadyExists Status = iota
	Extracted
	Failed
)

func (s Status) String() string {
	switch s {
	case AlreadyExists:
		return "already_exists"
	case Extracted:
		return "extracted"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Decoder turns an application into a directory of smali sources.
type Decoder interface {
	Decode(ctx context.Context, app *apk.App) (dir string, reused bool, err error)
}

// Result is the outcome of one application. Err may be set with Status
// Extracted when a non-fatal stage (the image) failed.
type Result struct {
	Path   string
	App    *apk.App
	Status Status
	Stage  string
	Err    error
	OutDir string
}

// Runner processes applications with a bounded worker pool.
type Runner struct {
	opts    Options
	dec     Decoder
	store   *store.Store
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	now     func() time.Time

	locks sync.Map // sha256 -> *sync.Mutex; copies of one app share outputs
}

// NewRunner returns a Runner. st, m and log may be nil.
func NewRunner(opts Options, dec Decoder, st *store.Store, m *metrics.Metrics, log logrus.FieldLogger) *Runner {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{opts: opts, dec: dec, store: st, metrics: m, log: log, now: time.Now}
}

// Run processes paths and writes failures-<timestamp>.json to the output
// directory when any application failed. Results follow the order of paths.
// Only context cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, paths []string) ([]Result, error) {
	if err := os.MkdirAll(r.opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("batch: mkdir: %w", err)
	}

	results := make([]Result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.Process(ctx, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	var failures []output.Failure
	counts := make(map[Status]int)
	for _, res := range results {
		counts[res.Status]++
		if res.Err != nil {
			failures = append(failures, output.Failure{Path: res.Path, Stage: res.Stage, Error: res.Err.Error()})
		}
	}
	failPath, err := output.WriteFailures(r.opts.OutDir, failures, r.now())
	if err != nil {
		return results, err
	}
	r.log.WithFields(logrus.Fields{
		"apps":      len(paths),
		"extracted": counts[Extracted],
		"exists":    counts[AlreadyExists],
		"failed":    counts[Failed],
		"failures":  failPath,
	}).Info("batch done")
	return results, nil
}

// Discover returns the *.apk files directly under dir, sorted.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".apk") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Process runs the pipeline for one application.
func (r *Runner) Process(ctx context.Context, path string) Result {
	if r.metrics != nil {
		r.metrics.InFlight.Inc()
		defer r.metrics.InFlight.Dec()
	}
	res := r.process(ctx, path)
	if r.metrics != nil {
		r.metrics.Apps.WithLabelValues(res.Status.String()).Inc()
	}
	log := r.log.WithFields(logrus.Fields{"app": filepath.Base(path), "status": res.Status.String()})
	if res.Err != nil {
		log = log.WithFields(logrus.Fields{"stage": res.Stage, "error": res.Err.Error()})
	}
	log.Info("processed")
	return res
}

func (r *Runner) process(ctx context.Context, path string) Result {
	res := Result{Path: path}
	fail := func(stage string, err error) Result {
		res.Status, res.Stage, res.Err = Failed, stage, err
		return res
	}

	app, err := apk.Open(path)
	if err != nil {
		return fail("open", err)
	}
	res.App = app
	res.OutDir = filepath.Join(r.opts.OutDir, app.SHA256)

	mu, _ := r.locks.LoadOrStore(app.SHA256, new(sync.Mutex))
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	exists, err := r.exists(app, res.OutDir)
	if err != nil {
		return fail("store", err)
	}
	if exists {
		res.Status = AlreadyExists
		return res
	}

	start := time.Now()
	dir, reused, err := r.dec.Decode(ctx, app)
	if err != nil {
		return fail("decode", err)
	}
	r.observe("decode", start)
	if !r.opts.KeepDecoded {
		defer os.RemoveAll(dir)
	}
	r.log.WithFields(logrus.Fields{"app": app.Name, "dir": dir, "reused": reused}).Debug("decoded")

	ext, err := r.extract(app, dir)
	if err != nil {
		return fail(ext.stage, err)
	}

	if err := r.write(res.OutDir, ext); err != nil {
		return fail("write", err)
	}
	if r.store != nil {
		if err := r.store.Put(app.SHA256, ext.report); err != nil {
			return fail("store", err)
		}
	}

	res.Status = Extracted
	if ext.imageErr != nil {
		res.Stage, res.Err = "image", ext.imageErr
	}
	return res
}

func (r *Runner) exists(app *apk.App, outDir string) (bool, error) {
	if r.store != nil {
		return r.store.Has(app.SHA256)
	}
	_, err := os.Stat(filepath.Join(outDir, output.KFCMFile))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (r *Runner) observe(stage string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveStage(stage, start)
	}
}
