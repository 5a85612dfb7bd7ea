package apk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrNoApktool = errors.New("apk: apktool jar not found")
	ErrDecode    = errors.New("apk: apktool failed")
)

// DecoderOptions configures apktool invocation.
type DecoderOptions struct {
	Java    string        // java binary; "" = "java"
	Jar     string        // path to apktool.jar
	MaxHeap string        // JVM -Xmx value; "" = "2G"
	Timeout time.Duration // 0 = no timeout beyond ctx
	OutRoot string        // decoded trees go to OutRoot/<sha256>
}

// Decoder runs apktool.
type Decoder struct {
	opts DecoderOptions
	log  logrus.FieldLogger
	run  func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewDecoder checks that the apktool jar exists.
func NewDecoder(opts DecoderOptions, log logrus.FieldLogger) (*Decoder, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	jar, err := filepath.Abs(opts.Jar)
	if err != nil {
		return nil, fmt.Errorf("apk: abs: %w", err)
	}
	if _, err := os.Stat(jar); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoApktool, jar)
	}
	opts.Jar = jar
	if opts.Java == "" {
		opts.Java = "java"
	}
	if opts.MaxHeap == "" {
		opts.MaxHeap = "2G"
	}
	return &Decoder{opts: opts, log: log, run: runCombined}, nil
}

// OutDir returns where app is decoded to.
func (d *Decoder) OutDir(app *App) string {
	return filepath.Join(d.opts.OutRoot, app.SHA256)
}

// Args returns the apktool command line for app.
func (d *Decoder) Args(app *App) []string {
	return []string{
		"-Xmx" + d.opts.MaxHeap,
		"-Dfile.encoding=utf-8",
		"-jar", d.opts.Jar,
		"-f", "d", app.Path,
		"-o", d.OutDir(app),
	}
}

// Decode decodes app unless its output directory already exists.
// reused reports whether an existing tree was returned.
func (d *Decoder) Decode(ctx context.Context, app *App) (dir string, reused bool, err error) {
	dir = d.OutDir(app)
	if _, err := os.Stat(dir); err == nil {
		return dir, true, nil
	}
	if err := os.MkdirAll(d.opts.OutRoot, 0o755); err != nil {
		return "", false, fmt.Errorf("apk: mkdir: %w", err)
	}

	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	log := d.log.WithFields(logrus.Fields{"app": app.Path, "out": dir})
	log.Debug("apktool decode")
	start := time.Now()
	out, err := d.run(ctx, d.opts.Java, d.Args(app)...)
	if err != nil {
		// A partial tree would be reused on the next run.
		os.RemoveAll(dir)
		return "", false, fmt.Errorf("%w: %s: %v: %s", ErrDecode, app.Name, err, tail(out, 512))
	}
	log.WithField("elapsed", time.Since(start).String()).Debug("apktool done")
	return dir, false, nil
}

func runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}
