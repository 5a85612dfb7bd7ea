package smali

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options controls collection behavior.
type Options struct {
	Mode              Mode
	MaxMethods        int      // stop after this many methods; 0 = unlimited
	KeyFuncLowerBound int      // 0 = DefaultKeyFuncLowerBound
	FuncLowerBound    int      // 0 = DefaultFuncLowerBound
	SystemPackages    []string // nil = DefaultSystemPackages
}

func (o Options) keyBound() int {
	if o.KeyFuncLowerBound > 0 {
		return o.KeyFuncLowerBound
	}
	return DefaultKeyFuncLowerBound
}

func (o Options) funcBound() int {
	if o.FuncLowerBound > 0 {
		return o.FuncLowerBound
	}
	return DefaultFuncLowerBound
}

func (o Options) sysPkgs() []string {
	if len(o.SystemPackages) > 0 {
		return o.SystemPackages
	}
	return DefaultSystemPackages
}

// maxLineSize bounds a single smali line (long const-string payloads).
const maxLineSize = 16 << 20

// Collector builds a Graph from one smali file or a directory tree of them.
// A Collector is not safe for concurrent use.
type Collector struct {
	opts   Options
	log    logrus.FieldLogger
	graph  *Graph
	diags  Diags
	capped bool
}

// NewCollector returns a collector. A nil logger discards output.
func NewCollector(opts Options, log logrus.FieldLogger) *Collector {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Collector{opts: opts, log: log}
}

// Diags returns the diagnostics of the last collection.
func (c *Collector) Diags() []Diag { return c.diags.Items() }

// Collect parses path, which may be a single smali file or a directory.
func (c *Collector) Collect(path string) (g *Graph, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("smali: stat: %w", err)
	}
	if info.IsDir() {
		return c.CollectDir(path)
	}
	return c.CollectFile(path)
}

// CollectFile parses a single smali file.
func (c *Collector) CollectFile(path string) (g *Graph, err error) {
	c.reset()
	defer c.recoverParse(&err)
	if err := c.addFile(path); err != nil {
		return nil, err
	}
	c.logSummary(path, 1)
	return c.graph, nil
}

// CollectDir walks root and parses every *.smali file in lexical order.
func (c *Collector) CollectDir(root string) (g *Graph, err error) {
	c.reset()
	defer c.recoverParse(&err)

	files := 0
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".smali" {
			return nil
		}
		if c.capped {
			return filepath.SkipAll
		}
		files++
		return c.addFile(p)
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if files == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoInput, root)
	}
	c.logSummary(root, files)
	return c.graph, nil
}

func (c *Collector) reset() {
	c.graph = NewGraph()
	c.diags = Diags{}
	c.capped = false
}

func (c *Collector) recoverParse(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: panic: %v", ErrParse, r)
	}
}

func (c *Collector) logSummary(path string, files int) {
	st := c.graph.Stat
	c.log.WithFields(logrus.Fields{
		"path":   path,
		"files":  files,
		"whole":  st.Whole,
		"key":    st.Key,
		"norm":   st.Norm,
		"exile":  st.Exile,
		"diags":  c.diags.Len(),
		"capped": c.capped,
	}).Debug("smali collected")
}

// fail records a diagnostic. In strict mode it also returns an error.
func (c *Collector) fail(file string, line int, kind DiagKind, format string, args ...any) error {
	c.diags.Addf(file, line, kind, format, args...)
	if c.opts.Mode == ModeStrict {
		return fmt.Errorf("%w: %s:%d: %s", ErrParse, file, line, fmt.Sprintf(format, args...))
	}
	c.log.WithFields(logrus.Fields{"file": file, "line": line, "kind": kind}).Debugf(format, args...)
	return nil
}

func (c *Collector) addFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if ferr := c.fail(path, 0, DiagRead, "open: %v", err); ferr != nil {
			return ferr
		}
		return nil
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	var (
		cls      string
		haveCls  bool
		cur      *Method
		skipping bool
		start    int
		lineNo   int
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if cur == nil && !skipping {
			if !haveCls && strings.HasPrefix(line, ".class") {
				name, ok := ClassName(line)
				if !ok {
					return c.fail(path, lineNo, DiagNoClass, "unparseable class directive %q", line)
				}
				cls, haveCls = name, true
				continue
			}
			if !strings.HasPrefix(line, ".method") {
				continue
			}
			if !haveCls {
				return c.fail(path, lineNo, DiagNoClass, "%v", ErrNoClass)
			}
			if c.capped {
				return nil
			}
			start = lineNo
			name, ok := MethodName(line)
			if !ok {
				if err := c.fail(path, lineNo, DiagBadMethod, "no method name in %q", line); err != nil {
					return err
				}
				skipping = true
				continue
			}
			cur = &Method{FullName: cls + "." + name, Name: name, Class: cls, Body: []string{line}}
			continue
		}

		if cur != nil {
			cur.Body = append(cur.Body, line)
		}
		if strings.HasPrefix(line, ".end method") {
			if cur != nil {
				c.addMethod(path, start, cur)
			}
			cur, skipping = nil, false
		}
	}
	if err := sc.Err(); err != nil {
		return c.fail(path, lineNo, DiagRead, "scan: %v", err)
	}
	if !haveCls {
		return c.fail(path, 0, DiagNoClass, "%v", ErrNoClass)
	}
	if cur != nil {
		return c.fail(path, start, DiagUnclosed, "method %s has no .end method", cur.FullName)
	}
	return nil
}

func (c *Collector) addMethod(file string, line int, m *Method) {
	g := c.graph
	g.Stat.Whole++
	g.Methods = append(g.Methods, m)

	pkgs := c.opts.sysPkgs()
	var calls []string
	sys := 0
	for _, l := range m.Body {
		if !strings.HasPrefix(l, "invoke-") || !strings.Contains(l, ";->") {
			continue
		}
		target, ok := InvokeTarget(l)
		if !ok {
			c.diags.Addf(file, line, DiagBadInvoke, "unparseable invoke %q", l)
			continue
		}
		calls = append(calls, target)
		if IsSystemCall(target, pkgs) {
			sys++
		}
	}

	switch {
	case len(calls) < c.opts.funcBound():
		g.Stat.Exile++
	case sys >= c.opts.keyBound():
		g.Stat.Key++
		c.retain(file, line, m.FullName, &Entry{Calls: calls, Key: true})
	default:
		g.Stat.Norm++
		c.retain(file, line, m.FullName, &Entry{Calls: calls})
	}

	if c.opts.MaxMethods > 0 && g.Stat.Whole >= c.opts.MaxMethods {
		c.capped = true
		c.diags.Addf(file, line, DiagMethodCap, "stopped after %d methods", g.Stat.Whole)
	}
}

func (c *Collector) retain(file string, line int, name string, e *Entry) {
	if _, dup := c.graph.Entries[name]; dup {
		c.diags.Addf(file, line, DiagDuplicated, "%s redefined", name)
	}
	c.graph.Add(name, e)
}
