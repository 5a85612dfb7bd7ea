// Package kfcm reduces a smali call graph to its key-function call matrix
// and hashes it for cross-application comparison.
package kfcm

import (
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"smesys/internal/smali"
)

var (
	ErrEmptyGraph      = errors.New("kfcm: empty call graph")
	ErrUnknownFunction = errors.New("kfcm: function has no call list")
)

// Options controls matrix construction.
type Options struct {
	// FoldOrder names normal functions to fold first. Unlisted normal
	// functions follow in discovery order.
	FoldOrder      []string
	SystemPackages []string // nil = smali.DefaultSystemPackages
}

// Result is the reduced and hashed matrix of one application.
type Result struct {
	Hashed    Matrix            `json:"hashed"`
	Plain     Matrix            `json:"plain"`
	Fields    []string          `json:"fields"`
	HashTable map[string]string `json:"hashtbl"`
	Keys      []string          `json:"keys"`
	Removed   []string          `json:"removed,omitempty"`
	Stat      smali.MtdCounter  `json:"stat"`
}

// Builder builds KFCM results.
type Builder struct {
	opts Options
	log  logrus.FieldLogger
}

// NewBuilder returns a builder. A nil logger discards output.
func NewBuilder(opts Options, log logrus.FieldLogger) *Builder {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Builder{opts: opts, log: log}
}

// Build reduces g and hashes the result.
func (b *Builder) Build(g *smali.Graph) (*Result, error) {
	start := time.Now()
	red, err := Reduce(g, b.opts.FoldOrder)
	if err != nil {
		return nil, err
	}

	pkgs := b.opts.SystemPackages
	if len(pkgs) == 0 {
		pkgs = smali.DefaultSystemPackages
	}
	hashed, table, err := HashMatrix(red.Plain, g, pkgs)
	if err != nil {
		return nil, err
	}

	b.log.WithFields(logrus.Fields{
		"retained": g.Len(),
		"keys":     len(red.Keys),
		"folded":   len(red.Removed),
		"edges":    red.Plain.Edges(),
		"elapsed":  time.Since(start).String(),
	}).Debug("kfcm built")

	return &Result{
		Hashed:    hashed,
		Plain:     red.Plain,
		Fields:    hashed.Fields(),
		HashTable: table,
		Keys:      red.Keys,
		Removed:   red.Removed,
		Stat:      g.Stat,
	}, nil
}
