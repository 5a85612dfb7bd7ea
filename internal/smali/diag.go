package smali

import "fmt"

// DiagKind classifies a diagnostic message.
type DiagKind string

const (
	DiagNoClass    DiagKind = "no_class"
	DiagBadMethod  DiagKind = "bad_method"
	DiagUnclosed   DiagKind = "unclosed_method"
	DiagBadInvoke  DiagKind = "bad_invoke"
	DiagRead       DiagKind = "read"
	DiagMethodCap  DiagKind = "method_cap"
	DiagDuplicated DiagKind = "duplicated"
)

// Diag records a non-fatal issue encountered while collecting a smali tree.
type Diag struct {
	File string   `json:"file"`
	Line int      `json:"line"`
	Kind DiagKind `json:"kind"`
	Msg  string   `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] %s:%d: %s", d.Kind, d.File, d.Line, d.Msg)
}

// Diags accumulates diagnostics.
type Diags struct {
	items []Diag
}

func (d *Diags) Add(file string, line int, kind DiagKind, msg string) {
	d.items = append(d.items, Diag{File: file, Line: line, Kind: kind, Msg: msg})
}

func (d *Diags) Addf(file string, line int, kind DiagKind, format string, args ...any) {
	d.items = append(d.items, Diag{File: file, Line: line, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diags) Items() []Diag { return d.items }
func (d *Diags) Len() int      { return len(d.items) }

// Mode controls error handling behavior.
type Mode int

const (
	ModeStrict     Mode = iota // first parse failure returns error
	ModeBestEffort             // skip the offending method or file, accumulate diags
)
