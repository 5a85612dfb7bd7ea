// Package smali extracts method call graphs from apktool smali output.
package smali

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrParse   = errors.New("smali: parse failure")
	ErrNoClass = errors.New("smali: missing .class directive")
	ErrNoInput = errors.New("smali: no smali files found")
)

// DefaultSystemPackages are the leading package segments that mark a call
// as a platform call.
var DefaultSystemPackages = []string{"android", "java", "javax", "dalvik"}

const (
	// DefaultKeyFuncLowerBound is the minimum number of system calls for a key function.
	DefaultKeyFuncLowerBound = 2
	// DefaultFuncLowerBound is the minimum number of calls for a retained function.
	DefaultFuncLowerBound = 1
)

// Method is one parsed .method block.
type Method struct {
	FullName string   `json:"fullname"` // <class>.<name>(<args>)
	Name     string   `json:"name"`     // <name>(<args>)
	Class    string   `json:"class"`
	Body     []string `json:"body"` // stripped, non-blank lines including .method/.end method
}

// Entry is a retained function: its ordered call list and classification.
type Entry struct {
	Calls []string `json:"calls"`
	Key   bool     `json:"key"`
}

// MtdCounter counts methods by classification. Every parsed method is
// counted exactly once in Key, Norm or Exile.
type MtdCounter struct {
	Whole int `json:"whole"`
	Key   int `json:"key"`
	Norm  int `json:"norm"`
	Exile int `json:"exile"`
}

// Graph is the raw call graph of an application.
type Graph struct {
	Entries map[string]*Entry `json:"entries"`
	Order   []string          `json:"order"` // retained functions in discovery order
	Methods []*Method         `json:"-"`     // every parsed method in discovery order
	Stat    MtdCounter        `json:"stat"`
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{Entries: make(map[string]*Entry)}
}

// Len returns the number of retained functions.
func (g *Graph) Len() int { return len(g.Order) }

// Add records a retained function. A later definition with the same name
// replaces the entry but keeps the original discovery position.
func (g *Graph) Add(name string, e *Entry) {
	if _, ok := g.Entries[name]; !ok {
		g.Order = append(g.Order, name)
	}
	g.Entries[name] = e
}

// Keys returns the key functions in discovery order.
func (g *Graph) Keys() []string {
	var out []string
	for _, name := range g.Order {
		if g.Entries[name].Key {
			out = append(out, name)
		}
	}
	return out
}

// SystemCalls filters calls to those whose leading package segment is in pkgs.
// Order and duplicates are preserved.
func SystemCalls(calls []string, pkgs []string) []string {
	var out []string
	for _, c := range calls {
		if IsSystemCall(c, pkgs) {
			out = append(out, c)
		}
	}
	return out
}

// IsSystemCall reports whether the first dotted segment of call is in pkgs.
func IsSystemCall(call string, pkgs []string) bool {
	head, _, _ := strings.Cut(call, ".")
	for _, p := range pkgs {
		if head == p {
			return true
		}
	}
	return false
}

var (
	classRe  = regexp.MustCompile(`L((?:\w+/)*(?:\w+)?.*);`)
	methodRe = regexp.MustCompile(`\s((?:L\w+)?(?:/\w+)*<?\w*>?(?:\$\w+)*(?:\$)*\w*;?)\(`)
	invokeRe = regexp.MustCompile(`L((?:.*?/)*?(?:.*?));->(.*?)\(`)
	argsRe   = regexp.MustCompile(`\((.*?)\)`)
)

// ClassName extracts the dotted class name from a .class directive line.
func ClassName(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ".class") {
		return "", false
	}
	fields := strings.Fields(line)
	m := classRe.FindStringSubmatch(fields[len(fields)-1])
	if m == nil {
		return "", false
	}
	return strings.ReplaceAll(m[1], "/", "."), true
}

// MethodName extracts "<name>(<args>)" from a .method directive line.
func MethodName(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ".method") {
		return "", false
	}
	args, ok := argsOf(line)
	if !ok {
		return "", false
	}
	if m := methodRe.FindStringSubmatch(line); m != nil {
		name := strings.TrimSpace(m[1])
		if name != "" {
			return name + "(" + args + ")", true
		}
	}
	// Fallback: text between the last space before '(' and the '('.
	end := strings.IndexByte(line, '(')
	start := strings.LastIndexByte(line[:end], ' ')
	name := line[start+1 : end]
	if name == "" {
		return "", false
	}
	return name + "(" + args + ")", true
}

// InvokeTarget extracts "pkg.Class.method(<args>)" from an invoke-* line.
// Lines without a ";->" member reference are rejected.
func InvokeTarget(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "invoke-") || !strings.Contains(line, ";->") {
		return "", false
	}
	m := invokeRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	args, ok := argsOf(line)
	if !ok {
		return "", false
	}
	name := strings.ReplaceAll(m[1]+"."+m[2], "/", ".")
	return strings.TrimSpace(name) + "(" + args + ")", true
}

func argsOf(line string) (string, bool) {
	m := argsRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
