// Package features derives API-frequency, permission and instruction-stream
// features from a decompiled application.
package features

import (
	"strings"

	"smesys/internal/smali"
)

// DefaultAPIPackages are the smali type prefixes counted as platform APIs.
var DefaultAPIPackages = []string{
	"Landroid/", "Lcom/android/internal/util", "Ldalvik/", "Ljava/",
	"Ljavax/", "Lorg/apache/", "Lorg/json/", "Lorg/w3c/dom/",
	"Lorg/xml/sax", "Lorg/xmlpull/v1/", "Ljunit/",
}

// Options controls feature extraction.
type Options struct {
	APIPackages []string // nil = DefaultAPIPackages
	// Excluded lists dotted package names (third-party libraries) whose
	// methods are skipped entirely.
	Excluded []string
}

// Data is the raw feature data of one application.
type Data struct {
	Permissions []string       `json:"perms"`
	APIs        map[string]int `json:"apis"`
	Streams     []string       `json:"-"` // concatenated mnemonics, one per method with code
}

// Extract counts platform API invocations and builds one mnemonic stream per
// method that has executable instructions.
func Extract(methods []*smali.Method, opts Options) *Data {
	pkgs := opts.APIPackages
	if len(pkgs) == 0 {
		pkgs = DefaultAPIPackages
	}
	d := &Data{APIs: make(map[string]int)}
	for _, m := range methods {
		if excluded(m.Class, opts.Excluded) {
			continue
		}
		insts := smali.Instructions(m.Body)
		for _, in := range insts {
			if !strings.HasPrefix(in.Mnemonic, "invoke-") {
				continue
			}
			api, ok := InvokedAPI(in.Operands)
			if !ok || !hasAnyPrefix(api, pkgs) {
				continue
			}
			d.APIs[api]++
		}
		if s := smali.Mnemonics(insts); s != "" {
			d.Streams = append(d.Streams, s)
		}
	}
	return d
}

// InvokedAPI extracts "Lpkg/Class;->name" from invoke operands such as
// "{v0, v1}, Ljava/lang/Object;-><init>()V".
func InvokedAPI(operands string) (string, bool) {
	arrow := strings.Index(operands, "->")
	if arrow < 0 {
		return "", false
	}
	end := strings.IndexByte(operands[arrow:], '(')
	if end < 0 {
		return "", false
	}
	target := operands[:arrow+end]
	if i := strings.LastIndex(target[:arrow], ", "); i >= 0 {
		target = target[i+2:]
	}
	return strings.TrimSpace(target), true
}

func excluded(class string, pkgs []string) bool {
	for _, p := range pkgs {
		if class == p || strings.HasPrefix(class, p+".") {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
