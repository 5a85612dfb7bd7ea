package smali

import "strings"

// Inst is one executable smali instruction.
type Inst struct {
	Mnemonic string `json:"m"`
	Operands string `json:"o,omitempty"`
}

// payloads maps a data block directive to the pseudo-instruction that
// stands for the whole block.
var payloads = map[string]string{
	".packed-switch": "packed-switch-payload",
	".sparse-switch": "sparse-switch-payload",
	".array-data":    "fill-array-data-payload",
}

// Instructions returns the executable instructions of a method body.
// Directives, labels and comments are dropped. A switch or array data block
// becomes a single payload pseudo-instruction; its entries are not emitted.
func Instructions(body []string) []Inst {
	var out []Inst
	end := "" // closing directive of the open payload block
	for _, line := range body {
		if line == "" {
			continue
		}
		if end != "" {
			if line == end {
				end = ""
			}
			continue
		}
		switch line[0] {
		case '.':
			dir, _, _ := strings.Cut(line, " ")
			if mn, ok := payloads[dir]; ok {
				out = append(out, Inst{Mnemonic: mn})
				end = ".end " + dir[1:]
			}
			continue
		case ':', '#':
			continue
		}
		mn, ops, _ := strings.Cut(line, " ")
		out = append(out, Inst{Mnemonic: mn, Operands: strings.TrimSpace(ops)})
	}
	return out
}

// Mnemonics concatenates the mnemonics of insts without separators.
func Mnemonics(insts []Inst) string {
	var b strings.Builder
	for _, in := range insts {
		b.WriteString(in.Mnemonic)
	}
	return b.String()
}
