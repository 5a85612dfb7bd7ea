// Package output writes per-application analysis results to files.
package output

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"smesys/internal/apk"
	"smesys/internal/disasm"
	"smesys/internal/features"
	"smesys/internal/kfcm"
	"smesys/internal/native"
)

// File names inside an application's output directory.
const (
	KFCMFile     = "kfcm.json"
	FeaturesFile = "features.json"
	ImageFile    = "image.png"
	NativeImage  = "native.png"
	CallGraphDOT = "callgraph.dot"
	KFCMDOT      = "kfcm.dot"
	NativeFuncs  = "native_functions.jsonl"
	NativeEdges  = "native_call_edges.jsonl"
)

// Report is the features.json document of one application.
type Report struct {
	App         *apk.App          `json:"app"`
	Package     string            `json:"package,omitempty"`
	VersionName string            `json:"version_name,omitempty"`
	Features    *features.Data    `json:"features"`
	Vector      features.Vector   `json:"vector"`
	NativeLibs  []string          `json:"native_libs,omitempty"`
	Native      []*native.Library `json:"native,omitempty"`
	Points      int               `json:"points"`
	Image       bool              `json:"image"`
	ImageError  string            `json:"image_error,omitempty"`

	NativePoints     int    `json:"native_points,omitempty"`
	NativeImage      bool   `json:"native_image,omitempty"`
	NativeImageError string `json:"native_image_error,omitempty"`
}

// Failure records one application the batch could not process.
type Failure struct {
	Path  string `json:"path"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// WriteKFCM writes the KFCM result to kfcm.json.
func WriteKFCM(dir string, res *kfcm.Result) error {
	return writeJSON(filepath.Join(dir, KFCMFile), res)
}

// ReadKFCM loads a kfcm.json written by WriteKFCM.
func ReadKFCM(path string) (*kfcm.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("output: read %s: %w", path, err)
	}
	var res kfcm.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("output: decode %s: %w", path, err)
	}
	return &res, nil
}

// WriteFeatures writes the report to features.json.
func WriteFeatures(dir string, r *Report) error {
	return writeJSON(filepath.Join(dir, FeaturesFile), r)
}

// WritePNG encodes img to image.png.
func WritePNG(dir string, img image.Image) error {
	return WritePNGAs(dir, ImageFile, img)
}

// WritePNGAs encodes img to dir/name.
func WritePNGAs(dir, name string, img image.Image) error {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return f.Close()
}

// WriteDOT writes a rendered DOT graph to dir/name.
func WriteDOT(dir, name, dot string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(dot), 0644)
}

// WriteNative writes the function and call edge records of libs as JSONL.
func WriteNative(dir string, libs []*native.Library) error {
	var funcs []disasm.FuncRecord
	var edges []disasm.CallEdgeRecord
	for _, l := range libs {
		funcs = append(funcs, l.Funcs...)
		edges = append(edges, l.Edges...)
	}
	if err := writeJSONL(filepath.Join(dir, NativeFuncs), funcs); err != nil {
		return err
	}
	return writeJSONL(filepath.Join(dir, NativeEdges), edges)
}

// WriteASM writes disassembled instructions to asm/<name>.txt.
func WriteASM(dir, name string, insts []disasm.Inst, lookup disasm.SymbolLookup) error {
	path := filepath.Join(dir, "asm", name+".txt")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir asm: %w", err)
	}
	return os.WriteFile(path, []byte(disasm.Format(insts, lookup)), 0644)
}

// WriteFailures writes failures-<timestamp>.json into dir and returns its path.
// Nothing is written when failures is empty.
func WriteFailures(dir string, failures []Failure, now time.Time) (string, error) {
	if len(failures) == 0 {
		return "", nil
	}
	path := filepath.Join(dir, fmt.Sprintf("failures-%s.json", now.Format("20060102-150405")))
	return path, writeJSON(path, failures)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}

func writeJSONL[T any](path string, recs []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := range recs {
		if err := enc.Encode(&recs[i]); err != nil {
			return fmt.Errorf("output: encode %s: %w", path, err)
		}
	}
	return nil
}
