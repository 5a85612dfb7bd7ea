// Package apk handles Android application files: identity hashes, apktool
// decoding, native library discovery and scratch directories.
package apk

import (
	"archive/zip"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

var ErrNotAPK = errors.New("apk: not a zip archive")

// App identifies one application file.
type App struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	MD5    string `json:"md5"`
	SHA1   string `json:"sha1"`
	SHA256 string `json:"sha256"`
}

// Open hashes the file at p in a single pass.
func Open(p string) (*App, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, fmt.Errorf("apk: abs: %w", err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("apk: open: %w", err)
	}
	defer f.Close()

	hmd5, hsha1, hsha256 := md5.New(), sha1.New(), sha256.New()
	n, err := io.Copy(io.MultiWriter(hmd5, hsha1, hsha256), f)
	if err != nil {
		return nil, fmt.Errorf("apk: read %s: %w", abs, err)
	}
	return &App{
		Path:   abs,
		Name:   filepath.Base(abs),
		Size:   n,
		MD5:    hex.EncodeToString(hmd5.Sum(nil)),
		SHA1:   hex.EncodeToString(hsha1.Sum(nil)),
		SHA256: hex.EncodeToString(hsha256.Sum(nil)),
	}, nil
}

// NativeLibs returns the sorted, unique base names of the .so files packed in
// the application archive.
func NativeLibs(apkPath string) ([]string, error) {
	zr, err := zip.OpenReader(apkPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAPK, err)
	}
	defer zr.Close()

	seen := make(map[string]bool)
	var names []string
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".so") {
			continue
		}
		base := path.Base(f.Name)
		if seen[base] {
			continue
		}
		seen[base] = true
		names = append(names, base)
	}
	sort.Strings(names)
	return names, nil
}

// DecodedLibs returns the .so files for abi under an apktool output tree,
// sorted by path.
func DecodedLibs(decoded, abi string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(decoded, "lib", abi, "*.so"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
