// Package config loads smesys settings from YAML or TOML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"smesys/internal/apk"
	"smesys/internal/features"
	"smesys/internal/kfcm"
	"smesys/internal/native"
	"smesys/internal/smali"
	"smesys/internal/store"
)

var (
	ErrFormat  = errors.New("config: unsupported file extension")
	ErrInvalid = errors.New("config: invalid")
)

// Config is the full configuration.
type Config struct {
	Apktool  Apktool  `yaml:"apktool" toml:"apktool"`
	Analysis Analysis `yaml:"analysis" toml:"analysis"`
	Features Features `yaml:"features" toml:"features"`
	Store    Store    `yaml:"store" toml:"store"`
	Batch    Batch    `yaml:"batch" toml:"batch"`
	Log      Log      `yaml:"log" toml:"log"`
	Metrics  Metrics  `yaml:"metrics" toml:"metrics"`
}

// Apktool locates the decoder.
type Apktool struct {
	Jar     string        `yaml:"jar" toml:"jar"`
	Java    string        `yaml:"java" toml:"java"`
	MaxHeap string        `yaml:"max_heap" toml:"max_heap"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

// Analysis tunes smali collection and native disassembly.
type Analysis struct {
	Mode              string   `yaml:"mode" toml:"mode"` // strict | best_effort
	MaxMethods        int      `yaml:"max_methods" toml:"max_methods"`
	KeyFuncLowerBound int      `yaml:"key_func_lower_bound" toml:"key_func_lower_bound"`
	FuncLowerBound    int      `yaml:"func_lower_bound" toml:"func_lower_bound"`
	SystemPackages    []string `yaml:"system_packages" toml:"system_packages"`
	Excluded          []string `yaml:"excluded_packages" toml:"excluded_packages"`
	Native            bool     `yaml:"native" toml:"native"`
	MaxNativeFuncs    int      `yaml:"max_native_funcs" toml:"max_native_funcs"`
}

// Features lists the vector vocabularies.
type Features struct {
	Permissions []string `yaml:"permissions" toml:"permissions"`
	APIs        []string `yaml:"apis" toml:"apis"`
	APIPackages []string `yaml:"api_packages" toml:"api_packages"`
}

// Store selects the report database.
type Store struct {
	Backend string `yaml:"backend" toml:"backend"` // pebble | leveldb
	Path    string `yaml:"path" toml:"path"`
}

// Batch controls the concurrent pipeline.
type Batch struct {
	Workers     int    `yaml:"workers" toml:"workers"`
	WorkDir     string `yaml:"work_dir" toml:"work_dir"`
	OutDir      string `yaml:"out_dir" toml:"out_dir"`
	KeepDecoded bool   `yaml:"keep_decoded" toml:"keep_decoded"`
	Graphs      bool   `yaml:"graphs" toml:"graphs"`
}

// Log configures logrus.
type Log struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // text | json
}

// Metrics configures the prometheus endpoint. Empty Listen disables it.
type Metrics struct {
	Listen string `yaml:"listen" toml:"listen"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Apktool: Apktool{
			Jar:     "apktool.jar",
			Java:    "java",
			MaxHeap: "2G",
			Timeout: 10 * time.Minute,
		},
		Analysis: Analysis{
			Mode:              "best_effort",
			KeyFuncLowerBound: smali.DefaultKeyFuncLowerBound,
			FuncLowerBound:    smali.DefaultFuncLowerBound,
			SystemPackages:    append([]string(nil), smali.DefaultSystemPackages...),
			Native:            true,
		},
		Features: Features{
			Permissions: append([]string(nil), features.DefaultPermissions...),
			APIPackages: append([]string(nil), features.DefaultAPIPackages...),
		},
		Store: Store{Backend: store.Pebble, Path: "smesys.db"},
		Batch: Batch{
			Workers: 4,
			WorkDir: "work",
			OutDir:  "out",
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads path, choosing the decoder by extension. A missing file yields
// Default() with a warning on log.
func Load(path string, log logrus.FieldLogger) (*Config, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.WithField("path", path).Warn("config not found, using defaults")
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks bounds and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Analysis.KeyFuncLowerBound < 1 {
		errs = append(errs, fmt.Errorf("analysis.key_func_lower_bound must be >= 1, got %d", c.Analysis.KeyFuncLowerBound))
	}
	if c.Analysis.FuncLowerBound < 1 {
		errs = append(errs, fmt.Errorf("analysis.func_lower_bound must be >= 1, got %d", c.Analysis.FuncLowerBound))
	}
	if c.Analysis.FuncLowerBound > c.Analysis.KeyFuncLowerBound {
		errs = append(errs, fmt.Errorf("analysis.func_lower_bound (%d) must not exceed analysis.key_func_lower_bound (%d)",
			c.Analysis.FuncLowerBound, c.Analysis.KeyFuncLowerBound))
	}
	if c.Analysis.MaxMethods < 0 || c.Analysis.MaxNativeFuncs < 0 {
		errs = append(errs, errors.New("analysis limits must be >= 0"))
	}
	if _, err := parseMode(c.Analysis.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.Store.Backend != store.Pebble && c.Store.Backend != store.LevelDB {
		errs = append(errs, fmt.Errorf("store.backend %q is not pebble or leveldb", c.Store.Backend))
	}
	if c.Batch.Workers < 1 {
		errs = append(errs, fmt.Errorf("batch.workers must be >= 1, got %d", c.Batch.Workers))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %v", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	if c.Apktool.Timeout < 0 {
		errs = append(errs, errors.New("apktool.timeout must be >= 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func parseMode(s string) (smali.Mode, error) {
	switch s {
	case "strict":
		return smali.ModeStrict, nil
	case "best_effort", "":
		return smali.ModeBestEffort, nil
	}
	return 0, fmt.Errorf("analysis.mode %q is not strict or best_effort", s)
}

// SmaliOptions maps the analysis section onto the collector.
func (c *Config) SmaliOptions() smali.Options {
	mode, _ := parseMode(c.Analysis.Mode)
	return smali.Options{
		Mode:              mode,
		MaxMethods:        c.Analysis.MaxMethods,
		KeyFuncLowerBound: c.Analysis.KeyFuncLowerBound,
		FuncLowerBound:    c.Analysis.FuncLowerBound,
		SystemPackages:    c.Analysis.SystemPackages,
	}
}

// KFCMOptions maps the analysis section onto the reducer.
func (c *Config) KFCMOptions() kfcm.Options {
	return kfcm.Options{SystemPackages: c.Analysis.SystemPackages}
}

// FeatureOptions maps the analysis and features sections onto extraction.
func (c *Config) FeatureOptions() features.Options {
	return features.Options{APIPackages: c.Features.APIPackages, Excluded: c.Analysis.Excluded}
}

// NativeOptions maps the analysis section onto the native analyzer.
func (c *Config) NativeOptions() native.Options {
	return native.Options{MaxFuncs: c.Analysis.MaxNativeFuncs}
}

// DecoderOptions maps the apktool section; decoded trees go under outRoot.
func (c *Config) DecoderOptions(outRoot string) apk.DecoderOptions {
	return apk.DecoderOptions{
		Java:    c.Apktool.Java,
		Jar:     c.Apktool.Jar,
		MaxHeap: c.Apktool.MaxHeap,
		Timeout: c.Apktool.Timeout,
		OutRoot: outRoot,
	}
}
