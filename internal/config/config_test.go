package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smesys/internal/smali"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaultValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadYAML(t *testing.T) {
	p := write(t, "smesys.yaml", `
apktool:
  jar: /opt/apktool.jar
  timeout: 90s
analysis:
  mode: strict
  key_func_lower_bound: 3
  excluded_packages: [com.google, com.facebook]
store:
  backend: leveldb
  path: /tmp/db
batch:
  workers: 8
log:
  level: debug
  format: json
`)
	cfg, err := Load(p, nil)
	require.NoError(t, err)
	assert.Equal(t, "/opt/apktool.jar", cfg.Apktool.Jar)
	assert.Equal(t, 90*time.Second, cfg.Apktool.Timeout)
	assert.Equal(t, "2G", cfg.Apktool.MaxHeap, "unset keys keep defaults")
	assert.Equal(t, 3, cfg.Analysis.KeyFuncLowerBound)
	assert.Equal(t, 1, cfg.Analysis.FuncLowerBound)
	assert.Equal(t, []string{"com.google", "com.facebook"}, cfg.Analysis.Excluded)
	assert.Equal(t, "leveldb", cfg.Store.Backend)
	assert.Equal(t, 8, cfg.Batch.Workers)
	assert.Equal(t, "json", cfg.Log.Format)

	opts := cfg.SmaliOptions()
	assert.Equal(t, smali.ModeStrict, opts.Mode)
	assert.Equal(t, 3, opts.KeyFuncLowerBound)
	assert.Equal(t, []string{"com.google", "com.facebook"}, cfg.FeatureOptions().Excluded)
}

func TestLoadTOML(t *testing.T) {
	p := write(t, "smesys.toml", `
[apktool]
jar = "apktool_2.9.jar"
timeout = "5m"

[analysis]
native = false
system_packages = ["android", "java"]

[metrics]
listen = ":9100"
`)
	cfg, err := Load(p, nil)
	require.NoError(t, err)
	assert.Equal(t, "apktool_2.9.jar", cfg.Apktool.Jar)
	assert.Equal(t, 5*time.Minute, cfg.Apktool.Timeout)
	assert.False(t, cfg.Analysis.Native)
	assert.Equal(t, []string{"android", "java"}, cfg.KFCMOptions().SystemPackages)
	assert.Equal(t, ":9100", cfg.Metrics.Listen)
	assert.Equal(t, smali.ModeBestEffort, cfg.SmaliOptions().Mode)
	assert.Equal(t, []string{"android", "java", "javax", "dalvik"}, smali.DefaultSystemPackages)
}

func TestLoadMissingUsesDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadUnknownExtension(t *testing.T) {
	p := write(t, "smesys.ini", "x=1")
	_, err := Load(p, nil)
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestLoadInvalid(t *testing.T) {
	p := write(t, "smesys.yaml", `
analysis:
  func_lower_bound: 0
  mode: sloppy
store:
  backend: bolt
batch:
  workers: 0
log:
  level: loud
`)
	_, err := Load(p, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	for _, want := range []string{"func_lower_bound", "sloppy", "bolt", "workers", "log.level"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateBoundOrder(t *testing.T) {
	cfg := Default()
	cfg.Analysis.KeyFuncLowerBound = 2
	cfg.Analysis.FuncLowerBound = 3
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "must not exceed analysis.key_func_lower_bound")

	cfg.Analysis.FuncLowerBound = 2
	assert.NoError(t, cfg.Validate())
}

func TestDecoderOptions(t *testing.T) {
	cfg := Default()
	opts := cfg.DecoderOptions("/out")
	assert.Equal(t, "/out", opts.OutRoot)
	assert.Equal(t, "2G", opts.MaxHeap)
	assert.Equal(t, 10*time.Minute, opts.Timeout)
}
