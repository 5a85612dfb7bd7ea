package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smesys/internal/config"
	"smesys/internal/elfx/elfxtest"
	"smesys/internal/kfcm"
	"smesys/internal/output"
	"smesys/internal/sim"
)

const sampleSmali = `.class public Lcom/x/Main;
.super Ljava/lang/Object;

.method public run()V
    invoke-static {}, Landroid/util/Log;->d()I
    invoke-virtual {p0}, Ljava/lang/Object;->toString()Ljava/lang/String;
    invoke-virtual {p0}, Lcom/x/Main;->helper()V
    return-void
.end method

.method public helper()V
    invoke-static {}, Ljava/lang/System;->gc()V
    invoke-static {}, Ljava/lang/System;->exit()V
    return-void
.end method
`

// noConfig points --config at a file that does not exist so defaults apply.
func noConfig(t *testing.T) []string {
	return []string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}
}

func TestRunnerOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Batch.Workers = 7
	cfg.Batch.Graphs = true
	opts := runnerOptions(cfg)
	assert.Equal(t, 7, opts.Workers)
	assert.True(t, opts.Graphs)
	assert.True(t, opts.Native)
	assert.Equal(t, cfg.Features.Permissions, opts.Permissions)
}

func TestCmdGraph(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "Main.smali"), []byte(sampleSmali), 0o644))
	out := filepath.Join(t.TempDir(), "g")

	require.NoError(t, cmdGraph(append(noConfig(t), "--smali", src, "--out", out)))
	for _, f := range []string{output.CallGraphDOT, output.KFCMDOT, output.KFCMFile} {
		assert.FileExists(t, filepath.Join(out, f))
	}
	dot, err := os.ReadFile(filepath.Join(out, output.KFCMDOT))
	require.NoError(t, err)
	assert.Contains(t, string(dot), "helper")
}

func TestCmdImage(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "Main.smali"), []byte(sampleSmali), 0o644))
	out := t.TempDir()

	require.NoError(t, cmdImage(append(noConfig(t), "--smali", src, "--out", out)))
	assert.FileExists(t, filepath.Join(out, output.ImageFile))
}

func TestCmdNative(t *testing.T) {
	lib := elfxtest.Write(t, t.TempDir(), "libx.so", elfxtest.Lib{
		Text: elfxtest.Words(0x94000002, 0xD65F03C0, 0xD503201F, 0xD65F03C0),
		Syms: []elfxtest.Sym{
			{Name: "Java_com_x_Main_init", Off: 0, Size: 8},
			{Name: "helper", Off: 8, Size: 8},
		},
	})
	out := t.TempDir()

	require.NoError(t, cmdNative(append(noConfig(t), "--lib", lib, "--out", out, "--asm", "--graphs")))
	assert.FileExists(t, filepath.Join(out, output.NativeFuncs))
	assert.FileExists(t, filepath.Join(out, output.NativeEdges))
	assert.FileExists(t, filepath.Join(out, output.CallGraphDOT))
	assert.FileExists(t, filepath.Join(out, "cfg.dot"))

	asm, err := os.ReadFile(filepath.Join(out, "asm", "libx", "Java_com_x_Main_init.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(asm), "<Java_com_x_Main_init>")
	assert.FileExists(t, filepath.Join(out, "asm", "libx", "helper.txt"))
}

func TestCmdSim(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.MkdirAll(a, 0o755))
	require.NoError(t, os.MkdirAll(b, 0o755))
	require.NoError(t, output.WriteKFCM(a, &kfcm.Result{Hashed: kfcm.Matrix{"h1": {"h2": 2}}}))
	require.NoError(t, output.WriteKFCM(b, &kfcm.Result{Hashed: kfcm.Matrix{"h1": {"h2": 1}, "h3": {"h1": 1}}}))

	stdout := filepath.Join(dir, "stdout")
	f, err := os.Create(stdout)
	require.NoError(t, err)
	saved := os.Stdout
	os.Stdout = f
	err = cmdSim(append(noConfig(t), "--a", filepath.Join(a, output.KFCMFile), "--b", filepath.Join(b, output.KFCMFile)))
	os.Stdout = saved
	require.NoError(t, f.Close())
	require.NoError(t, err)

	data, err := os.ReadFile(stdout)
	require.NoError(t, err)
	var res sim.Result
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, []string{"h1", "h2"}, res.CommKey)
	assert.InDelta(t, 0.5, res.Level, 1e-9)
}

func TestRequiredFlags(t *testing.T) {
	assert.EqualError(t, cmdSim(noConfig(t)), "--a and --b are required")
	assert.EqualError(t, cmdNative(noConfig(t)), "--lib is required")
	assert.EqualError(t, cmdGraph(noConfig(t)), "--smali is required")
	assert.EqualError(t, cmdExtract(noConfig(t)), "--apk is required")
	assert.EqualError(t, cmdBatch(noConfig(t)), "--dir is required")
}
