package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxthresh/pkg/gradient"
	"voxthresh/pkg/threshold"
)

// TestDefaultConfigIsValid verifies the defaults pass validation.
func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "otsu", cfg.Threshold.Method)
	assert.Equal(t, 500, cfg.Threshold.MinComponentSize)
	assert.Equal(t, 1000, cfg.Histogram.Bins)
	assert.Equal(t, -1045860.0, cfg.Gradient.SobelMin)
}

// TestLoadConfigMissingFile returns defaults when no file exists.
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Threshold.Max, cfg.Threshold.Max)
}

// TestSaveAndLoadRoundTrip writes a modified config and reads it back.
func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "voxthresh.yaml")

	cfg := DefaultConfig()
	cfg.Threshold.Method = "minerror"
	cfg.Threshold.Timeout = 90 * time.Second
	cfg.Output.TraceDir = "traces"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "minerror", loaded.Threshold.Method)
	assert.Equal(t, 90*time.Second, loaded.Threshold.Timeout)
	assert.Equal(t, "traces", loaded.Output.TraceDir)
}

func TestLoadConfigPartialYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	data := []byte("threshold:\n  method: egt\n  greedy: 4\n  timeout: 2m\nhistogram:\n  bins: 256\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "egt", cfg.Threshold.Method)
	assert.Equal(t, 4.0, cfg.Threshold.Greedy)
	assert.Equal(t, 2*time.Minute, cfg.Threshold.Timeout)
	assert.Equal(t, 256, cfg.Histogram.Bins)
	// untouched keys keep their defaults
	assert.Equal(t, 1.0, cfg.Threshold.Delta)
}

// TestEnvOverlay checks that environment variables win over file values.
func TestEnvOverlay(t *testing.T) {
	t.Setenv("VOXTHRESH_METHOD", "topostable")
	t.Setenv("VOXTHRESH_WORKERS", "3")
	t.Setenv("VOXTHRESH_TIMEOUT", "45s")
	t.Setenv("VOXTHRESH_GREEDY", "2.5")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "topostable", cfg.Threshold.Method)
	assert.Equal(t, 3, cfg.Threshold.Workers)
	assert.Equal(t, 45*time.Second, cfg.Threshold.Timeout)
	assert.Equal(t, 2.5, cfg.Threshold.Greedy)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown method", func(c *Config) { c.Threshold.Method = "triangle" }},
		{"zero delta", func(c *Config) { c.Threshold.Delta = 0 }},
		{"inverted range", func(c *Config) { c.Threshold.Min = 10; c.Threshold.Max = 5 }},
		{"unknown gradient", func(c *Config) { c.Gradient.Kind = "laplace" }},
		{"no bins", func(c *Config) { c.Histogram.Bins = 0 }},
		{"bad sobel range", func(c *Config) { c.Gradient.SobelMax = c.Gradient.SobelMin }},
		{"bit depth", func(c *Config) { c.Input.BitDepth = 32 }},
		{"no results path", func(c *Config) { c.Output.Results = "" }},
		{"negative timeout", func(c *Config) { c.Threshold.Timeout = -time.Second }},
		{"negative mask dilation", func(c *Config) { c.Input.MaskDilation = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateClampsWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold.Workers = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Threshold.Workers)
}

// TestValidateAcceptsEveryRegisteredName keeps the accepted names in step
// with the threshold and gradient registries.
func TestValidateAcceptsEveryRegisteredName(t *testing.T) {
	for _, m := range threshold.Methods() {
		cfg := DefaultConfig()
		cfg.Threshold.Method = m
		assert.NoError(t, cfg.Validate(), m)
	}
	for _, k := range gradient.Kinds() {
		cfg := DefaultConfig()
		cfg.Gradient.Kind = k
		assert.NoError(t, cfg.Validate(), k)
	}
}

func TestLoadConfigMaskInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	data := []byte("input:\n  maskDir: cells\n  maskDilation: 2\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "cells", cfg.Input.MaskDir)
	assert.Equal(t, 2, cfg.Input.MaskDilation)
	assert.Equal(t, 1, DefaultConfig().Input.MaskDilation)
}
