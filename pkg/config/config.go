// Package config provides configuration loading and management for voxthresh.
// It handles loading configuration from YAML files, overlaying a small set of
// environment variables and providing default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"voxthresh/pkg/gradient"
	"voxthresh/pkg/threshold"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Threshold search parameters
	Threshold struct {
		// Method selects the strategy (otsu, maxentropy, minerror, topostable, egt)
		Method string `yaml:"method"`

		// Min, Max and Delta define the candidate sweep
		Min   float64 `yaml:"min"`
		Max   float64 `yaml:"max"`
		Delta float64 `yaml:"delta"`

		// Greedy is subtracted from the EGT percentile
		Greedy float64 `yaml:"greedy"`

		// SkipZero drops grey level 0 from integer histograms
		SkipZero bool `yaml:"skipZero"`

		// PerSlice also records a maximum-entropy split for every z slice
		PerSlice bool `yaml:"perSlice"`

		// MinComponentSize is the component size a connected region must exceed
		// to be counted by the stable-state search
		MinComponentSize int `yaml:"minComponentSize"`

		// Workers bounds the number of concurrent segmentations
		Workers int `yaml:"workers"`

		// Timeout bounds a single volume's threshold search (0 disables it)
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"threshold"`

	// Gradient filter parameters
	Gradient struct {
		Kind           string  `yaml:"kind"`
		SobelMin       float64 `yaml:"sobelMin"`
		SobelMax       float64 `yaml:"sobelMax"`
		UseCalibration bool    `yaml:"useCalibration"`
	} `yaml:"gradient"`

	Histogram struct {
		// Bins is the rescaled-mode bin count
		Bins int `yaml:"bins"`
	} `yaml:"histogram"`

	// Input parameters
	Input struct {
		// BitDepth overrides the depth detected from the slice images (0 keeps it)
		BitDepth int `yaml:"bitDepth"`

		// VoxelSize is the physical voxel spacing; zero values mean unit spacing
		VoxelSize struct {
			X float64 `yaml:"x"`
			Y float64 `yaml:"y"`
			Z float64 `yaml:"z"`
		} `yaml:"voxelSize"`

		Unit string `yaml:"unit"`

		// MaskDir holds one mask stack per input stack, under the same name.
		// Voxels whose mask value is 0 are zeroed before thresholding.
		MaskDir string `yaml:"maskDir"`

		// MaskDilation is the in-plane radius the mask is dilated by
		MaskDilation int `yaml:"maskDilation"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// Results is the FileName,OptimalThreshold CSV written by a batch run
		Results string `yaml:"results"`

		// TraceDir receives one diagnostic CSV per volume when set
		TraceDir string `yaml:"traceDir"`

		// PlotDir receives score-curve plots when set
		PlotDir string `yaml:"plotDir"`

		// MaskDir receives binarised slice sequences when set
		MaskDir string `yaml:"maskDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// JSONLogs switches the console logger to JSON lines
		JSONLogs bool `yaml:"jsonLogs"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Threshold.Method = "otsu"
	cfg.Threshold.Min = 1
	cfg.Threshold.Max = 255
	cfg.Threshold.Delta = 1
	cfg.Threshold.Greedy = 0
	cfg.Threshold.SkipZero = false
	cfg.Threshold.MinComponentSize = 500
	cfg.Threshold.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Threshold.Timeout = 0

	cfg.Gradient.Kind = "sobel3d"
	cfg.Gradient.SobelMin = -1045860
	cfg.Gradient.SobelMax = 1045860
	cfg.Gradient.UseCalibration = false

	cfg.Histogram.Bins = 1000

	cfg.Input.BitDepth = 0
	cfg.Input.Unit = "pixel"
	cfg.Input.MaskDilation = 1

	cfg.Output.Results = "results.csv"
	cfg.Output.Verbose = false
	cfg.Output.JSONLogs = false

	return cfg
}

// envOverlay lists the settings that may be overridden from the environment.
type envOverlay struct {
	Method  string        `env:"VOXTHRESH_METHOD"`
	Workers int           `env:"VOXTHRESH_WORKERS"`
	Timeout time.Duration `env:"VOXTHRESH_TIMEOUT"`
	Greedy  float64       `env:"VOXTHRESH_GREEDY"`
}

// ApplyEnv overlays VOXTHRESH_* environment variables onto cfg. Unset
// variables leave the current values untouched.
func ApplyEnv(cfg *Config) error {
	overlay := envOverlay{
		Method:  cfg.Threshold.Method,
		Workers: cfg.Threshold.Workers,
		Timeout: cfg.Threshold.Timeout,
		Greedy:  cfg.Threshold.Greedy,
	}
	if err := env.Parse(&overlay); err != nil {
		return fmt.Errorf("error parsing environment: %w", err)
	}
	cfg.Threshold.Method = overlay.Method
	cfg.Threshold.Workers = overlay.Workers
	cfg.Threshold.Timeout = overlay.Timeout
	cfg.Threshold.Greedy = overlay.Greedy
	return nil
}

// LoadConfig loads configuration from a YAML file and applies the environment
// overlay. If the file doesn't exist, the defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("error reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values no strategy can run with.
func (c *Config) Validate() error {
	if !slices.Contains(threshold.Methods(), c.Threshold.Method) {
		return fmt.Errorf("unknown threshold method %q (must be one of %v)", c.Threshold.Method, threshold.Methods())
	}
	if c.Threshold.Delta <= 0 {
		return fmt.Errorf("threshold delta must be positive, got %g", c.Threshold.Delta)
	}
	if c.Threshold.Min > c.Threshold.Max {
		return fmt.Errorf("threshold min %g exceeds max %g", c.Threshold.Min, c.Threshold.Max)
	}
	if c.Threshold.MinComponentSize < 0 {
		return fmt.Errorf("minComponentSize must be non-negative, got %d", c.Threshold.MinComponentSize)
	}
	if c.Threshold.Workers < 1 {
		c.Threshold.Workers = 1
	}
	if c.Threshold.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %s", c.Threshold.Timeout)
	}
	if !slices.Contains(gradient.Kinds(), c.Gradient.Kind) {
		return fmt.Errorf("unknown gradient kind %q (must be one of %v)", c.Gradient.Kind, gradient.Kinds())
	}
	if c.Gradient.SobelMax <= c.Gradient.SobelMin {
		return fmt.Errorf("gradient sobelMax %g must exceed sobelMin %g", c.Gradient.SobelMax, c.Gradient.SobelMin)
	}
	if c.Histogram.Bins < 1 {
		return fmt.Errorf("histogram bins must be at least 1, got %d", c.Histogram.Bins)
	}
	if c.Output.Results == "" {
		return fmt.Errorf("output results path must not be empty")
	}
	if c.Input.BitDepth < 0 || c.Input.BitDepth > 16 {
		return fmt.Errorf("input bitDepth must be 0 (auto) or in [1,16], got %d", c.Input.BitDepth)
	}
	if c.Input.MaskDilation < 0 {
		return fmt.Errorf("input maskDilation must be non-negative, got %d", c.Input.MaskDilation)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
