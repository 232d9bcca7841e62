// Package batch runs a threshold search over every volume stack below an
// input directory and records one result row per stack.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"voxthresh/internal/logger"
	"voxthresh/internal/models"
	"voxthresh/pkg/config"
	"voxthresh/pkg/gradient"
	"voxthresh/pkg/report"
	"voxthresh/pkg/segmentation"
	"voxthresh/pkg/stack"
	"voxthresh/pkg/threshold"
	"voxthresh/pkg/visualization"
)

const component = "batch"

// StackResult is the outcome of one stack.
type StackResult struct {
	Name      string
	Dir       string
	Result    *threshold.Result
	Duration  time.Duration
	Err       error
	Artifacts []string
}

// Summary describes a finished run.
type Summary struct {
	RunID     string
	Processed int
	Failed    int
	Stacks    []StackResult
}

// Runner drives a batch run with one configured strategy.
type Runner struct {
	cfg      *config.Config
	log      logger.Logger
	strategy threshold.Strategy
	sweep    threshold.Sweep
	runID    string
}

// NewRunner builds the strategy named by cfg.
func NewRunner(cfg *config.Config, log logger.Logger) (*Runner, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log = logger.OrNop(log)

	strategy, err := threshold.New(cfg.Threshold.Method, StrategyOptions(cfg, log))
	if err != nil {
		return nil, err
	}
	sweep := threshold.Sweep{Min: cfg.Threshold.Min, Max: cfg.Threshold.Max, Delta: cfg.Threshold.Delta}
	if err := sweep.Validate(); err != nil {
		return nil, err
	}

	return &Runner{
		cfg:      cfg,
		log:      log,
		strategy: strategy,
		sweep:    sweep,
		runID:    uuid.NewString(),
	}, nil
}

// StrategyOptions maps the configuration onto strategy options. The
// stable-state search uses the connected-component oracle.
func StrategyOptions(cfg *config.Config, log logger.Logger) threshold.Options {
	return threshold.Options{
		SkipZero: cfg.Threshold.SkipZero,
		PerSlice: cfg.Threshold.PerSlice,
		Greedy:   cfg.Threshold.Greedy,
		Bins:     cfg.Histogram.Bins,
		Gradient: gradient.Options{
			Kind:           gradient.Kind(cfg.Gradient.Kind),
			Range:          gradient.SobelRange{Min: cfg.Gradient.SobelMin, Max: cfg.Gradient.SobelMax},
			UseCalibration: cfg.Gradient.UseCalibration,
		},
		TopoStable: threshold.TopoStableOptions{MinComponentSize: cfg.Threshold.MinComponentSize},
		Oracle:     segmentation.NewOracle(),
		Workers:    cfg.Threshold.Workers,
		Logger:     log,
	}
}

// RunID identifies this runner in logs.
func (r *Runner) RunID() string { return r.runID }

// Strategy is the configured threshold strategy.
func (r *Runner) Strategy() threshold.Strategy { return r.strategy }

// LoadOptions are the stack loading options derived from the configuration.
func (r *Runner) LoadOptions() stack.Options {
	opts := stack.Options{BitDepth: r.cfg.Input.BitDepth, Workers: r.cfg.Threshold.Workers}
	vs := r.cfg.Input.VoxelSize
	if vs.X > 0 && vs.Y > 0 && vs.Z > 0 {
		opts.Calibration = models.Calibration{X: vs.X, Y: vs.Y, Z: vs.Z, Unit: r.cfg.Input.Unit}
	}
	return opts
}

// Run processes every stack under root and appends a row per successful
// stack to results. A failing stack is logged and skipped; only
// cancellation of ctx or a results write error stops the run.
func (r *Runner) Run(ctx context.Context, root string, results *report.ResultsWriter) (*Summary, error) {
	dirs, err := stack.List(root, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list stacks in %s: %w", root, err)
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("%w: no slice stacks found in %s", models.ErrInvalidInput, root)
	}

	summary := &Summary{RunID: r.runID}
	r.log.Info(component, "batch started", map[string]interface{}{
		"run":    r.runID,
		"method": r.strategy.Name(),
		"stacks": len(dirs),
	})

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		sr := r.ProcessStack(ctx, dir)
		summary.Stacks = append(summary.Stacks, sr)
		if sr.Err != nil {
			if errors.Is(sr.Err, context.Canceled) {
				return summary, sr.Err
			}
			summary.Failed++
			r.log.Error(component, sr.Err, map[string]interface{}{"run": r.runID, "stack": sr.Name})
			continue
		}

		if results != nil {
			if err := results.Write(sr.Name, sr.Result.Threshold); err != nil {
				return summary, fmt.Errorf("failed to write result row: %w", err)
			}
		}
		summary.Processed++
	}

	r.log.Info(component, "batch finished", map[string]interface{}{
		"run":       r.runID,
		"processed": summary.Processed,
		"failed":    summary.Failed,
	})
	return summary, nil
}

// ProcessStack loads one stack, searches its threshold and writes the
// configured diagnostics.
func (r *Runner) ProcessStack(ctx context.Context, dir string) (sr StackResult) {
	sr = StackResult{Name: filepath.Base(dir), Dir: dir}
	start := time.Now()
	defer func() { sr.Duration = time.Since(start) }()

	vol, err := stack.Load(dir, r.LoadOptions())
	if err != nil {
		sr.Err = fmt.Errorf("load %s: %w", sr.Name, err)
		return sr
	}
	r.log.Debug(component, "stack loaded", map[string]interface{}{
		"run":    r.runID,
		"stack":  sr.Name,
		"width":  vol.Width(),
		"height": vol.Height(),
		"depth":  vol.Depth(),
		"bits":   vol.BitDepth(),
	})

	if r.cfg.Input.MaskDir != "" {
		if err := r.applyCellMask(sr.Name, vol); err != nil {
			sr.Err = err
			return sr
		}
	}

	searchCtx := ctx
	if r.cfg.Threshold.Timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, r.cfg.Threshold.Timeout)
		defer cancel()
	}

	res, err := r.strategy.FindThreshold(searchCtx, vol, r.sweep)
	if err != nil {
		sr.Err = fmt.Errorf("%s on %s: %w", r.strategy.Name(), sr.Name, err)
		return sr
	}
	sr.Result = res

	r.log.Info(component, "threshold found", map[string]interface{}{
		"run":       r.runID,
		"stack":     sr.Name,
		"threshold": res.Threshold,
		"selection": string(res.Selection),
		"fallback":  res.Fallback,
		"elapsed":   time.Since(start),
	})

	artifacts, err := r.writeArtifacts(sr.Name, vol, res)
	sr.Artifacts = artifacts
	if err != nil {
		sr.Err = err
		sr.Result = nil
	}
	return sr
}

// applyCellMask zeroes the voxels of vol outside the mask stack of the same
// name, after dilating the mask in-plane.
func (r *Runner) applyCellMask(name string, vol *models.Volume) error {
	dir := filepath.Join(r.cfg.Input.MaskDir, name)
	mask, err := stack.Load(dir, stack.Options{Workers: r.cfg.Threshold.Workers})
	if err != nil {
		return fmt.Errorf("load mask for %s: %w", name, err)
	}
	radius := r.cfg.Input.MaskDilation
	dilated, err := segmentation.Dilate(mask, radius, radius, 0)
	if err != nil {
		return err
	}
	zeroed, err := segmentation.ApplyMask(vol, dilated, 0)
	if err != nil {
		return fmt.Errorf("mask %s: %w", name, err)
	}
	r.log.Debug(component, "mask applied", map[string]interface{}{
		"run":    r.runID,
		"stack":  name,
		"zeroed": zeroed,
	})
	return nil
}

func (r *Runner) writeArtifacts(name string, vol *models.Volume, res *threshold.Result) ([]string, error) {
	var paths []string
	out := r.cfg.Output

	if out.TraceDir != "" {
		written, err := report.WriteTrace(out.TraceDir, name, res.Trace)
		paths = append(paths, written...)
		if err != nil {
			return paths, err
		}
	}

	if out.PlotDir != "" {
		written, err := report.PlotTrace(out.PlotDir, name, res.Trace, res.Threshold)
		paths = append(paths, written...)
		if err != nil {
			return paths, err
		}
	}

	if out.MaskDir != "" {
		var (
			mask   *models.Volume
			counts threshold.Counts
			err    error
		)
		if res.SliceThresholds != nil {
			mask, counts, err = segmentation.BinarizePerSlice(vol, res.SliceThresholds)
		} else {
			mask, counts, err = segmentation.Binarize(vol, res.Threshold)
		}
		if err != nil {
			return paths, err
		}
		viewer, err := visualization.NewViewer(mask)
		if err != nil {
			return paths, err
		}
		dir := filepath.Join(out.MaskDir, name)
		if err := viewer.SaveSliceSequence("z", "mask", dir); err != nil {
			return paths, fmt.Errorf("failed to save mask slices: %w", err)
		}
		paths = append(paths, dir)

		r.log.Debug(component, "mask written", map[string]interface{}{
			"run":        r.runID,
			"stack":      name,
			"foreground": counts.Foreground,
			"background": counts.Background,
		})
	}
	return paths, nil
}
