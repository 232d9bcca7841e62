// Package threshold implements automatic intensity-threshold selection for
// voxel volumes. Each Strategy consumes a volume (through a histogram of its
// grey levels or gradient magnitudes) and returns a scalar threshold together
// with a per-candidate diagnostic Trace.
package threshold

import (
	"context"
	"fmt"
	"math"

	"voxthresh/internal/models"
)

// ErrInvalidInput is returned for structural problems that abort a single
// volume: nil or empty volumes, zero-mass histograms, bad sweeps.
var ErrInvalidInput = models.ErrInvalidInput

// Method names accepted by New.
const (
	MethodOtsu       = "otsu"
	MethodMaxEntropy = "maxentropy"
	MethodMinError   = "minerror"
	MethodTopoStable = "topostable"
	MethodEGT        = "egt"
)

// Selection records which rule produced a Result's threshold.
type Selection string

const (
	SelectMaximum       Selection = "maximum"
	SelectLocalMinimum  Selection = "local-minimum"
	SelectGlobalMinimum Selection = "global-minimum"
	SelectFirstDeriv    Selection = "first-derivative"
	SelectSecondDeriv   Selection = "second-derivative"
	SelectPercentile    Selection = "percentile"
	SelectDefault       Selection = "default"
)

// Sweep is the inclusive candidate range [Min, Max] stepped by Delta.
type Sweep struct {
	Min, Max, Delta float64
}

// Validate rejects sweeps that produce no candidates.
func (s Sweep) Validate() error {
	if math.IsNaN(s.Min) || math.IsNaN(s.Max) || math.IsNaN(s.Delta) {
		return fmt.Errorf("%w: sweep contains NaN", ErrInvalidInput)
	}
	if s.Delta <= 0 {
		return fmt.Errorf("%w: sweep delta must be positive, got %g", ErrInvalidInput, s.Delta)
	}
	if s.Min > s.Max {
		return fmt.Errorf("%w: sweep min %g exceeds max %g", ErrInvalidInput, s.Min, s.Max)
	}
	return nil
}

// Len is the number of candidates; candidate i is Min + i*Delta.
func (s Sweep) Len() int {
	return 1 + int(math.Floor((s.Max-s.Min)/s.Delta+1e-9))
}

// At returns candidate i.
func (s Sweep) At(i int) float64 {
	return s.Min + float64(i)*s.Delta
}

// Result is the outcome of one threshold search.
type Result struct {
	Method    string
	Threshold float64

	// Fallback is set when no candidate qualified and Threshold is the
	// documented default: the sweep minimum, or 0 for MaxEntropy.
	Fallback  bool
	Selection Selection

	// SliceThresholds holds one threshold per z-slice when the strategy
	// also searched every slice independently; nil otherwise.
	SliceThresholds []float64

	Trace Trace
}

// Strategy selects a threshold for a volume.
type Strategy interface {
	Name() string
	FindThreshold(ctx context.Context, vol models.VoxelVolume, sweep Sweep) (*Result, error)
}

func checkVolume(vol models.VoxelVolume) error {
	if vol == nil {
		return fmt.Errorf("%w: nil volume", ErrInvalidInput)
	}
	if vol.Width() <= 0 || vol.Height() <= 0 || vol.Depth() <= 0 {
		return fmt.Errorf("%w: empty volume %dx%dx%d", ErrInvalidInput, vol.Width(), vol.Height(), vol.Depth())
	}
	return nil
}

// splitIndex maps a candidate threshold to the last background bin, -1 when
// the background is empty by construction.
func splitIndex(t float64, bins int) int {
	k := int(math.Floor(t))
	if k < -1 {
		return -1
	}
	if k > bins-1 {
		return bins - 1
	}
	return k
}
