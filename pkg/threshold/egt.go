package threshold

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"voxthresh/internal/logger"
	"voxthresh/internal/models"
	"voxthresh/pkg/gradient"
	"voxthresh/pkg/histogram"
)

const (
	egtModes = 3

	// Linear percentile model through (density, percentile) points.
	egtSaturationLow   = 3.0
	egtSaturationHigh  = 42.0
	egtPercentileLow   = 40.0
	egtPercentileHigh  = 95.0
	egtPercentileFloor = 25.0
	egtPercentileCeil  = 98.0

	egtPeakFraction = 0.05
)

// EGTStrategy thresholds at a percentile of the positive gradient
// magnitudes, chosen from the shape of the gradient histogram.
type EGTStrategy struct {
	// Greedy is subtracted from the percentile; larger values keep more
	// foreground.
	Greedy float64

	// Bins is the rescaled histogram size (DefaultBins when zero).
	Bins int

	Gradient gradient.Options
	Logger   logger.Logger
}

func (s *EGTStrategy) Name() string { return MethodEGT }

// FindThreshold ignores sweep: the threshold is a sample value of the
// gradient volume.
func (s *EGTStrategy) FindThreshold(ctx context.Context, vol models.VoxelVolume, _ Sweep) (*Result, error) {
	if err := checkVolume(vol); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	grad, err := gradient.Magnitude(vol, s.Gradient)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bins := s.Bins
	if bins == 0 {
		bins = histogram.DefaultBins
	}
	samples := histogram.PositiveSamples(grad)
	h, err := histogram.FromSamples(samples, bins)
	if err != nil {
		return nil, fmt.Errorf("gradient histogram: %w", err)
	}
	res, err := EGTThreshold(h, samples, s.Greedy)
	if err != nil {
		return nil, err
	}
	logger.OrNop(s.Logger).Debug("threshold", "gradient percentile selected", map[string]interface{}{
		"gradient":  string(s.Gradient.Kind),
		"samples":   len(samples),
		"threshold": res.Threshold,
	})
	return res, nil
}

// EGTThreshold maps the gradient histogram h to a percentile and returns the
// positive sample at that rank. samples are the positive values h was built
// from; they are sorted if needed.
func EGTThreshold(h *histogram.Histogram, samples []float64, greedy float64) (*Result, error) {
	if h == nil || h.Total() == 0 || len(samples) == 0 {
		return nil, fmt.Errorf("%w: gradient histogram has no positive samples", ErrInvalidInput)
	}
	if !sort.Float64sAreSorted(samples) {
		samples = append([]float64(nil), samples...)
		sort.Float64s(samples)
	}

	hist := h.Floats()
	n := len(hist)

	// top three bins by a bounded insertion scan
	var modes [egtModes]float64
	var modeIdx [egtModes]int
	for k, v := range hist {
		for l := 0; l < egtModes; l++ {
			if v > modes[l] {
				for m := egtModes - 1; m > l; m-- {
					modes[m] = modes[m-1]
					modeIdx[m] = modeIdx[m-1]
				}
				modes[l] = v
				modeIdx[l] = k
				break
			}
		}
	}
	sum := 0
	for _, idx := range modeIdx {
		sum += idx
	}
	modeLoc := int(roundHalfUp(float64(sum) / egtModes))

	// percentage scale
	mass := floats.Sum(hist) / 100
	for k := range hist {
		hist[k] /= mass
	}
	maxHist := floats.Max(hist)

	// bounds use one-based arithmetic, then shift back
	lowerBound := min(3*(modeLoc+1), n-1) - 1

	alt := 0
	for k := modeLoc; k < n; k++ {
		if hist[k]/maxHist < egtPeakFraction {
			alt = k
			break
		}
	}
	upperBound := min(max(alt, 18*(modeLoc+1)), n-1) - 1

	density := 0.0
	for k := max(lowerBound, 0); k <= upperBound; k++ {
		density += hist[k]
	}

	raw := percentileFromDensity(density)
	pct := applyGreedy(raw, greedy)
	value := percentileSample(samples, pct)

	res := &Result{Method: MethodEGT, Threshold: value, Selection: SelectPercentile}
	table := res.Trace.add(NewTable("egt",
		"modeLocation", "lowerBound", "upperBound", "density", "percentile", "greedyPercentile", "threshold"))
	table.Add(float64(modeLoc), float64(lowerBound), float64(upperBound), density, raw, pct, value)
	return res, nil
}

// percentileFromDensity evaluates the linear model through (3, 95) and
// (42, 40), rounded half up and clamped to [25, 98].
func percentileFromDensity(density float64) float64 {
	a := (egtPercentileHigh - egtPercentileLow) / (egtSaturationLow - egtSaturationHigh)
	b := egtPercentileHigh - a*egtSaturationLow
	pct := roundHalfUp(a*density + b)
	return math.Max(egtPercentileFloor, math.Min(egtPercentileCeil, pct))
}

// applyGreedy subtracts round(greedy) and clamps to [1, 100].
func applyGreedy(pct, greedy float64) float64 {
	pct -= roundHalfUp(greedy)
	return math.Max(1, math.Min(100, pct))
}

// percentileSample returns sorted[(n+1)*pct/100] with the index clamped to
// [0, n-1] and truncated.
func percentileSample(sorted []float64, pct float64) float64 {
	n := len(sorted)
	pos := float64(n+1) * (pct / 100)
	pos = math.Max(0, math.Min(float64(n-1), pos))
	return sorted[int(pos)]
}

func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
