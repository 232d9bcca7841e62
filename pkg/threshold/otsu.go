package threshold

import (
	"context"
	"fmt"
	"math"

	"voxthresh/internal/logger"
	"voxthresh/internal/models"
	"voxthresh/pkg/histogram"
)

// OtsuStrategy maximises the between-class variance over an integer
// grey-level histogram.
type OtsuStrategy struct {
	SkipZero bool
	Logger   logger.Logger
}

func (s *OtsuStrategy) Name() string { return MethodOtsu }

func (s *OtsuStrategy) FindThreshold(ctx context.Context, vol models.VoxelVolume, sweep Sweep) (*Result, error) {
	h, err := integerHistogram(ctx, vol, s.SkipZero)
	if err != nil {
		return nil, err
	}
	res, err := OtsuThreshold(h, sweep)
	if err != nil {
		return nil, err
	}
	warnFallback(s.Logger, res, "no candidate splits the histogram into two non-empty classes")
	return res, nil
}

// OtsuThreshold sweeps the candidates and keeps the first one with the
// largest score wB*wF*(meanB-meanF)^2, where the background holds grey levels
// [0, t] and the foreground everything above. Candidates leaving either class
// empty get an invalid score.
func OtsuThreshold(h *histogram.Histogram, sweep Sweep) (*Result, error) {
	if err := sweep.Validate(); err != nil {
		return nil, err
	}
	total := h.Total()
	if total == 0 {
		return nil, fmt.Errorf("%w: histogram has zero mass", ErrInvalidInput)
	}

	p := h.Probabilities()
	n := len(p)
	mom := cumulativeMoments(h, p)

	res := &Result{Method: MethodOtsu, Selection: SelectMaximum}
	table := res.Trace.add(NewTable("otsu", "threshold", "wB", "wF", "meanB", "meanF", "score"))

	best := InvalidScore()
	for i := 0; i < sweep.Len(); i++ {
		t := sweep.At(i)
		k := splitIndex(t, n)

		nB, wB, muB, _ := mom.upTo(k)
		_, wF, muF, _ := mom.above(k)

		score := InvalidScore()
		meanB, meanF := math.NaN(), math.NaN()
		if nB > 0 && nB < total {
			meanB = muB / wB
			meanF = muF / wF
			d := meanB - meanF
			score = ValidScore(wB * wF * d * d)
		}
		table.Add(t, wB, wF, meanB, meanF, score.Value())

		if score.Greater(best) {
			best = score
			res.Threshold = t
		}
	}

	if !best.Valid() {
		setDefault(res, sweep)
	}
	return res, nil
}

func integerHistogram(ctx context.Context, vol models.VoxelVolume, skipZero bool) (*histogram.Histogram, error) {
	if err := checkVolume(vol); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return histogram.Build(vol, histogram.Options{Mode: histogram.Integer, SkipZero: skipZero})
}

func setDefault(res *Result, sweep Sweep) {
	res.Threshold = sweep.Min
	res.Fallback = true
	res.Selection = SelectDefault
}

func warnFallback(log logger.Logger, res *Result, reason string) {
	if !res.Fallback {
		return
	}
	logger.OrNop(log).Warning("threshold", reason, map[string]interface{}{
		"method":    res.Method,
		"threshold": res.Threshold,
	})
}
