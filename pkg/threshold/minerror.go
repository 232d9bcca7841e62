package threshold

import (
	"context"
	"fmt"
	"math"

	"voxthresh/internal/logger"
	"voxthresh/internal/models"
	"voxthresh/pkg/histogram"
)

// minErrorEpsilon is the smallest class deviation or weight still scored.
const minErrorEpsilon = 1e-6

// MinErrorStrategy minimises the Kittler-Illingworth clustering error.
type MinErrorStrategy struct {
	SkipZero bool
	Logger   logger.Logger
}

func (s *MinErrorStrategy) Name() string { return MethodMinError }

func (s *MinErrorStrategy) FindThreshold(ctx context.Context, vol models.VoxelVolume, sweep Sweep) (*Result, error) {
	h, err := integerHistogram(ctx, vol, s.SkipZero)
	if err != nil {
		return nil, err
	}
	res, err := MinErrorThreshold(h, sweep)
	if err != nil {
		return nil, err
	}
	warnFallback(s.Logger, res, "no local or global minimum of the clustering error")
	return res, nil
}

// MinErrorThreshold scores each candidate with
//
//	p*log10(sBkg) + (1-p)*log10(sFg) - p*log10(p) - (1-p)*log10(1-p)
//
// where p is the background fraction and sBkg, sFg the class standard
// deviations, all taken from the cumulative moments of the histogram. The
// lowest interior local minimum wins; a flat valley floor counts as one
// minimum and reports the centre of the run. Without a local minimum the global minimum
// is used, and without any valid score the sweep minimum.
func MinErrorThreshold(h *histogram.Histogram, sweep Sweep) (*Result, error) {
	if err := sweep.Validate(); err != nil {
		return nil, err
	}
	total := h.Total()
	if total == 0 {
		return nil, fmt.Errorf("%w: histogram has zero mass", ErrInvalidInput)
	}

	n := h.Len()
	mom := cumulativeMoments(h, h.Floats())

	res := &Result{Method: MethodMinError}
	table := res.Trace.add(NewTable("minerror", "threshold", "p", "sigmaFg", "sigmaBkg", "score"))

	m := sweep.Len()
	scores := make([]Score, m)
	for i := 0; i < m; i++ {
		t := sweep.At(i)
		k := splitIndex(t, n)

		nB, _, sumB, sqB := mom.upTo(k)
		nF, _, sumF, sqF := mom.above(k)

		p := float64(nB) / float64(total)
		sigmaB, sigmaF := math.NaN(), math.NaN()
		score := InvalidScore()
		if nB > 0 && nF > 0 {
			sigmaB = classDeviation(nB, sumB, sqB)
			sigmaF = classDeviation(nF, sumF, sqF)
			if sigmaB >= minErrorEpsilon && sigmaF >= minErrorEpsilon &&
				p >= minErrorEpsilon && 1-p >= minErrorEpsilon {
				score = ValidScore(p*math.Log10(sigmaB) + (1-p)*math.Log10(sigmaF) -
					p*math.Log10(p) - (1-p)*math.Log10(1-p))
			}
		}
		scores[i] = score
		table.Add(t, p, sigmaF, sigmaB, score.Value())
	}

	if i, ok := plateauMinimum(scores); ok {
		res.Threshold = sweep.At(i)
		res.Selection = SelectLocalMinimum
		return res, nil
	}

	global, globalIdx := InvalidScore(), -1
	for i, s := range scores {
		if s.Less(global) {
			global, globalIdx = s, i
		}
	}
	if globalIdx >= 0 {
		res.Threshold = sweep.At(globalIdx)
		res.Selection = SelectGlobalMinimum
		return res, nil
	}

	setDefault(res, sweep)
	return res, nil
}

// classDeviation is sqrt(sq*n - sum^2)/n, clamped at zero against rounding.
func classDeviation(n int64, sum, sq float64) float64 {
	fn := float64(n)
	return math.Sqrt(math.Max(0, sq*fn-sum*sum)) / fn
}

// plateauMinimum finds the lowest local minimum of scores. A maximal run of
// equal valid scores is a minimum when both neighbours exist, are valid and
// are strictly greater. The centre index of the lowest such run is returned;
// the first run wins ties.
func plateauMinimum(scores []Score) (int, bool) {
	n := len(scores)
	best := InvalidScore()
	bestIdx := -1

	for lo := 0; lo < n; {
		if !scores[lo].Valid() {
			lo++
			continue
		}
		v := scores[lo].Value()
		hi := lo
		for hi+1 < n && scores[hi+1].Valid() && scores[hi+1].Value() == v {
			hi++
		}

		if lo >= 1 && hi <= n-2 &&
			scores[lo-1].Valid() && scores[hi+1].Valid() &&
			v < scores[lo-1].Value() && v < scores[hi+1].Value() &&
			scores[lo].Less(best) {
			best = scores[lo]
			bestIdx = (lo + hi) / 2
		}
		lo = hi + 1
	}
	return bestIdx, bestIdx >= 0
}
