package threshold

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"voxthresh/internal/logger"
	"voxthresh/internal/models"
	"voxthresh/pkg/histogram"
)

// entropyEpsilon skips zero-probability bins and empty classes.
const entropyEpsilon = 1e-300

// MaxEntropyStrategy picks the split maximising the summed Shannon entropy of
// the two histogram partitions.
type MaxEntropyStrategy struct {
	// SkipZero drops grey level 0, restricting the histogram to a
	// foreground mask.
	SkipZero bool

	// PerSlice adds a table with the independent split of every z-slice.
	PerSlice bool

	Workers int
	Logger  logger.Logger
}

func (s *MaxEntropyStrategy) Name() string { return MethodMaxEntropy }

// FindThreshold splits the full grey-level histogram of vol. The sweep is
// not used: the split may be any grey level the bit depth allows.
func (s *MaxEntropyStrategy) FindThreshold(ctx context.Context, vol models.VoxelVolume, _ Sweep) (*Result, error) {
	h, err := integerHistogram(ctx, vol, s.SkipZero)
	if err != nil {
		return nil, err
	}
	res, err := MaxEntropyHistogramThreshold(h)
	if err != nil {
		return nil, err
	}
	if s.PerSlice {
		splits, err := EntropySplitPerSlice(ctx, vol, s.Workers)
		if err != nil {
			return nil, err
		}
		table := res.Trace.add(NewTable("maxentropy-slices", "z", "threshold"))
		res.SliceThresholds = make([]float64, len(splits))
		for z, t := range splits {
			res.SliceThresholds[z] = float64(t)
			table.Add(float64(z), float64(t))
		}
	}
	warnFallback(s.Logger, res, "every split leaves one class empty")
	return res, nil
}

type entropyScores struct {
	hB, hW []float64
	valid  []bool
}

func (e *entropyScores) score(k int) Score {
	if k < 0 || k >= len(e.valid) || !e.valid[k] {
		return InvalidScore()
	}
	return ValidScore(e.hB[k] + e.hW[k])
}

// computeEntropies evaluates hB and hW for every split index in linear time,
// using -sum (p/P) ln(p/P) = ln P - (1/P) sum p ln p over each class.
func computeEntropies(h *histogram.Histogram) (*entropyScores, error) {
	total := h.Total()
	if total == 0 {
		return nil, fmt.Errorf("%w: histogram has zero mass", ErrInvalidInput)
	}
	p := h.Probabilities()
	n := len(p)

	mom := cumulativeMoments(h, p)
	cumCount, cumP := mom.count, mom.w

	pLogP := make([]float64, n)
	for i, pi := range p {
		if pi > entropyEpsilon {
			pLogP[i] = pi * math.Log(pi)
		}
	}
	cumPLogP := floats.CumSum(make([]float64, n), pLogP)

	e := &entropyScores{
		hB:    make([]float64, n),
		hW:    make([]float64, n),
		valid: make([]bool, n),
	}
	for k := 0; k < n; k++ {
		pB := cumP[k]
		pW := cumP[n-1] - pB
		if pB > entropyEpsilon {
			e.hB[k] = math.Log(pB) - cumPLogP[k]/pB
		}
		if pW > entropyEpsilon {
			e.hW[k] = math.Log(pW) - (cumPLogP[n-1]-cumPLogP[k])/pW
		}
		e.valid[k] = cumCount[k] > 0 && cumCount[k] < total
	}
	return e, nil
}

// EntropySplit returns the split index in [0, len-1] maximising hB+hW over
// the whole histogram; the first maximum wins. Splits with an empty class are
// never chosen; 0 is returned when no split has two non-empty classes.
func EntropySplit(h *histogram.Histogram) (int, error) {
	e, err := computeEntropies(h)
	if err != nil {
		return 0, err
	}
	k, _ := e.argmax()
	return k, nil
}

func (e *entropyScores) argmax() (int, bool) {
	best, bestK := InvalidScore(), 0
	for k := range e.valid {
		if s := e.score(k); s.Greater(best) {
			best, bestK = s, k
		}
	}
	return bestK, best.Valid()
}

// MaxEntropyHistogramThreshold is EntropySplit with a per-split trace table.
// Without a two-class split the threshold is 0 and Fallback is set.
func MaxEntropyHistogramThreshold(h *histogram.Histogram) (*Result, error) {
	e, err := computeEntropies(h)
	if err != nil {
		return nil, err
	}

	res := &Result{Method: MethodMaxEntropy, Selection: SelectMaximum}
	table := res.Trace.add(NewTable("maxentropy", "threshold", "hB", "hW", "score"))
	for k := range e.valid {
		table.Add(float64(k), e.hB[k], e.hW[k], e.score(k).Value())
	}

	k, ok := e.argmax()
	res.Threshold = float64(k)
	if !ok {
		res.Fallback = true
		res.Selection = SelectDefault
	}
	return res, nil
}

// MaxEntropySweepThreshold restricts the entropy split to sweep candidates,
// each evaluated at split floor(t). Without a valid candidate the sweep
// minimum is returned with Fallback set.
func MaxEntropySweepThreshold(h *histogram.Histogram, sweep Sweep) (*Result, error) {
	if err := sweep.Validate(); err != nil {
		return nil, err
	}
	e, err := computeEntropies(h)
	if err != nil {
		return nil, err
	}

	res := &Result{Method: MethodMaxEntropy, Selection: SelectMaximum}
	table := res.Trace.add(NewTable("maxentropy", "threshold", "hB", "hW", "score"))

	best := InvalidScore()
	n := len(e.valid)
	for i := 0; i < sweep.Len(); i++ {
		t := sweep.At(i)
		k := int(math.Floor(t))
		s := e.score(k)
		hB, hW := math.NaN(), math.NaN()
		if k >= 0 && k < n {
			hB, hW = e.hB[k], e.hW[k]
		}
		table.Add(t, hB, hW, s.Value())

		if s.Greater(best) {
			best = s
			res.Threshold = t
		}
	}

	if !best.Valid() {
		setDefault(res, sweep)
	}
	return res, nil
}

// EntropySplitPerSlice computes an independent entropy split for each
// z-slice, including zero voxels.
func EntropySplitPerSlice(ctx context.Context, vol models.VoxelVolume, workers int) ([]int, error) {
	if err := checkVolume(vol); err != nil {
		return nil, err
	}
	flat, err := models.Flat(vol)
	if err != nil {
		return nil, err
	}

	splits := make([]int, flat.Slices)
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	plane := flat.Cols * flat.Rows
	for z := 0; z < flat.Slices; z++ {
		z := z
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slice := &models.Volume{
				Data:   flat.Data[z*plane : (z+1)*plane],
				Cols:   flat.Cols,
				Rows:   flat.Rows,
				Slices: 1,
				Bits:   flat.Bits,
			}
			h, err := histogram.Build(slice, histogram.Options{Mode: histogram.Integer})
			if err != nil {
				return fmt.Errorf("slice %d: %w", z, err)
			}
			k, err := EntropySplit(h)
			if err != nil {
				return fmt.Errorf("slice %d: %w", z, err)
			}
			splits[z] = k
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return splits, nil
}
