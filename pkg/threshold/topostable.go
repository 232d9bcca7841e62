package threshold

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"voxthresh/internal/logger"
	"voxthresh/internal/models"
)

// DefaultMinComponentSize is the size a component must exceed to be counted.
const DefaultMinComponentSize = 500

const (
	// stabilityLimit bounds the relative drop accepted as stable.
	stabilityLimit = 0.01
	// maxTolerance decides whether the first-derivative transition ends on
	// the sweep maximum.
	maxTolerance = 1e-4
)

// Counts is the voxel partition at one threshold.
type Counts struct {
	Foreground int64
	Background int64
}

// SegmentationOracle segments a volume at a threshold. Implementations must
// be safe for concurrent use and must not modify the volume.
type SegmentationOracle interface {
	Threshold(ctx context.Context, vol models.VoxelVolume, t float64) (Counts, error)
	CountComponentsAbove(ctx context.Context, vol models.VoxelVolume, t float64, minSize int) (int, error)
}

// TopoStableOptions tune the stable-state search.
type TopoStableOptions struct {
	// MinComponentSize defaults to DefaultMinComponentSize when zero.
	MinComponentSize int

	// Workers bounds concurrent oracle calls; <= 0 means one per CPU.
	Workers int

	// Timeout bounds the whole sweep; 0 disables it.
	Timeout time.Duration
}

// TopoStableStrategy looks for the threshold range where the number of large
// connected components and the foreground size stop changing.
type TopoStableStrategy struct {
	Oracle  SegmentationOracle
	Options TopoStableOptions
	Logger  logger.Logger
}

func (s *TopoStableStrategy) Name() string { return MethodTopoStable }

func (s *TopoStableStrategy) FindThreshold(ctx context.Context, vol models.VoxelVolume, sweep Sweep) (*Result, error) {
	res, err := TopoStableThreshold(ctx, vol, sweep, s.Oracle, s.Options)
	if err != nil {
		return nil, err
	}
	warnFallback(s.Logger, res, "no stable state in component or foreground counts")
	return res, nil
}

// TopoStableThreshold segments vol at every sweep candidate through oracle,
// concurrently, then analyses the ordered counts.
//
// First derivative: the transition t_i -> t_i+1 qualifies when the relative
// drops of both the component count and the foreground count lie in
// [0, 0.01); the qualifying t_i with the smallest foreground drop wins.
// Second derivative (only when nothing qualified or the winning transition
// ends on the sweep maximum, so the counts only settle once everything above
// the sweep is gone): over non-increasing component triples, the middle candidate
// minimising |drop_i - drop_i+1| wins. Oracle failures and cancellation abort
// the search.
func TopoStableThreshold(ctx context.Context, vol models.VoxelVolume, sweep Sweep,
	oracle SegmentationOracle, opts TopoStableOptions) (*Result, error) {
	if err := checkVolume(vol); err != nil {
		return nil, err
	}
	if oracle == nil {
		return nil, fmt.Errorf("%w: nil segmentation oracle", ErrInvalidInput)
	}
	if err := sweep.Validate(); err != nil {
		return nil, err
	}

	minSize := opts.MinComponentSize
	if minSize == 0 {
		minSize = DefaultMinComponentSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	n := sweep.Len()
	components := make([]int64, n)
	foreground := make([]int64, n)
	background := make([]int64, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t := sweep.At(i)
			counts, err := oracle.Threshold(gctx, vol, t)
			if err != nil {
				return fmt.Errorf("segment at %g: %w", t, err)
			}
			k, err := oracle.CountComponentsAbove(gctx, vol, t, minSize)
			if err != nil {
				return fmt.Errorf("count components at %g: %w", t, err)
			}
			components[i] = int64(k)
			foreground[i] = counts.Foreground
			background[i] = counts.Background
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return analyseStability(sweep, components, foreground, background), nil
}

// relativeDrop is (a-b)/a for a non-increasing pair with a > 0, else -1.
func relativeDrop(a, b int64) float64 {
	if a > 0 && a >= b {
		return float64(a-b) / float64(a)
	}
	return -1
}

func analyseStability(sweep Sweep, components, foreground, background []int64) *Result {
	n := len(components)
	res := &Result{Method: MethodTopoStable}

	first := res.Trace.add(NewTable("topostable-first",
		"threshold", "components", "componentsNext", "componentDrop",
		"foreground", "foregroundNext", "foregroundDrop"))

	best := InvalidScore()
	found := false
	pick := -1
	for i := 0; i+1 < n; i++ {
		v1 := relativeDrop(components[i], components[i+1])
		v2 := relativeDrop(foreground[i], foreground[i+1])
		first.Add(sweep.At(i),
			float64(components[i]), float64(components[i+1]), v1,
			float64(foreground[i]), float64(foreground[i+1]), v2)

		if v1 >= 0 && v1 < stabilityLimit && v2 >= 0 && v2 < stabilityLimit {
			if s := ValidScore(v2); s.Less(best) {
				best = s
				res.Threshold = sweep.At(i)
				res.Selection = SelectFirstDeriv
				found = true
				pick = i
			}
		}
	}

	if !found || math.Abs(sweep.At(pick+1)-sweep.Max) < maxTolerance {
		second := res.Trace.add(NewTable("topostable-second",
			"threshold", "components", "foreground", "background", "score"))

		best = InvalidScore()
		for i := 0; i+2 < n; i++ {
			score := InvalidScore()
			if components[i] > 0 && components[i+1] > 0 &&
				components[i] >= components[i+1] && components[i+1] >= components[i+2] {
				v1 := relativeDrop(components[i], components[i+1])
				v2 := relativeDrop(components[i+1], components[i+2])
				score = ValidScore(math.Abs(v1 - v2))
			}
			second.Add(sweep.At(i), float64(components[i]), float64(foreground[i]),
				float64(background[i]), score.Value())

			if score.Less(best) {
				best = score
				res.Threshold = sweep.At(i + 1)
				res.Selection = SelectSecondDeriv
				found = true
			}
		}
	}

	if !found {
		setDefault(res, sweep)
	}
	return res
}
