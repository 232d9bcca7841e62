package threshold

import (
	"fmt"

	"voxthresh/internal/logger"
	"voxthresh/pkg/gradient"
)

// Options carry the parameters of every strategy; each strategy reads the
// fields it needs.
type Options struct {
	SkipZero bool
	PerSlice bool

	Greedy   float64
	Bins     int
	Gradient gradient.Options

	TopoStable TopoStableOptions
	Oracle     SegmentationOracle

	Workers int
	Logger  logger.Logger
}

// Methods lists the names New accepts.
func Methods() []string {
	return []string{MethodOtsu, MethodMaxEntropy, MethodMinError, MethodTopoStable, MethodEGT}
}

// New builds the named strategy.
func New(method string, opts Options) (Strategy, error) {
	switch method {
	case MethodOtsu:
		return &OtsuStrategy{SkipZero: opts.SkipZero, Logger: opts.Logger}, nil
	case MethodMaxEntropy:
		return &MaxEntropyStrategy{
			SkipZero: opts.SkipZero,
			PerSlice: opts.PerSlice,
			Workers:  opts.Workers,
			Logger:   opts.Logger,
		}, nil
	case MethodMinError:
		return &MinErrorStrategy{SkipZero: opts.SkipZero, Logger: opts.Logger}, nil
	case MethodTopoStable:
		if opts.Oracle == nil {
			return nil, fmt.Errorf("%w: %s needs a segmentation oracle", ErrInvalidInput, method)
		}
		topo := opts.TopoStable
		if topo.Workers == 0 {
			topo.Workers = opts.Workers
		}
		return &TopoStableStrategy{Oracle: opts.Oracle, Options: topo, Logger: opts.Logger}, nil
	case MethodEGT:
		grad := opts.Gradient
		if grad.Workers == 0 {
			grad.Workers = opts.Workers
		}
		return &EGTStrategy{Greedy: opts.Greedy, Bins: opts.Bins, Gradient: grad, Logger: opts.Logger}, nil
	default:
		return nil, fmt.Errorf("%w: unknown threshold method %q", ErrInvalidInput, method)
	}
}
