// Package gradient computes gradient-magnitude volumes. Every filter reads
// from a private snapshot of its input and writes into a fresh volume, so the
// caller's volume is never modified.
package gradient

import (
	"fmt"

	"voxthresh/internal/models"
)

// Kind names a gradient filter.
type Kind string

const (
	KindSobel3D Kind = "sobel3d"
	KindSobel2D Kind = "sobel2d"
	KindCentral Kind = "central"
)

// Kinds lists the filter names Compute accepts.
func Kinds() []string {
	return []string{string(KindSobel3D), string(KindSobel2D), string(KindCentral)}
}

// Options configure the filters.
type Options struct {
	Kind Kind

	// Range is the assumed signed range of the Sobel-3D magnitude before it is
	// rescaled into [0, 65535].
	Range SobelRange

	// UseCalibration divides central differences by the physical voxel size.
	UseCalibration bool

	// Workers bounds the number of goroutines; <= 0 means one per CPU.
	Workers int
}

// DefaultOptions returns the 3D Sobel filter with its standard 16-bit range.
func DefaultOptions() Options {
	return Options{Kind: KindSobel3D, Range: DefaultSobelRange}
}

// Magnitude applies the filter selected by opts.Kind.
func Magnitude(vol models.VoxelVolume, opts Options) (*models.Volume, error) {
	switch opts.Kind {
	case KindSobel3D, "":
		r := opts.Range
		if r == (SobelRange{}) {
			r = DefaultSobelRange
		}
		return Sobel3D(vol, r, opts.Workers)
	case KindSobel2D:
		return Sobel2D(vol, opts.Workers)
	case KindCentral:
		return CentralDifference(vol, opts.UseCalibration, opts.Workers)
	default:
		return nil, fmt.Errorf("%w: unknown gradient kind %q", models.ErrInvalidInput, opts.Kind)
	}
}
