// Package histogram builds frequency histograms over voxel volumes, either one
// bin per integer grey level or rescaled floating bins over positive samples.
package histogram

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"voxthresh/internal/models"
)

// DefaultBins is the rescaled-mode bin count.
const DefaultBins = 1000

// MaxIntegerBitDepth bounds the integer mode table size.
const MaxIntegerBitDepth = 16

// Mode selects how sample values map to bins.
type Mode int

const (
	// Integer uses one bin per grey level in [0, 2^bitDepth).
	Integer Mode = iota
	// Rescaled maps strictly positive samples linearly onto Bins+1 bins.
	Rescaled
)

func (m Mode) String() string {
	switch m {
	case Integer:
		return "integer"
	case Rescaled:
		return "rescaled"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Options configure Build.
type Options struct {
	Mode Mode

	// Bins is the highest bin index in rescaled mode (Bins+1 bins are built).
	Bins int

	// SkipZero excludes grey level 0 in integer mode.
	SkipZero bool
}

// Histogram is an immutable frequency table. Counts is indexed 0..NBins
// inclusive.
type Histogram struct {
	Counts []int64

	// MinValue and MaxValue are the sample values mapped to bin 0 and bin NBins.
	MinValue float64
	MaxValue float64

	// NBins is the highest bin index.
	NBins int

	// Rescale is the bins-per-unit factor of rescaled mode (1 in integer mode).
	Rescale float64

	Mode Mode
}

// Build scans vol once and returns its histogram. The volume is only read.
func Build(vol models.VoxelVolume, opts Options) (*Histogram, error) {
	if vol == nil {
		return nil, fmt.Errorf("%w: nil volume", models.ErrInvalidInput)
	}
	switch opts.Mode {
	case Integer:
		return buildInteger(vol, opts.SkipZero)
	case Rescaled:
		bins := opts.Bins
		if bins == 0 {
			bins = DefaultBins
		}
		return FromSamples(PositiveSamples(vol), bins)
	default:
		return nil, fmt.Errorf("%w: unknown histogram mode %d", models.ErrInvalidInput, opts.Mode)
	}
}

func buildInteger(vol models.VoxelVolume, skipZero bool) (*Histogram, error) {
	bd := vol.BitDepth()
	if bd < 1 || bd > MaxIntegerBitDepth {
		return nil, fmt.Errorf("%w: integer histogram needs bit depth in [1,%d], got %d",
			models.ErrInvalidInput, MaxIntegerBitDepth, bd)
	}
	size := 1 << bd
	counts := make([]int64, size)
	limit := float64(size)

	for z := 0; z < vol.Depth(); z++ {
		for y := 0; y < vol.Height(); y++ {
			for x := 0; x < vol.Width(); x++ {
				v := vol.Voxel(x, y, z)
				if v < 0 || v >= limit || math.IsNaN(v) {
					return nil, fmt.Errorf("%w: voxel (%d,%d,%d)=%g outside [0,%d)",
						models.ErrInvalidInput, x, y, z, v, size)
				}
				bin := int(v)
				if skipZero && bin == 0 {
					continue
				}
				counts[bin]++
			}
		}
	}
	return FromCounts(counts), nil
}

// FromCounts wraps a precomputed integer grey-level table. The slice is copied.
func FromCounts(counts []int64) *Histogram {
	c := make([]int64, len(counts))
	copy(c, counts)
	return &Histogram{
		Counts:   c,
		MinValue: 0,
		MaxValue: float64(len(c) - 1),
		NBins:    len(c) - 1,
		Rescale:  1,
		Mode:     Integer,
	}
}

// FromSamples builds a rescaled histogram over strictly positive samples.
// Non-positive samples are ignored.
func FromSamples(samples []float64, bins int) (*Histogram, error) {
	if bins < 1 {
		return nil, fmt.Errorf("%w: rescaled histogram needs at least 1 bin, got %d", models.ErrInvalidInput, bins)
	}

	minV, maxV := math.Inf(1), math.Inf(-1)
	n := 0
	for _, v := range samples {
		if !(v > 0) {
			continue
		}
		n++
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: no strictly positive samples", models.ErrInvalidInput)
	}

	h := &Histogram{
		Counts:   make([]int64, bins+1),
		MinValue: minV,
		MaxValue: maxV,
		NBins:    bins,
		Mode:     Rescaled,
	}
	if maxV > minV {
		h.Rescale = float64(bins) / (maxV - minV)
	}
	for _, v := range samples {
		if v > 0 {
			h.Counts[h.Bin(v)]++
		}
	}
	return h, nil
}

// Bin maps a sample value to its bin index, clamped to [0, NBins].
func (h *Histogram) Bin(v float64) int {
	var idx int
	if h.Mode == Integer {
		idx = int(v)
	} else {
		idx = int((v-h.MinValue)*h.Rescale + 0.5)
	}
	if idx < 0 {
		return 0
	}
	if idx > h.NBins {
		return h.NBins
	}
	return idx
}

// Len is the number of bins.
func (h *Histogram) Len() int {
	return len(h.Counts)
}

// Total is the number of samples counted.
func (h *Histogram) Total() int64 {
	var total int64
	for _, c := range h.Counts {
		total += c
	}
	return total
}

// Floats returns the counts as float64.
func (h *Histogram) Floats() []float64 {
	out := make([]float64, len(h.Counts))
	for i, c := range h.Counts {
		out[i] = float64(c)
	}
	return out
}

// Probabilities returns counts normalised to unit mass. It returns nil when
// the histogram is empty.
func (h *Histogram) Probabilities() []float64 {
	total := h.Total()
	if total == 0 {
		return nil
	}
	p := h.Floats()
	floats.Scale(1/float64(total), p)
	return p
}

// PositiveSamples collects every strictly positive voxel value of vol in
// ascending order.
func PositiveSamples(vol models.VoxelVolume) []float64 {
	samples := make([]float64, 0, vol.Width()*vol.Height()*vol.Depth()/2)
	for z := 0; z < vol.Depth(); z++ {
		for y := 0; y < vol.Height(); y++ {
			for x := 0; x < vol.Width(); x++ {
				if v := vol.Voxel(x, y, z); v > 0 {
					samples = append(samples, v)
				}
			}
		}
	}
	sort.Float64s(samples)
	return samples
}
