// Package segmentation thresholds voxel volumes and counts their 6-connected
// foreground components. A voxel is foreground when its value is strictly
// greater than the threshold.
package segmentation

import (
	"context"

	"voxthresh/internal/models"
	"voxthresh/pkg/threshold"
)

// Oracle is the default threshold.SegmentationOracle. It is stateless and
// safe for concurrent use.
type Oracle struct{}

// NewOracle returns the flood-fill oracle.
func NewOracle() *Oracle {
	return &Oracle{}
}

var _ threshold.SegmentationOracle = (*Oracle)(nil)

// Threshold counts foreground and background voxels at t.
func (o *Oracle) Threshold(ctx context.Context, vol models.VoxelVolume, t float64) (threshold.Counts, error) {
	flat, err := models.Flat(vol)
	if err != nil {
		return threshold.Counts{}, err
	}
	if err := ctx.Err(); err != nil {
		return threshold.Counts{}, err
	}
	var fg int64
	for _, v := range flat.Data {
		if v > t {
			fg++
		}
	}
	return threshold.Counts{Foreground: fg, Background: int64(len(flat.Data)) - fg}, nil
}

// CountComponentsAbove counts the 6-connected foreground components at t
// with more than minSize voxels.
func (o *Oracle) CountComponentsAbove(ctx context.Context, vol models.VoxelVolume, t float64, minSize int) (int, error) {
	flat, err := models.Flat(vol)
	if err != nil {
		return 0, err
	}
	sizes, err := ComponentSizes(ctx, flat, t)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range sizes {
		if s > minSize {
			n++
		}
	}
	return n, nil
}
