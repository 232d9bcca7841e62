package segmentation

import (
	"fmt"

	"voxthresh/internal/models"
	"voxthresh/pkg/threshold"
)

// Foreground is the mask value of a foreground voxel.
const Foreground = 255

// Binarize returns an 8-bit mask of vol at t (Foreground where v > t, 0
// elsewhere) and the voxel partition. vol is not modified.
func Binarize(vol models.VoxelVolume, t float64) (*models.Volume, threshold.Counts, error) {
	flat, err := models.Flat(vol)
	if err != nil {
		return nil, threshold.Counts{}, err
	}
	mask, err := models.NewVolume(flat.Cols, flat.Rows, flat.Slices, 8)
	if err != nil {
		return nil, threshold.Counts{}, err
	}
	mask.VoxelSize = flat.VoxelSize

	var fg int64
	for i, v := range flat.Data {
		if v > t {
			mask.Data[i] = Foreground
			fg++
		}
	}
	return mask, threshold.Counts{Foreground: fg, Background: int64(len(flat.Data)) - fg}, nil
}

// BinarizePerSlice is Binarize with one threshold per z-slice.
func BinarizePerSlice(vol models.VoxelVolume, thresholds []float64) (*models.Volume, threshold.Counts, error) {
	flat, err := models.Flat(vol)
	if err != nil {
		return nil, threshold.Counts{}, err
	}
	if len(thresholds) != flat.Slices {
		return nil, threshold.Counts{}, fmt.Errorf("%w: %d slice thresholds for %d slices",
			models.ErrInvalidInput, len(thresholds), flat.Slices)
	}
	mask, err := models.NewVolume(flat.Cols, flat.Rows, flat.Slices, 8)
	if err != nil {
		return nil, threshold.Counts{}, err
	}
	mask.VoxelSize = flat.VoxelSize

	plane := flat.Cols * flat.Rows
	var fg int64
	for z, t := range thresholds {
		for i := z * plane; i < (z+1)*plane; i++ {
			if flat.Data[i] > t {
				mask.Data[i] = Foreground
				fg++
			}
		}
	}
	return mask, threshold.Counts{Foreground: fg, Background: int64(len(flat.Data)) - fg}, nil
}
