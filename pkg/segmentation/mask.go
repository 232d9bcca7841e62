package segmentation

import (
	"fmt"

	"voxthresh/internal/models"
)

// ApplyMask zeroes every voxel of vol whose mask voxel equals background
// and returns how many voxels were zeroed. vol is modified in place; mask
// must have the same extents.
func ApplyMask(vol *models.Volume, mask models.VoxelVolume, background float64) (int64, error) {
	if vol == nil || mask == nil {
		return 0, fmt.Errorf("%w: nil volume or mask", models.ErrInvalidInput)
	}
	if mask.Width() != vol.Cols || mask.Height() != vol.Rows || mask.Depth() != vol.Slices {
		return 0, fmt.Errorf("%w: mask is %dx%dx%d, volume is %dx%dx%d", models.ErrInvalidInput,
			mask.Width(), mask.Height(), mask.Depth(), vol.Cols, vol.Rows, vol.Slices)
	}

	var zeroed int64
	for z := 0; z < vol.Slices; z++ {
		for y := 0; y < vol.Rows; y++ {
			for x := 0; x < vol.Cols; x++ {
				if mask.Voxel(x, y, z) != background {
					continue
				}
				i := vol.Index(x, y, z)
				if vol.Data[i] != 0 {
					zeroed++
				}
				vol.Data[i] = 0
			}
		}
	}
	return zeroed, nil
}

// Dilate is a flat grey-level dilation: every output voxel is the maximum of
// the (2rx+1)x(2ry+1)x(2rz+1) box around it, clipped at the borders. The
// box is applied one axis at a time.
func Dilate(src models.VoxelVolume, rx, ry, rz int) (*models.Volume, error) {
	if rx < 0 || ry < 0 || rz < 0 {
		return nil, fmt.Errorf("%w: negative dilation radius", models.ErrInvalidInput)
	}
	out, err := models.Snapshot(src)
	if err != nil {
		return nil, err
	}

	w, h, d := out.Cols, out.Rows, out.Slices
	strides := [3]int{1, w, w * h}
	extents := [3]int{w, h, d}
	for axis, r := range [3]int{rx, ry, rz} {
		if r == 0 || extents[axis] == 1 {
			continue
		}
		in := append([]float64(nil), out.Data...)
		stride, n := strides[axis], extents[axis]
		for i := range out.Data {
			pos := (i / stride) % n
			lo, hi := max(0, pos-r), min(n-1, pos+r)
			base := i - pos*stride
			m := in[base+lo*stride]
			for p := lo + 1; p <= hi; p++ {
				m = max(m, in[base+p*stride])
			}
			out.Data[i] = m
		}
	}
	return out, nil
}
