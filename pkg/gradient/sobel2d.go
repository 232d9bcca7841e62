package gradient

import (
	"math"

	"voxthresh/internal/models"
)

// Sobel2D runs the planar 3x3 Sobel edge filter on every z-slice
// independently. Borders replicate the nearest edge pixel. Results are
// clamped to the input's integer range (no clamp for 32-bit float input) and
// the output keeps the input bit depth.
func Sobel2D(vol models.VoxelVolume, workers int) (*models.Volume, error) {
	src, err := models.Snapshot(vol)
	if err != nil {
		return nil, err
	}
	out, err := models.NewVolume(src.Cols, src.Rows, src.Slices, src.Bits)
	if err != nil {
		return nil, err
	}
	out.VoxelSize = src.VoxelSize

	w, h := src.Cols, src.Rows
	limit := math.Inf(1)
	integral := src.Bits > 0 && src.Bits <= 16
	if integral {
		limit = float64(int(1)<<src.Bits - 1)
	}

	at := func(plane []float64, x, y int) float64 {
		x = max(0, min(w-1, x))
		y = max(0, min(h-1, y))
		return plane[y*w+x]
	}

	forEachSlice(src.Slices, workers, func(z int) {
		plane := src.Data[z*w*h : (z+1)*w*h]
		dst := out.Data[z*w*h : (z+1)*w*h]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				p1, p2, p3 := at(plane, x-1, y-1), at(plane, x, y-1), at(plane, x+1, y-1)
				p4, p6 := at(plane, x-1, y), at(plane, x+1, y)
				p7, p8, p9 := at(plane, x-1, y+1), at(plane, x, y+1), at(plane, x+1, y+1)

				sum1 := p1 + 2*p2 + p3 - p7 - 2*p8 - p9
				sum2 := p1 + 2*p4 + p7 - p3 - 2*p6 - p9
				value := math.Min(limit, math.Sqrt(sum1*sum1+sum2*sum2))
				if integral {
					value = math.Floor(value + 0.5)
				}
				dst[y*w+x] = value
			}
		}
	})

	return out, nil
}
