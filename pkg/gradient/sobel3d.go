package gradient

import (
	"fmt"
	"math"

	"voxthresh/internal/models"
)

// SobelRange is the signed magnitude interval mapped linearly onto [0, 65535].
type SobelRange struct {
	Min, Max float64
}

// DefaultSobelRange is calibrated for 16-bit input.
var DefaultSobelRange = SobelRange{Min: -1045860, Max: 1045860}

// Sobel kernels indexed [dz+1][dx+1][dy+1], applied to the neighbour at
// (x-dx, y-dy, z-dz).
var (
	sobel3DZ = [3][3][3]float64{
		{{-1, -2, -1}, {-2, -4, -2}, {-1, -2, -1}},
		{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}},
		{{1, 2, 1}, {2, 4, 2}, {1, 2, 1}},
	}
	sobel3DY = [3][3][3]float64{
		{{1, 2, 1}, {0, 0, 0}, {-1, -2, -1}},
		{{2, 4, 2}, {0, 0, 0}, {-2, -4, -2}},
		{{1, 2, 1}, {0, 0, 0}, {-1, -2, -1}},
	}
	sobel3DX = [3][3][3]float64{
		{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}},
		{{-2, 0, 2}, {-4, 0, 4}, {-2, 0, 2}},
		{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}},
	}
)

const maxUint16 = 65535.0

// Sobel3D convolves every voxel's 3x3x3 neighbourhood with the three Sobel-3D
// kernels, takes the Euclidean norm and rescales it from r into [0, 65535]
// (clamped, rounded to the nearest integer). Neighbours outside the volume
// contribute zero. The result is a 16-bit volume with the input's calibration.
func Sobel3D(vol models.VoxelVolume, r SobelRange, workers int) (*models.Volume, error) {
	if r.Max <= r.Min {
		return nil, fmt.Errorf("%w: sobel range [%g, %g]", models.ErrInvalidInput, r.Min, r.Max)
	}
	src, err := models.Snapshot(vol)
	if err != nil {
		return nil, err
	}
	out, err := models.NewVolume(src.Cols, src.Rows, src.Slices, 16)
	if err != nil {
		return nil, err
	}
	out.VoxelSize = src.VoxelSize

	scale := maxUint16 / (r.Max - r.Min)
	w, h, d := src.Cols, src.Rows, src.Slices

	forEachSlice(d, workers, func(z int) {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var gx, gy, gz float64
				for k := -1; k <= 1; k++ {
					nz := z - k
					if nz < 0 || nz >= d {
						continue
					}
					for i := -1; i <= 1; i++ {
						nx := x - i
						if nx < 0 || nx >= w {
							continue
						}
						for j := -1; j <= 1; j++ {
							ny := y - j
							if ny < 0 || ny >= h {
								continue
							}
							v := src.Data[nz*w*h+ny*w+nx]
							gx += v * sobel3DX[k+1][i+1][j+1]
							gy += v * sobel3DY[k+1][i+1][j+1]
							gz += v * sobel3DZ[k+1][i+1][j+1]
						}
					}
				}

				value := (math.Sqrt(gx*gx+gy*gy+gz*gz) - r.Min) * scale
				value = math.Max(0, math.Min(maxUint16, value))
				out.Data[z*w*h+y*w+x] = math.Floor(value + 0.5)
			}
		}
	})

	return out, nil
}
