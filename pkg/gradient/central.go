package gradient

import (
	"math"

	"voxthresh/internal/models"
)

// CentralDifference computes the magnitude of the 3D gradient estimated with
// the kernel [-1/d, 0, 1/d] along each axis, where d is 2 voxels or, with
// useCalibration, twice the physical voxel size. Voxels on the border of an
// axis get a zero derivative along that axis. The output is a 32-bit float
// volume.
func CentralDifference(vol models.VoxelVolume, useCalibration bool, workers int) (*models.Volume, error) {
	src, err := models.Snapshot(vol)
	if err != nil {
		return nil, err
	}
	out, err := models.NewVolume(src.Cols, src.Rows, src.Slices, 32)
	if err != nil {
		return nil, err
	}
	out.VoxelSize = src.VoxelSize

	dx, dy, dz := 2.0, 2.0, 2.0
	if useCalibration {
		c := src.VoxelSize
		if c.X > 0 {
			dx = 2 * c.X
		}
		if c.Y > 0 {
			dy = 2 * c.Y
		}
		if c.Z > 0 {
			dz = 2 * c.Z
		}
	}

	w, h, d := src.Cols, src.Rows, src.Slices
	plane := w * h

	forEachSlice(d, workers, func(z int) {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				idx := z*plane + y*w + x
				var gx, gy, gz float64
				if x > 0 && x < w-1 {
					gx = (src.Data[idx+1] - src.Data[idx-1]) / dx
				}
				if y > 0 && y < h-1 {
					gy = (src.Data[idx+w] - src.Data[idx-w]) / dy
				}
				if z > 0 && z < d-1 {
					gz = (src.Data[idx+plane] - src.Data[idx-plane]) / dz
				}
				out.Data[idx] = math.Sqrt(gx*gx + gy*gy + gz*gz)
			}
		}
	})

	return out, nil
}
