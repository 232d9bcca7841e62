package segmentation

import (
	"context"

	"voxthresh/internal/models"
)

// ComponentSizes labels the foreground of vol at t and returns the voxel
// count of every 6-connected component in scan order.
func ComponentSizes(ctx context.Context, vol *models.Volume, t float64) ([]int, error) {
	_, sizes, err := Label(ctx, vol, t)
	return sizes, err
}

// Label assigns component ids starting at 1 to foreground voxels (0 is
// background). sizes[id-1] is the voxel count of component id. The
// context is checked once per z-slice.
func Label(ctx context.Context, vol *models.Volume, t float64) ([]int32, []int, error) {
	w, h, d := vol.Cols, vol.Rows, vol.Slices
	plane := w * h
	labels := make([]int32, len(vol.Data))
	var sizes []int
	var stack []int

	for z := 0; z < d; z++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for i := z * plane; i < (z+1)*plane; i++ {
			if labels[i] != 0 || !(vol.Data[i] > t) {
				continue
			}

			id := int32(len(sizes) + 1)
			size := 0
			labels[i] = id
			stack = append(stack[:0], i)

			visit := func(q int) {
				if labels[q] == 0 && vol.Data[q] > t {
					labels[q] = id
					stack = append(stack, q)
				}
			}
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				size++

				x := p % w
				y := (p / w) % h
				pz := p / plane

				if x > 0 {
					visit(p - 1)
				}
				if x < w-1 {
					visit(p + 1)
				}
				if y > 0 {
					visit(p - w)
				}
				if y < h-1 {
					visit(p + w)
				}
				if pz > 0 {
					visit(p - plane)
				}
				if pz < d-1 {
					visit(p + plane)
				}
			}
			sizes = append(sizes, size)
		}
	}
	return labels, sizes, nil
}
