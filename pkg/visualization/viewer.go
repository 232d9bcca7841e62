// Package visualization renders volumes and threshold masks as 2D slice
// images along any axis.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"voxthresh/internal/models"
)

// Viewer extracts and saves orthogonal slices of a volume. Voxel values are
// mapped onto 16-bit grey so that 0 is black and the volume's full range is
// white.
type Viewer struct {
	vol models.VoxelVolume

	// scale maps a voxel value onto [0, 65535]
	scale float64
}

// NewViewer creates a viewer for vol. Integer bit depths use their nominal
// range; anything else is scaled by the largest voxel.
func NewViewer(vol models.VoxelVolume) (*Viewer, error) {
	if vol == nil || vol.Width() <= 0 || vol.Height() <= 0 || vol.Depth() <= 0 {
		return nil, fmt.Errorf("%w: empty volume", models.ErrInvalidInput)
	}

	var peak float64
	switch bits := vol.BitDepth(); {
	case bits >= 1 && bits <= 16:
		peak = float64(int(1)<<bits - 1)
	default:
		for z := 0; z < vol.Depth(); z++ {
			for y := 0; y < vol.Height(); y++ {
				for x := 0; x < vol.Width(); x++ {
					peak = math.Max(peak, vol.Voxel(x, y, z))
				}
			}
		}
	}

	v := &Viewer{vol: vol}
	if peak > 0 {
		v.scale = 65535 / peak
	}
	return v, nil
}

func (v *Viewer) grey(x, y, z int) color.Gray16 {
	value := math.Max(0, math.Min(65535, v.vol.Voxel(x, y, z)*v.scale))
	return color.Gray16{Y: uint16(math.Round(value))}
}

func (v *Viewer) extent(axis string) (int, error) {
	switch axis {
	case "x", "X":
		return v.vol.Width(), nil
	case "y", "Y":
		return v.vol.Height(), nil
	case "z", "Z":
		return v.vol.Depth(), nil
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis.
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	n, err := v.extent(axis)
	if err != nil {
		return nil, err
	}
	if position < 0 || position >= n {
		return nil, fmt.Errorf("position %d outside [0, %d) along %s", position, n, axis)
	}

	w, h, d := v.vol.Width(), v.vol.Height(), v.vol.Depth()
	var img *image.Gray16

	switch axis {
	case "x", "X":
		// YZ plane
		img = image.NewGray16(image.Rect(0, 0, d, h))
		for y := 0; y < h; y++ {
			for z := 0; z < d; z++ {
				img.SetGray16(z, y, v.grey(position, y, z))
			}
		}

	case "y", "Y":
		// XZ plane
		img = image.NewGray16(image.Rect(0, 0, w, d))
		for z := 0; z < d; z++ {
			for x := 0; x < w; x++ {
				img.SetGray16(x, z, v.grey(x, position, z))
			}
		}

	default:
		img = image.NewGray16(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetGray16(x, y, v.grey(x, y, position))
			}
		}
	}

	return img, nil
}

// ExtractRegion copies a 3D subregion of the volume.
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) (*models.Volume, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	if startX+sizeX > v.vol.Width() || startY+sizeY > v.vol.Height() || startZ+sizeZ > v.vol.Depth() {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	region, err := models.NewVolume(sizeX, sizeY, sizeZ, v.vol.BitDepth())
	if err != nil {
		return nil, err
	}
	region.VoxelSize = v.vol.Calibration()

	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				region.Set(x, y, z, v.vol.Voxel(startX+x, startY+y, startZ+z))
			}
		}
	}
	return region, nil
}

// SaveSlice writes img as PNG, or as JPEG when filename ends in .jpg/.jpeg.
func SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(file, img)
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// SaveSliceSequence extracts every slice along axis and saves them as
// <prefix>_<axis>_<pos>.png in outputDir.
func (v *Viewer) SaveSliceSequence(axis, prefix, outputDir string) error {
	n, err := v.extent(axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	if prefix == "" {
		prefix = "slice"
	}

	for pos := 0; pos < n; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s_%03d.png", prefix, strings.ToLower(axis), pos))
		if err := SaveSlice(img, filename); err != nil {
			return err
		}
	}
	return nil
}
