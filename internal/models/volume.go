package models

import (
	"fmt"
)

// Calibration holds the physical voxel spacing of a volume.
type Calibration struct {
	X, Y, Z float64
	Unit    string
}

// DefaultCalibration is the unit spacing used when a stack carries no metadata.
func DefaultCalibration() Calibration {
	return Calibration{X: 1, Y: 1, Z: 1, Unit: "pixel"}
}

// VoxelVolume is read-only access to a 3D scalar grid.
//
// Voxel must only be called with 0 <= x < Width(), 0 <= y < Height() and
// 0 <= z < Depth().
type VoxelVolume interface {
	Width() int
	Height() int
	Depth() int
	BitDepth() int
	Voxel(x, y, z int) float64
	Calibration() Calibration
}

// Volume is an in-memory VoxelVolume stored as a flat slice in row-major
// order: index = z*Cols*Rows + y*Cols + x.
type Volume struct {
	// Data is the 3D volume data as a 1D array in row-major order
	Data []float64

	// Cols, Rows and Slices are the extents along x, y and z
	Cols, Rows, Slices int

	// Bits is the nominal sample depth (8, 16 or 32)
	Bits int

	// VoxelSize is the physical size of each voxel
	VoxelSize Calibration
}

// NewVolume allocates a zero-filled volume.
func NewVolume(width, height, depth, bitDepth int) (*Volume, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("%w: volume extents %dx%dx%d", ErrInvalidInput, width, height, depth)
	}
	return &Volume{
		Data:      make([]float64, width*height*depth),
		Cols:      width,
		Rows:      height,
		Slices:    depth,
		Bits:      bitDepth,
		VoxelSize: DefaultCalibration(),
	}, nil
}

func (v *Volume) Width() int               { return v.Cols }
func (v *Volume) Height() int              { return v.Rows }
func (v *Volume) Depth() int               { return v.Slices }
func (v *Volume) BitDepth() int            { return v.Bits }
func (v *Volume) Calibration() Calibration { return v.VoxelSize }

// Index returns the flat offset of (x, y, z).
func (v *Volume) Index(x, y, z int) int {
	return z*v.Cols*v.Rows + y*v.Cols + x
}

func (v *Volume) Voxel(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores a value at (x, y, z).
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// Len is the number of voxels.
func (v *Volume) Len() int {
	return len(v.Data)
}

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	out := *v
	out.Data = make([]float64, len(v.Data))
	copy(out.Data, v.Data)
	return &out
}

// Validate checks that the extents match the backing buffer.
func (v *Volume) Validate() error {
	if v.Cols <= 0 || v.Rows <= 0 || v.Slices <= 0 {
		return fmt.Errorf("%w: volume extents %dx%dx%d", ErrInvalidInput, v.Cols, v.Rows, v.Slices)
	}
	if len(v.Data) != v.Cols*v.Rows*v.Slices {
		return fmt.Errorf("%w: buffer holds %d voxels, extents need %d",
			ErrInvalidInput, len(v.Data), v.Cols*v.Rows*v.Slices)
	}
	return nil
}

// Snapshot copies any VoxelVolume into a private flat buffer. The result never
// aliases the source, so later writes to either side are invisible to the other.
func Snapshot(src VoxelVolume) (*Volume, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil volume", ErrInvalidInput)
	}
	if v, ok := src.(*Volume); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
		return v.Clone(), nil
	}

	out, err := NewVolume(src.Width(), src.Height(), src.Depth(), src.BitDepth())
	if err != nil {
		return nil, err
	}
	out.VoxelSize = src.Calibration()
	i := 0
	for z := 0; z < out.Slices; z++ {
		for y := 0; y < out.Rows; y++ {
			for x := 0; x < out.Cols; x++ {
				out.Data[i] = src.Voxel(x, y, z)
				i++
			}
		}
	}
	return out, nil
}

// Flat returns a flat view of src, copying only when src is not already a
// *Volume. Callers must treat the result as read-only.
func Flat(src VoxelVolume) (*Volume, error) {
	if v, ok := src.(*Volume); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
		return v, nil
	}
	return Snapshot(src)
}
