package models

import (
	"image"
)

// Slice represents a single 2D plane of an image stack with metadata
type Slice struct {
	// Image is the decoded slice image
	Image image.Image

	// Index is the position of this slice in the sequence
	Index int

	// Filename is the original filename of the slice
	Filename string

	// BitDepth is the sample depth the slice was decoded with (8 or 16)
	BitDepth int
}
