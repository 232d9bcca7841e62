// Package stack loads voxel volumes from directories of 2D slice images.
// Slices are ordered by the number embedded in their filenames.
package stack

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"
	"golang.org/x/sync/errgroup"

	"voxthresh/internal/models"
)

// DefaultExtensions are the slice formats Load accepts.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff"}

// Options configure Load.
type Options struct {
	// Extensions filters slice files (lower case, with dot).
	Extensions []string

	// BitDepth overrides the depth detected from the images when non-zero.
	BitDepth int

	// Calibration is attached to the volume; a zero value means unit spacing.
	Calibration models.Calibration

	// Workers bounds concurrent decoding; <= 0 means unbounded.
	Workers int
}

// Load reads every slice image in dir into a volume.
func Load(dir string, opts Options) (*models.Volume, error) {
	slices, err := LoadSlices(dir, opts)
	if err != nil {
		return nil, err
	}
	return Assemble(slices, opts)
}

// LoadSlices decodes the slice images of dir in filename-number order.
func LoadSlices(dir string, opts Options) ([]models.Slice, error) {
	names, err := sliceFiles(dir, opts.Extensions)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no slice images found in %s", models.ErrInvalidInput, dir)
	}

	slices := make([]models.Slice, len(names))
	var g errgroup.Group
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			img, err := loadImage(filepath.Join(dir, name))
			if err != nil {
				return fmt.Errorf("failed to load image %s: %w", name, err)
			}
			slices[i] = models.Slice{Image: img, Index: i, Filename: name, BitDepth: sampleDepth(img)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices, nil
}

// Assemble stacks decoded slices into a volume. All slices must share the
// dimensions of the first one.
func Assemble(slices []models.Slice, opts Options) (*models.Volume, error) {
	if len(slices) == 0 {
		return nil, fmt.Errorf("%w: no slices", models.ErrInvalidInput)
	}
	bounds := slices[0].Image.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	bits := opts.BitDepth
	if bits == 0 {
		for _, s := range slices {
			bits = max(bits, s.BitDepth)
		}
	}

	vol, err := models.NewVolume(width, height, len(slices), bits)
	if err != nil {
		return nil, err
	}
	if opts.Calibration != (models.Calibration{}) {
		vol.VoxelSize = opts.Calibration
	}

	plane := width * height
	for z, s := range slices {
		b := s.Image.Bounds()
		if b.Dx() != width || b.Dy() != height {
			return nil, fmt.Errorf("%w: slice %s is %dx%d, expected %dx%d",
				models.ErrInvalidInput, s.Filename, b.Dx(), b.Dy(), width, height)
		}
		imageToFloat(s.Image, vol.Data[z*plane:(z+1)*plane], bits)
	}
	return vol, nil
}

// List returns the stack directories under root: root itself when it holds
// slice images, otherwise every immediate subdirectory that does, sorted by
// name.
func List(root string, extensions []string) ([]string, error) {
	names, err := sliceFiles(root, extensions)
	if err != nil {
		return nil, err
	}
	if len(names) > 0 {
		return []string{root}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		files, err := sliceFiles(dir, extensions)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func sliceFiles(dir string, extensions []string) ([]string, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range extensions {
			if ext == want {
				files = append(files, e.Name())
				break
			}
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		ni, nj := extractNumber(files[i]), extractNumber(files[j])
		if ni != nj {
			return ni < nj
		}
		return files[i] < files[j]
	})
	return files, nil
}

// extractNumber concatenates the digits of a filename.
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}

	if digits.Len() > 0 {
		num, err := strconv.Atoi(digits.String())
		if err == nil {
			return num
		}
	}
	return 0
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Decode(file)
	case ".jpg", ".jpeg":
		return jpeg.Decode(file)
	case ".tif", ".tiff":
		return tiff.Decode(file)
	default:
		img, _, err := image.Decode(file)
		return img, err
	}
}

// sampleDepth is 16 for 16-bit image models and 8 otherwise.
func sampleDepth(img image.Image) int {
	switch img.ColorModel() {
	case color.Gray16Model, color.RGBA64Model, color.NRGBA64Model:
		return 16
	default:
		return 8
	}
}

// imageToFloat writes the grey level of every pixel into dst, scaled to the
// requested bit depth.
func imageToFloat(img image.Image, dst []float64, bits int) {
	bounds := img.Bounds()
	width := bounds.Dx()

	switch im := img.(type) {
	case *image.Gray:
		if bits == 8 {
			for y := 0; y < bounds.Dy(); y++ {
				for x := 0; x < width; x++ {
					dst[y*width+x] = float64(im.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
				}
			}
			return
		}
	case *image.Gray16:
		if bits == 16 {
			for y := 0; y < bounds.Dy(); y++ {
				for x := 0; x < width; x++ {
					dst[y*width+x] = float64(im.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y)
				}
			}
			return
		}
	}

	// generic path: 16-bit luminance shifted down to the target depth
	shift := max(0, 16-bits)
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < width; x++ {
			g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			dst[y*width+x] = float64(g.Y >> shift)
		}
	}
}
