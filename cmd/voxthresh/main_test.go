package main

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSlices(t *testing.T, dir string, depth int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for z := 0; z < depth; z++ {
		img := image.NewGray(image.Rect(0, 0, 4, 4))
		for i := range img.Pix {
			img.Pix[i] = 20
			if i%4 >= 2 {
				img.Pix[i] = 180
			}
		}
		f, err := os.Create(filepath.Join(dir, "s"+string(rune('0'+z))+".png"))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
}

func TestRunExitCodes(t *testing.T) {
	root := t.TempDir()
	writeSlices(t, filepath.Join(root, "stacks", "a"), 2)
	results := filepath.Join(root, "out.csv")

	assert.Equal(t, 1, run(nil), "missing -input")
	assert.Equal(t, 1, run([]string{"-no-such-flag"}))
	assert.Equal(t, 1, run([]string{"-input", root, "-method", "triangle"}))

	code := run([]string{"-input", filepath.Join(root, "stacks"), "-output", results, "-workers", "1"})
	assert.Equal(t, 0, code)
	data, err := os.ReadFile(results)
	require.NoError(t, err)
	assert.Equal(t, "FileName,OptimalThreshold\na,20\n", string(data))

	// a stack with mismatched slice sizes fails alone
	broken := filepath.Join(root, "stacks", "b")
	writeSlices(t, broken, 1)
	f, err := os.Create(filepath.Join(broken, "s1.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 2, 2))))
	require.NoError(t, f.Close())
	assert.Equal(t, 2, run([]string{"-input", filepath.Join(root, "stacks"), "-output", results}))
}

func TestRunCreateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "voxthresh.yaml")
	assert.Equal(t, 0, run([]string{"-create-config", path}))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}
