package histogram

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"voxthresh/internal/models"
)

func volumeOf(t *testing.T, w, h, d, bitDepth int, values ...float64) *models.Volume {
	t.Helper()
	v, err := models.NewVolume(w, h, d, bitDepth)
	require.NoError(t, err)
	require.Len(t, values, w*h*d)
	copy(v.Data, values)
	return v
}

// TestIntegerConservation checks that counts sum to the number of qualifying voxels.
func TestIntegerConservation(t *testing.T) {
	vol := volumeOf(t, 4, 2, 2, 8,
		0, 0, 1, 2,
		3, 3, 3, 255,
		0, 7, 7, 7,
		200, 0, 9.7, 1)

	h, err := Build(vol, Options{Mode: Integer})
	require.NoError(t, err)
	assert.Equal(t, 256, h.Len())
	assert.Equal(t, int64(16), h.Total())
	assert.Equal(t, int64(4), h.Counts[0])
	assert.Equal(t, int64(1), h.Counts[9], "fractional values truncate")
	assert.Equal(t, 255, h.NBins)

	masked, err := Build(vol, Options{Mode: Integer, SkipZero: true})
	require.NoError(t, err)
	assert.Equal(t, int64(12), masked.Total())
	assert.Zero(t, masked.Counts[0])
}

func TestIntegerRejectsOutOfDomain(t *testing.T) {
	vol := volumeOf(t, 2, 1, 1, 8, 10, 256)
	_, err := Build(vol, Options{Mode: Integer})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	neg := volumeOf(t, 2, 1, 1, 8, -1, 0)
	_, err = Build(neg, Options{Mode: Integer})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestIntegerRejectsUnsupportedDepth(t *testing.T) {
	vol := volumeOf(t, 1, 1, 1, 32, 0)
	_, err := Build(vol, Options{Mode: Integer})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

// TestRescaledBinning verifies the linear mapping onto nBins+1 bins.
func TestRescaledBinning(t *testing.T) {
	h, err := FromSamples([]float64{0, -3, 10, 20, 15, 110}, 10)
	require.NoError(t, err)

	assert.Equal(t, 11, h.Len())
	assert.Equal(t, 10.0, h.MinValue)
	assert.Equal(t, 110.0, h.MaxValue)
	assert.InDelta(t, 0.1, h.Rescale, 1e-12)

	want := make([]int64, 11)
	want[0] = 1  // 10
	want[1] = 2  // 15 rounds half up, 20 lands exactly
	want[10] = 1 // 110
	if diff := cmp.Diff(want, h.Counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(4), h.Total())
}

func TestRescaledSingleValue(t *testing.T) {
	h, err := FromSamples([]float64{5, 5, 5}, DefaultBins)
	require.NoError(t, err)
	assert.Equal(t, int64(3), h.Counts[0])
	assert.Equal(t, DefaultBins+1, h.Len())
}

// TestRescaledDegenerate fails when nothing is strictly positive.
func TestRescaledDegenerate(t *testing.T) {
	vol := volumeOf(t, 2, 2, 1, 16, 0, 0, 0, 0)
	_, err := Build(vol, Options{Mode: Rescaled})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = FromSamples([]float64{1}, 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestPositiveSamplesSorted(t *testing.T) {
	vol := volumeOf(t, 3, 2, 1, 16, 9, 0, 3, 0, 7, 1)
	got := PositiveSamples(vol)
	assert.Equal(t, []float64{1, 3, 7, 9}, got)
}

func TestProbabilities(t *testing.T) {
	h := FromCounts([]int64{1, 3, 0, 4})
	p := h.Probabilities()
	assert.InDeltaSlice(t, []float64{0.125, 0.375, 0, 0.5}, p, 1e-15)
	assert.Nil(t, FromCounts(make([]int64, 4)).Probabilities())
}

// TestBuildDoesNotMutate ensures the input volume is only read.
func TestBuildDoesNotMutate(t *testing.T) {
	vol := volumeOf(t, 2, 2, 1, 8, 4, 0, 8, 2)
	before := vol.Clone()
	_, err := Build(vol, Options{Mode: Integer})
	require.NoError(t, err)
	_, err = Build(vol, Options{Mode: Rescaled, Bins: 4})
	require.NoError(t, err)
	assert.Equal(t, before.Data, vol.Data)
}

// TestRescaledMatchesStatHistogram cross-checks the round-half-up binning
// against gonum's divider-based histogram. Samples 1..100 over 10 bins never
// land on a bin edge.
func TestRescaledMatchesStatHistogram(t *testing.T) {
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = float64(i + 1)
	}
	const bins = 10
	h, err := FromSamples(samples, bins)
	require.NoError(t, err)

	width := 1 / h.Rescale
	dividers := make([]float64, bins+2)
	for i := range dividers {
		dividers[i] = h.MinValue + (float64(i)-0.5)*width
	}
	want := stat.Histogram(nil, dividers, samples, nil)

	got := h.Floats()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bin counts mismatch (-stat +ours):\n%s", diff)
	}
	assert.Equal(t, int64(len(samples)), h.Total())
}
