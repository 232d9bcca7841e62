package threshold

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxthresh/internal/models"
	"voxthresh/pkg/histogram"
)

// TestMaxEntropyOptimality compares the split with a term-by-term evaluation.
func TestMaxEntropyOptimality(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	for trial := 0; trial < 20; trial++ {
		counts := make([]int64, 64)
		for i := range counts {
			if r.IntN(4) > 0 {
				counts[i] = 1 + r.Int64N(100)
			}
		}
		h := histogram.FromCounts(counts)

		k, err := EntropySplit(h)
		require.NoError(t, err)
		chosen, ok := naiveEntropy(counts, k)
		require.True(t, ok)

		for j := range counts {
			if s, ok := naiveEntropy(counts, j); ok {
				assert.GreaterOrEqual(t, chosen, s-1e-9, "trial %d split %d", trial, j)
			}
		}

		res, err := MaxEntropyHistogramThreshold(h)
		require.NoError(t, err)
		assert.Equal(t, float64(k), res.Threshold)
		assert.Len(t, res.Trace.Table("maxentropy").Rows, len(counts))
	}
}

func TestMaxEntropyRestrictsToSweep(t *testing.T) {
	counts := []int64{10, 10, 10, 10, 0, 0, 10, 10, 10, 10}
	h := histogram.FromCounts(counts)

	full, err := EntropySplit(h)
	require.NoError(t, err)

	res, err := MaxEntropySweepThreshold(h, Sweep{Min: 6, Max: 8, Delta: 1})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Threshold, 6.0)
	assert.LessOrEqual(t, res.Threshold, 8.0)
	assert.Len(t, res.Trace.Table("maxentropy").Rows, 3)
	assert.NotEqual(t, float64(full), res.Threshold)
}

func TestMaxEntropyZeroMass(t *testing.T) {
	_, err := EntropySplit(histogram.FromCounts(make([]int64, 8)))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// TestMaxEntropySkipZero masks the background: the remaining single level
// cannot be split and the strategy falls back to 0.
func TestMaxEntropySkipZero(t *testing.T) {
	vol := bimodalVolume(t, 900, 0, 200)
	s := &MaxEntropyStrategy{SkipZero: true}
	res, err := s.FindThreshold(context.Background(), vol, Sweep{Min: 1, Max: 255, Delta: 1})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, SelectDefault, res.Selection)
	assert.Equal(t, 0.0, res.Threshold)
}

// TestMaxEntropySixteenBitIgnoresSweep places both clusters above the 8-bit
// sweep; the strategy must still split the full 16-bit histogram.
func TestMaxEntropySixteenBitIgnoresSweep(t *testing.T) {
	vol, err := models.NewVolume(10, 10, 10, 16)
	require.NoError(t, err)
	for i := range vol.Data {
		if i < 700 {
			vol.Data[i] = float64(1000 + i%7)
		} else {
			vol.Data[i] = float64(3000 + i%5)
		}
	}

	k, err := EntropySplit(mustHistogram(t, vol))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, k, 1000)
	assert.Less(t, k, 3000)

	s, err := New(MethodMaxEntropy, Options{})
	require.NoError(t, err)
	res, err := s.FindThreshold(context.Background(), vol, Sweep{Min: 1, Max: 255, Delta: 1})
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, SelectMaximum, res.Selection)
	assert.Equal(t, float64(k), res.Threshold)
	assert.Len(t, res.Trace.Table("maxentropy").Rows, 1<<16)
}

func TestEntropySplitPerSlice(t *testing.T) {
	vol, err := models.NewVolume(4, 4, 3, 8)
	require.NoError(t, err)
	// slice z holds two levels split at 10*(z+1)
	for z := 0; z < 3; z++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				v := float64(10 * (z + 1))
				if x >= 2 {
					v = 250
				}
				vol.Set(x, y, z, v)
			}
		}
	}

	splits, err := EntropySplitPerSlice(context.Background(), vol, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 30}, splits)

	s := &MaxEntropyStrategy{PerSlice: true}
	res, err := s.FindThreshold(context.Background(), vol, Sweep{Min: 0, Max: 255, Delta: 1})
	require.NoError(t, err)
	table := res.Trace.Table("maxentropy-slices")
	require.NotNil(t, table)
	assert.Equal(t, []float64{10, 20, 30}, table.Column("threshold"))
	assert.Equal(t, []float64{10, 20, 30}, res.SliceThresholds)

	s.PerSlice = false
	res, err = s.FindThreshold(context.Background(), vol, Sweep{Min: 0, Max: 255, Delta: 1})
	require.NoError(t, err)
	assert.Nil(t, res.SliceThresholds)
}
