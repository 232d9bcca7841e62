package threshold

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxthresh/pkg/histogram"
)

// TestOtsuOptimality cross-checks the chosen candidate against a brute-force
// evaluation of every candidate.
func TestOtsuOptimality(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 20; trial++ {
		counts := make([]int64, 256)
		for i := range counts {
			if r.IntN(3) > 0 {
				counts[i] = r.Int64N(200)
			}
		}
		h := histogram.FromCounts(counts)
		sweep := Sweep{Min: 0, Max: 255, Delta: 1}

		res, err := OtsuThreshold(h, sweep)
		require.NoError(t, err)
		require.False(t, res.Fallback)

		chosen, ok := naiveOtsu(counts, res.Threshold)
		require.True(t, ok)
		for i := 0; i < sweep.Len(); i++ {
			if s, ok := naiveOtsu(counts, sweep.At(i)); ok {
				assert.GreaterOrEqual(t, chosen, s-1e-9*s, "trial %d candidate %g", trial, sweep.At(i))
			}
		}
	}
}

func TestOtsuSeparatesTwoLevels(t *testing.T) {
	h := mustHistogram(t, bimodalVolume(t, 600, 40, 160))
	res, err := OtsuThreshold(h, Sweep{Min: 0, Max: 255, Delta: 1})
	require.NoError(t, err)

	assert.Equal(t, 40.0, res.Threshold)
	assert.Equal(t, SelectMaximum, res.Selection)
}

// TestOtsuEmptyClassesNeverWin checks the guarded edge of the sweep.
func TestOtsuEmptyClassesNeverWin(t *testing.T) {
	h := histogram.FromCounts([]int64{0, 0, 5, 0, 5, 0, 0, 0})
	res, err := OtsuThreshold(h, Sweep{Min: 0, Max: 7, Delta: 1})
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Threshold)

	scores := res.Trace.Table("otsu").Column("score")
	assert.True(t, math.IsNaN(scores[0]))
	assert.True(t, math.IsNaN(scores[1]))
	assert.True(t, math.IsNaN(scores[4]))
	assert.True(t, math.IsNaN(scores[7]))
}

func TestOtsuFallsBackOnSingleLevel(t *testing.T) {
	h := histogram.FromCounts([]int64{0, 9, 0, 0})
	res, err := OtsuThreshold(h, Sweep{Min: 2, Max: 3, Delta: 1})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, 2.0, res.Threshold)
	assert.Equal(t, SelectDefault, res.Selection)
}

func TestOtsuZeroMass(t *testing.T) {
	_, err := OtsuThreshold(histogram.FromCounts(make([]int64, 16)), Sweep{Min: 0, Max: 15, Delta: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
