package threshold

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"voxthresh/pkg/histogram"
)

// gaussianCounts places n deterministic samples at the mid-quantiles of a
// normal distribution, rounded to grey levels.
func gaussianCounts(counts []int64, mu, sigma float64, n int) {
	dist := distuv.Normal{Mu: mu, Sigma: sigma}
	for i := 0; i < n; i++ {
		v := int(math.Floor(dist.Quantile((float64(i)+0.5)/float64(n)) + 0.5))
		counts[v]++
	}
}

// TestMinErrorRecoversMidpoint uses two well separated clusters (50 and 200,
// sigma 5). The flat valley between them is a single local minimum whose
// centre lies near the midpoint.
func TestMinErrorRecoversMidpoint(t *testing.T) {
	counts := make([]int64, 256)
	gaussianCounts(counts, 50, 5, 1000)
	gaussianCounts(counts, 200, 5, 1000)

	res, err := MinErrorThreshold(histogram.FromCounts(counts), Sweep{Min: 0, Max: 255, Delta: 1})
	require.NoError(t, err)

	assert.Equal(t, SelectLocalMinimum, res.Selection)
	assert.False(t, res.Fallback)
	assert.InDelta(t, 125, res.Threshold, 5)

	table := res.Trace.Table("minerror")
	require.NotNil(t, table)
	assert.Equal(t, []string{"threshold", "p", "sigmaFg", "sigmaBkg", "score"}, table.Columns)
	assert.Len(t, table.Rows, 256)
}

func TestPlateauMinimum(t *testing.T) {
	v := ValidScore
	x := InvalidScore()

	tests := []struct {
		name   string
		scores []Score
		want   int
		found  bool
	}{
		{"strict dip", []Score{v(3), v(1), v(2)}, 1, true},
		{"flat floor", []Score{v(5), v(1), v(1), v(1), v(1), v(4)}, 2, true},
		{"lowest of two dips", []Score{v(5), v(2), v(5), v(1), v(1), v(6)}, 3, true},
		{"first of equal dips", []Score{v(5), v(2), v(5), v(2), v(5)}, 1, true},
		{"run touching edge", []Score{v(1), v(1), v(2), v(3)}, -1, false},
		{"invalid neighbour", []Score{x, v(1), v(2)}, -1, false},
		{"monotone", []Score{v(1), v(2), v(3), v(4)}, -1, false},
		{"flat shoulder", []Score{v(3), v(2), v(2), v(2)}, -1, false},
		{"all invalid", []Score{x, x, x}, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := plateauMinimum(tt.scores)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestMinErrorGlobalFallback uses a monotone score curve: no interior local
// minimum exists, so the global minimum is reported.
func TestMinErrorGlobalFallback(t *testing.T) {
	counts := make([]int64, 256)
	gaussianCounts(counts, 50, 5, 1000)
	gaussianCounts(counts, 200, 5, 1000)

	// sweep only the falling flank of the first cluster
	res, err := MinErrorThreshold(histogram.FromCounts(counts), Sweep{Min: 60, Max: 70, Delta: 5})
	require.NoError(t, err)
	assert.Equal(t, SelectGlobalMinimum, res.Selection)
	assert.Equal(t, 70.0, res.Threshold)
}

// TestMinErrorDefault returns the sweep minimum when every candidate is
// degenerate.
func TestMinErrorDefault(t *testing.T) {
	h := histogram.FromCounts([]int64{0, 0, 0, 50, 0, 0, 0, 50})
	res, err := MinErrorThreshold(h, Sweep{Min: 1, Max: 6, Delta: 1})
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, 1.0, res.Threshold)
	for _, s := range res.Trace.Table("minerror").Column("score") {
		assert.True(t, math.IsNaN(s))
	}
}

func TestMinErrorZeroMass(t *testing.T) {
	_, err := MinErrorThreshold(histogram.FromCounts(make([]int64, 4)), Sweep{Min: 0, Max: 3, Delta: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
