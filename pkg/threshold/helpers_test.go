package threshold

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"voxthresh/internal/models"
	"voxthresh/pkg/histogram"
)

// bimodalVolume returns a 10x10x10 8-bit volume holding low in the first
// lowCount voxels and high elsewhere.
func bimodalVolume(t *testing.T, lowCount int, low, high float64) *models.Volume {
	t.Helper()
	vol, err := models.NewVolume(10, 10, 10, 8)
	require.NoError(t, err)
	for i := range vol.Data {
		if i < lowCount {
			vol.Data[i] = low
		} else {
			vol.Data[i] = high
		}
	}
	return vol
}

// naiveOtsu scores one candidate with direct loops.
func naiveOtsu(counts []int64, t float64) (float64, bool) {
	k := int(math.Floor(t))
	var total, nB float64
	var sumB, sumF float64
	for i, c := range counts {
		total += float64(c)
		if i <= k {
			nB += float64(c)
			sumB += float64(i) * float64(c)
		} else {
			sumF += float64(i) * float64(c)
		}
	}
	nF := total - nB
	if nB == 0 || nF == 0 {
		return 0, false
	}
	wB, wF := nB/total, nF/total
	d := sumB/nB - sumF/nF
	return wB * wF * d * d, true
}

// naiveEntropy is hB+hW for split k computed term by term.
func naiveEntropy(counts []int64, k int) (float64, bool) {
	var total float64
	for _, c := range counts {
		total += float64(c)
	}
	var pB, nB float64
	for i := 0; i <= k; i++ {
		pB += float64(counts[i]) / total
		nB += float64(counts[i])
	}
	if nB == 0 || nB == total {
		return 0, false
	}
	pW := 1 - pB
	var hB, hW float64
	for i, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		if i <= k {
			hB -= p / pB * math.Log(p/pB)
		} else {
			hW -= p / pW * math.Log(p/pW)
		}
	}
	return hB + hW, true
}

func mustHistogram(t *testing.T, vol models.VoxelVolume) *histogram.Histogram {
	t.Helper()
	h, err := histogram.Build(vol, histogram.Options{Mode: histogram.Integer})
	require.NoError(t, err)
	return h
}
