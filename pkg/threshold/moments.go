package threshold

import (
	"gonum.org/v1/gonum/floats"

	"voxthresh/pkg/histogram"
)

// moments holds running sums over histogram bins [0, k] for every k: the
// occupied-sample count and the zeroth, first and second moments of a weight
// vector about grey level 0.
type moments struct {
	count      []int64
	w, wl, wll []float64
}

// cumulativeMoments accumulates weights, which must have one entry per bin
// of h. The count prefix is exact; the float prefixes sum in bin order.
func cumulativeMoments(h *histogram.Histogram, weights []float64) *moments {
	n := len(weights)
	m := &moments{
		count: make([]int64, n),
		w:     make([]float64, n),
		wl:    make([]float64, n),
		wll:   make([]float64, n),
	}

	var c int64
	levels := make([]float64, n)
	for i, cnt := range h.Counts {
		c += cnt
		m.count[i] = c
		levels[i] = float64(i)
	}

	wl := floats.MulTo(make([]float64, n), weights, levels)
	wll := floats.MulTo(make([]float64, n), wl, levels)
	floats.CumSum(m.w, weights)
	floats.CumSum(m.wl, wl)
	floats.CumSum(m.wll, wll)
	return m
}

// upTo returns the count and moment sums of bins [0, k]; k < 0 is the empty
// class.
func (m *moments) upTo(k int) (n int64, w, wl, wll float64) {
	if k < 0 {
		return 0, 0, 0, 0
	}
	return m.count[k], m.w[k], m.wl[k], m.wll[k]
}

// above returns the sums of bins (k, last].
func (m *moments) above(k int) (n int64, w, wl, wll float64) {
	last := len(m.count) - 1
	n, w, wl, wll = m.upTo(k)
	return m.count[last] - n, m.w[last] - w, m.wl[last] - wl, m.wll[last] - wll
}
