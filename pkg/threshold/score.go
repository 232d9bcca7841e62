package threshold

import "math"

// Score is an optional candidate score. The zero value is invalid, which
// marks a candidate excluded from the optimum search (an empty class or a
// degenerate variance, for example).
type Score struct {
	value float64
	valid bool
}

// ValidScore wraps v. NaN and infinities yield an invalid score.
func ValidScore(v float64) Score {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Score{}
	}
	return Score{value: v, valid: true}
}

// InvalidScore is an excluded candidate.
func InvalidScore() Score { return Score{} }

func (s Score) Valid() bool { return s.valid }

// Value returns the score, or NaN when invalid.
func (s Score) Value() float64 {
	if !s.valid {
		return math.NaN()
	}
	return s.value
}

// Greater reports whether s is valid and strictly greater than o. Any valid
// score beats an invalid one.
func (s Score) Greater(o Score) bool {
	return s.valid && (!o.valid || s.value > o.value)
}

// Less reports whether s is valid and strictly less than o. Any valid score
// beats an invalid one.
func (s Score) Less(o Score) bool {
	return s.valid && (!o.valid || s.value < o.value)
}
