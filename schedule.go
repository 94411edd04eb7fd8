package qbo

import (
	"iter"
	"math"
)

// StepSize returns alpha / (1+t)^gamma.
//
// t must be >= 0. gamma == 0 yields the constant rate alpha.
func StepSize(t int, alpha, gamma float64) float64 {
	if gamma == 0 {
		return alpha
	}

	return alpha / math.Pow(float64(1+t), gamma)
}

// StepSchedule is a decaying step-size sequence.
type StepSchedule struct {
	Alpha float64
	Gamma float64
}

// At returns the step size for iteration t.
func (s StepSchedule) At(t int) float64 {
	return StepSize(t, s.Alpha, s.Gamma)
}

// Seq returns the infinite sequence (t, alpha_t) starting at t = 0. Every call
// starts over.
func (s StepSchedule) Seq() iter.Seq2[int, float64] {
	return func(yield func(int, float64) bool) {
		for t := 0; ; t++ {
			if !yield(t, s.At(t)) {
				return
			}
		}
	}
}
