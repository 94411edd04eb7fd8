package qbo

import "math"

// FeasibilityModel estimates whether points satisfy constraints that the
// domain geometry does not encode. It is only read during selection and is
// shared by every restart, so implementations must be safe for concurrent
// reads.
type FeasibilityModel interface {
	// CheckInside reports whether every point is feasible.
	CheckInside(points []Point) bool

	// BinaryIndicator returns 1 when the batch is feasible and 0 otherwise.
	BinaryIndicator(b Batch) float64

	// ExponentialPenalty returns a multiplier in (0, 1] that decays with the
	// amount by which the batch violates the constraints. k controls how
	// quickly it decays.
	ExponentialPenalty(b Batch, k float64) float64
}

// NormBounds is feasible where Lower < ||x|| < Upper. Use math.Inf to leave a
// side unbounded.
type NormBounds struct {
	Lower float64
	Upper float64
}

// NewNormBounds returns a NormBounds model. Pass math.Inf(-1) or math.Inf(1)
// to disable a bound.
func NewNormBounds(lower, upper float64) *NormBounds {
	return &NormBounds{Lower: lower, Upper: upper}
}

func (m *NormBounds) inside(p Point) bool {
	n := norm(p)

	return n > m.Lower && n < m.Upper
}

func (m *NormBounds) violation(p Point) float64 {
	n := norm(p)

	return math.Max(m.Lower-n, 0) + math.Max(n-m.Upper, 0)
}

// CheckInside implements FeasibilityModel.
func (m *NormBounds) CheckInside(points []Point) bool {
	for _, p := range points {
		if !m.inside(p) {
			return false
		}
	}

	return true
}

// BinaryIndicator implements FeasibilityModel.
func (m *NormBounds) BinaryIndicator(b Batch) float64 {
	if m.CheckInside(b) {
		return 1
	}

	return 0
}

// ExponentialPenalty implements FeasibilityModel.
func (m *NormBounds) ExponentialPenalty(b Batch, k float64) float64 {
	var total float64
	for _, p := range b {
		total += m.violation(p)
	}

	return math.Exp(-k * total)
}

// OutCount returns how many points are infeasible.
func (m *NormBounds) OutCount(points []Point) int {
	var out int

	for _, p := range points {
		if !m.inside(p) {
			out++
		}
	}

	return out
}

// feasibilityMultiplier composes the enabled penalties into one factor.
func feasibilityMultiplier(model FeasibilityModel, penalty Penalty, k float64, b Batch) float64 {
	identity := 1.0
	if model == nil {
		return identity
	}

	if penalty.Has(PenaltyNascentMinima) {
		identity *= model.BinaryIndicator(b)
	}

	if penalty.Has(PenaltyBounds) {
		identity *= model.ExponentialPenalty(b, k)
	}

	return identity
}
