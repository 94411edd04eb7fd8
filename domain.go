package qbo

import (
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/exp/constraints"
)

// Domain is the search region candidate points must stay in.
//
// Implementations must be safe for concurrent use; restarts share one
// domain.
type Domain interface {
	// Dim returns the number of coordinates of a point.
	Dim() int

	// Bounds returns the axis-aligned bounding box of the domain.
	Bounds() []ParameterRange[float64]

	// Contains reports whether p lies inside the domain.
	Contains(p Point) bool

	// GenerateUniformRandomPoints draws n independent uniform points.
	GenerateUniformRandomPoints(n int, rng *rand.Rand) Batch

	// ComputeUpdateRestrictedToDomain turns a raw step into one that keeps
	// point inside the domain. A zero step yields a zero update.
	ComputeUpdateRestrictedToDomain(maxRelativeChange float64, point Point, step []float64) []float64
}

//////
// Const, vars, types.
//////

// TensorProductDomain is the cartesian product of closed intervals.
type TensorProductDomain struct {
	bounds []ParameterRange[float64]
}

//////
// Methods.
//////

// Dim implements Domain.
func (d *TensorProductDomain) Dim() int {
	return len(d.bounds)
}

// Bounds implements Domain. The returned slice is a copy.
func (d *TensorProductDomain) Bounds() []ParameterRange[float64] {
	return append([]ParameterRange[float64](nil), d.bounds...)
}

// Contains implements Domain.
func (d *TensorProductDomain) Contains(p Point) bool {
	if len(p) != len(d.bounds) {
		return false
	}

	for j, b := range d.bounds {
		if p[j] < b.Min || p[j] > b.Max {
			return false
		}
	}

	return true
}

// Clamp moves every coordinate of p onto the nearest point of the domain, in
// place.
func (d *TensorProductDomain) Clamp(p Point) {
	for j, b := range d.bounds {
		p[j] = clamp(p[j], b.Min, b.Max)
	}
}

// GenerateUniformRandomPoints implements Domain.
func (d *TensorProductDomain) GenerateUniformRandomPoints(n int, rng *rand.Rand) Batch {
	out := make(Batch, n)
	for i := range out {
		p := make(Point, len(d.bounds))
		for j, b := range d.bounds {
			p[j] = b.Min + rng.Float64()*b.Length()
		}

		out[i] = p
	}

	return out
}

// ComputeUpdateRestrictedToDomain implements Domain.
//
// Boundaries are axis-aligned, so each coordinate is handled on its own: the
// step is capped at maxRelativeChange times the distance to the boundary it
// is moving towards. With maxRelativeChange <= 1 a point inside the domain
// stays inside.
func (d *TensorProductDomain) ComputeUpdateRestrictedToDomain(maxRelativeChange float64, point Point, step []float64) []float64 {
	update := make([]float64, len(step))

	for j, s := range step {
		if s == 0 {
			continue
		}

		var distance float64
		if s > 0 {
			distance = d.bounds[j].Max - point[j]
		} else {
			distance = point[j] - d.bounds[j].Min
		}

		limit := maxRelativeChange * math.Max(distance, 0)
		if math.Abs(s) > limit {
			s = math.Copysign(limit, s)
		}

		update[j] = s
	}

	return update
}

//////
// Factory.
//////

// NewTensorProductDomain builds a domain from one range per dimension.
//
// Usage example:
//
//	domain, err := NewTensorProductDomain(
//	    ParameterRange[float64]{Min: -5, Max: 10},
//	    ParameterRange[float64]{Min: 0, Max: 15},
//	)
func NewTensorProductDomain[T constraints.Integer | constraints.Float](ranges ...ParameterRange[T]) (*TensorProductDomain, error) {
	if len(ranges) == 0 {
		return nil, invalidConfig("domain needs at least one dimension")
	}

	bounds := make([]ParameterRange[float64], len(ranges))
	for i, r := range ranges {
		lo, hi := float64(r.Min), float64(r.Max)
		if math.IsNaN(lo) || math.IsNaN(hi) || lo >= hi {
			return nil, fmt.Errorf("%w: dimension %d has empty range [%v, %v]", ErrInvalidConfig, i, r.Min, r.Max)
		}

		bounds[i] = ParameterRange[float64]{Min: lo, Max: hi}
	}

	return &TensorProductDomain{bounds: bounds}, nil
}
