package qbo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTensorProductDomainValidation(t *testing.T) {
	_, err := NewTensorProductDomain[float64]()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewTensorProductDomain(ParameterRange[float64]{Min: 1, Max: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewTensorProductDomain(ParameterRange[float64]{Min: math.NaN(), Max: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	domain, err := NewTensorProductDomain(
		ParameterRange[int]{Min: 1, Max: 100},
		ParameterRange[int]{Min: -3, Max: 3},
	)
	require.NoError(t, err)

	assert.Equal(t, 2, domain.Dim())
	assert.Equal(t, []ParameterRange[float64]{{Min: 1, Max: 100}, {Min: -3, Max: 3}}, domain.Bounds())
}

func TestBoundsReturnsCopy(t *testing.T) {
	domain := unitBox(t, 2)

	b := domain.Bounds()
	b[0].Min = -100

	assert.Equal(t, -1.0, domain.Bounds()[0].Min)
}

func TestContainsAndClamp(t *testing.T) {
	domain := unitBox(t, 2)

	assert.True(t, domain.Contains(Point{1, -1}))
	assert.False(t, domain.Contains(Point{1.01, 0}))
	assert.False(t, domain.Contains(Point{0}))

	p := Point{3, -0.5}
	domain.Clamp(p)
	assert.Equal(t, Point{1, -0.5}, p)
}

func TestGenerateUniformRandomPoints(t *testing.T) {
	domain, err := NewTensorProductDomain(
		ParameterRange[float64]{Min: -5, Max: 10},
		ParameterRange[float64]{Min: 0, Max: 15},
	)
	require.NoError(t, err)

	batch := domain.GenerateUniformRandomPoints(50, rand.New(rand.NewSource(3)))
	require.Len(t, batch, 50)

	for _, p := range batch {
		assert.True(t, domain.Contains(p))
	}

	again := domain.GenerateUniformRandomPoints(50, rand.New(rand.NewSource(3)))
	assert.Equal(t, batch, again)
}

func TestRestrictedUpdateZeroStep(t *testing.T) {
	domain := unitBox(t, 3)

	update := domain.ComputeUpdateRestrictedToDomain(0.9, Point{0.2, -0.9, 1}, []float64{0, 0, 0})
	assert.Equal(t, []float64{0, 0, 0}, update)
}

func TestRestrictedUpdateCapsAtBoundary(t *testing.T) {
	domain := unitBox(t, 2)

	// Towards the upper bound the distance is 0.5; against it, 1.5.
	update := domain.ComputeUpdateRestrictedToDomain(0.5, Point{0.5, 0.5}, []float64{10, -10})
	assert.InDelta(t, 0.25, update[0], 1e-12)
	assert.InDelta(t, -0.75, update[1], 1e-12)

	// Small steps are left alone.
	update = domain.ComputeUpdateRestrictedToDomain(0.5, Point{0.5, 0.5}, []float64{0.1, -0.1})
	assert.Equal(t, []float64{0.1, -0.1}, update)

	// A point on the boundary cannot move outward.
	update = domain.ComputeUpdateRestrictedToDomain(0.9, Point{1, -1}, []float64{1, -1})
	assert.Equal(t, []float64{0, 0}, update)
}

func TestRestrictedUpdateStaysInside(t *testing.T) {
	domain := unitBox(t, 4)
	rng := rand.New(rand.NewSource(9))

	for i := 0; i < 1000; i++ {
		p := domain.GenerateUniformRandomPoints(1, rng)[0]

		step := make([]float64, domain.Dim())
		for j := range step {
			step[j] = rng.NormFloat64() * 5
		}

		update := domain.ComputeUpdateRestrictedToDomain(0.9, p, step)
		for j := range p {
			p[j] += update[j]
		}

		require.True(t, domain.Contains(p), "iteration %d: %v", i, p)
	}
}
