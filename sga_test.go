package qbo

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// downhillOracle scores a batch as -sum(x) but reports the gradient with the
// wrong sign, so ascent makes the score worse.
type downhillOracle struct {
	current Batch
}

func (o *downhillOracle) SetCurrentPoint(b Batch) error {
	o.current = b.Clone()

	return nil
}

func (o *downhillOracle) ComputeValue() (float64, error) {
	var v float64

	for _, p := range o.current {
		for _, x := range p {
			v -= x
		}
	}

	return v, nil
}

func (o *downhillOracle) ComputeGradient() (Batch, error) {
	grad := make(Batch, len(o.current))
	for i, p := range o.current {
		grad[i] = make(Point, len(p))
		for j := range p {
			grad[i][j] = 1
		}
	}

	return grad, nil
}

func (o *downhillOracle) Clone() AcquisitionOracle {
	return &downhillOracle{}
}

func TestAscentKeepsStartOnDivergence(t *testing.T) {
	domain := unitBox(t, 2)

	cfg := testSelectionConfig()
	cfg.StepsPerRestart = 5

	start := domain.GenerateUniformRandomPoints(3, rand.New(rand.NewSource(2)))

	out, _, initial, err := newAscent(cfg, domain, nil).run(start.Clone(), &downhillOracle{}, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	assert.True(t, initial)
	assert.Equal(t, start, out)

	cfg.RejectDivergent = false

	out, _, initial, err = newAscent(cfg, domain, nil).run(start.Clone(), &downhillOracle{}, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	assert.False(t, initial)
	assert.NotEqual(t, start, out)
}

func TestAscentScoreIncludesPenalty(t *testing.T) {
	cfg := testSelectionConfig()
	cfg.Penalty = PenaltyBounds

	a := newAscent(cfg, unitBox(t, 2), fixedFeasibility{penalty: 0.25})

	_, score, _, err := a.run(Batch{{0, 0}}, &constantOracle{value: 2}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-12)
}

func TestAdjustToSatisfyConstraint(t *testing.T) {
	bounds := []ParameterRange[float64]{{Min: -2, Max: 2}, {Min: -2, Max: 2}}
	model := NewNormBounds(-1, 1)

	point, attempts := adjustToSatisfyConstraint(Point{1.25, 0}, []float64{1, 0}, model, bounds)

	assert.Equal(t, 3, attempts)
	assert.True(t, model.CheckInside([]Point{point}))
	assert.InDelta(t, 0.95, point[0], 1e-12)
}

func TestAdjustToSatisfyConstraintIsBounded(t *testing.T) {
	bounds := []ParameterRange[float64]{{Min: -1, Max: 1}}

	point, attempts := adjustToSatisfyConstraint(Point{0.5}, []float64{-100}, fixedFeasibility{inside: false}, bounds)

	assert.Equal(t, maxCorrections, attempts)
	assert.Equal(t, Point{1}, point)
}

func TestConstrainedMoveStaysFeasible(t *testing.T) {
	domain, err := NewTensorProductDomain(
		ParameterRange[float64]{Min: -2, Max: 2},
		ParameterRange[float64]{Min: -2, Max: 2},
	)
	require.NoError(t, err)

	cfg := testSelectionConfig()
	cfg.ConstrainSteps = true

	model := NewNormBounds(-1, 1)
	a := newAscent(cfg, domain, model)

	p := Point{0.5, 0}
	a.move(p, []float64{2, 0})

	assert.True(t, model.CheckInside([]Point{p}))
	assert.InDelta(t, 0.85, p[0], 1e-9)

	// Without the constraint the same step leaves the feasible region.
	cfg.ConstrainSteps = false
	p = Point{0.5, 0}
	newAscent(cfg, domain, model).move(p, []float64{2, 0})

	assert.False(t, model.CheckInside([]Point{p}))
	assert.InDelta(t, 1.85, p[0], 1e-9)
}

func TestSelectNextBatchWithConstrainedSteps(t *testing.T) {
	model := NewNormBounds(-1, 0.8)

	cfg := testSelectionConfig()
	cfg.ConstrainSteps = true
	cfg.Penalty = PenaltyNascentMinima

	batch, _, err := SelectNextBatch(context.Background(), unitBox(t, 2), &quadraticOracle{center: Point{0, 0}}, cfg, model)
	require.NoError(t, err)
	assert.True(t, model.CheckInside(batch))
}

func TestAscentImprovesConcaveSurface(t *testing.T) {
	domain := unitBox(t, 2)
	oracle := &quadraticOracle{center: Point{0.2, -0.6}}

	cfg := testSelectionConfig()
	cfg.RejectDivergent = false

	for seed := int64(0); seed < 10; seed++ {
		start := domain.GenerateUniformRandomPoints(3, rand.New(rand.NewSource(seed)))

		require.NoError(t, oracle.SetCurrentPoint(start))
		before, err := oracle.ComputeValue()
		require.NoError(t, err)

		_, after, initial, err := newAscent(cfg, domain, nil).run(start.Clone(), oracle, rand.New(rand.NewSource(seed)))
		require.NoError(t, err)

		assert.False(t, initial)
		assert.GreaterOrEqual(t, after, before, "seed %d", seed)
	}
}

func TestAscentWithVanishingStepIsIdentity(t *testing.T) {
	domain := unitBox(t, 2)

	cfg := testSelectionConfig()
	cfg.StepAlpha = 1e-300
	cfg.RejectDivergent = false

	start := Batch{{0.5, -0.5}, {0.1, 0.9}}

	out, _, _, err := newAscent(cfg, domain, nil).run(start.Clone(), &quadraticOracle{center: Point{0, 0}}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	for i := range start {
		assert.InDeltaSlice(t, start[i], out[i], 1e-12)
	}
}
