package qbo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bowlOracle(t *testing.T, acq AcquisitionFunc) *SurrogateOracle {
	t.Helper()

	history := make([]Observation, len(bowlPoints))
	best := 0.0

	for i, x := range bowlPoints {
		history[i] = Observation{Point: x, Value: bowl(x), Feasible: true}
		if i == 0 || history[i].Value < best {
			best = history[i].Value
		}
	}

	oracle, err := NewSurrogateOracle(history,
		[]ParameterRange[float64]{{Min: 0, Max: 1}, {Min: 0, Max: 1}},
		DefaultKernelParams(), acq, AcquisitionParams{Xi: 0.01, Beta: 2, BestSoFar: best})
	require.NoError(t, err)

	return oracle
}

func TestSurrogateOracleNeedsCurrentPoint(t *testing.T) {
	oracle := bowlOracle(t, nil)

	_, err := oracle.ComputeValue()
	assert.ErrorIs(t, err, ErrNoCurrentPoint)

	_, err = oracle.ComputeGradient()
	assert.ErrorIs(t, err, ErrNoCurrentPoint)
}

func TestSurrogateOracleRejectsBadBatch(t *testing.T) {
	oracle := bowlOracle(t, nil)

	assert.ErrorIs(t, oracle.SetCurrentPoint(Batch{{0.5}}), ErrOracle)
}

func TestSurrogateOracleGradient(t *testing.T) {
	const h = 1e-5

	for name, acq := range map[string]AcquisitionFunc{
		"ei":  ExpectedImprovement,
		"pi":  ProbabilityOfImprovement,
		"ucb": UCB,
	} {
		t.Run(name, func(t *testing.T) {
			oracle := bowlOracle(t, acq)
			batch := Batch{{0.35, 0.45}, {0.7, 0.25}}

			require.NoError(t, oracle.SetCurrentPoint(batch))

			grad, err := oracle.ComputeGradient()
			require.NoError(t, err)
			require.Len(t, grad, len(batch))

			for i := range batch {
				for j := range batch[i] {
					up, down := batch.Clone(), batch.Clone()
					up[i][j] += h
					down[i][j] -= h

					require.NoError(t, oracle.SetCurrentPoint(up))
					vUp, err := oracle.ComputeValue()
					require.NoError(t, err)

					require.NoError(t, oracle.SetCurrentPoint(down))
					vDown, err := oracle.ComputeValue()
					require.NoError(t, err)

					assert.InDelta(t, (vUp-vDown)/(2*h), grad[i][j], 1e-3, "point %d coord %d", i, j)
				}
			}
		})
	}
}

func TestSurrogateOracleValueIsSumOverPoints(t *testing.T) {
	oracle := bowlOracle(t, ExpectedImprovement)
	a, b := Point{0.35, 0.45}, Point{0.7, 0.25}

	value := func(batch Batch) float64 {
		require.NoError(t, oracle.SetCurrentPoint(batch))

		v, err := oracle.ComputeValue()
		require.NoError(t, err)

		return v
	}

	assert.InDelta(t, value(Batch{a})+value(Batch{b}), value(Batch{a, b}), 1e-12)
}

func TestSurrogateOracleCloneIsIndependent(t *testing.T) {
	oracle := bowlOracle(t, ExpectedImprovement)
	require.NoError(t, oracle.SetCurrentPoint(Batch{{0.35, 0.45}}))

	before, err := oracle.ComputeValue()
	require.NoError(t, err)

	clone := oracle.Clone()
	require.NoError(t, clone.SetCurrentPoint(Batch{{0.9, 0.9}}))

	after, err := oracle.ComputeValue()
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestMeanOracleGradient(t *testing.T) {
	const h = 1e-5

	oracle := &meanOracle{post: fittedBowl(t)}
	batch := Batch{{0.35, 0.45}, {0.7, 0.25}}

	require.NoError(t, oracle.SetCurrentPoint(batch))

	grad, err := oracle.ComputeGradient()
	require.NoError(t, err)

	for i := range batch {
		for j := range batch[i] {
			up, down := batch.Clone(), batch.Clone()
			up[i][j] += h
			down[i][j] -= h

			require.NoError(t, oracle.SetCurrentPoint(up))
			vUp, err := oracle.ComputeValue()
			require.NoError(t, err)

			require.NoError(t, oracle.SetCurrentPoint(down))
			vDown, err := oracle.ComputeValue()
			require.NoError(t, err)

			assert.InDelta(t, (vUp-vDown)/(2*h), grad[i][j], 1e-4, "point %d coord %d", i, j)
		}
	}
}

func TestSuggestMinimum(t *testing.T) {
	post := fittedBowl(t)

	domain, err := NewTensorProductDomain(
		ParameterRange[float64]{Min: 0, Max: 1},
		ParameterRange[float64]{Min: 0, Max: 1},
	)
	require.NoError(t, err)

	cfg := testSelectionConfig()
	cfg.NumRestarts = 20
	cfg.StepsPerRestart = 200

	// Options that only make sense for batch selection are ignored.
	cfg.Strategy = StrategyAnnealedSGA
	cfg.Penalty = PenaltyBounds

	point, mean, err := suggestMinimum(context.Background(), post, domain, cfg)
	require.NoError(t, err)
	require.Len(t, point, 2)
	assert.True(t, domain.Contains(point))

	predicted, _, err := post.Predict(point)
	require.NoError(t, err)
	assert.InDelta(t, predicted, mean, 1e-12)

	// Nothing the model has seen is predicted lower.
	for _, x := range bowlPoints {
		m, _, err := post.Predict(x)
		require.NoError(t, err)

		assert.LessOrEqual(t, mean, m+1e-9, "training point %v", x)
	}
}
