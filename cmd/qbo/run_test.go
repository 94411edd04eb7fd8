package main

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/qbo"
	"github.com/thalesfsp/qbo/internal/synthetic"
)

func defaultOpts() runOptions {
	return runOptions{
		problem:      "ParabolicMinAtTwoAndThree",
		initial:      5,
		iterations:   2,
		points:       2,
		restarts:     4,
		steps:        20,
		alpha:        1,
		gamma:        0.7,
		maxRelChange: 0.9,
		annealIters:  10,
		temperature:  1,
		acquisition:  "ei",
		lowerBound:   math.Inf(-1),
		upperBound:   math.Inf(1),
		penaltyK:     4,
		seed:         7,
	}
}

func TestBuildConfigDefaults(t *testing.T) {
	config, problem, ranges, err := buildConfig(defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, "ParabolicMinAtTwoAndThree", problem.Name)
	assert.Len(t, ranges, 2)
	assert.Nil(t, config.Feasibility)
	assert.Equal(t, qbo.PenaltyNone, config.Selection.Penalty)
	assert.Equal(t, qbo.StrategySGA, config.Selection.Strategy)
	assert.Equal(t, 2, config.Selection.BatchSize)
}

func TestBuildConfigFeasibility(t *testing.T) {
	opts := defaultOpts()
	opts.upperBound = 3
	opts.nascentMinima = true
	opts.anneal = true

	config, _, _, err := buildConfig(opts)
	require.NoError(t, err)

	require.NotNil(t, config.Feasibility)
	assert.True(t, config.Selection.Penalty.Has(qbo.PenaltyNascentMinima))
	assert.True(t, config.Selection.Penalty.Has(qbo.PenaltyBounds))
	assert.Equal(t, qbo.StrategyAnnealedSGA, config.Selection.Strategy)
}

func TestBuildConfigErrors(t *testing.T) {
	opts := defaultOpts()
	opts.problem = "unknown"
	_, _, _, err := buildConfig(opts)
	assert.Error(t, err)

	opts = defaultOpts()
	opts.acquisition = "thompson"
	_, _, _, err = buildConfig(opts)
	assert.Error(t, err)

	opts = defaultOpts()
	opts.restarts = 0
	_, _, _, err = buildConfig(opts)
	assert.ErrorIs(t, err, qbo.ErrInvalidConfig)
}

func TestObjectiveRuns(t *testing.T) {
	config, problem, ranges, err := buildConfig(defaultOpts())
	require.NoError(t, err)

	result, err := qbo.Optimize(context.Background(), config, objective(problem), ranges...)
	require.NoError(t, err)

	assert.Equal(t, 5+2*2, result.Evaluations)
	assert.Len(t, result.BestPoint, 2)

	cost, ok := suggestedCost(problem, result)
	require.True(t, ok)

	want, err := problem.Evaluate(result.SuggestedMinimum)
	require.NoError(t, err)
	assert.Equal(t, want, cost)
	assert.GreaterOrEqual(t, cost, problem.Minimum)
}

func TestSuggestedCostWithoutSuggestion(t *testing.T) {
	problem, err := synthetic.Lookup("Branin")
	require.NoError(t, err)

	_, ok := suggestedCost(problem, &qbo.Result{})
	assert.False(t, ok)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer

	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), version)
}
