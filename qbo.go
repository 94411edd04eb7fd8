package qbo

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

//////
// Exported functionalities.
//////

// Optimize minimises objective over the box defined by ranges with batch
// Bayesian optimization.
//
// Parameters:
// - ctx: Checked between rounds; a cancelled context stops the loop and
//   returns the result so far together with ctx.Err()
// - config: OptimizationConfig controlling the optimization process
// - objective: The expensive function to minimise
// - ranges: One ParameterRange per dimension
//
// Returns:
// - *Result: Best feasible point and value, plus the full history
// - error: ErrInvalidConfig, ErrIllConditioned, ErrOptimizationExhausted
//   or ctx.Err()
//
// Usage example:
//
//	config := DefaultConfig()
//	config.Selection.BatchSize = 4
//
//	result, err := Optimize(ctx, config, func(x Point) (float64, error) {
//	    return (x[0]-2)*(x[0]-2) + (x[1]-3)*(x[1]-3), nil
//	}, ParameterRange[float64]{Min: -5, Max: 5}, ParameterRange[float64]{Min: -5, Max: 5})
//
// How it works:
// 1. Evaluates InitialSamples uniform random points
// 2. For each iteration:
//   - Fits the Gaussian process to every observation
//   - Selects Selection.BatchSize points with SelectNextBatch
//   - Evaluates the batch and adds it to the model
//
// 3. Returns the best feasible point found
//
// Important notes:
// - Failed objective evaluations are recorded with a large finite penalty so
//   the surrogate learns to avoid them
// - With a feasibility model only feasible points can become the best
// - Every round reseeds selection from Selection.Seed, so runs with the same
//   seed and a deterministic objective are reproducible
func Optimize(
	ctx context.Context,
	config OptimizationConfig,
	objective ObjectiveFunc,
	ranges ...ParameterRange[float64],
) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if objective == nil {
		return nil, invalidConfig("objective is required")
	}

	domain, err := NewTensorProductDomain(ranges...)
	if err != nil {
		return nil, err
	}

	logger := loggerOrDefault(config.Logger)
	rng := rand.New(rand.NewSource(config.Selection.Seed))
	gp := newGaussianProcess(config.Kernel, domain.Bounds())
	result := &Result{BestValue: math.Inf(1)}

	// evaluate runs the objective once and records the observation.
	evaluate := func(p Point) Observation {
		value, err := objective(p)
		result.Evaluations++

		obs := Observation{
			Point:    append(Point(nil), p...),
			Value:    value,
			Feasible: config.Feasibility == nil || config.Feasibility.CheckInside([]Point{p}),
		}

		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			logger.Warn("Objective evaluation failed", "point", p, "error", err)

			obs.Value = failurePenalty
			obs.Failed = true
		}

		if !obs.Feasible {
			result.InfeasibleCount++
		}

		gp.Update(obs.Point, obs.Value)
		result.History = append(result.History, obs)

		if obs.Feasible && !obs.Failed && obs.Value < result.BestValue {
			result.BestValue = obs.Value
			result.BestPoint = obs.Point
		}

		return obs
	}

	// Helper function to send progress updates.
	sendProgress := func(phase string, iteration, total int, batch Batch, acq float64, infeasible int) {
		if config.ProgressChan == nil {
			return
		}

		update := ProgressUpdate{
			Phase:            phase,
			CurrentIteration: iteration,
			TotalIterations:  total,
			CurrentBatch:     batch.Clone(),
			AcquisitionValue: acq,
			CurrentBest:      result.BestValue,
			CurrentBestPoint: append(Point(nil), result.BestPoint...),
			Infeasible:       infeasible,
		}

		select {
		case config.ProgressChan <- update:
		default:
			// Skip update if channel is full.
		}
	}

	// Phase 1: Initial random sampling.
	initial := domain.GenerateUniformRandomPoints(config.InitialSamples, rng)
	for i, p := range initial {
		obs := evaluate(p)

		infeasible := 0
		if !obs.Feasible {
			infeasible = 1
		}

		sendProgress("InitialSampling", i+1, config.InitialSamples, Batch{p}, 0, infeasible)
	}

	logger.Info("Initial sampling finished",
		"samples", config.InitialSamples,
		"best", result.BestValue,
		"infeasible", result.InfeasibleCount,
	)

	// suggest records the minimiser of the posterior mean over every
	// observation so far. Failures are logged and leave the previous
	// suggestion in place.
	suggest := func(round int) {
		post, err := gp.Posterior()
		if err == nil {
			selection := config.Selection
			selection.Seed = config.Selection.Seed + int64(round)

			if selection.Logger == nil {
				selection.Logger = config.Logger
			}

			var (
				point Point
				mean  float64
			)

			point, mean, err = suggestMinimum(ctx, post, domain, selection)
			if err == nil {
				result.SuggestedMinimum, result.SuggestedValue = point, mean

				return
			}
		}

		logger.Warn("Suggested minimum unavailable", "round", round, "error", err)
	}

	if config.Iterations == 0 {
		suggest(0)
	}

	// Phase 2: Batch Bayesian optimization loop.
	for s := 0; s < config.Iterations; s++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		started := time.Now()

		post, err := gp.Posterior()
		if err != nil {
			return result, fmt.Errorf("iteration %d: %w", s, err)
		}

		params := config.AcqParams
		params.BestSoFar = incumbent(result)

		selection := config.Selection
		selection.Seed = config.Selection.Seed + int64(s) + 1

		if selection.Logger == nil {
			selection.Logger = config.Logger
		}

		oracle := newSurrogateOracle(post, config.AcquisitionFunc, params)

		batch, score, err := SelectNextBatch(ctx, domain, oracle, selection, config.Feasibility)
		if err != nil {
			return result, fmt.Errorf("iteration %d: %w", s, err)
		}

		infeasible := 0
		for _, p := range batch {
			if obs := evaluate(p); !obs.Feasible {
				infeasible++
			}
		}

		suggest(s + 1)

		logger.Info("Iteration finished",
			"iteration", s,
			"q", len(batch),
			"acquisition", score,
			"best", result.BestValue,
			"suggested", result.SuggestedMinimum,
			"suggested_mean", result.SuggestedValue,
			"infeasible", infeasible,
			"elapsed", time.Since(started),
		)

		sendProgress("Optimization", s+1, config.Iterations, batch, score, infeasible)
	}

	return result, nil
}

//////
// Helpers.
//////

// suggestMinimum runs single-point multistart ascent on the negated
// posterior mean and returns the minimiser with its predicted mean.
// Feasibility penalties and annealing do not apply.
func suggestMinimum(ctx context.Context, post *posterior, domain Domain, cfg SelectionConfig) (Point, float64, error) {
	cfg.BatchSize = 1
	cfg.Strategy = StrategySGA
	cfg.Penalty = PenaltyNone
	cfg.ConstrainSteps = false

	batch, score, err := SelectNextBatch(ctx, domain, &meanOracle{post: post}, cfg, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("suggested minimum: %w", err)
	}

	return batch[0], -score, nil
}

// incumbent is the value acquisition functions measure improvement against:
// the best feasible value, or the best successful value when nothing
// feasible has been seen yet.
func incumbent(r *Result) float64 {
	if !math.IsInf(r.BestValue, 1) {
		return r.BestValue
	}

	best := math.Inf(1)
	for _, o := range r.History {
		if !o.Failed && o.Value < best {
			best = o.Value
		}
	}

	if math.IsInf(best, 1) {
		return failurePenalty
	}

	return best
}
