package qbo

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
)

// seedSpan is the range per-restart seeds are drawn from.
const seedSpan = 10000

// SelectNextBatch runs cfg.NumRestarts independent stochastic gradient ascent
// restarts in parallel and returns the best batch with its score.
//
// Parameters:
// - ctx: Checked once before any restart starts; restarts are not
//   interrupted once running
// - domain: Search domain, shared read-only by every restart
// - oracle: Prototype oracle; every restart works on its own Clone
// - cfg: Selection configuration, validated before any work starts
// - feasibility: Optional; required when cfg enables penalties or
//   constrained steps
//
// Returns:
// - Batch: cfg.BatchSize points of domain.Dim() coordinates
// - float64: The (penalised) acquisition value of that batch
// - error: ErrInvalidConfig, ctx.Err(), or ErrOptimizationExhausted when
//   every restart failed
//
// Selection is deterministic for a given cfg.Seed: restart seeds derive from
// it, results are stored by restart index and ties go to the lowest index.
//
// Usage example:
//
//	cfg := DefaultSelectionConfig()
//	cfg.BatchSize = 4
//	batch, score, err := SelectNextBatch(ctx, domain, oracle, cfg, nil)
//	if errors.Is(err, ErrOptimizationExhausted) {
//	    // every restart failed
//	}
func SelectNextBatch(
	ctx context.Context,
	domain Domain,
	oracle AcquisitionOracle,
	cfg SelectionConfig,
	feasibility FeasibilityModel,
) (Batch, float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, 0, err
	}

	if domain == nil || oracle == nil {
		return nil, 0, invalidConfig("domain and oracle are required")
	}

	if cfg.needsFeasibility() && feasibility == nil {
		return nil, 0, invalidConfig("feasibility penalties or constrained steps need a feasibility model")
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	logger := loggerOrDefault(cfg.Logger)
	start := time.Now()

	results := runRestarts(domain, oracle, cfg, feasibility)

	best, err := selectBest(results)
	if err != nil {
		logger.Error("Batch selection failed", "restarts", len(results), "error", err)

		return nil, 0, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	logger.Info("Selected batch",
		"restart", best.Index,
		"seed", best.Seed,
		"score", best.Score,
		"kept_start", best.Initial,
		"failed_restarts", failed,
		"strategy", cfg.Strategy.String(),
		"elapsed", time.Since(start),
	)

	return best.Batch, best.Score, nil
}

// runRestarts executes every restart on a bounded goroutine pool. Each
// restart gets its own oracle clone and random generator; results are
// indexed by restart so their order does not depend on scheduling.
func runRestarts(domain Domain, oracle AcquisitionOracle, cfg SelectionConfig, feasibility FeasibilityModel) []RestartResult {
	logger := loggerOrDefault(cfg.Logger)
	plan := newAscent(cfg, domain, feasibility)
	seeds := generateSeeds(cfg.Seed, cfg.NumRestarts)
	results := make([]RestartResult, len(seeds))

	workers := cfg.MaxWorkers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := pool.New().WithMaxGoroutines(workers)

	for i, seed := range seeds {
		handle := oracle.Clone()

		p.Go(func() {
			results[i] = runRestart(i, seed, plan, domain, handle, cfg.BatchSize)

			if err := results[i].Err; err != nil {
				logger.Warn("Restart failed", "restart", i, "seed", seed, "error", err)
			} else {
				logger.Debug("Restart finished", "restart", i, "seed", seed, "score", results[i].Score)
			}
		})
	}

	p.Wait()

	return results
}

// runRestart samples a uniform batch with a generator seeded by seed and
// optimises it. Failures, panics included, are returned in the result with a
// -Inf score.
func runRestart(index int, seed int64, plan *ascent, domain Domain, oracle AcquisitionOracle, q int) RestartResult {
	var (
		out     Batch
		score   float64
		initial bool
		err     error
		pc      panics.Catcher
	)

	pc.Try(func() {
		rng := rand.New(rand.NewSource(seed))
		b := domain.GenerateUniformRandomPoints(q, rng)

		out, score, initial, err = plan.run(b, oracle, rng)
	})

	if r := pc.Recovered(); r != nil {
		err = fmt.Errorf("%w: panic: %w", ErrOracle, r.AsError())
	}

	if err == nil && math.IsNaN(score) {
		err = fmt.Errorf("%w: score is NaN", ErrOracle)
	}

	if err != nil {
		return RestartResult{
			Index: index,
			Seed:  seed,
			Score: math.Inf(-1),
			Err:   fmt.Errorf("restart %d (seed %d): %w", index, seed, err),
		}
	}

	return RestartResult{
		Index:   index,
		Seed:    seed,
		Batch:   out,
		Score:   score,
		Initial: initial,
	}
}

// selectBest returns the successful result with the highest score; ties go
// to the lowest index. If no restart succeeded it returns an ExhaustedError
// combining every failure.
func selectBest(results []RestartResult) (RestartResult, error) {
	bestIdx := -1

	var errs error

	for i, r := range results {
		if r.Err != nil {
			errs = multierr.Append(errs, r.Err)

			continue
		}

		if bestIdx < 0 || r.Score > results[bestIdx].Score {
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		return RestartResult{}, &ExhaustedError{Restarts: len(results), Cause: errs}
	}

	return results[bestIdx], nil
}

// generateSeeds derives n distinct restart seeds from seed.
func generateSeeds(seed int64, n int) []int64 {
	span := int64(seedSpan)
	if int64(n) > span/2 {
		span = int64(n) * 10
	}

	rng := rand.New(rand.NewSource(seed))
	seen := make(map[int64]struct{}, n)
	seeds := make([]int64, 0, n)

	for len(seeds) < n {
		s := rng.Int63n(span)
		if _, dup := seen[s]; dup {
			continue
		}

		seen[s] = struct{}{}
		seeds = append(seeds, s)
	}

	return seeds
}
