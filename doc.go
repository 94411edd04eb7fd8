// Package qbo provides batch Bayesian optimization of expensive black-box
// objectives. Each round it fits a Gaussian process to the observations,
// proposes q points at once by maximising a batch acquisition function with
// multistart stochastic gradient ascent, evaluates them and retrains.
//
// # Features
//
// The package includes the following key features:
//
//   - Multistart SGA: many independent restarts from uniform random batches
//     run on a bounded goroutine pool; the best-scoring batch wins
//   - Domain-constrained steps: every step is capped relative to the
//     distance to the domain boundary, so points never leave the domain
//   - Annealing warm start: optional simulated annealing before ascent
//   - Feasibility penalties: optional binary and exponential penalties from
//     a FeasibilityModel, plus corrective nudges back into the feasible region
//   - Deterministic: a single seed fixes every restart and the selected batch
//   - Failure isolation: a restart whose oracle fails is dropped, not fatal
//
// # Installation
//
// To install the package, use:
//
//	go get github.com/thalesfsp/qbo
//
// # Selecting a batch
//
// SelectNextBatch is the core entry point. It needs a Domain, an
// AcquisitionOracle and a SelectionConfig:
//
//	domain, _ := qbo.NewTensorProductDomain(
//	    qbo.ParameterRange[float64]{Min: -5, Max: 10},
//	    qbo.ParameterRange[float64]{Min: 0, Max: 15},
//	)
//
//	oracle, _ := qbo.NewSurrogateOracle(history, domain.Bounds(),
//	    qbo.DefaultKernelParams(), qbo.ExpectedImprovement,
//	    qbo.AcquisitionParams{Xi: 0.01, BestSoFar: best})
//
//	cfg := qbo.DefaultSelectionConfig()
//	cfg.BatchSize = 4
//	batch, score, err := qbo.SelectNextBatch(ctx, domain, oracle, cfg, nil)
//
// Each restart works on oracle.Clone(), so custom oracles only need to make
// Clone return an instance with its own current batch.
//
// # Running the whole loop
//
// Optimize runs initial sampling and Iterations rounds of selection:
//
//	config := qbo.DefaultConfig()
//	result, err := qbo.Optimize(ctx, config, objective, ranges...)
//
// # Acquisition Functions
//
//   - ExpectedImprovement: default, balances probability and size of improvement
//   - ProbabilityOfImprovement: conservative, controlled by Xi
//   - UCB: negated lower confidence bound, controlled by Beta
//
// # Thread Safety
//
//   - SelectNextBatch may be called concurrently with different oracles
//   - Domain and FeasibilityModel implementations are shared between
//     restarts and must be safe for concurrent reads
//   - An AcquisitionOracle instance is never used by two restarts at once
package qbo
