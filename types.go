package qbo

import (
	"log/slog"

	"golang.org/x/exp/constraints"
)

// Point is a single location in the search domain, one coordinate per
// dimension.
type Point []float64

// Batch is an ordered set of q points proposed for simultaneous evaluation.
//
// A batch is mutated in place while a restart optimises it and is owned by
// that restart until it is returned in a RestartResult.
type Batch []Point

// Clone returns a deep copy of the batch.
func (b Batch) Clone() Batch {
	out := make(Batch, len(b))
	for i, p := range b {
		out[i] = append(Point(nil), p...)
	}

	return out
}

// Shape returns the number of points and the dimension of the first point.
func (b Batch) Shape() (q, d int) {
	if len(b) == 0 {
		return 0, 0
	}

	return len(b), len(b[0])
}

// ProgressUpdate represents the current state of the optimization process.
type ProgressUpdate struct {
	// Phase indicates whether we're in initial sampling or optimization phase
	Phase string

	// CurrentIteration is the current iteration number
	CurrentIteration int

	// TotalIterations is the total number of iterations to run
	TotalIterations int

	// CurrentBatch holds the points evaluated in this step.
	CurrentBatch Batch

	// AcquisitionValue is the score of the selected batch. Zero during
	// initial sampling.
	AcquisitionValue float64

	// CurrentBest holds the best feasible objective value found so far
	CurrentBest float64

	// CurrentBestPoint holds the point that produced CurrentBest
	CurrentBestPoint Point

	// Infeasible is the number of infeasible points evaluated in this step.
	Infeasible int
}

// ParameterRange defines the valid range for one dimension of the search
// domain.
//
// Type Parameter:
//   - T: The numeric type for this parameter range (int64 or float64)
//
// Usage:
//
//	// Learning rate range from 0.0001 to 0.1
//	learningRateRange := ParameterRange[float64]{
//	    Min: 0.0001,
//	    Max: 0.1,
//	}
//
// Validation:
// - Min must be strictly less than Max
// - The range is inclusive of both Min and Max values
type ParameterRange[T constraints.Integer | constraints.Float] struct {
	// Min defines the minimum allowed value (inclusive).
	Min T

	// Max defines the maximum allowed value (inclusive).
	Max T
}

// Length returns Max - Min as a float64.
func (r ParameterRange[T]) Length() float64 {
	return float64(r.Max) - float64(r.Min)
}

// ObjectiveFunc is the expensive black-box function being minimised.
//
// Returning an error marks the evaluation as failed. The optimiser records a
// large penalty value instead of aborting so the surrogate learns to avoid
// failing regions.
type ObjectiveFunc func(x Point) (float64, error)

// AcquisitionFunc scores a single point from its posterior mean and standard
// deviation. Larger values are more promising; the objective is minimised.
//
// It also returns the partial derivatives of the value with respect to mean
// and sigma, which the surrogate oracle chains into a gradient over the
// batch.
//
// Built-in acquisition functions:
// - ExpectedImprovement
// - ProbabilityOfImprovement
// - UCB
//
// Implementation notes for custom acquisition functions:
// - Must be deterministic and thread-safe
// - Must handle sigma close to zero
type AcquisitionFunc func(mean, sigma float64, params AcquisitionParams) (value, dMean, dSigma float64)

// AcquisitionParams holds parameters used by the acquisition functions.
type AcquisitionParams struct {
	// Beta controls the exploration-exploitation trade-off in
	// UpperConfidenceBound. Higher values explore more.
	Beta float64

	// Xi is the minimum improvement over BestSoFar required by
	// ExpectedImprovement and ProbabilityOfImprovement.
	Xi float64

	// BestSoFar is the best (lowest) objective value observed so far, in the
	// same units as the surrogate's predictions. Updated by Optimize every
	// round.
	BestSoFar float64
}

// Strategy selects how a single restart initialises before gradient ascent.
type Strategy int

const (
	// StrategySGA runs gradient ascent from the uniformly sampled batch.
	StrategySGA Strategy = iota

	// StrategyAnnealedSGA warm-starts the batch with simulated annealing.
	StrategyAnnealedSGA
)

// String implements fmt.Stringer.
func (s Strategy) String() string {
	switch s {
	case StrategySGA:
		return "sga"
	case StrategyAnnealedSGA:
		return "annealed-sga"
	default:
		return "unknown"
	}
}

// Penalty is a set of feasibility penalties applied multiplicatively to the
// final score of every restart.
type Penalty uint8

// PenaltyNone leaves the acquisition value untouched.
const PenaltyNone Penalty = 0

const (
	// PenaltyNascentMinima multiplies by the binary inside/outside indicator.
	PenaltyNascentMinima Penalty = 1 << iota

	// PenaltyBounds multiplies by the smooth exponential bound penalty.
	PenaltyBounds
)

// Has reports whether p includes flag.
func (p Penalty) Has(flag Penalty) bool {
	return p&flag != 0
}

// SelectionConfig configures one call to SelectNextBatch. It is copied by
// value and never mutated while restarts run.
//
// Usage example:
//
//	cfg := DefaultSelectionConfig()
//	cfg.BatchSize = 4
//	cfg.NumRestarts = 32
//	cfg.Strategy = StrategyAnnealedSGA
//	batch, score, err := SelectNextBatch(ctx, domain, oracle, cfg, nil)
type SelectionConfig struct {
	// BatchSize is q, the number of points proposed per call.
	BatchSize int

	// NumRestarts is the number of independent restarts.
	NumRestarts int

	// StepsPerRestart is the number of gradient ascent iterations.
	StepsPerRestart int

	// StepAlpha and StepGamma define the step schedule
	// alpha_t = StepAlpha / (1+t)^StepGamma.
	StepAlpha float64
	StepGamma float64

	// MaxRelativeChange bounds every per-coordinate step to this fraction of
	// the distance to the boundary the step moves towards.
	MaxRelativeChange float64

	// Strategy selects plain ascent or an annealing warm start.
	Strategy Strategy

	// AnnealingIterations, InitialTemperature and AnnealingStepScale
	// configure the default annealer. Ignored with StrategySGA.
	AnnealingIterations int
	InitialTemperature  float64
	AnnealingStepScale  float64

	// Annealer overrides the default SimulatedAnnealing warm start.
	Annealer Annealer

	// Penalty selects the feasibility penalties applied to the final score.
	// Requires a non-nil FeasibilityModel.
	Penalty Penalty

	// PenaltyK is the sharpness of the exponential bound penalty.
	PenaltyK float64

	// ConstrainSteps enables the corrective nudge that pulls a point back
	// when a step takes it out of the feasible region. Requires a non-nil
	// FeasibilityModel.
	ConstrainSteps bool

	// RejectDivergent keeps a restart's starting batch when ascent ended on
	// a lower score than it started from.
	RejectDivergent bool

	// Seed is the top-level seed every restart seed derives from.
	Seed int64

	// MaxWorkers bounds concurrent restarts. Zero means GOMAXPROCS.
	MaxWorkers int

	// Logger receives structured logs. Nil means slog.Default().
	Logger *slog.Logger
}

// OptimizationConfig holds all configuration parameters for the outer
// Bayesian optimization loop run by Optimize.
//
// Fields explanation:
// - Iterations: Number of batch rounds after initial sampling
// - InitialSamples: Number of random samples to take before optimizing
// - AcquisitionFunc: Per-point scoring used by the surrogate oracle
// - Selection: Configuration of the multistart batch selection
//
// Note:
// - Create separate configs for parallel optimizations.
type OptimizationConfig struct {
	// Iterations determines how many batches are selected and evaluated
	// after the initial sampling phase.
	// Recommended range: 5-50
	Iterations int

	// InitialSamples determines how many random points to evaluate before
	// the first surrogate is fit.
	// Recommended range: 5-20
	InitialSamples int

	// AcquisitionFunc scores points. See AcquisitionFunc.
	AcquisitionFunc AcquisitionFunc

	// AcqParams holds the parameters for the acquisition function.
	// BestSoFar is overwritten every round.
	AcqParams AcquisitionParams

	// Kernel holds the surrogate hyperparameters.
	Kernel KernelParams

	// Selection configures SelectNextBatch.
	Selection SelectionConfig

	// Feasibility is optional. When set, only feasible points can become the
	// reported best and infeasible evaluations are counted.
	Feasibility FeasibilityModel

	// ProgressChan is used to send progress updates during optimization
	// If nil, no updates will be sent
	ProgressChan chan<- ProgressUpdate

	// Logger receives structured logs. Nil means slog.Default().
	Logger *slog.Logger
}

// RestartResult is the outcome of one restart. Immutable once produced.
type RestartResult struct {
	// Index is the restart's position in seed order.
	Index int

	// Seed is the per-restart random seed.
	Seed int64

	// Batch is the optimised batch, nil when Err is set.
	Batch Batch

	// Score is the (penalised) acquisition value, -Inf when Err is set.
	Score float64

	// Initial is true when the divergence fallback returned the starting
	// batch.
	Initial bool

	// Err is the failure that ended the restart, if any.
	Err error
}

// Observation is one evaluated point.
type Observation struct {
	Point    Point
	Value    float64
	Feasible bool
	Failed   bool
}

// Result is returned by Optimize.
type Result struct {
	// BestPoint is the best feasible point observed. Nil if no feasible
	// point was evaluated.
	BestPoint Point

	// BestValue is the objective value at BestPoint, +Inf if none.
	BestValue float64

	// SuggestedMinimum minimises the posterior mean of the final surrogate.
	// It need not have been evaluated. Nil if it could not be computed.
	SuggestedMinimum Point

	// SuggestedValue is the posterior mean at SuggestedMinimum.
	SuggestedValue float64

	// Evaluations counts objective calls.
	Evaluations int

	// InfeasibleCount counts evaluated points rejected by the feasibility
	// model.
	InfeasibleCount int

	// History lists every observation in evaluation order.
	History []Observation
}
