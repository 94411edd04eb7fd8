package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thalesfsp/qbo"
	"github.com/thalesfsp/qbo/internal/synthetic"
)

// runOptions holds the flags of the run command.
type runOptions struct {
	problem       string
	initial       int
	iterations    int
	points        int
	restarts      int
	steps         int
	alpha         float64
	gamma         float64
	maxRelChange  float64
	anneal        bool
	annealIters   int
	temperature   float64
	acquisition   string
	lowerBound    float64
	upperBound    float64
	nascentMinima bool
	boundsPenalty bool
	constrain     bool
	penaltyK      float64
	seed          int64
	workers       int
}

var runOpts = runOptions{
	lowerBound: math.Inf(-1),
	upperBound: math.Inf(1),
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run batch Bayesian optimization on a synthetic problem",
	Long: `Runs initial sampling followed by --iter rounds of batch selection on one
of the built-in benchmark problems and reports the best point found.`,
	RunE: runOptimization,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runOpts.problem, "problem", "p", "", "Benchmark problem ("+strings.Join(synthetic.Names(), ", ")+")")
	f.IntVarP(&runOpts.initial, "init", "i", 7, "Number of initial points")
	f.IntVarP(&runOpts.iterations, "iter", "n", 9, "Number of iterations")
	f.IntVarP(&runOpts.points, "points", "q", 7, "Points per iteration")
	f.IntVar(&runOpts.restarts, "restarts", 20, "Multistart restarts per iteration")
	f.IntVar(&runOpts.steps, "steps", 200, "Gradient ascent steps per restart")
	f.Float64Var(&runOpts.alpha, "alpha", 1.0, "Base step size")
	f.Float64Var(&runOpts.gamma, "gamma", 0.7, "Step size decay exponent")
	f.Float64Var(&runOpts.maxRelChange, "max-relative-change", 0.9, "Max step relative to the distance to the boundary")
	f.BoolVar(&runOpts.anneal, "anneal", false, "Warm-start restarts with simulated annealing")
	f.IntVar(&runOpts.annealIters, "anneal-iters", 40, "Simulated annealing iterations")
	f.Float64Var(&runOpts.temperature, "temperature", 1.0, "Initial annealing temperature")
	f.StringVar(&runOpts.acquisition, "acquisition", "ei", "Acquisition function (ei, pi, ucb)")
	f.Float64VarP(&runOpts.lowerBound, "lower-bound", "l", math.Inf(-1), "Feasible region: lower bound on the point norm")
	f.Float64VarP(&runOpts.upperBound, "upper-bound", "u", math.Inf(1), "Feasible region: upper bound on the point norm")
	f.BoolVar(&runOpts.nascentMinima, "nascent-minima", false, "Zero the score of batches with infeasible points")
	f.BoolVar(&runOpts.boundsPenalty, "bounds-penalty", false, "Scale scores by the exponential bound penalty")
	f.BoolVar(&runOpts.constrain, "constrain", false, "Nudge points that step out of the feasible region back")
	f.Float64Var(&runOpts.penaltyK, "penalty-k", 4, "Sharpness of the exponential bound penalty")
	f.Int64Var(&runOpts.seed, "seed", 42, "Random seed")
	f.IntVar(&runOpts.workers, "workers", 0, "Concurrent restarts (0 = GOMAXPROCS)")

	runCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(runCmd)
}

// buildConfig turns the flags into an optimization config and the domain of
// the chosen problem.
func buildConfig(opts runOptions) (qbo.OptimizationConfig, synthetic.Problem, []qbo.ParameterRange[float64], error) {
	problem, err := synthetic.Lookup(opts.problem)
	if err != nil {
		return qbo.OptimizationConfig{}, synthetic.Problem{}, nil, err
	}

	config := qbo.DefaultConfig()
	config.InitialSamples = opts.initial
	config.Iterations = opts.iterations

	switch strings.ToLower(opts.acquisition) {
	case "ei":
		config.AcquisitionFunc = qbo.ExpectedImprovement
	case "pi":
		config.AcquisitionFunc = qbo.ProbabilityOfImprovement
	case "ucb":
		config.AcquisitionFunc = qbo.UCB
	default:
		return qbo.OptimizationConfig{}, synthetic.Problem{}, nil, fmt.Errorf("unknown acquisition: %s", opts.acquisition)
	}

	sel := &config.Selection
	sel.BatchSize = opts.points
	sel.NumRestarts = opts.restarts
	sel.StepsPerRestart = opts.steps
	sel.StepAlpha = opts.alpha
	sel.StepGamma = opts.gamma
	sel.MaxRelativeChange = opts.maxRelChange
	sel.AnnealingIterations = opts.annealIters
	sel.InitialTemperature = opts.temperature
	sel.PenaltyK = opts.penaltyK
	sel.ConstrainSteps = opts.constrain
	sel.Seed = opts.seed
	sel.MaxWorkers = opts.workers

	if opts.anneal {
		sel.Strategy = qbo.StrategyAnnealedSGA
	}

	bounded := !math.IsInf(opts.lowerBound, -1) || !math.IsInf(opts.upperBound, 1)
	if bounded || opts.nascentMinima || opts.boundsPenalty || opts.constrain {
		config.Feasibility = qbo.NewNormBounds(opts.lowerBound, opts.upperBound)
	}

	if opts.nascentMinima {
		sel.Penalty |= qbo.PenaltyNascentMinima
	}

	if opts.boundsPenalty || bounded {
		sel.Penalty |= qbo.PenaltyBounds
	}

	ranges := make([]qbo.ParameterRange[float64], problem.Dim())
	for j, b := range problem.Bounds {
		ranges[j] = qbo.ParameterRange[float64]{Min: b[0], Max: b[1]}
	}

	if err := config.Validate(); err != nil {
		return qbo.OptimizationConfig{}, synthetic.Problem{}, nil, err
	}

	return config, problem, ranges, nil
}

func runOptimization(cmd *cobra.Command, args []string) error {
	config, problem, ranges, err := buildConfig(runOpts)
	if err != nil {
		return err
	}

	config.Logger = logger

	slog.Info("Starting optimization",
		"problem", problem.Name,
		"dim", problem.Dim(),
		"q", config.Selection.BatchSize,
		"iterations", config.Iterations,
		"strategy", config.Selection.Strategy.String(),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	start := time.Now()

	result, err := qbo.Optimize(ctx, config, objective(problem), ranges...)
	if err != nil && result == nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	elapsed := time.Since(start)

	if err != nil {
		slog.Warn("Optimization stopped early", "error", err)
	}

	gap := result.BestValue - problem.Minimum

	slog.Info("Optimization complete",
		"elapsed", elapsed,
		"evaluations", result.Evaluations,
		"best", result.BestValue,
		"known_minimum", problem.Minimum,
		"gap", gap,
		"infeasible", result.InfeasibleCount,
	)

	fmt.Fprintf(cmd.OutOrStdout(), "%s: best %.6f at %v (known minimum %.6f, %d evaluations, %d infeasible)\n",
		problem.Name, result.BestValue, result.BestPoint, problem.Minimum, result.Evaluations, result.InfeasibleCount)

	if cost, ok := suggestedCost(problem, result); ok {
		slog.Info("Suggested minimum",
			"point", result.SuggestedMinimum,
			"predicted", result.SuggestedValue,
			"cost", cost,
			"gap", cost-problem.Minimum,
		)

		fmt.Fprintf(cmd.OutOrStdout(), "%s: suggested minimum %v costs %.6f (gap %.6f)\n",
			problem.Name, result.SuggestedMinimum, cost, cost-problem.Minimum)
	}

	return err
}

// suggestedCost evaluates the problem at the surrogate's suggested minimum.
// Benchmark problems are cheap, so this is not counted as an evaluation.
func suggestedCost(p synthetic.Problem, r *qbo.Result) (float64, bool) {
	if r.SuggestedMinimum == nil {
		return 0, false
	}

	cost, err := p.Evaluate(r.SuggestedMinimum)
	if err != nil {
		return 0, false
	}

	return cost, true
}

// objective adapts a synthetic problem to qbo.ObjectiveFunc.
func objective(p synthetic.Problem) qbo.ObjectiveFunc {
	return func(x qbo.Point) (float64, error) {
		return p.Evaluate(x)
	}
}
