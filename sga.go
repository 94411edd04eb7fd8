package qbo

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

const (
	// maxCorrections bounds the nudges applied to a point that left the
	// feasible region.
	maxCorrections = 10

	// correctionStep is the fraction of the scaled gradient removed per
	// nudge.
	correctionStep = 0.1
)

// ascent is the single-restart optimiser. The strategy and feasibility
// variant are resolved once in newAscent; run only executes the plan.
type ascent struct {
	schedule StepSchedule
	steps    int
	maxRel   float64
	domain   Domain

	// annealer is nil for plain SGA.
	annealer Annealer

	feasibility FeasibilityModel
	penalty     Penalty
	penaltyK    float64

	// move applies one scaled gradient step to a point in place.
	move func(p Point, g []float64)

	rejectDivergent bool
}

func newAscent(cfg SelectionConfig, domain Domain, feasibility FeasibilityModel) *ascent {
	a := &ascent{
		schedule:        StepSchedule{Alpha: cfg.StepAlpha, Gamma: cfg.StepGamma},
		steps:           cfg.StepsPerRestart,
		maxRel:          cfg.MaxRelativeChange,
		domain:          domain,
		feasibility:     feasibility,
		penalty:         cfg.Penalty,
		penaltyK:        cfg.PenaltyK,
		rejectDivergent: cfg.RejectDivergent,
	}

	if cfg.Strategy == StrategyAnnealedSGA {
		a.annealer = cfg.Annealer
		if a.annealer == nil {
			a.annealer = cfg.simulatedAnnealing()
		}
	}

	a.move = a.projectedMove
	if cfg.ConstrainSteps && feasibility != nil {
		a.move = a.constrainedMove
	}

	return a
}

// run optimises b in place and returns the batch to report with its score.
// initial is true when the divergence fallback kept the starting batch.
func (a *ascent) run(b Batch, oracle AcquisitionOracle, rng *rand.Rand) (out Batch, score float64, initial bool, err error) {
	if a.annealer != nil {
		b, err = a.annealer.Anneal(b, oracle, a.domain, rng)
		if err != nil {
			return nil, 0, false, err
		}
	}

	var (
		start      Batch
		startScore float64
	)

	if a.rejectDivergent {
		start = b.Clone()

		startScore, err = a.score(start, oracle)
		if err != nil {
			return nil, 0, false, fmt.Errorf("scoring start: %w", err)
		}
	}

	if err := a.ascend(b, oracle); err != nil {
		return nil, 0, false, err
	}

	score, err = a.score(b, oracle)
	if err != nil {
		return nil, 0, false, fmt.Errorf("scoring result: %w", err)
	}

	if a.rejectDivergent && score < startScore {
		return start, startScore, true, nil
	}

	return b, score, false, nil
}

// ascend runs the stochastic gradient ascent loop on b in place.
func (a *ascent) ascend(b Batch, oracle AcquisitionOracle) error {
	for j := 0; j < a.steps; j++ {
		alpha := a.schedule.At(j)

		if err := oracle.SetCurrentPoint(b); err != nil {
			return fmt.Errorf("step %d: %w", j, err)
		}

		grad, err := oracle.ComputeGradient()
		if err != nil {
			return fmt.Errorf("step %d: %w", j, err)
		}

		if len(grad) != len(b) {
			return fmt.Errorf("%w: step %d: gradient has %d points, batch has %d", ErrOracle, j, len(grad), len(b))
		}

		for k := range b {
			if len(grad[k]) != len(b[k]) {
				return fmt.Errorf("%w: step %d: gradient of point %d has %d coordinates, want %d", ErrOracle, j, k, len(grad[k]), len(b[k]))
			}
		}

		// Points move independently; order is fixed for reproducible
		// floating-point results.
		for k := range b {
			floats.Scale(alpha, grad[k])
			a.move(b[k], grad[k])
		}
	}

	if !finiteBatch(b) {
		return fmt.Errorf("%w: ascent produced non-finite coordinates", ErrOracle)
	}

	return nil
}

// score evaluates the penalised acquisition value of b.
func (a *ascent) score(b Batch, oracle AcquisitionOracle) (float64, error) {
	if err := oracle.SetCurrentPoint(b); err != nil {
		return 0, err
	}

	value, err := oracle.ComputeValue()
	if err != nil {
		return 0, err
	}

	return value * feasibilityMultiplier(a.feasibility, a.penalty, a.penaltyK, b), nil
}

func (a *ascent) projectedMove(p Point, g []float64) {
	floats.Add(p, a.domain.ComputeUpdateRestrictedToDomain(a.maxRel, p, g))
}

// constrainedMove is projectedMove plus a correction when the step takes a
// feasible point out of the feasible region.
func (a *ascent) constrainedMove(p Point, g []float64) {
	candidate := append(Point(nil), p...)
	floats.Add(candidate, a.domain.ComputeUpdateRestrictedToDomain(a.maxRel, p, g))

	if !a.feasibility.CheckInside([]Point{candidate}) && a.feasibility.CheckInside([]Point{p}) {
		candidate, _ = adjustToSatisfyConstraint(candidate, g, a.feasibility, a.domain.Bounds())
	}

	copy(p, candidate)
}

// adjustToSatisfyConstraint walks point against grad in steps of
// correctionStep*grad until it is feasible or maxCorrections nudges have
// been made. Coordinates stay inside bounds. It returns the last point and
// the number of nudges made.
func adjustToSatisfyConstraint(point Point, grad []float64, model FeasibilityModel, bounds []ParameterRange[float64]) (Point, int) {
	attempts := 0

	for attempts < maxCorrections {
		attempts++

		floats.AddScaled(point, -correctionStep, grad)
		for j, b := range bounds {
			point[j] = clamp(point[j], b.Min, b.Max)
		}

		if model.CheckInside([]Point{point}) {
			return point, attempts
		}
	}

	return point, attempts
}
