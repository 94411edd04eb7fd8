package qbo

import (
	"fmt"
	"math"
	"math/rand"
)

// Annealer produces a warm-start batch for gradient ascent.
//
// One Annealer is shared by all restarts of a selection call, so Anneal must
// be safe for concurrent use. The oracle passed in belongs to the calling
// restart and must not be kept after returning.
type Annealer interface {
	Anneal(b Batch, oracle AcquisitionOracle, domain Domain, rng *rand.Rand) (Batch, error)
}

const (
	// finalTemperatureRatio is T_final / T_0 for the geometric cooling
	// schedule.
	finalTemperatureRatio = 1e-3

	// proposalMaxRelativeChange caps a proposal relative to the distance to
	// the boundary.
	proposalMaxRelativeChange = 0.9
)

// SimulatedAnnealing maximises the acquisition value with Metropolis
// acceptance and geometric cooling from InitialTemperature down to
// InitialTemperature * 1e-3.
type SimulatedAnnealing struct {
	// Iterations is the number of proposals.
	Iterations int

	// InitialTemperature is T_0.
	InitialTemperature float64

	// StepScale is the standard deviation of a proposal as a fraction of the
	// width of each dimension.
	StepScale float64
}

// Validate checks the annealing parameters.
func (sa SimulatedAnnealing) Validate() error {
	if sa.Iterations <= 0 {
		return invalidConfig("annealing iterations must be > 0 (got %d)", sa.Iterations)
	}

	if sa.InitialTemperature <= 0 {
		return invalidConfig("initial temperature must be > 0 (got %f)", sa.InitialTemperature)
	}

	if sa.StepScale <= 0 {
		return invalidConfig("annealing step scale must be > 0 (got %f)", sa.StepScale)
	}

	return nil
}

// Anneal implements Annealer. It returns the best batch seen, which is never
// worse than b.
func (sa SimulatedAnnealing) Anneal(b Batch, oracle AcquisitionOracle, domain Domain, rng *rand.Rand) (Batch, error) {
	if err := sa.Validate(); err != nil {
		return nil, err
	}

	score := func(x Batch) (float64, error) {
		if err := oracle.SetCurrentPoint(x); err != nil {
			return 0, err
		}

		return oracle.ComputeValue()
	}

	curr := b.Clone()

	currScore, err := score(curr)
	if err != nil {
		return nil, fmt.Errorf("annealing: %w", err)
	}

	best, bestScore := curr.Clone(), currScore

	bounds := domain.Bounds()
	step := make([]float64, domain.Dim())
	cooling := math.Pow(finalTemperatureRatio, 1/float64(sa.Iterations))
	T := sa.InitialTemperature

	for iter := 0; iter < sa.Iterations; iter++ {
		cand := curr.Clone()
		for _, p := range cand {
			for j := range step {
				step[j] = rng.NormFloat64() * sa.StepScale * bounds[j].Length()
			}

			update := domain.ComputeUpdateRestrictedToDomain(proposalMaxRelativeChange, p, step)
			for j := range p {
				p[j] += update[j]
			}
		}

		candScore, err := score(cand)
		if err != nil {
			return nil, fmt.Errorf("annealing iteration %d: %w", iter, err)
		}

		// Metropolis criterion for maximisation: improvements are always
		// taken, regressions with probability exp(delta / T).
		delta := candScore - currScore
		if delta >= 0 || rng.Float64() < math.Exp(delta/T) {
			curr, currScore = cand, candScore

			if currScore > bestScore {
				best, bestScore = curr.Clone(), currScore
			}
		}

		T *= cooling
	}

	return best, nil
}
