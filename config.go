package qbo

import "math"

//////
// Exported functionalities.
//////

// DefaultSelectionConfig returns the selection settings used by the
// reference experiments: 20 restarts of 200 ascent steps with
// alpha_t = 1 / (1+t)^0.7.
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{
		BatchSize:           7,
		NumRestarts:         20,
		StepsPerRestart:     200,
		StepAlpha:           1.0,
		StepGamma:           0.7,
		MaxRelativeChange:   0.9,
		Strategy:            StrategySGA,
		AnnealingIterations: 40,
		InitialTemperature:  1.0,
		AnnealingStepScale:  0.01,
		Penalty:             PenaltyNone,
		PenaltyK:            4,
		RejectDivergent:     true,
		Seed:                1,
	}
}

// Validate checks the configuration before any restart is launched.
func (c SelectionConfig) Validate() error {
	if c.BatchSize <= 0 {
		return invalidConfig("batch size must be > 0 (got %d)", c.BatchSize)
	}

	if c.NumRestarts <= 0 {
		return invalidConfig("num restarts must be > 0 (got %d)", c.NumRestarts)
	}

	if c.StepsPerRestart <= 0 {
		return invalidConfig("steps per restart must be > 0 (got %d)", c.StepsPerRestart)
	}

	if !(c.StepAlpha > 0) || math.IsInf(c.StepAlpha, 0) {
		return invalidConfig("step alpha must be a positive finite number (got %f)", c.StepAlpha)
	}

	if !(c.StepGamma >= 0) || math.IsInf(c.StepGamma, 0) {
		return invalidConfig("step gamma must be >= 0 (got %f)", c.StepGamma)
	}

	if !(c.MaxRelativeChange > 0) || c.MaxRelativeChange > 1 {
		return invalidConfig("max relative change must lie in (0, 1] (got %f)", c.MaxRelativeChange)
	}

	switch c.Strategy {
	case StrategySGA:
	case StrategyAnnealedSGA:
		if c.Annealer == nil {
			if err := c.simulatedAnnealing().Validate(); err != nil {
				return err
			}
		}
	default:
		return invalidConfig("unknown strategy %d", c.Strategy)
	}

	if c.Penalty&^(PenaltyNascentMinima|PenaltyBounds) != 0 {
		return invalidConfig("unknown penalty flags %#x", uint8(c.Penalty))
	}

	if c.Penalty.Has(PenaltyBounds) && !(c.PenaltyK >= 0) {
		return invalidConfig("penalty k must be >= 0 (got %f)", c.PenaltyK)
	}

	if c.MaxWorkers < 0 {
		return invalidConfig("max workers must be >= 0 (got %d)", c.MaxWorkers)
	}

	return nil
}

// needsFeasibility reports whether c uses a feasibility model.
func (c SelectionConfig) needsFeasibility() bool {
	return c.Penalty != PenaltyNone || c.ConstrainSteps
}

func (c SelectionConfig) simulatedAnnealing() SimulatedAnnealing {
	return SimulatedAnnealing{
		Iterations:         c.AnnealingIterations,
		InitialTemperature: c.InitialTemperature,
		StepScale:          c.AnnealingStepScale,
	}
}

// DefaultConfig returns a default configuration.
func DefaultConfig() OptimizationConfig {
	return OptimizationConfig{
		Iterations:      9,
		InitialSamples:  7,
		AcquisitionFunc: ExpectedImprovement,
		AcqParams: AcquisitionParams{
			BestSoFar: math.MaxFloat64,
			Beta:      2.0,
			Xi:        0.01,
		},
		Kernel:       DefaultKernelParams(),
		Selection:    DefaultSelectionConfig(),
		ProgressChan: nil, // Default to no progress updates.
	}
}

// Validate checks the outer-loop configuration, including Selection.
func (c OptimizationConfig) Validate() error {
	if c.Iterations < 0 {
		return invalidConfig("iterations must be >= 0 (got %d)", c.Iterations)
	}

	if c.InitialSamples <= 0 {
		return invalidConfig("initial samples must be > 0 (got %d)", c.InitialSamples)
	}

	if !(c.Kernel.LengthScale > 0) || !(c.Kernel.SignalVariance > 0) || !(c.Kernel.NoiseVariance >= 0) {
		return invalidConfig("kernel parameters must be positive (got %+v)", c.Kernel)
	}

	if c.Selection.needsFeasibility() && c.Feasibility == nil {
		return invalidConfig("feasibility penalties or constrained steps need a feasibility model")
	}

	return c.Selection.Validate()
}
