package qbo

import "math"

//////
// Available acquisition functions for Bayesian optimization.
// Each function helps decide which points to evaluate next by balancing
// exploration (trying new areas) and exploitation (focusing on known good areas).
// The objective is minimised; larger acquisition values are more promising.
//////

// sigmaFloor is the standard deviation below which a prediction is treated
// as exact.
const sigmaFloor = 1e-12

// UCB implements the (negated) lower confidence bound, so that it can be
// maximised like the other acquisition functions.
//
// How it works:
// - Combines the predicted mean with the uncertainty
// - The Beta parameter controls the trade-off between exploration and exploitation
//
// Parameters:
// - mean: Predicted objective at this point
// - sigma: Standard deviation of the prediction
// - params.Beta: Exploration weight (higher = more exploration)
//
// Note:
// - The value can be negative, so feasibility penalties (which scale the
//   score towards zero) are only meaningful with EI or PI.
func UCB(mean, sigma float64, params AcquisitionParams) (value, dMean, dSigma float64) {
	return params.Beta*sigma - mean, -1, params.Beta
}

// ProbabilityOfImprovement (PI) calculates the probability that a point will
// improve upon the current best observed value by at least Xi.
//
// When to use:
// - When you want to be conservative in exploring new points
// - In problems where being "probably better" is more important than "how much better"
func ProbabilityOfImprovement(mean, sigma float64, params AcquisitionParams) (value, dMean, dSigma float64) {
	improvement := params.BestSoFar - mean - params.Xi

	if sigma < sigmaFloor {
		if improvement > 0 {
			return 1, 0, 0
		}

		return 0, 0, 0
	}

	z := improvement / sigma
	pdf := normalPDF(z)

	return normalCDF(z), -pdf / sigma, -pdf * z / sigma
}

// ExpectedImprovement (EI) calculates the expected value of the improvement
// over the current best value.
//
// How it works:
// - Combines the probability of improvement with the magnitude of improvement
// - EI = I * Φ(z) + σ * φ(z), with I = best - mean - xi and z = I / σ
// - dEI/dmean = -Φ(z), dEI/dσ = φ(z)
//
// When to use:
// - Most commonly used acquisition function
// - In problems where the magnitude of improvement matters
func ExpectedImprovement(mean, sigma float64, params AcquisitionParams) (value, dMean, dSigma float64) {
	improvement := params.BestSoFar - mean - params.Xi

	if sigma < sigmaFloor {
		if improvement > 0 {
			return improvement, -1, 0
		}

		return 0, 0, 0
	}

	z := improvement / sigma
	cdf := normalCDF(z)
	pdf := normalPDF(z)

	value = improvement*cdf + sigma*pdf

	// EI is never negative; rounding can push it a hair below zero far in
	// the left tail.
	return math.Max(value, 0), -cdf, pdf
}
