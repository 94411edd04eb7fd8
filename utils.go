package qbo

import (
	"log/slog"
	"math"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

//////
// Helper functions.
//////

// failurePenalty is recorded in place of the objective value when an
// evaluation fails. It is large enough to dominate real values but finite so
// the surrogate can still be fit.
const failurePenalty = 1e12

// Helper function used by PI and EI to compute the cumulative distribution
// function of the standard normal distribution.
func normalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// Helper function used by EI to compute the probability density function
// of the standard normal distribution.
func normalPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// clamp limits v to [lo, hi].
func clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

// norm returns the Euclidean norm of p.
func norm(p Point) float64 {
	return floats.Norm(p, 2)
}

// finiteBatch reports whether every coordinate of b is finite.
func finiteBatch(b Batch) bool {
	for _, p := range b {
		for _, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}

	return true
}

// loggerOrDefault returns l, or slog.Default() when l is nil.
func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}

	return l
}
