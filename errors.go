package qbo

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned before any work starts when a
	// configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrOracle marks a failure of the acquisition oracle inside a restart.
	ErrOracle = errors.New("acquisition oracle failure")

	// ErrNoCurrentPoint is returned by an oracle queried before
	// SetCurrentPoint.
	ErrNoCurrentPoint = errors.New("oracle has no current point")

	// ErrIllConditioned is returned when the surrogate covariance cannot be
	// factorised.
	ErrIllConditioned = errors.New("covariance matrix is not positive definite")
)

// ErrOptimizationExhausted is the sentinel for "every restart failed".
// Use errors.Is(err, ErrOptimizationExhausted) to check for it.
var ErrOptimizationExhausted = &ExhaustedError{}

// ExhaustedError reports that no restart produced a usable batch.
type ExhaustedError struct {
	// Restarts is the number of restarts that were attempted.
	Restarts int

	// Cause combines every restart failure.
	Cause error
}

func (e *ExhaustedError) Error() string {
	if e.Cause == nil {
		return "optimization exhausted: no viable restart"
	}

	return fmt.Sprintf("optimization exhausted: all %d restarts failed: %v", e.Restarts, e.Cause)
}

// Is matches any *ExhaustedError.
func (e *ExhaustedError) Is(target error) bool {
	_, ok := target.(*ExhaustedError)

	return ok
}

// Unwrap exposes the combined restart failures.
func (e *ExhaustedError) Unwrap() error {
	return e.Cause
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
