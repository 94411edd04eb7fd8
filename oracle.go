package qbo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// AcquisitionOracle evaluates a batch acquisition function and its gradient.
//
// An oracle is stateful: SetCurrentPoint fixes the batch the next
// ComputeValue / ComputeGradient calls refer to. A single oracle must not be
// used by more than one goroutine; Clone hands every restart its own copy.
type AcquisitionOracle interface {
	// SetCurrentPoint sets the batch subsequent queries refer to.
	SetCurrentPoint(b Batch) error

	// ComputeValue returns the acquisition value at the current batch.
	ComputeValue() (float64, error)

	// ComputeGradient returns the gradient of the value with respect to every
	// coordinate of every point of the current batch.
	ComputeGradient() (Batch, error)

	// Clone returns an independent oracle. Read-only model state may be
	// shared; the current batch must not be.
	Clone() AcquisitionOracle
}

// SurrogateOracle scores a batch as the sum of a per-point acquisition
// function over a Gaussian-process posterior.
//
// The posterior is shared read-only between clones; the current batch is
// private to each clone.
type SurrogateOracle struct {
	post    *posterior
	acq     AcquisitionFunc
	params  AcquisitionParams
	current Batch
}

// NewSurrogateOracle fits a Gaussian process to observations and returns an
// oracle over it.
//
// Usage example:
//
//	oracle, err := NewSurrogateOracle(history, domain.Bounds(),
//	    DefaultKernelParams(), ExpectedImprovement,
//	    AcquisitionParams{Xi: 0.01, BestSoFar: best})
func NewSurrogateOracle(
	observations []Observation,
	bounds []ParameterRange[float64],
	kernel KernelParams,
	acq AcquisitionFunc,
	params AcquisitionParams,
) (*SurrogateOracle, error) {
	gp := newGaussianProcess(kernel, bounds)
	for _, o := range observations {
		gp.Update(o.Point, o.Value)
	}

	post, err := gp.Posterior()
	if err != nil {
		return nil, err
	}

	return newSurrogateOracle(post, acq, params), nil
}

func newSurrogateOracle(post *posterior, acq AcquisitionFunc, params AcquisitionParams) *SurrogateOracle {
	if acq == nil {
		acq = ExpectedImprovement
	}

	return &SurrogateOracle{post: post, acq: acq, params: params}
}

// SetCurrentPoint implements AcquisitionOracle. The batch is copied.
func (o *SurrogateOracle) SetCurrentPoint(b Batch) error {
	dim := len(o.post.lengthScales)
	for i, p := range b {
		if len(p) != dim {
			return fmt.Errorf("%w: point %d has %d coordinates, want %d", ErrOracle, i, len(p), dim)
		}
	}

	if !finiteBatch(b) {
		return fmt.Errorf("%w: batch has non-finite coordinates", ErrOracle)
	}

	o.current = b.Clone()

	return nil
}

// ComputeValue implements AcquisitionOracle.
func (o *SurrogateOracle) ComputeValue() (float64, error) {
	if o.current == nil {
		return 0, ErrNoCurrentPoint
	}

	var total float64

	for i, p := range o.current {
		mean, variance, err := o.post.Predict(p)
		if err != nil {
			return 0, fmt.Errorf("%w: point %d: %v", ErrOracle, i, err)
		}

		v, _, _ := o.acq(mean, math.Sqrt(variance), o.params)
		total += v
	}

	if math.IsNaN(total) || math.IsInf(total, 0) {
		return 0, fmt.Errorf("%w: non-finite acquisition value", ErrOracle)
	}

	return total, nil
}

// ComputeGradient implements AcquisitionOracle.
func (o *SurrogateOracle) ComputeGradient() (Batch, error) {
	if o.current == nil {
		return nil, ErrNoCurrentPoint
	}

	grad := make(Batch, len(o.current))

	for i, p := range o.current {
		mean, variance, dm, dv, err := o.post.PredictGradient(p)
		if err != nil {
			return nil, fmt.Errorf("%w: point %d: %v", ErrOracle, i, err)
		}

		sigma := math.Sqrt(variance)
		_, dMean, dSigma := o.acq(mean, sigma, o.params)

		// d sigma / dx = (d variance / dx) / (2 sigma)
		g := make(Point, len(p))
		floats.AddScaled(g, dMean, dm)

		if sigma > sigmaFloor {
			floats.AddScaled(g, dSigma/(2*sigma), dv)
		}

		grad[i] = g
	}

	if !finiteBatch(grad) {
		return nil, fmt.Errorf("%w: non-finite gradient", ErrOracle)
	}

	return grad, nil
}

// Clone implements AcquisitionOracle.
func (o *SurrogateOracle) Clone() AcquisitionOracle {
	c := &SurrogateOracle{post: o.post, acq: o.acq, params: o.params}
	if o.current != nil {
		c.current = o.current.Clone()
	}

	return c
}

// meanOracle scores a batch as the negated sum of posterior means, so that
// ascent on it minimises the surrogate.
type meanOracle struct {
	post    *posterior
	current Batch
}

// SetCurrentPoint implements AcquisitionOracle.
func (o *meanOracle) SetCurrentPoint(b Batch) error {
	if !finiteBatch(b) {
		return fmt.Errorf("%w: batch has non-finite coordinates", ErrOracle)
	}

	o.current = b.Clone()

	return nil
}

// ComputeValue implements AcquisitionOracle.
func (o *meanOracle) ComputeValue() (float64, error) {
	if o.current == nil {
		return 0, ErrNoCurrentPoint
	}

	var total float64

	for i, p := range o.current {
		mean, _, err := o.post.Predict(p)
		if err != nil {
			return 0, fmt.Errorf("%w: point %d: %v", ErrOracle, i, err)
		}

		total -= mean
	}

	return total, nil
}

// ComputeGradient implements AcquisitionOracle.
func (o *meanOracle) ComputeGradient() (Batch, error) {
	if o.current == nil {
		return nil, ErrNoCurrentPoint
	}

	grad := make(Batch, len(o.current))

	for i, p := range o.current {
		_, _, dm, _, err := o.post.PredictGradient(p)
		if err != nil {
			return nil, fmt.Errorf("%w: point %d: %v", ErrOracle, i, err)
		}

		floats.Scale(-1, dm)
		grad[i] = dm
	}

	return grad, nil
}

// Clone implements AcquisitionOracle.
func (o *meanOracle) Clone() AcquisitionOracle {
	c := &meanOracle{post: o.post}
	if o.current != nil {
		c.current = o.current.Clone()
	}

	return c
}
