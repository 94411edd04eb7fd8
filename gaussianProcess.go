package qbo

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

//////
// Const, vars, types.
//////

// KernelParams are the fixed hyperparameters of the squared-exponential
// kernel
//
//	k(x1, x2) = SignalVariance * exp(-0.5 * sum(((x1_j - x2_j) / l_j)^2))
//
// where l_j = LengthScale * (width of dimension j).
type KernelParams struct {
	// LengthScale is relative to the width of each domain dimension.
	LengthScale float64

	// SignalVariance is the prior variance of the standardised targets.
	SignalVariance float64

	// NoiseVariance is added to the diagonal of the covariance matrix.
	NoiseVariance float64
}

// DefaultKernelParams returns hyperparameters suited to smooth objectives on
// a bounded domain.
func DefaultKernelParams() KernelParams {
	return KernelParams{
		LengthScale:    0.25,
		SignalVariance: 1.0,
		NoiseVariance:  1e-6,
	}
}

// gaussianProcess implements a thread-safe Gaussian Process model for
// regression with multidimensional inputs. It accumulates observations and
// hands out immutable posterior snapshots for the optimiser to query.
//
// Thread safety:
// - All fields are protected by the RWMutex
// - Uses RLock for Posterior and Len
// - Uses Lock for Update.
type gaussianProcess struct {
	// mu protects access to all fields
	mu sync.RWMutex

	// X stores the observed input points
	X [][]float64

	// Y stores the observed values at each point in X
	Y []float64

	// params are the kernel hyperparameters.
	params KernelParams

	// lengthScales holds one absolute length scale per dimension.
	lengthScales []float64
}

// posterior is a fitted, read-only view of the Gaussian process. It is safe
// for concurrent use and is shared by every restart of a selection call.
type posterior struct {
	x            [][]float64
	alpha        *mat.VecDense
	chol         *mat.Cholesky
	lengthScales []float64
	signal       float64
	yMean        float64
	yStd         float64
}

//////
// Methods.
//////

// Update adds a new observation to the model. x is copied.
func (gp *gaussianProcess) Update(x []float64, y float64) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	// Create deep copy of input to prevent external modifications
	newX := make([]float64, len(x))
	copy(newX, x)

	gp.X = append(gp.X, newX)
	gp.Y = append(gp.Y, y)
}

// Len returns the number of observations.
func (gp *gaussianProcess) Len() int {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	return len(gp.X)
}

// Posterior fits the model to the current observations.
//
// Targets are standardised before fitting. The covariance matrix is
// factorised with a Cholesky decomposition; a matrix that is not positive
// definite yields ErrIllConditioned.
func (gp *gaussianProcess) Posterior() (*posterior, error) {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	p := &posterior{
		lengthScales: gp.lengthScales,
		signal:       gp.params.SignalVariance,
		yStd:         1,
	}

	n := len(gp.X)
	if n == 0 {
		return p, nil
	}

	p.x = make([][]float64, n)
	for i := range gp.X {
		p.x[i] = append([]float64(nil), gp.X[i]...)
	}

	p.yMean, p.yStd = stat.MeanStdDev(gp.Y, nil)
	if n < 2 || p.yStd == 0 || math.IsNaN(p.yStd) {
		p.yStd = 1
	}

	y := mat.NewVecDense(n, nil)
	for i, v := range gp.Y {
		y.SetVec(i, (v-p.yMean)/p.yStd)
	}

	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := p.kernel(p.x[i], p.x[j])
			if i == j {
				v += gp.params.NoiseVariance
			}

			k.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(k); !ok {
		return nil, fmt.Errorf("%w: %d observations", ErrIllConditioned, n)
	}

	p.chol = &chol
	p.alpha = mat.NewVecDense(n, nil)

	if err := chol.SolveVecTo(p.alpha, y); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllConditioned, err)
	}

	return p, nil
}

// kernel is the squared-exponential kernel.
func (p *posterior) kernel(x1, x2 []float64) float64 {
	var sum float64

	for j := range x1 {
		d := (x1[j] - x2[j]) / p.lengthScales[j]
		sum += d * d
	}

	return p.signal * math.Exp(-0.5*sum)
}

// Predict returns the posterior mean and variance at x, in the units of the
// observed targets.
func (p *posterior) Predict(x []float64) (mean, variance float64, err error) {
	mean, variance, _, _, err = p.predict(x, false)

	return mean, variance, err
}

// PredictGradient returns the posterior mean and variance at x together with
// their gradients with respect to x.
func (p *posterior) PredictGradient(x []float64) (mean, variance float64, dMean, dVariance []float64, err error) {
	return p.predict(x, true)
}

func (p *posterior) predict(x []float64, withGrad bool) (mean, variance float64, dMean, dVariance []float64, err error) {
	if len(x) != len(p.lengthScales) {
		return 0, 0, nil, nil, fmt.Errorf("point has %d coordinates, model has %d", len(x), len(p.lengthScales))
	}

	if withGrad {
		dMean = make([]float64, len(x))
		dVariance = make([]float64, len(x))
	}

	n := len(p.x)
	if n == 0 {
		return p.yMean, p.signal * p.yStd * p.yStd, dMean, dVariance, nil
	}

	kx := mat.NewVecDense(n, nil)
	for i := range p.x {
		kx.SetVec(i, p.kernel(x, p.x[i]))
	}

	// v = K^-1 k(x)
	v := mat.NewVecDense(n, nil)
	if err := p.chol.SolveVecTo(v, kx); err != nil {
		return 0, 0, nil, nil, fmt.Errorf("%w: %v", ErrIllConditioned, err)
	}

	meanStd := mat.Dot(kx, p.alpha)
	varStd := math.Max(p.signal-mat.Dot(kx, v), 0)

	mean = p.yMean + p.yStd*meanStd
	variance = p.yStd * p.yStd * varStd

	if !withGrad {
		return mean, variance, nil, nil, nil
	}

	// dk_i/dx_j = -k_i * (x_j - X_ij) / l_j^2
	diff := make([]float64, len(x))
	for i := range p.x {
		ki := kx.AtVec(i)
		floats.SubTo(diff, x, p.x[i])

		for j := range diff {
			dk := -ki * diff[j] / (p.lengthScales[j] * p.lengthScales[j])
			dMean[j] += p.alpha.AtVec(i) * dk
			dVariance[j] += -2 * v.AtVec(i) * dk
		}
	}

	floats.Scale(p.yStd, dMean)
	floats.Scale(p.yStd*p.yStd, dVariance)

	return mean, variance, dMean, dVariance, nil
}

//////
// Factory.
//////

// newGaussianProcess creates an empty model for a domain. Length scales are
// set relative to the width of each domain dimension.
func newGaussianProcess(params KernelParams, bounds []ParameterRange[float64]) *gaussianProcess {
	ls := make([]float64, len(bounds))
	for j, b := range bounds {
		ls[j] = params.LengthScale * b.Length()
	}

	return &gaussianProcess{
		params:       params,
		lengthScales: ls,
	}
}
