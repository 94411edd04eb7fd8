// Package synthetic holds standard benchmark objectives with known minima,
// used by the CLI to exercise the optimiser.
package synthetic

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Problem is a benchmark objective on a box domain.
type Problem struct {
	// Name is the registry key.
	Name string

	// Bounds holds [min, max] per dimension.
	Bounds [][2]float64

	// Minimum is the known global minimum value.
	Minimum float64

	// Minimizer is one location of the global minimum.
	Minimizer []float64

	// Func evaluates the objective.
	Func func(x []float64) float64
}

// Dim returns the problem dimension.
func (p Problem) Dim() int {
	return len(p.Bounds)
}

// Evaluate checks the dimension and evaluates the objective.
func (p Problem) Evaluate(x []float64) (float64, error) {
	if len(x) != len(p.Bounds) {
		return 0, fmt.Errorf("%s: got %d coordinates, want %d", p.Name, len(x), len(p.Bounds))
	}

	return p.Func(x), nil
}

var registry = map[string]Problem{}

func register(p Problem) {
	registry[strings.ToLower(p.Name)] = p
}

// Lookup returns the problem registered under name (case-insensitive).
func Lookup(name string) (Problem, error) {
	p, ok := registry[strings.ToLower(name)]
	if !ok {
		return Problem{}, fmt.Errorf("unknown problem %q (available: %s)", name, strings.Join(Names(), ", "))
	}

	return p, nil
}

// Names lists registered problems in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, p := range registry {
		names = append(names, p.Name)
	}

	sort.Strings(names)

	return names
}

func box(d int, lo, hi float64) [][2]float64 {
	b := make([][2]float64, d)
	for i := range b {
		b[i] = [2]float64{lo, hi}
	}

	return b
}

func filled(d int, v float64) []float64 {
	x := make([]float64, d)
	for i := range x {
		x[i] = v
	}

	return x
}

func parabolic(center []float64) func(x []float64) float64 {
	return func(x []float64) float64 {
		var sum float64
		for i, c := range center {
			d := x[i] - c
			sum += d * d
		}

		return sum
	}
}

func branin(x []float64) float64 {
	const (
		a = 1.0
		r = 6.0
		s = 10.0
	)

	b := 5.1 / (4 * math.Pi * math.Pi)
	c := 5 / math.Pi
	t := 1 / (8 * math.Pi)

	term := x[1] - b*x[0]*x[0] + c*x[0] - r

	return a*term*term + s*(1-t)*math.Cos(x[0]) + s
}

var hartmannAlpha = [4]float64{1.0, 1.2, 3.0, 3.2}

func hartmann(a, p [][]float64) func(x []float64) float64 {
	return func(x []float64) float64 {
		var sum float64

		for i := range hartmannAlpha {
			var inner float64
			for j := range x {
				d := x[j] - p[i][j]
				inner += a[i][j] * d * d
			}

			sum += hartmannAlpha[i] * math.Exp(-inner)
		}

		return -sum
	}
}

func ackley(x []float64) float64 {
	n := float64(len(x))

	var sumSq, sumCos float64
	for _, v := range x {
		sumSq += v * v
		sumCos += math.Cos(2 * math.Pi * v)
	}

	return -20*math.Exp(-0.2*math.Sqrt(sumSq/n)) - math.Exp(sumCos/n) + 20 + math.E
}

func rastrigin(x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}

	return sum
}

func levy(x []float64) float64 {
	w := make([]float64, len(x))
	for i, v := range x {
		w[i] = 1 + (v-1)/4
	}

	d := len(w) - 1
	sum := math.Pow(math.Sin(math.Pi*w[0]), 2)

	for i := 0; i < d; i++ {
		sum += (w[i] - 1) * (w[i] - 1) * (1 + 10*math.Pow(math.Sin(math.Pi*w[i]+1), 2))
	}

	return sum + (w[d]-1)*(w[d]-1)*(1+math.Pow(math.Sin(2*math.Pi*w[d]), 2))
}

func schwefel(x []float64) float64 {
	sum := 418.9829 * float64(len(x))
	for _, v := range x {
		sum -= v * math.Sin(math.Sqrt(math.Abs(v)))
	}

	return sum
}

func init() {
	register(Problem{
		Name:      "ParabolicMinAtOrigin",
		Bounds:    box(2, -5, 5),
		Minimum:   0,
		Minimizer: []float64{0, 0},
		Func:      parabolic([]float64{0, 0}),
	})
	register(Problem{
		Name:      "ParabolicMinAtTwoAndThree",
		Bounds:    box(2, -5, 5),
		Minimum:   0,
		Minimizer: []float64{2, 3},
		Func:      parabolic([]float64{2, 3}),
	})
	register(Problem{
		Name:      "Branin",
		Bounds:    [][2]float64{{-5, 10}, {0, 15}},
		Minimum:   0.397887,
		Minimizer: []float64{math.Pi, 2.275},
		Func:      branin,
	})
	register(Problem{
		Name:      "Hartmann3",
		Bounds:    box(3, 0, 1),
		Minimum:   -3.86278,
		Minimizer: []float64{0.114614, 0.555649, 0.852547},
		Func: hartmann(
			[][]float64{{3, 10, 30}, {0.1, 10, 35}, {3, 10, 30}, {0.1, 10, 35}},
			[][]float64{
				{0.3689, 0.1170, 0.2673},
				{0.4699, 0.4387, 0.7470},
				{0.1091, 0.8732, 0.5547},
				{0.0381, 0.5743, 0.8828},
			},
		),
	})
	register(Problem{
		Name:      "Hartmann6",
		Bounds:    box(6, 0, 1),
		Minimum:   -3.32237,
		Minimizer: []float64{0.20169, 0.150011, 0.476874, 0.275332, 0.311652, 0.6573},
		Func: hartmann(
			[][]float64{
				{10, 3, 17, 3.5, 1.7, 8},
				{0.05, 10, 17, 0.1, 8, 14},
				{3, 3.5, 1.7, 10, 17, 8},
				{17, 8, 0.05, 10, 0.1, 14},
			},
			[][]float64{
				{0.1312, 0.1696, 0.5569, 0.0124, 0.8283, 0.5886},
				{0.2329, 0.4135, 0.8307, 0.3736, 0.1004, 0.9991},
				{0.2348, 0.1451, 0.3522, 0.2883, 0.3047, 0.6650},
				{0.4047, 0.8828, 0.8732, 0.5743, 0.1091, 0.0381},
			},
		),
	})

	for _, d := range []int{5, 6, 7, 8} {
		register(Problem{
			Name:      fmt.Sprintf("Ackley%d", d),
			Bounds:    box(d, -32.768, 32.768),
			Minimum:   0,
			Minimizer: filled(d, 0),
			Func:      ackley,
		})
	}

	register(Problem{
		Name:      "Rastrigin5",
		Bounds:    box(5, -5.12, 5.12),
		Minimum:   0,
		Minimizer: filled(5, 0),
		Func:      rastrigin,
	})
	register(Problem{
		Name:      "Levy4",
		Bounds:    box(4, -10, 10),
		Minimum:   0,
		Minimizer: filled(4, 1),
		Func:      levy,
	})
	register(Problem{
		Name:      "Schwefel5",
		Bounds:    box(5, -500, 500),
		Minimum:   0,
		Minimizer: filled(5, 420.9687),
		Func:      schwefel,
	})
}
