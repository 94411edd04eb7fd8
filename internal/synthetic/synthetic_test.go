package synthetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownMinima(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			p, err := Lookup(name)
			require.NoError(t, err)

			require.Len(t, p.Minimizer, p.Dim())

			got, err := p.Evaluate(p.Minimizer)
			require.NoError(t, err)

			assert.InDelta(t, p.Minimum, got, 1e-3)
		})
	}
}

func TestMinimizerInsideBounds(t *testing.T) {
	for _, name := range Names() {
		p, err := Lookup(name)
		require.NoError(t, err)

		for j, b := range p.Bounds {
			assert.Less(t, b[0], b[1], "%s dim %d", name, j)
			assert.GreaterOrEqual(t, p.Minimizer[j], b[0], "%s dim %d", name, j)
			assert.LessOrEqual(t, p.Minimizer[j], b[1], "%s dim %d", name, j)
		}
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	p, err := Lookup("branin")
	require.NoError(t, err)
	assert.Equal(t, "Branin", p.Name)

	_, err = Lookup("nope")
	assert.ErrorContains(t, err, "unknown problem")
}

func TestEvaluateChecksDimension(t *testing.T) {
	p, err := Lookup("Hartmann3")
	require.NoError(t, err)

	_, err = p.Evaluate([]float64{0.1, 0.2})
	assert.Error(t, err)
}
