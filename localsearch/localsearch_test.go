package localsearch

import (
	"context"
	"math"
	"testing"

	"github.com/pa-m/paramopt/individual"
	"github.com/pa-m/paramopt/param"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sphere(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v * v
	}
	return s
}

func newSearchIndividual(x0 []float64) *individual.Individual {
	s := param.NewSet()
	for i, v := range x0 {
		param.AddLeaf(s, param.NewLeaf(string(rune('a'+i)), v, -10, 10))
	}
	return individual.New(1, s)
}

func TestSearchConvergesToSphereMinimum(t *testing.T) {
	ind := newSearchIndividual([]float64{3, -2})
	search := New(ind, sphere, DefaultConfig())

	more, err := search.Step(context.Background())
	require.NoError(t, err)
	assert.False(t, more)
	assert.True(t, ind.IsValid())

	raw, err := ind.RawFitness(0)
	require.NoError(t, err)
	assert.Less(t, raw, 1e-4)

	for _, leaf := range param.Leaves[float64](ind.Params) {
		assert.True(t, math.Abs(leaf.Value) < 0.05)
	}
}

func TestSearchIsDoneAfterFirstStep(t *testing.T) {
	ind := newSearchIndividual([]float64{1})
	search := New(ind, sphere, DefaultConfig())
	_, _ = search.Step(context.Background())
	more, err := search.Step(context.Background())
	require.NoError(t, err)
	assert.False(t, more)
}
