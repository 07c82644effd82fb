package adaptor

import (
	"testing"

	"github.com/pa-m/paramopt/errs"
	"github.com/pa-m/paramopt/rngsvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaussianAdaptorNeverModeLeavesValueUnchanged(t *testing.T) {
	g, err := NewGaussianAdaptor[float64](1, 0.1, 0.01, 10)
	require.NoError(t, err)
	g.Mode = Never
	rng := rngsvc.New(1)
	v := g.Adapt(3.14, rng)
	assert.Equal(t, 3.14, v)
}

func TestGaussianAdaptorValidatesConfiguration(t *testing.T) {
	_, err := NewGaussianAdaptor[float64](1, 0.1, 0, 10)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidConfiguration))

	_, err = NewGaussianAdaptor[float64](20, 0.1, 1, 10)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidConfiguration))
}

func TestGaussianAdaptorSigmaStaysWithinBounds(t *testing.T) {
	g, err := NewGaussianAdaptor[float64](1, 2, 0.5, 2)
	require.NoError(t, err)
	g.Threshold = 1
	rng := rngsvc.New(42)
	for i := 0; i < 500; i++ {
		g.Adapt(0, rng)
		assert.GreaterOrEqual(t, g.Sigma, g.MinSigma)
		assert.LessOrEqual(t, g.Sigma, g.MaxSigma)
	}
}

func TestBoolFlipAdaptorToggles(t *testing.T) {
	f := NewBoolFlipAdaptor()
	rng := rngsvc.New(7)
	assert.Equal(t, false, f.Adapt(true, rng))
	assert.Equal(t, true, f.Adapt(false, rng))
}

func TestSwarmAdaptorPinsMode(t *testing.T) {
	s := NewSwarmAdaptor(0.7, 1.4, 1.4)
	err := s.SetAdaptionMode(Never)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.StateViolation))
}

func TestSwarmAdaptorMovesTowardBests(t *testing.T) {
	s := NewSwarmAdaptor(0, 1, 0)
	s.LocalBest = 10
	rng := rngsvc.New(3)
	v := 0.0
	for i := 0; i < 50; i++ {
		v = s.Adapt(v, rng)
	}
	assert.Greater(t, v, 5.0)
}

func TestInt32FlipAdaptorStepsByRange(t *testing.T) {
	f, err := NewInt32FlipAdaptor(1)
	require.NoError(t, err)
	rng := rngsvc.New(9)
	v := int32(5)
	for i := 0; i < 10; i++ {
		nv := f.Adapt(v, rng)
		assert.LessOrEqual(t, abs32(nv-v), int32(1))
		v = nv
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
