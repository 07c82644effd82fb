package individual

import (
	"strings"
	"testing"

	"github.com/pa-m/paramopt/errs"
	"github.com/pa-m/paramopt/param"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndividual() *Individual {
	s := param.NewSet()
	param.AddLeaf(s, param.NewLeaf[float64]("x", 1.5, -5, 5))
	param.AddLeaf(s, param.NewLeaf[int32]("n", 3, 0, 10))
	return New(1, s)
}

func TestFreshIndividualIsDirty(t *testing.T) {
	ind := newTestIndividual()
	assert.True(t, ind.Dirty)
	_, err := ind.RawFitness(0)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.StateViolation))
}

func TestSetFitnessClearsDirty(t *testing.T) {
	ind := newTestIndividual()
	ind.SetFitness([]FitnessResult{{Raw: 2, Transformed: 4}})
	assert.False(t, ind.Dirty)
	raw, err := ind.RawFitness(0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, raw)
	tr, err := ind.TransformedFitness(0)
	require.NoError(t, err)
	assert.Equal(t, 4.0, tr)
	assert.True(t, ind.IsValid())
}

func TestFitnessIndexOutOfRange(t *testing.T) {
	ind := newTestIndividual()
	ind.SetFitness([]FitnessResult{{Raw: 1, Transformed: 1}})
	_, err := ind.RawFitness(5)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.StateViolation))
}

func TestCloneIsIndependent(t *testing.T) {
	ind := newTestIndividual()
	ind.SetFitness([]FitnessResult{{Raw: 1, Transformed: 1}})
	clone := ind.Clone()
	assert.True(t, ind.Equal(clone, 1e-9))

	clone.SetFitness([]FitnessResult{{Raw: 99, Transformed: 99}})
	assert.False(t, ind.Equal(clone, 1e-9))
}

func TestIsGoodEnough(t *testing.T) {
	ind := newTestIndividual()
	ind.SetFitness([]FitnessResult{{Raw: 1, Transformed: 0.5}})
	assert.True(t, ind.IsGoodEnough([]float64{1.0}))
	assert.False(t, ind.IsGoodEnough([]float64{0.1}))
}

func TestToCSVFieldOrderAndSeparator(t *testing.T) {
	ind := newTestIndividual()
	ind.SetFitness([]FitnessResult{{Raw: 2, Transformed: 4}})

	plain := ind.ToCSV(true, false, true)
	parts := strings.Split(plain, ",")
	// x (double), n (int32), fit0, valid
	require.Len(t, parts, 4)
	assert.Equal(t, "1.5", parts[0])
	assert.Equal(t, "3", parts[1])
	assert.Equal(t, "4", parts[2])
	assert.Equal(t, "true", parts[3])

	spaced := ind.ToCSV(false, true, false)
	assert.Equal(t, "1.5 3 2", spaced)
}

func TestCSVHeaderIsOneLineOfNamesAndTypeTags(t *testing.T) {
	ind := newTestIndividual()
	ind.SetFitness([]FitnessResult{{Raw: 2, Transformed: 4}})

	header := ind.CSVHeader(true, true)
	assert.Equal(t, "d0:d,i0:i,fit0:d,valid:b", header)
}

func TestAdaptMarksDirtyEvenWithoutAdaptors(t *testing.T) {
	ind := newTestIndividual()
	ind.SetFitness([]FitnessResult{{Raw: 1, Transformed: 1}})
	assert.False(t, ind.Dirty)
	n := ind.Adapt(noopSource{})
	assert.Equal(t, 0, n)
	assert.True(t, ind.Dirty)
}

type noopSource struct{}

func (noopSource) UniformFloat64() float64         { return 0 }
func (noopSource) UniformInt(lo, hi int) int        { return lo }
func (noopSource) Bernoulli(p float64) bool         { return false }
func (noopSource) Gaussian(mean, sigma float64) float64 { return mean }
