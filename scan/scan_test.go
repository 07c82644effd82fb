package scan

import (
	"context"
	"testing"

	"github.com/pa-m/paramopt/errs"
	"github.com/pa-m/paramopt/individual"
	"github.com/pa-m/paramopt/param"
	"github.com/pa-m/paramopt/propgrammar"
	"github.com/pa-m/paramopt/rngsvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBaseIndividual() *individual.Individual {
	s := param.NewSet()
	param.AddLeaf(s, param.NewLeaf[float64]("x", 0, -1, 1))
	param.AddLeaf(s, param.NewLeaf[int32]("n", 0, 0, 1))
	return individual.New(1, s)
}

func TestGridScannerEnumeratesFullCartesianProduct(t *testing.T) {
	specs, err := propgrammar.Parse("d(x,0,1,3),i(n,0,1,2)")
	require.NoError(t, err)

	base := newBaseIndividual()
	sc, err := NewGridScanner(base, specs, 1)
	require.NoError(t, err)

	var seen [][2]float64
	for {
		more, err := sc.Step(context.Background())
		if err != nil {
			require.True(t, errs.Is(err, errs.EndOfEnumeration))
			break
		}
		pop := sc.Population()
		require.Len(t, pop, 1)
		x := param.Leaves[float64](pop[0].Params)[0].Value
		n := param.Leaves[int32](pop[0].Params)[0].Value
		seen = append(seen, [2]float64{x, float64(n)})
		if !more {
			break
		}
	}
	assert.Equal(t, 6, len(seen)) // 3 steps * 2 steps
	assert.True(t, sc.AllExhausted())
}

func TestGridScannerFirstDimensionFastestVarying(t *testing.T) {
	specs, err := propgrammar.Parse("d(x,0,1,2),i(n,0,1,2)")
	require.NoError(t, err)
	base := newBaseIndividual()
	sc, err := NewGridScanner(base, specs, 1)
	require.NoError(t, err)

	xs := []float64{}
	for i := 0; i < 4; i++ {
		sc.Step(context.Background())
		xs = append(xs, param.Leaves[float64](sc.Population()[0].Params)[0].Value)
	}
	// x toggles every step, n toggles every other step.
	assert.NotEqual(t, xs[0], xs[1])
}

func TestGridScannerBatchesUpToPopulationSize(t *testing.T) {
	// 11 grid points total (single dimension), batched 4 at a time:
	// ceil(11/4) = 3 iterations, sizes 4, 4, 3.
	specs, err := propgrammar.Parse("d(x,0,1,11)")
	require.NoError(t, err)
	base := newBaseIndividual()
	sc, err := NewGridScanner(base, specs, 4)
	require.NoError(t, err)

	var batchSizes []int
	total := 0
	for {
		more, err := sc.Step(context.Background())
		if err != nil {
			require.True(t, errs.Is(err, errs.EndOfEnumeration))
			break
		}
		batchSizes = append(batchSizes, len(sc.Population()))
		total += len(sc.Population())
		if !more {
			break
		}
	}
	assert.Equal(t, []int{4, 4, 3}, batchSizes)
	assert.Equal(t, 11, total)
	assert.True(t, sc.AllExhausted())
}

func TestGridScannerClonesAreIndependent(t *testing.T) {
	specs, err := propgrammar.Parse("d(x,0,1,4)")
	require.NoError(t, err)
	base := newBaseIndividual()
	sc, err := NewGridScanner(base, specs, 4)
	require.NoError(t, err)

	_, err = sc.Step(context.Background())
	require.NoError(t, err)
	pop := sc.Population()
	require.Len(t, pop, 4)
	var xs []float64
	for _, ind := range pop {
		xs = append(xs, param.Leaves[float64](ind.Params)[0].Value)
	}
	assert.Equal(t, []float64{0, 1.0 / 3, 2.0 / 3, 1}, xs)
}

func TestRandomScannerNeverExhausts(t *testing.T) {
	specs, err := propgrammar.Parse("d(x,-1,1,5)")
	require.NoError(t, err)
	base := newBaseIndividual()
	rng := rngsvc.New(1)
	sc, err := NewRandomScanner(base, specs, rng, 3)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		more, err := sc.Step(context.Background())
		require.NoError(t, err)
		assert.True(t, more)
		pop := sc.Population()
		require.Len(t, pop, 3)
		for _, ind := range pop {
			v := param.Leaves[float64](ind.Params)[0].Value
			assert.GreaterOrEqual(t, v, -1.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestSimpleScannerRandomizesWholeTreeAndHaltsAtTotalItems(t *testing.T) {
	base := newBaseIndividual()
	rng := rngsvc.New(2)
	sc := NewSimpleScanner(base, rng, 4, 10)

	total := 0
	for {
		more, err := sc.Step(context.Background())
		require.NoError(t, err)
		for _, ind := range sc.Population() {
			assert.True(t, ind.Dirty)
		}
		total += len(sc.Population())
		if !more {
			break
		}
	}
	assert.Equal(t, 10, total)
	_, err := sc.Step(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.EndOfEnumeration))
}

func TestGridScannerRejectsBadRef(t *testing.T) {
	specs, err := propgrammar.Parse("d(5,0,1,3)")
	require.NoError(t, err)
	base := newBaseIndividual()
	_, err = NewGridScanner(base, specs, 1)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidConfiguration))
}
