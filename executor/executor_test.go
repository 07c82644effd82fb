package executor

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/pa-m/paramopt/individual"
	"github.com/pa-m/paramopt/param"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBatch(n int) []*individual.Individual {
	var batch []*individual.Individual
	for i := 0; i < n; i++ {
		s := param.NewSet()
		param.AddLeaf(s, param.NewLeaf[float64]("x", float64(i), -10, 10))
		batch = append(batch, individual.New(uint64(i), s))
	}
	return batch
}

func sphereFitness(ctx context.Context, ind *individual.Individual) ([]individual.FitnessResult, error) {
	x := param.Leaves[float64](ind.Params)[0].Value
	return []individual.FitnessResult{{Raw: x * x, Transformed: x * x}}, nil
}

func TestSerialExecutorProcessesBatch(t *testing.T) {
	batch := newTestBatch(5)
	e := NewSerialExecutor(sphereFitness)
	assert.Equal(t, 5, e.GetNProcessable(batch))
	require.NoError(t, e.Process(context.Background(), batch))
	for i, ind := range batch {
		assert.False(t, ind.Dirty)
		f, err := ind.RawFitness(0)
		require.NoError(t, err)
		assert.Equal(t, float64(i*i), f)
	}
	assert.Equal(t, 0, e.GetNProcessable(batch))
}

func TestPoolExecutorProcessesConcurrently(t *testing.T) {
	batch := newTestBatch(20)
	var calls int32
	e := NewPoolExecutor(func(ctx context.Context, ind *individual.Individual) ([]individual.FitnessResult, error) {
		atomic.AddInt32(&calls, 1)
		return sphereFitness(ctx, ind)
	}, 4)
	require.NoError(t, e.Process(context.Background(), batch))
	assert.Equal(t, int32(20), calls)
	for _, ind := range batch {
		assert.True(t, ind.IsValid())
	}
}

func TestExecutorSkipsAlreadyProcessedIndividuals(t *testing.T) {
	batch := newTestBatch(3)
	e := NewSerialExecutor(sphereFitness)
	require.NoError(t, e.Process(context.Background(), batch))
	assert.Equal(t, 0, e.GetNProcessable(batch))

	batch[1].Dirty = true
	assert.Equal(t, 1, e.GetNProcessable(batch))
	require.NoError(t, e.Process(context.Background(), batch))
	assert.Equal(t, 0, e.GetNProcessable(batch))
}
