package algorithm

import (
	"bytes"
	"context"
	"testing"

	"github.com/pa-m/paramopt/executor"
	"github.com/pa-m/paramopt/individual"
	"github.com/pa-m/paramopt/param"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStepper decrements a value each Step and reports one
// individual whose raw fitness strictly improves for the first few
// iterations, then stalls.
type countingStepper struct {
	ind       *individual.Individual
	iter      int
	improveUntil int
}

func newCountingStepper(improveUntil int) *countingStepper {
	s := param.NewSet()
	param.AddLeaf(s, param.NewLeaf[float64]("x", 0, -10, 10))
	return &countingStepper{ind: individual.New(1, s), improveUntil: improveUntil}
}

func (c *countingStepper) Population() []*individual.Individual { return []*individual.Individual{c.ind} }
func (c *countingStepper) Best() *individual.Individual          { return c.ind }

func (c *countingStepper) Step(ctx context.Context) (bool, error) {
	c.iter++
	c.ind.Dirty = true
	return true, nil
}

func fitnessFromIter(stepper *countingStepper) executor.FitnessFunc {
	return func(ctx context.Context, ind *individual.Individual) ([]individual.FitnessResult, error) {
		v := float64(stepper.improveUntil - stepper.iter)
		if v < 0 {
			v = 0
		}
		return []individual.FitnessResult{{Raw: v, Transformed: v}}, nil
	}
}

func TestRunHaltsOnMaxIterations(t *testing.T) {
	st := newCountingStepper(1000)
	b := &Base{Config: Config{
		MaxIterations: 5,
		Executor:      executor.NewSerialExecutor(fitnessFromIter(st)),
	}}
	err := b.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, 5, b.Iteration())
}

func TestRunHaltsOnStall(t *testing.T) {
	st := newCountingStepper(2)
	b := &Base{Config: Config{
		MaxStall: 3,
		Executor: executor.NewSerialExecutor(fitnessFromIter(st)),
	}}
	err := b.Run(context.Background(), st)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, b.Stall(), 3)
}

func TestRunHaltsOnQualityThreshold(t *testing.T) {
	st := newCountingStepper(10)
	b := &Base{Config: Config{
		QualityThreshold:    5,
		QualityThresholdSet: true,
		Executor:            executor.NewSerialExecutor(fitnessFromIter(st)),
	}}
	err := b.Run(context.Background(), st)
	require.NoError(t, err)
	raw, err := st.Best().RawFitness(0)
	require.NoError(t, err)
	assert.LessOrEqual(t, raw, 5.0)
}

type recordingObserver struct {
	modes []InfoMode
}

func (r *recordingObserver) Notify(mode InfoMode, rc *Context) {
	r.modes = append(r.modes, mode)
}

func TestObserversSeeInitProcessingEnd(t *testing.T) {
	st := newCountingStepper(100)
	rec := &recordingObserver{}
	b := &Base{Config: Config{
		MaxIterations: 2,
		Executor:      executor.NewSerialExecutor(fitnessFromIter(st)),
		Observers:     []Observer{rec},
	}}
	require.NoError(t, b.Run(context.Background(), st))
	require.GreaterOrEqual(t, len(rec.modes), 3)
	assert.Equal(t, InfoInit, rec.modes[0])
	assert.Equal(t, InfoEnd, rec.modes[len(rec.modes)-1])
}

func TestCheckpointRoundTrip(t *testing.T) {
	st := newCountingStepper(100)
	b := &Base{Config: Config{
		MaxIterations: 4,
		Executor:      executor.NewSerialExecutor(fitnessFromIter(st)),
	}}
	require.NoError(t, b.Run(context.Background(), st))

	var buf bytes.Buffer
	require.NoError(t, b.Checkpoint(&buf))

	b2 := &Base{}
	require.NoError(t, b2.Restore(&buf))
	assert.Equal(t, b.Iteration(), b2.Iteration())
	assert.Equal(t, b.Stall(), b2.Stall())
}

func TestRequiresExecutor(t *testing.T) {
	st := newCountingStepper(1)
	b := &Base{}
	err := b.Run(context.Background(), st)
	require.Error(t, err)
}
