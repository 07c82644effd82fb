package observer

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/pa-m/paramopt/adaptor"
	"github.com/pa-m/paramopt/algorithm"
	"github.com/pa-m/paramopt/individual"
	"github.com/pa-m/paramopt/param"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeValidIndividual(id uint64, raw float64) *individual.Individual {
	s := param.NewSet()
	param.AddLeaf(s, param.NewLeaf[float64]("x", raw, -100, 100))
	ind := individual.New(id, s)
	ind.SetFitness([]individual.FitnessResult{{Raw: raw, Transformed: raw}})
	return ind
}

func TestStandardMonitorWritesLines(t *testing.T) {
	var buf bytes.Buffer
	m := &StandardMonitor{Logger: log.New(&buf, "", 0)}
	ind := makeValidIndividual(1, 3)
	m.Notify(algorithm.InfoInit, &algorithm.Context{})
	m.Notify(algorithm.InfoProcessing, &algorithm.Context{Iteration: 1, Best: ind})
	m.Notify(algorithm.InfoEnd, &algorithm.Context{})
	out := buf.String()
	assert.Contains(t, out, "optimization started")
	assert.Contains(t, out, "iteration=1")
	assert.Contains(t, out, "optimization finished")
}

func TestFitnessMonitorRetainsTopN(t *testing.T) {
	m := NewFitnessMonitor(2, nil)
	pop := []*individual.Individual{
		makeValidIndividual(1, 5),
		makeValidIndividual(2, 1),
		makeValidIndividual(3, 3),
	}
	m.Notify(algorithm.InfoProcessing, &algorithm.Context{Population: pop})
	best := m.Best()
	require.Len(t, best, 2)
	assert.Equal(t, 1.0, best[0])
	assert.Equal(t, 3.0, best[1])
}

func TestFitnessMonitorClampsInvalidN(t *testing.T) {
	var buf bytes.Buffer
	m := NewFitnessMonitor(0, log.New(&buf, "", 0))
	assert.Equal(t, 1, m.NMonitorInds)
	assert.Contains(t, buf.String(), "clamped to 1")
}

func TestAllSolutionLoggerBacksUpExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solutions.csv")
	require.NoError(t, os.WriteFile(path, []byte("old content\n"), 0o644))

	l, err := NewAllSolutionLogger(path, 1234, true, true, true, true)
	require.NoError(t, err)
	defer l.Close()

	backup := path + ".bak_1234"
	_, err = os.Stat(backup)
	require.NoError(t, err)

	ind := makeValidIndividual(1, 2)
	l.Notify(algorithm.InfoProcessing, &algorithm.Context{Population: []*individual.Individual{ind}})
	require.NoError(t, l.file.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := splitLines(string(content))
	require.Len(t, lines, 2)
	assert.Equal(t, "d0:d,fit0:d,valid:b", lines[0])
	assert.Equal(t, "2,2,true", lines[1])
}

func TestAllSolutionLoggerWritesHeaderOnceAcrossMultipleNotifies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solutions.csv")

	l, err := NewAllSolutionLogger(path, 1234, true, true, true, true)
	require.NoError(t, err)
	defer l.Close()

	ind1 := makeValidIndividual(1, 2)
	ind2 := makeValidIndividual(2, 4)
	l.Notify(algorithm.InfoProcessing, &algorithm.Context{Population: []*individual.Individual{ind1}})
	l.Notify(algorithm.InfoProcessing, &algorithm.Context{Population: []*individual.Individual{ind2}})
	require.NoError(t, l.file.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := splitLines(string(content))
	require.Len(t, lines, 3)
	assert.Equal(t, "d0:d,fit0:d,valid:b", lines[0])
	assert.Equal(t, "2,2,true", lines[1])
	assert.Equal(t, "4,4,true", lines[2])
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func TestIterationResultsLoggerWritesHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	l := NewIterationResultsLogger(&buf)
	ind := makeValidIndividual(1, 7)
	l.Notify(algorithm.InfoProcessing, &algorithm.Context{Iteration: 2, Stall: 1, Best: ind})
	out := buf.String()
	assert.Contains(t, out, "iteration,stall,best_raw")
	assert.Contains(t, out, "2,1,7")
}

func makeGaussianIndividual(id uint64, raw, sigma float64) *individual.Individual {
	g, err := adaptor.NewGaussianAdaptor[float64](sigma, 0.1, 0.01, 10)
	if err != nil {
		panic(err)
	}
	s := param.NewSet()
	l := param.NewLeaf[float64]("x", raw, -100, 100)
	l.AddAdaptor(g)
	param.AddLeaf(s, l)
	ind := individual.New(id, s)
	ind.SetFitness([]individual.FitnessResult{{Raw: raw, Transformed: raw}})
	return ind
}

func TestAdaptorPropertyLoggerCollectsNamedPropertyAcrossPopulation(t *testing.T) {
	ind1 := makeGaussianIndividual(1, 1, 0.5)
	ind2 := makeGaussianIndividual(2, 2, 0.8)

	logger := NewAdaptorPropertyLogger("GaussianAdaptor", "sigma", false)
	logger.Notify(algorithm.InfoProcessing, &algorithm.Context{
		Iteration:  1,
		Population: []*individual.Individual{ind1, ind2},
		Best:       ind1,
	})

	assert.Equal(t, []float64{0.5, 0.8}, logger.values)
	assert.Equal(t, []float64{1, 1}, logger.iterations)
	assert.Equal(t, []float64{1}, logger.fitnessX)
	assert.Equal(t, []float64{1.0}, logger.fitnessY)
}

func TestAdaptorPropertyLoggerMonitorBestOnlyAndDefaults(t *testing.T) {
	ind1 := makeGaussianIndividual(1, 1, 0.5)
	ind2 := makeGaussianIndividual(2, 2, 0.8)

	logger := NewAdaptorPropertyLogger("", "", true)
	assert.Equal(t, "GaussianAdaptor", logger.AdaptorName)
	assert.Equal(t, "sigma", logger.Property)

	logger.Notify(algorithm.InfoProcessing, &algorithm.Context{
		Iteration:  1,
		Population: []*individual.Individual{ind1, ind2},
		Best:       ind1,
	})
	assert.Equal(t, []float64{0.5}, logger.values)
}

func TestProgressPlotterAccumulatesParamFitnessTuples(t *testing.T) {
	base := makeValidIndividual(1, 0)
	pp, err := NewProgressPlotter("d(x,0,0)", base, false, false)
	require.NoError(t, err)

	ind1 := makeValidIndividual(1, 3)
	ind2 := makeValidIndividual(2, 5)
	pp.Notify(algorithm.InfoProcessing, &algorithm.Context{Population: []*individual.Individual{ind1, ind2}})

	assert.Equal(t, []float64{3, 5}, pp.Coords()[0])
	assert.Equal(t, []float64{3, 5}, pp.Fitness())
}

func TestNewProgressPlotterRejectsNonRealParameters(t *testing.T) {
	base := makeValidIndividual(1, 0)
	_, err := NewProgressPlotter("i(x,0,0)", base, false, false)
	require.Error(t, err)
}

func TestChainNotifiesEveryObserverInOrder(t *testing.T) {
	var order []string
	a := recorderObs{name: "a", out: &order}
	b := recorderObs{name: "b", out: &order}
	c := NewChain(a, b)
	c.Notify(algorithm.InfoInit, &algorithm.Context{})
	assert.Equal(t, []string{"a", "b"}, order)
}

type recorderObs struct {
	name string
	out  *[]string
}

func (r recorderObs) Notify(mode algorithm.InfoMode, rc *algorithm.Context) {
	*r.out = append(*r.out, r.name)
}
