// Package observer implements the observer chain of spec §4.8: a set
// of algorithm.Observer implementations that watch a run without
// participating in it — console/log monitors, CSV loggers, and a
// gonum/plot-backed progress chart.
package observer

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"github.com/pa-m/paramopt/algorithm"
	"github.com/pa-m/paramopt/errs"
	"github.com/pa-m/paramopt/individual"
	"github.com/pa-m/paramopt/kindmode"
	"github.com/pa-m/paramopt/param"
	"github.com/pa-m/paramopt/propgrammar"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Chain runs a fixed ordered list of Observers in sequence, so a run
// can be wired with one Observer even though it watches several
// concerns (spec §4.8: "observer chain").
type Chain struct {
	Observers []algorithm.Observer
}

// NewChain builds a Chain over the given observers, in order.
func NewChain(observers ...algorithm.Observer) *Chain { return &Chain{Observers: observers} }

func (c *Chain) Notify(mode algorithm.InfoMode, rc *algorithm.Context) {
	for _, o := range c.Observers {
		o.Notify(mode, rc)
	}
}

// StandardMonitor logs one line per INFO_PROCESSING notification,
// following powell.go's optional-*log.Logger idiom: a nil Logger
// silently disables the monitor rather than erroring.
type StandardMonitor struct {
	Logger *log.Logger
}

// NewStandardMonitor builds a monitor writing to w with the given
// line prefix.
func NewStandardMonitor(w io.Writer, prefix string) *StandardMonitor {
	return &StandardMonitor{Logger: log.New(w, prefix, log.LstdFlags)}
}

func (m *StandardMonitor) Notify(mode algorithm.InfoMode, rc *algorithm.Context) {
	if m.Logger == nil {
		return
	}
	switch mode {
	case algorithm.InfoInit:
		m.Logger.Printf("optimization started")
	case algorithm.InfoProcessing:
		if rc.Best != nil {
			if f, err := rc.Best.RawFitness(0); err == nil {
				m.Logger.Printf("iteration=%d stall=%d best=%g", rc.Iteration, rc.Stall, f)
				return
			}
		}
		m.Logger.Printf("iteration=%d stall=%d (no valid individual yet)", rc.Iteration, rc.Stall)
	case algorithm.InfoEnd:
		m.Logger.Printf("optimization finished after %s", rc.Elapsed)
	}
}

// FitnessMonitor keeps the best NMonitorInds individuals seen across
// the run, ranked by fitness criterion 0 (spec §4.8, §8: "best
// individuals bookkeeping"). It clones every candidate it retains, so
// later mutation of the live population does not disturb the ranking.
type FitnessMonitor struct {
	NMonitorInds int
	Logger       *log.Logger

	best []*clonedIndividual
}

type clonedIndividual struct {
	raw float64
	csv string
}

// NewFitnessMonitor builds a monitor retaining the top n individuals.
// A non-positive n is treated as 1, with a warning logged if a
// *log.Logger is provided (spec §8: downsizing/warn behavior).
func NewFitnessMonitor(n int, logger *log.Logger) *FitnessMonitor {
	if n < 1 {
		if logger != nil {
			logger.Printf("fitness monitor: n_monitor_inds=%d invalid, clamped to 1", n)
		}
		n = 1
	}
	return &FitnessMonitor{NMonitorInds: n, Logger: logger}
}

func (m *FitnessMonitor) Notify(mode algorithm.InfoMode, rc *algorithm.Context) {
	if mode != algorithm.InfoProcessing {
		return
	}
	for _, ind := range rc.Population {
		if !ind.IsValid() {
			continue
		}
		raw, err := ind.RawFitness(0)
		if err != nil {
			continue
		}
		m.consider(raw, ind.ToCSV(true, true, true))
	}
}

func (m *FitnessMonitor) consider(raw float64, csv string) {
	m.best = append(m.best, &clonedIndividual{raw: raw, csv: csv})
	sort.Slice(m.best, func(i, j int) bool { return m.best[i].raw < m.best[j].raw })
	if len(m.best) > m.NMonitorInds {
		if m.Logger != nil && len(m.best) == m.NMonitorInds+1 {
			m.Logger.Printf("fitness monitor: downsizing retained set to %d", m.NMonitorInds)
		}
		m.best = m.best[:m.NMonitorInds]
	}
}

// Best returns the retained individuals' raw fitness, best first.
func (m *FitnessMonitor) Best() []float64 {
	out := make([]float64, len(m.best))
	for i, b := range m.best {
		out[i] = b.raw
	}
	return out
}

// AllSolutionLogger appends every processed individual's CSV
// representation to a file. Any pre-existing file is renamed aside as
// "<file>.bak_<ms-since-epoch>" (spec §6) by NewAllSolutionLogger, when
// the logger is constructed; an InfoInit notification does not back up
// or reopen the file.
type AllSolutionLogger struct {
	Path         string
	WithNames    bool
	WithCommas   bool
	UseRaw       bool
	WithValidity bool

	file          *os.File
	headerWritten bool
}

// NewAllSolutionLogger opens path for appending, backing up any
// existing file first. nowMillis is the backup suffix's
// milliseconds-since-epoch, supplied by the caller since this module
// never calls time.Now() internally for anything that must be
// reproducible across resumes.
func NewAllSolutionLogger(path string, nowMillis int64, withNames, withCommas, useRaw, withValidity bool) (*AllSolutionLogger, error) {
	if _, err := os.Stat(path); err == nil {
		backup := fmt.Sprintf("%s.bak_%d", path, nowMillis)
		if err := os.Rename(path, backup); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &AllSolutionLogger{Path: path, WithNames: withNames, WithCommas: withCommas, UseRaw: useRaw, WithValidity: withValidity, file: f}, nil
}

func (l *AllSolutionLogger) Notify(mode algorithm.InfoMode, rc *algorithm.Context) {
	if mode != algorithm.InfoProcessing {
		return
	}
	for _, ind := range rc.Population {
		if ind.Dirty {
			continue
		}
		if l.WithNames && !l.headerWritten {
			fmt.Fprintln(l.file, ind.CSVHeader(l.WithCommas, l.WithValidity))
			l.headerWritten = true
		}
		fmt.Fprintln(l.file, ind.ToCSV(l.WithCommas, l.UseRaw, l.WithValidity))
	}
}

// Close flushes and closes the underlying file.
func (l *AllSolutionLogger) Close() error { return l.file.Close() }

// IterationResultsLogger writes one CSV row per iteration: iteration
// number, stall count, and the best individual's raw fitness 0.
type IterationResultsLogger struct {
	w io.Writer
}

// NewIterationResultsLogger builds a logger writing to w, with a
// header row written immediately.
func NewIterationResultsLogger(w io.Writer) *IterationResultsLogger {
	fmt.Fprintln(w, "iteration,stall,best_raw")
	return &IterationResultsLogger{w: w}
}

func (l *IterationResultsLogger) Notify(mode algorithm.InfoMode, rc *algorithm.Context) {
	if mode != algorithm.InfoProcessing {
		return
	}
	best := "NA"
	if rc.Best != nil {
		if f, err := rc.Best.RawFitness(0); err == nil {
			best = fmt.Sprintf("%g", f)
		}
	}
	fmt.Fprintf(l.w, "%d,%d,%s\n", rc.Iteration, rc.Stall, best)
}

// NAdaptionsLogger writes one CSV row per iteration with the total
// number of scalar adaptions performed across the population so far.
type NAdaptionsLogger struct {
	w io.Writer
}

func NewNAdaptionsLogger(w io.Writer) *NAdaptionsLogger {
	fmt.Fprintln(w, "iteration,n_adaptions")
	return &NAdaptionsLogger{w: w}
}

func (l *NAdaptionsLogger) Notify(mode algorithm.InfoMode, rc *algorithm.Context) {
	if mode != algorithm.InfoProcessing {
		return
	}
	total := 0
	for _, ind := range rc.Population {
		total += ind.GetNAdaptions()
	}
	fmt.Fprintf(l.w, "%d,%d\n", rc.Iteration, total)
}

// ProcessingTimesLogger writes one plain-text CSV row per individual on
// every INFO_PROCESSING notification, accumulates the main processing
// durations across the run, and on demand renders them as a histogram
// via gonum/plot (spec §4.8: a processing-times observer).
type ProcessingTimesLogger struct {
	w       io.Writer
	samples []time.Duration
}

func NewProcessingTimesLogger(w io.Writer) *ProcessingTimesLogger {
	fmt.Fprintln(w, "iteration,individual_id,main_ns")
	return &ProcessingTimesLogger{w: w}
}

func (l *ProcessingTimesLogger) Notify(mode algorithm.InfoMode, rc *algorithm.Context) {
	if mode != algorithm.InfoProcessing {
		return
	}
	for _, ind := range rc.Population {
		d := ind.GetProcessingTimes().Main
		l.samples = append(l.samples, d)
		fmt.Fprintf(l.w, "%d,%d,%d\n", rc.Iteration, ind.ID, d.Nanoseconds())
	}
}

// Histogram renders the accumulated processing-time samples as a
// gonum/plot histogram PNG at path.
func (l *ProcessingTimesLogger) Histogram(path string, bins int) error {
	vals := make(plotter.Values, len(l.samples))
	for i, d := range l.samples {
		vals[i] = d.Seconds() * 1000
	}
	p := plot.New()
	p.Title.Text = "processing time (ms)"
	h, err := plotter.NewHist(vals, bins)
	if err != nil {
		return err
	}
	p.Add(h)
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// AdaptorPropertyLogger accumulates (iteration, value) pairs for a
// named property of a named adaptor kind, queried from either only the
// best individual or every individual each iteration, alongside the
// run's fitness curve, and renders both via gonum/plot at Save (spec
// §4.8's adaptor-property logger, grounded on GAdaptorPropertyLogger:
// "queries each individual's named adaptor for a named property,
// accumulates and plots analogously").
type AdaptorPropertyLogger struct {
	AdaptorName     string
	Property        string
	MonitorBestOnly bool

	iterations []float64
	values     []float64
	fitnessX   []float64
	fitnessY   []float64
}

// NewAdaptorPropertyLogger builds a logger watching property of
// adaptors of kind adaptorName. Empty arguments default to
// "GaussianAdaptor"/"sigma", mirroring GAdaptorPropertyLogger's default
// constructor arguments ("GDoubleGaussAdaptor"/"sigma").
func NewAdaptorPropertyLogger(adaptorName, property string, monitorBestOnly bool) *AdaptorPropertyLogger {
	if adaptorName == "" {
		adaptorName = "GaussianAdaptor"
	}
	if property == "" {
		property = "sigma"
	}
	return &AdaptorPropertyLogger{AdaptorName: adaptorName, Property: property, MonitorBestOnly: monitorBestOnly}
}

func (l *AdaptorPropertyLogger) Notify(mode algorithm.InfoMode, rc *algorithm.Context) {
	if mode != algorithm.InfoProcessing {
		return
	}
	if rc.Best != nil {
		if f, err := rc.Best.RawFitness(0); err == nil {
			l.fitnessX = append(l.fitnessX, float64(rc.Iteration))
			l.fitnessY = append(l.fitnessY, f)
		}
	}
	if l.MonitorBestOnly {
		if rc.Best != nil {
			l.collect(rc.Iteration, rc.Best)
		}
		return
	}
	for _, ind := range rc.Population {
		l.collect(rc.Iteration, ind)
	}
}

func (l *AdaptorPropertyLogger) collect(iteration int, ind *individual.Individual) {
	for _, v := range ind.QueryAdaptorProperty(l.AdaptorName, l.Property) {
		l.iterations = append(l.iterations, float64(iteration))
		l.values = append(l.values, v)
	}
}

// Save renders the accumulated adaptor-property scatter (iteration vs.
// queried value) and the run's fitness curve to path and fitnessPath
// respectively, following this package's one-chart-per-Save-call
// convention rather than GAdaptorPropertyLogger's single combined
// multi-pane canvas.
func (l *AdaptorPropertyLogger) Save(path, fitnessPath string) error {
	propPlot := plot.New()
	propPlot.Title.Text = fmt.Sprintf("%s.%s by iteration", l.AdaptorName, l.Property)
	propPlot.X.Label.Text = "iteration"
	propPlot.Y.Label.Text = l.Property
	pts := make(plotter.XYs, len(l.iterations))
	for i := range l.iterations {
		pts[i].X, pts[i].Y = l.iterations[i], l.values[i]
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	propPlot.Add(sc)
	if err := propPlot.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return err
	}

	if fitnessPath == "" {
		return nil
	}
	fitPlot := plot.New()
	fitPlot.Title.Text = "best fitness by iteration"
	fitPlot.X.Label.Text = "iteration"
	fitPlot.Y.Label.Text = "best raw fitness"
	fitPts := make(plotter.XYs, len(l.fitnessX))
	for i := range l.fitnessX {
		fitPts[i].X, fitPts[i].Y = l.fitnessX[i], l.fitnessY[i]
	}
	line, err := plotter.NewLine(fitPts)
	if err != nil {
		return err
	}
	fitPlot.Add(line)
	return fitPlot.Save(6*vg.Inch, 4*vg.Inch, fitnessPath)
}

// propertyGetter reads one real-valued (double or float) parameter
// from an individual's tree, re-resolving its <ref> against that tree
// on every call, as package scan does for its setters.
type propertyGetter struct {
	label string
	get   func(ind *individual.Individual) (float64, bool)
}

// ProgressPlotter accumulates (param..., fitness) tuples for one to
// three real-valued parameters named by a property string, from
// either the best individual or every individual each iteration, and
// renders them as a scatter via gonum/plot (spec §4.8, grounded on
// GProgressPlotter: "accumulate x[,y[,z]] vs. fitness tuples for the
// parameters named by a property string"). ValidOnly restricts
// accumulation to individuals that pass IsValid.
type ProgressPlotter struct {
	getters         []propertyGetter
	monitorBestOnly bool
	validOnly       bool

	coords  [][]float64 // one slice per getter, parallel to fitness
	fitness []float64
}

// NewProgressPlotter parses property (spec §4.3's grammar) against
// base's tree and builds a plotter over the 1-3 real parameters it
// names. Only double and float entries count as "real parameters";
// int32/bool entries in property are rejected, matching the spec's
// "K real parameters" wording. monitorBestOnly restricts accumulation
// to the best individual per iteration; validOnly additionally
// requires IsValid.
func NewProgressPlotter(property string, base *individual.Individual, monitorBestOnly, validOnly bool) (*ProgressPlotter, error) {
	specs, err := propgrammar.Parse(property)
	if err != nil {
		return nil, err
	}
	if len(specs.Int) > 0 || len(specs.Bool) > 0 {
		return nil, errs.New(errs.InvalidConfiguration, "progress plotter: property string must select only real (double/float) parameters")
	}
	var getters []propertyGetter
	for _, sp := range specs.Double {
		g, err := resolveGetter(base, sp)
		if err != nil {
			return nil, err
		}
		getters = append(getters, g)
	}
	for _, sp := range specs.Float {
		g, err := resolveGetter(base, sp)
		if err != nil {
			return nil, err
		}
		getters = append(getters, g)
	}
	if len(getters) < 1 || len(getters) > 3 {
		return nil, errs.New(errs.InvalidConfiguration, "progress plotter: property string must select 1-3 real parameters, got %d", len(getters))
	}
	return &ProgressPlotter{
		getters:         getters,
		monitorBestOnly: monitorBestOnly,
		validOnly:       validOnly,
		coords:          make([][]float64, len(getters)),
	}, nil
}

func (p *ProgressPlotter) Notify(mode algorithm.InfoMode, rc *algorithm.Context) {
	if mode != algorithm.InfoProcessing {
		return
	}
	if p.monitorBestOnly {
		if rc.Best != nil {
			p.record(rc.Best)
		}
		return
	}
	for _, ind := range rc.Population {
		p.record(ind)
	}
}

func (p *ProgressPlotter) record(ind *individual.Individual) {
	if ind.Dirty {
		return
	}
	if p.validOnly && !ind.IsValid() {
		return
	}
	f, err := ind.RawFitness(0)
	if err != nil {
		return
	}
	vals := make([]float64, len(p.getters))
	for i, g := range p.getters {
		v, ok := g.get(ind)
		if !ok {
			return
		}
		vals[i] = v
	}
	for i, v := range vals {
		p.coords[i] = append(p.coords[i], v)
	}
	p.fitness = append(p.fitness, f)
}

// Coords returns the accumulated parameter coordinates, one slice per
// selected parameter (1-3), parallel to Fitness. A caller plotting more
// than one selected parameter renders additional panels from this
// directly rather than through Save, which only ever charts param[0].
func (p *ProgressPlotter) Coords() [][]float64 { return p.coords }

// Fitness returns the raw fitness value recorded alongside each
// accumulated tuple, parallel to Coords.
func (p *ProgressPlotter) Fitness() []float64 { return p.fitness }

// Save renders the accumulated tuples to path as a scatter of the
// first selected parameter against fitness, matching this package's
// other loggers' single-chart Save contract. With two or three
// selected parameters the remaining coordinates are still retained in
// Coords for a caller that wants a multi-panel rendering of its own.
func (p *ProgressPlotter) Save(path string) error {
	plt := plot.New()
	plt.Title.Text = fmt.Sprintf("fitness vs. %s", p.getters[0].label)
	plt.X.Label.Text = p.getters[0].label
	plt.Y.Label.Text = "raw fitness"

	pts := make(plotter.XYs, len(p.fitness))
	for i := range p.fitness {
		pts[i].X = p.coords[0][i]
		pts[i].Y = p.fitness[i]
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	plt.Add(sc)
	return plt.Save(6*vg.Inch, 4*vg.Inch, path)
}

// resolveGetter builds a propertyGetter for sp by re-resolving sp's
// <ref> against each queried individual's own tree, the same
// per-call-resolution scheme package scan uses so the getter works
// across distinct individuals' trees, not just base's.
func resolveGetter[T float64 | float32](base *individual.Individual, sp propgrammar.Spec[T]) (propertyGetter, error) {
	if _, err := lookupValue(base, sp); err != nil {
		return propertyGetter{}, err
	}
	label := sp.Name
	if label == "" {
		label = fmt.Sprintf("pos%d", sp.Pos)
	}
	return propertyGetter{
		label: label,
		get: func(ind *individual.Individual) (float64, bool) {
			v, err := lookupValue(ind, sp)
			if err != nil {
				return 0, false
			}
			return v, true
		},
	}, nil
}

func lookupValue[T float64 | float32](ind *individual.Individual, sp propgrammar.Spec[T]) (float64, error) {
	switch sp.Mode {
	case propgrammar.ByPosition:
		leaves := param.Streamline[T](ind.Params, nil, kindmode.All)
		if sp.Pos < 0 || sp.Pos >= len(leaves) {
			return 0, errs.New(errs.InvalidConfiguration, "progress plotter: positional ref %d out of range", sp.Pos)
		}
		return float64(leaves[sp.Pos]), nil
	case propgrammar.ByName:
		named := map[string][]T{}
		param.StreamlineMap[T](ind.Params, named, kindmode.All)
		vs, ok := named[sp.Name]
		if !ok || len(vs) == 0 {
			return 0, errs.New(errs.InvalidConfiguration, "progress plotter: no leaf named %q", sp.Name)
		}
		return float64(vs[0]), nil
	default:
		return 0, errs.New(errs.InvalidConfiguration, "progress plotter: unsupported ref mode for a progress-plot property")
	}
}
