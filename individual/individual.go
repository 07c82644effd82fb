// Package individual implements the individual contract of spec §4.4:
// a candidate solution carrying a parameter tree, its fitness results,
// and the bookkeeping an algorithm needs to decide what to do with it
// next.
package individual

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pa-m/paramopt/errs"
	"github.com/pa-m/paramopt/kindmode"
	"github.com/pa-m/paramopt/param"
	"github.com/pa-m/paramopt/rngsvc"
)

// FitnessResult is one named fitness criterion's raw and transformed
// value (spec §4.4).
type FitnessResult struct {
	Raw         float64
	Transformed float64
}

// ProcessingTimes records how long an individual spent in each phase
// of an executor's processing pipeline (spec §4.7).
type ProcessingTimes struct {
	Pre  time.Duration
	Main time.Duration
	Post time.Duration
}

// Individual is one candidate solution (spec §4.4). The zero value is
// not usable; construct with New.
type Individual struct {
	ID     uint64
	Params *param.Set

	FitnessResults []FitnessResult
	Dirty          bool
	HasErrors      bool
	IsProcessed    bool

	NAdaptions        int
	ProcessingTimes   ProcessingTimes
	PersonalityTraits any
	AssignedIteration int
}

// New constructs an individual wrapping the given parameter tree. The
// individual starts Dirty (spec §4.4: a freshly built individual has
// no fitness yet) so that reading fitness before the first processing
// pass fails loudly rather than returning a stale zero value.
func New(id uint64, params *param.Set) *Individual {
	return &Individual{ID: id, Params: params, Dirty: true}
}

// Clone returns a deep copy: a new parameter tree, a copy of the
// fitness results, and independent bookkeeping counters
// (spec §8 testable property 1).
func (ind *Individual) Clone() *Individual {
	c := &Individual{
		ID:                ind.ID,
		Params:            ind.Params.Clone(),
		Dirty:             ind.Dirty,
		HasErrors:         ind.HasErrors,
		IsProcessed:       ind.IsProcessed,
		NAdaptions:        ind.NAdaptions,
		ProcessingTimes:   ind.ProcessingTimes,
		PersonalityTraits: ind.PersonalityTraits,
		AssignedIteration: ind.AssignedIteration,
	}
	c.FitnessResults = append([]FitnessResult(nil), ind.FitnessResults...)
	return c
}

// Equal reports whether two individuals hold equal parameters and
// fitness results within eps (spec §8 testable property 1).
func (ind *Individual) Equal(o *Individual, eps float64) bool {
	if !ind.Params.Equal(o.Params, eps) {
		return false
	}
	if len(ind.FitnessResults) != len(o.FitnessResults) {
		return false
	}
	for i := range ind.FitnessResults {
		a, b := ind.FitnessResults[i], o.FitnessResults[i]
		if absf(a.Raw-b.Raw) > eps || absf(a.Transformed-b.Transformed) > eps {
			return false
		}
	}
	return true
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Adapt runs the tree's adaptors, marks the individual dirty (its
// fitness no longer reflects the current parameters), and returns the
// number of scalar adaptions performed (spec §4.4).
func (ind *Individual) Adapt(rng rngsvc.Source) int {
	n := ind.Params.AdaptAll(rng)
	ind.Dirty = true
	ind.IsProcessed = false
	ind.NAdaptions += n
	return n
}

// SetFitness installs fresh fitness results, clears Dirty, and marks
// the individual processed. An executor calls this once per
// processing pass (spec §4.7).
func (ind *Individual) SetFitness(results []FitnessResult) {
	ind.FitnessResults = results
	ind.Dirty = false
	ind.IsProcessed = true
}

// RawFitness returns the raw value of fitness criterion i. It fails
// with StateViolation if the individual is dirty (its parameters have
// changed since fitness was last computed) or the index is out of
// range (spec §4.4, §8 testable property 7).
func (ind *Individual) RawFitness(i int) (float64, error) {
	if ind.Dirty {
		return 0, errs.New(errs.StateViolation, "individual %d: fitness read while dirty", ind.ID)
	}
	if i < 0 || i >= len(ind.FitnessResults) {
		return 0, errs.New(errs.StateViolation, "individual %d: fitness index %d out of range", ind.ID, i)
	}
	return ind.FitnessResults[i].Raw, nil
}

// TransformedFitness returns the transformed value of fitness
// criterion i, subject to the same dirty/range checks as RawFitness.
func (ind *Individual) TransformedFitness(i int) (float64, error) {
	if ind.Dirty {
		return 0, errs.New(errs.StateViolation, "individual %d: fitness read while dirty", ind.ID)
	}
	if i < 0 || i >= len(ind.FitnessResults) {
		return 0, errs.New(errs.StateViolation, "individual %d: fitness index %d out of range", ind.ID, i)
	}
	return ind.FitnessResults[i].Transformed, nil
}

// IsValid reports whether the individual was processed without
// errors and is not dirty.
func (ind *Individual) IsValid() bool {
	return ind.IsProcessed && !ind.HasErrors && !ind.Dirty
}

// IsGoodEnough reports whether every transformed fitness value is at
// or below the corresponding bound (lower-is-better, spec §4.4). It
// returns false for an invalid individual.
func (ind *Individual) IsGoodEnough(bounds []float64) bool {
	if !ind.IsValid() || len(bounds) != len(ind.FitnessResults) {
		return false
	}
	for i, b := range bounds {
		if ind.FitnessResults[i].Transformed > b {
			return false
		}
	}
	return true
}

// GetProcessingTimes returns the individual's last recorded
// processing durations.
func (ind *Individual) GetProcessingTimes() ProcessingTimes { return ind.ProcessingTimes }

// GetNAdaptions returns the cumulative number of scalar adaptions
// performed on this individual since creation.
func (ind *Individual) GetNAdaptions() int { return ind.NAdaptions }

// QueryAdaptorProperty returns every value of property exposed by this
// individual's adaptors of kind adaptorName, across all four scalar
// kinds, in tree order (spec §4.8's adaptor-property logger, grounded
// on GAdaptorPropertyLogger::queryAdaptor).
func (ind *Individual) QueryAdaptorProperty(adaptorName, property string) []float64 {
	var out []float64
	out = append(out, param.QueryAdaptorProperty[float64](ind.Params, adaptorName, property, kindmode.All)...)
	out = append(out, param.QueryAdaptorProperty[float32](ind.Params, adaptorName, property, kindmode.All)...)
	out = append(out, param.QueryAdaptorProperty[int32](ind.Params, adaptorName, property, kindmode.All)...)
	out = append(out, param.QueryAdaptorProperty[bool](ind.Params, adaptorName, property, kindmode.All)...)
	return out
}

// ToCSV renders the individual as one CSV record (spec §6). Field
// order is: every matching parameter value in tree order (double,
// float, int32, bool), then every fitness value (raw or transformed
// per useRaw), then validity if requested. withCommas selects ',' vs
// ' ' (a single space, the spec's default) as the field separator.
// Names and type tags are not inlined per field: a caller that wants
// them writes CSVHeader once, before any ToCSV rows (spec §6: "the
// first emitted line is a header of names and type tags").
func (ind *Individual) ToCSV(withCommas, useRaw, withValidity bool) string {
	sep := csvSep(withCommas)
	var fields []string

	for _, v := range param.Streamline[float64](ind.Params, nil, kindmode.All) {
		fields = append(fields, strconv.FormatFloat(v, 'g', -1, 64))
	}
	for _, v := range param.Streamline[float32](ind.Params, nil, kindmode.All) {
		fields = append(fields, strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	for _, v := range param.Streamline[int32](ind.Params, nil, kindmode.All) {
		fields = append(fields, strconv.FormatInt(int64(v), 10))
	}
	for _, v := range param.Streamline[bool](ind.Params, nil, kindmode.All) {
		fields = append(fields, strconv.FormatBool(v))
	}

	for _, fr := range ind.FitnessResults {
		v := fr.Transformed
		if useRaw {
			v = fr.Raw
		}
		fields = append(fields, strconv.FormatFloat(v, 'g', -1, 64))
	}

	if withValidity {
		fields = append(fields, strconv.FormatBool(ind.IsValid()))
	}

	return strings.Join(fields, sep)
}

// CSVHeader returns the names-and-type-tags header line matching the
// field layout ToCSV emits for this individual (spec §6). It mirrors
// ToCSV's positional naming scheme ("d0", "d1", ... for double leaves,
// "f0", "f1", ... for float leaves, and so on), tagging each field with
// its one-letter kind: d, f, i, b. Fitness fields are tagged "d"
// (always reported as a float64); validity is tagged "b". A caller
// writes this once, before the first ToCSV row, rather than repeating
// it per row.
func (ind *Individual) CSVHeader(withCommas, withValidity bool) string {
	sep := csvSep(withCommas)
	var fields []string

	for pos := range param.Streamline[float64](ind.Params, nil, kindmode.All) {
		fields = append(fields, name("d", pos)+":d")
	}
	for pos := range param.Streamline[float32](ind.Params, nil, kindmode.All) {
		fields = append(fields, name("f", pos)+":f")
	}
	for pos := range param.Streamline[int32](ind.Params, nil, kindmode.All) {
		fields = append(fields, name("i", pos)+":i")
	}
	for pos := range param.Streamline[bool](ind.Params, nil, kindmode.All) {
		fields = append(fields, name("b", pos)+":b")
	}
	for i := range ind.FitnessResults {
		fields = append(fields, fmt.Sprintf("fit%d:d", i))
	}
	if withValidity {
		fields = append(fields, "valid:b")
	}
	return strings.Join(fields, sep)
}

func csvSep(withCommas bool) string {
	if withCommas {
		return ","
	}
	return " "
}

func name(prefix string, pos int) string { return fmt.Sprintf("%s%d", prefix, pos) }
