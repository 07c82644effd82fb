// Package scan implements the parameter-scan algorithm of spec §4.5:
// a Stepper (see package algorithm) that sweeps a batch of cloned
// individuals across the parameter space named by a parsed property
// grammar (package propgrammar), in grid, random, or simple mode.
package scan

import (
	"context"
	"math"

	"github.com/pa-m/paramopt/errs"
	"github.com/pa-m/paramopt/individual"
	"github.com/pa-m/paramopt/kindmode"
	"github.com/pa-m/paramopt/param"
	"github.com/pa-m/paramopt/propgrammar"
	"github.com/pa-m/paramopt/rngsvc"
)

// Mode selects how the scanner advances through the swept dimensions.
type Mode int

const (
	// Grid enumerates the full cartesian product of every dimension's
	// steps, the first dimension varying fastest (spec §4.5). Dimensions
	// are ordered by kind (double, float, int32, bool) and by listing
	// order within a kind, so listing order across kinds does not decide
	// which dimension varies fastest.
	Grid Mode = iota
	// Random draws an independent uniform step index per dimension per
	// individual and never reports exhaustion.
	Random
	// Simple ignores the parsed dimensions and re-randomizes each
	// individual's whole parameter tree from its initialization ranges,
	// for a fixed total number of evaluations.
	Simple
)

// dimension is one swept parameter: its step count plus an apply
// closure that resolves and sets the matching leaf/collection entry on
// whatever *param.Set it is given, erased of its original Scalar type.
// Re-resolving per target set (rather than binding to one set at
// construction) is what lets a single dimension list drive every
// cloned individual in a population_size batch.
type dimension struct {
	nSteps uint
	apply  func(set *param.Set, step uint) error
}

// Scanner sweeps a batch of up to PopulationSize cloned individuals
// per iteration according to a Mode and a set of resolved dimensions
// (spec §4.5).
type Scanner struct {
	mode           Mode
	seed           *individual.Individual
	populationSize int
	dims           []dimension
	indices        []uint

	population []*individual.Individual
	best       *individual.Individual

	allExhausted    bool
	rng             rngsvc.Source
	simpleRemaining int
}

func normalizePopulationSize(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// NewGridScanner builds a Scanner that enumerates the cartesian
// product of specs against base's parameter tree, emitting up to
// populationSize cloned individuals per Step (spec §4.5: "per
// iteration, the algorithm emits up to population_size new
// individuals").
func NewGridScanner(base *individual.Individual, specs propgrammar.Specs, populationSize int) (*Scanner, error) {
	dims, err := resolveDimensions(base.Params, specs)
	if err != nil {
		return nil, err
	}
	return &Scanner{
		mode:           Grid,
		seed:           base,
		populationSize: normalizePopulationSize(populationSize),
		dims:           dims,
		indices:        make([]uint, len(dims)),
		population:     []*individual.Individual{base},
	}, nil
}

// NewRandomScanner builds a Scanner that draws an independent random
// step per dimension for each of up to populationSize individuals
// every iteration, using rng for the draws.
func NewRandomScanner(base *individual.Individual, specs propgrammar.Specs, rng rngsvc.Source, populationSize int) (*Scanner, error) {
	dims, err := resolveDimensions(base.Params, specs)
	if err != nil {
		return nil, err
	}
	return &Scanner{
		mode:           Random,
		seed:           base,
		populationSize: normalizePopulationSize(populationSize),
		dims:           dims,
		rng:            rng,
		population:     []*individual.Individual{base},
	}, nil
}

// NewSimpleScanner builds a Scanner that re-randomizes up to
// populationSize cloned individuals' whole parameter trees per
// iteration via RandomInitAll, ignoring any parsed dimension list
// (spec §4.5's simple-scan mode), for a total of totalItems
// evaluations across the run. A non-positive totalItems is clamped to
// 1.
func NewSimpleScanner(base *individual.Individual, rng rngsvc.Source, populationSize, totalItems int) *Scanner {
	if totalItems < 1 {
		totalItems = 1
	}
	return &Scanner{
		mode:            Simple,
		seed:            base,
		populationSize:  normalizePopulationSize(populationSize),
		rng:             rng,
		population:      []*individual.Individual{base},
		simpleRemaining: totalItems,
	}
}

// Population returns the individuals produced by the most recent Step
// call (spec §4.5's population_size batch), or the seed individual
// alone before the first Step.
func (s *Scanner) Population() []*individual.Individual { return s.population }

// Best returns the best valid individual seen across every batch so
// far, or nil if none has ever been validly processed.
func (s *Scanner) Best() *individual.Individual {
	for _, ind := range s.population {
		if !ind.IsProcessed || ind.HasErrors || ind.Dirty {
			continue
		}
		if s.best == nil {
			s.best = ind
			continue
		}
		raw, err := ind.RawFitness(0)
		bestRaw, bestErr := s.best.RawFitness(0)
		if err == nil && bestErr == nil && raw < bestRaw {
			s.best = ind
		}
	}
	return s.best
}

// AllExhausted reports whether a grid scan has enumerated every
// combination (spec §4.5: all_exhausted).
func (s *Scanner) AllExhausted() bool { return s.allExhausted }

// Step advances the scan by one iteration (spec §4.6's per-cycle
// Stepper contract), populating up to PopulationSize new individuals.
// Grid mode returns false with a nil error on the call whose batch
// completes the enumeration, and false with an EndOfEnumeration error
// on any later call; random mode never reports exhaustion; simple mode
// likewise returns false on the call that emits the last of totalItems
// evaluations and EndOfEnumeration on any later call.
func (s *Scanner) Step(ctx context.Context) (bool, error) {
	switch s.mode {
	case Grid:
		return s.stepGrid()
	case Random:
		s.stepRandom()
		return true, nil
	case Simple:
		return s.stepSimple()
	default:
		return false, errs.New(errs.InvalidConfiguration, "scan: unknown mode")
	}
}

func (s *Scanner) stepGrid() (bool, error) {
	if s.allExhausted {
		return false, errs.New(errs.EndOfEnumeration, "scan: grid already exhausted")
	}
	if len(s.dims) == 0 {
		s.allExhausted = true
		return false, errs.New(errs.EndOfEnumeration, "scan: no dimensions to enumerate")
	}

	batch := s.population[:0]
	for len(batch) < s.populationSize {
		clone := s.seed.Clone()
		for i, d := range s.dims {
			if err := d.apply(clone.Params, s.indices[i]); err != nil {
				return false, err
			}
		}
		clone.Dirty = true
		batch = append(batch, clone)

		carry := true
		for i := 0; i < len(s.indices) && carry; i++ {
			s.indices[i]++
			if s.indices[i] >= s.dims[i].nSteps {
				s.indices[i] = 0
			} else {
				carry = false
			}
		}
		if carry {
			s.allExhausted = true
			s.population = batch
			return false, nil
		}
	}
	s.population = batch
	return true, nil
}

func (s *Scanner) stepRandom() {
	batch := s.population[:0]
	for i := 0; i < s.populationSize; i++ {
		clone := s.seed.Clone()
		for _, d := range s.dims {
			step := uint(0)
			if d.nSteps > 1 {
				step = uint(s.rng.UniformInt(0, int(d.nSteps)-1))
			}
			d.apply(clone.Params, step)
		}
		clone.Dirty = true
		batch = append(batch, clone)
	}
	s.population = batch
}

func (s *Scanner) stepSimple() (bool, error) {
	if s.simpleRemaining <= 0 {
		return false, errs.New(errs.EndOfEnumeration, "scan: simple scan items exhausted")
	}
	n := s.populationSize
	if n > s.simpleRemaining {
		n = s.simpleRemaining
	}
	batch := s.population[:0]
	for i := 0; i < n; i++ {
		clone := s.seed.Clone()
		clone.Params.RandomInitAll(s.rng)
		clone.Dirty = true
		batch = append(batch, clone)
	}
	s.population = batch
	s.simpleRemaining -= n
	return s.simpleRemaining > 0, nil
}

func resolveDimensions(set *param.Set, specs propgrammar.Specs) ([]dimension, error) {
	var dims []dimension
	for _, sp := range specs.Double {
		d, err := buildDimension(set, sp)
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	for _, sp := range specs.Float {
		d, err := buildDimension(set, sp)
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	for _, sp := range specs.Int {
		d, err := buildDimension(set, sp)
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	for _, sp := range specs.Bool {
		d, err := buildDimension(set, sp)
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	return dims, nil
}

// buildDimension validates sp against baseSet once, up front, so a bad
// ref fails at construction time (TestGridScannerRejectsBadRef), but
// the returned dimension's apply closure re-resolves the setter
// against whatever *param.Set it is later called with, since every
// cloned individual in a batch owns an independent tree.
func buildDimension[T param.Scalar](baseSet *param.Set, sp propgrammar.Spec[T]) (dimension, error) {
	if _, err := resolveSetter(baseSet, sp); err != nil {
		return dimension{}, err
	}
	nSteps := sp.NSteps
	if nSteps == 0 {
		nSteps = 1
	}
	lo, hi := sp.Lo, sp.Hi
	apply := func(set *param.Set, step uint) error {
		setter, err := resolveSetter(set, sp)
		if err != nil {
			return err
		}
		setter(valueAtStep(lo, hi, step, nSteps))
		return nil
	}
	return dimension{nSteps: nSteps, apply: apply}, nil
}

func valueAtStep[T param.Scalar](lo, hi T, step, nSteps uint) T {
	if param.KindOf[T]() == kindmode.Bool {
		if nSteps <= 1 || step == 0 {
			return lo
		}
		return hi
	}
	if nSteps <= 1 {
		return lo
	}
	frac := float64(step) / float64(nSteps-1)
	lof, hif := toF(lo), toF(hi)
	v := lof + frac*(hif-lof)
	return fromF[T](v)
}

func toF[T param.Scalar](v T) float64 {
	switch x := any(v).(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int32:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	}
	return 0
}

func fromF[T param.Scalar](f float64) T {
	var zero T
	switch any(zero).(type) {
	case float64:
		return any(f).(T)
	case float32:
		return any(float32(f)).(T)
	case int32:
		return any(int32(math.Round(f))).(T)
	case bool:
		return any(f != 0).(T)
	}
	return zero
}

func resolveSetter[T param.Scalar](set *param.Set, sp propgrammar.Spec[T]) (func(T), error) {
	switch sp.Mode {
	case propgrammar.ByPosition:
		leaves := param.Leaves[T](set)
		if sp.Pos < 0 || sp.Pos >= len(leaves) {
			return nil, errs.New(errs.InvalidConfiguration, "scan: positional ref %d out of range (%d leaves)", sp.Pos, len(leaves))
		}
		l := leaves[sp.Pos]
		return func(v T) { l.Value = v }, nil
	case propgrammar.ByCollectionIndex:
		for _, c := range param.Collections[T](set) {
			if c.Name == sp.Name {
				if sp.Pos < 0 || sp.Pos >= len(c.Values) {
					return nil, errs.New(errs.InvalidConfiguration, "scan: collection %q index %d out of range", sp.Name, sp.Pos)
				}
				idx := sp.Pos
				return func(v T) { c.Values[idx] = v }, nil
			}
		}
		return nil, errs.New(errs.InvalidConfiguration, "scan: no collection named %q", sp.Name)
	case propgrammar.ByName:
		for _, l := range param.Leaves[T](set) {
			if l.Name == sp.Name {
				leaf := l
				return func(v T) { leaf.Value = v }, nil
			}
		}
		return nil, errs.New(errs.InvalidConfiguration, "scan: no leaf named %q", sp.Name)
	default:
		return nil, errs.New(errs.InvalidConfiguration, "scan: unknown ref mode")
	}
}
