// Package localsearch adapts pa-m/optimize's Powell direction-set
// minimizer (powell.go, powellmethod.go) and its Brent line-search
// helper (brent.go) into an algorithm.Stepper: a local-search plugin
// that refines one individual's continuous parameters in place.
//
// Powell's method is an inherently sequential algorithm — each
// function evaluation determines the next — so unlike the population
// algorithms in this module it does not dispatch through an Executor
// batch. Step runs the full minimization to convergence against a
// caller-supplied objective and reports completion in a single call;
// the surrounding algorithm.Base loop still owns halting and
// observers.
package localsearch

import (
	"context"
	"log"
	"math"

	"github.com/pa-m/paramopt/individual"
	"github.com/pa-m/paramopt/kindmode"
	"github.com/pa-m/paramopt/param"
)

// Objective evaluates the fitness of a candidate point in the
// flattened double-parameter space, returning the primary (raw)
// fitness criterion Powell's method minimizes.
type Objective func(x []float64) float64

// Config mirrors pa-m/optimize's PowellMinimizer tolerances.
type Config struct {
	Xtol, Ftol      float64
	MaxIter, MaxFev int
	Logger          *log.Logger
}

// DefaultConfig matches pa-m/optimize's NewPowellMinimizer defaults.
func DefaultConfig() Config { return Config{Xtol: 1e-4, Ftol: 1e-4} }

// Search is an algorithm.Stepper performing one Powell-method local
// search over an individual's double leaves and double collection
// entries, streamlined in tree order (spec §4.2's flattened view).
type Search struct {
	Config Config
	ind    *individual.Individual
	obj    Objective
	done   bool
	result []float64
	fval   float64
}

// New builds a Search over ind's double-kind parameters, minimizing
// obj.
func New(ind *individual.Individual, obj Objective, cfg Config) *Search {
	return &Search{Config: cfg, ind: ind, obj: obj}
}

func (s *Search) Population() []*individual.Individual { return []*individual.Individual{s.ind} }

func (s *Search) Best() *individual.Individual {
	if s.ind.IsProcessed && !s.ind.HasErrors {
		return s.ind
	}
	return nil
}

// Step runs the Powell minimization to convergence and installs the
// result into the individual's parameter tree, then reports no more
// work remains.
func (s *Search) Step(ctx context.Context) (bool, error) {
	if s.done {
		return false, nil
	}
	x0 := param.Streamline[float64](s.ind.Params, nil, kindmode.All)
	fun := func(x []float64) float64 {
		select {
		case <-ctx.Done():
			return math.Inf(1)
		default:
		}
		return s.obj(x)
	}
	xOpt := minimizePowell(fun, x0, nil, s.Config.Xtol, s.Config.Ftol, s.Config.MaxIter, s.Config.MaxFev, s.Config.Logger)
	s.result = xOpt
	s.fval = fun(xOpt)

	pos := 0
	if err := param.Assign(s.ind.Params, xOpt, &pos, kindmode.All); err != nil {
		return false, err
	}
	s.ind.SetFitness([]individual.FitnessResult{{Raw: s.fval, Transformed: s.fval}})
	s.done = true
	return false, nil
}
