package cmaes

import (
	"context"
	"math"

	"golang.org/x/exp/rand"

	"github.com/pa-m/paramopt/errs"
	"github.com/pa-m/paramopt/individual"
	"github.com/pa-m/paramopt/kindmode"
	"github.com/pa-m/paramopt/param"
)

// Config is the caller-facing tuning surface for Optimizer, mirroring
// pa-m/optimize's CmaEsCholB exported fields.
type Config struct {
	InitStepSize float64
	Population   int
	StopLogDet   float64
	ForgetBest   bool
	Src          rand.Source
}

// Optimizer is an algorithm.Stepper driving bounded CMA-ES over the
// double-kind parameters of a base individual (spec's supplemental
// algorithm list). Each Step samples one generation, handing the
// population to the surrounding algorithm.Base loop's Executor for
// fitness evaluation; the next Step call folds that generation's
// results into the search distribution before sampling the next.
type Optimizer struct {
	core core

	template  *individual.Individual
	pop       []*individual.Individual
	nEvals    int
	firstStep bool
}

// New builds an Optimizer sampling around base's current double
// values. The box samples are folded into is taken from
// param.Boundaries: a bounded leaf (SetBounds called) contributes its
// bounds, an unbounded leaf its initialization range.
func New(base *individual.Individual, cfg Config) (*Optimizer, error) {
	dim := param.Count[float64](base.Params, kindmode.All)
	if dim == 0 {
		return nil, errs.New(errs.InvalidConfiguration, "cmaes: base individual has no double-kind parameters")
	}
	c := core{
		InitStepSize: cfg.InitStepSize,
		Population:   cfg.Population,
		StopLogDet:   cfg.StopLogDet,
		ForgetBest:   cfg.ForgetBest,
		Src:          cfg.Src,
	}
	c.init(dim)
	c.Xmin, c.Xmax = param.Boundaries[float64](base.Params, nil, nil, kindmode.All)
	copy(c.mean, param.Streamline[float64](base.Params, nil, kindmode.All))

	o := &Optimizer{core: c, template: base, firstStep: true}
	o.pop = make([]*individual.Individual, c.pop)
	for i := range o.pop {
		o.pop[i] = individual.New(uint64(i+1), base.Params.Clone())
	}
	return o, nil
}

func (o *Optimizer) Population() []*individual.Individual { return o.pop }

// Best returns the overall-best sample found so far, materialized
// into a clone of the template individual's tree, or nil before any
// evaluated generation has been folded in.
func (o *Optimizer) Best() *individual.Individual {
	if o.core.bestX == nil || math.IsInf(o.core.bestF, 1) {
		return nil
	}
	ind := individual.New(0, o.template.Params.Clone())
	pos := 0
	if err := param.Assign(ind.Params, o.core.bestX, &pos, kindmode.All); err != nil {
		return nil
	}
	ind.SetFitness([]individual.FitnessResult{{Raw: o.core.bestF, Transformed: o.core.bestF}})
	return ind
}

// Step folds the previous generation's fitness into the search
// distribution (skipped on the first call, since there is no previous
// generation yet), then samples and installs a fresh generation into
// Population (spec §4.6's per-cycle Stepper contract). It reports
// false, wrapped in EndOfEnumeration, once the covariance has
// collapsed below StopLogDet.
func (o *Optimizer) Step(ctx context.Context) (bool, error) {
	if !o.firstStep {
		for i, ind := range o.pop {
			raw, err := ind.RawFitness(0)
			if err != nil {
				return false, errs.New(errs.StateViolation, "cmaes: generation member %d not evaluated: %v", i, err)
			}
			o.core.fs[i] = raw
		}
		o.core.recordBest()
		if err := o.core.update(); err != nil {
			return false, err
		}
		if o.core.converged() {
			return false, errs.New(errs.EndOfEnumeration, "cmaes: covariance collapsed below StopLogDet")
		}
	}
	o.firstStep = false

	for i, ind := range o.pop {
		o.core.sample(i)
		pos := 0
		if err := param.Assign(ind.Params, o.core.xs.RawRowView(i), &pos, kindmode.All); err != nil {
			return false, err
		}
		ind.Dirty = true
	}
	o.nEvals++
	return true, nil
}
