// Package param implements the heterogeneous, typed parameter tree of
// spec §3/§4.2: four scalar leaf kinds, their ordered-sequence
// ("collection") counterpart, and the bulk count/boundaries/
// streamline/assign operations dispatched by value kind and activity
// mode. Per-kind dispatch is static: every bulk operation is a generic
// function instantiated over the leaf's Go type, matching spec §9's
// design note that this replaces the source's O(kinds²) virtual
// overload matrix.
package param

import (
	"math"

	"github.com/pa-m/paramopt/adaptor"
	"github.com/pa-m/paramopt/errs"
	"github.com/pa-m/paramopt/kindmode"
	"github.com/pa-m/paramopt/rngsvc"
)

// Scalar is the set of Go types backing a parameter leaf. It mirrors
// kindmode.Kind exactly: float64<->Double, float32<->Float,
// int32<->Int32, bool<->Bool.
type Scalar interface {
	float64 | float32 | int32 | bool
}

// adapting is satisfied by every concrete adaptor in package adaptor
// for its matching value kind.
type adapting[T any] interface {
	Adapt(T, rngsvc.Source) T
}

// KindOf returns the kindmode.Kind a Scalar type parameter corresponds
// to.
func KindOf[T Scalar]() kindmode.Kind {
	var zero T
	switch any(zero).(type) {
	case float64:
		return kindmode.Double
	case float32:
		return kindmode.Float
	case int32:
		return kindmode.Int32
	case bool:
		return kindmode.Bool
	default:
		panic("param: unreachable scalar kind")
	}
}

// Leaf is a single named, typed parameter value with an optional
// constrained range and zero or more bound adaptors (spec §3).
type Leaf[T Scalar] struct {
	Name  string
	Value T

	LowerInit, UpperInit T

	HasBounds            bool
	LowerBound, UpperBound T

	AdaptionsActive   bool
	RandomInitBlocked bool

	adaptors []adapting[T]
}

// NewLeaf builds an unconstrained leaf with the given name and
// initial-range.
func NewLeaf[T Scalar](name string, value, lowerInit, upperInit T) *Leaf[T] {
	return &Leaf[T]{Name: name, Value: value, LowerInit: lowerInit, UpperInit: upperInit, AdaptionsActive: true}
}

// SetBounds constrains the leaf to [lo,hi]; the transfer function
// folds out-of-range internal values into this interval (spec §4.2).
func (l *Leaf[T]) SetBounds(lo, hi T) error {
	if hi < lo {
		return errs.New(errs.InvalidConfiguration, "leaf %q: upper_bound < lower_bound", l.Name)
	}
	l.HasBounds = true
	l.LowerBound, l.UpperBound = lo, hi
	l.Value = Transfer(l.Value, lo, hi)
	return nil
}

// AddAdaptor attaches an adaptor to be invoked, in order, whenever
// Adapt is called.
func (l *Leaf[T]) AddAdaptor(a adapting[T]) {
	l.adaptors = append(l.adaptors, a)
}

// Visible returns the leaf's current, bound-folded value: the value a
// bulk streamline should observe.
func (l *Leaf[T]) Visible() T {
	if l.HasBounds {
		return Transfer(l.Value, l.LowerBound, l.UpperBound)
	}
	return l.Value
}

// Adapt invokes every attached adaptor in turn, folding the result
// through the transfer function if bounded, and returns the number of
// adaptor calls made (each adaptor call counts as one scalar adaption
// regardless of whether its internal gate fired, matching spec §4.4's
// get_n_adaptions bookkeeping at the individual level, which simply
// sums these calls).
func (l *Leaf[T]) Adapt(rng rngsvc.Source) int {
	if !l.AdaptionsActive || len(l.adaptors) == 0 {
		return 0
	}
	v := l.Value
	for _, a := range l.adaptors {
		v = a.Adapt(v, rng)
	}
	if l.HasBounds {
		v = Transfer(v, l.LowerBound, l.UpperBound)
	}
	l.Value = v
	return len(l.adaptors)
}

// RandomInit draws a fresh value uniformly from [LowerInit,UpperInit]
// unless RandomInitBlocked is set, in which case it is a no-op.
func (l *Leaf[T]) RandomInit(rng rngsvc.Source) {
	if l.RandomInitBlocked {
		return
	}
	l.Value = randomInRange(l.LowerInit, l.UpperInit, rng)
}

func randomInRange[T Scalar](lo, hi T, rng rngsvc.Source) T {
	switch KindOf[T]() {
	case kindmode.Bool:
		return any(rng.Bernoulli(0.5)).(T)
	case kindmode.Int32:
		lo32, hi32 := any(lo).(int32), any(hi).(int32)
		return any(int32(rng.UniformInt(int(lo32), int(hi32)))).(T)
	default:
		lof, hif := toFloat(lo), toFloat(hi)
		v := lof + rng.UniformFloat64()*(hif-lof)
		return fromFloat[T](v)
	}
}

func toFloat[T Scalar](v T) float64 {
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

func fromFloat[T Scalar](f float64) T {
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

// Clone returns a deep copy of the leaf. Adaptors are not currently
// cloned structurally deep (they hold only scalar state); a copy of
// the slice header with copied adaptor structs is sufficient since
// this module's adaptors hold no shared mutable pointers.
func (l *Leaf[T]) Clone() *Leaf[T] {
	c := *l
	c.adaptors = append([]adapting[T]{}, l.adaptors...)
	return &c
}

// CollectionLeaf is an ordered sequence of same-typed scalars sharing
// one configuration and adaptor set (spec §3: collection leaf).
type CollectionLeaf[T Scalar] struct {
	Name   string
	Values []T

	LowerInit, UpperInit T

	HasBounds              bool
	LowerBound, UpperBound T

	AdaptionsActive   bool
	RandomInitBlocked bool

	adaptors []adapting[T]
}

func NewCollectionLeaf[T Scalar](name string, values []T, lowerInit, upperInit T) *CollectionLeaf[T] {
	return &CollectionLeaf[T]{Name: name, Values: append([]T{}, values...), LowerInit: lowerInit, UpperInit: upperInit, AdaptionsActive: true}
}

func (c *CollectionLeaf[T]) SetBounds(lo, hi T) error {
	if hi < lo {
		return errs.New(errs.InvalidConfiguration, "collection leaf %q: upper_bound < lower_bound", c.Name)
	}
	c.HasBounds = true
	c.LowerBound, c.UpperBound = lo, hi
	for i, v := range c.Values {
		c.Values[i] = Transfer(v, lo, hi)
	}
	return nil
}

func (c *CollectionLeaf[T]) AddAdaptor(a adapting[T]) {
	c.adaptors = append(c.adaptors, a)
}

// Adapt iterates every entry in order, applying all attached adaptors
// to each (spec §3: "adaptation iterates all entries"), returning the
// total number of scalar adaptions applied.
func (c *CollectionLeaf[T]) Adapt(rng rngsvc.Source) int {
	if !c.AdaptionsActive || len(c.adaptors) == 0 {
		return 0
	}
	n := 0
	for i, v := range c.Values {
		for _, a := range c.adaptors {
			v = a.Adapt(v, rng)
			n++
		}
		if c.HasBounds {
			v = Transfer(v, c.LowerBound, c.UpperBound)
		}
		c.Values[i] = v
	}
	return n
}

func (c *CollectionLeaf[T]) RandomInit(rng rngsvc.Source) {
	if c.RandomInitBlocked {
		return
	}
	for i := range c.Values {
		c.Values[i] = randomInRange(c.LowerInit, c.UpperInit, rng)
	}
}

func (c *CollectionLeaf[T]) Clone() *CollectionLeaf[T] {
	cc := *c
	cc.Values = append([]T{}, c.Values...)
	cc.adaptors = append([]adapting[T]{}, c.adaptors...)
	return &cc
}

// compile-time check that the concrete adaptor types satisfy adapting
// for their respective kinds.
var (
	_ adapting[float64] = (*adaptor.GaussianAdaptor[float64])(nil)
	_ adapting[float32] = (*adaptor.GaussianAdaptor[float32])(nil)
	_ adapting[int32]   = (*adaptor.GaussianAdaptor[int32])(nil)
	_ adapting[bool]    = (*adaptor.BoolFlipAdaptor)(nil)
	_ adapting[int32]   = (*adaptor.Int32FlipAdaptor)(nil)
	_ adapting[float64] = (*adaptor.SwarmAdaptor)(nil)
)
