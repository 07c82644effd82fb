package param

import (
	"github.com/pa-m/paramopt/errs"
	"github.com/pa-m/paramopt/kindmode"
	"github.com/pa-m/paramopt/rngsvc"
)

func forEachMatching[T Scalar](s *Set, act Activity, f func(v T) T) {
	for _, l := range leavesFor[T](s) {
		if act.Matches(l.AdaptionsActive, l.RandomInitBlocked) {
			l.Value = f(l.Value)
			if l.HasBounds {
				l.Value = Transfer(l.Value, l.LowerBound, l.UpperBound)
			}
		}
	}
	for _, c := range colLeavesFor[T](s) {
		if act.Matches(c.AdaptionsActive, c.RandomInitBlocked) {
			for i, v := range c.Values {
				v = f(v)
				if c.HasBounds {
					v = Transfer(v, c.LowerBound, c.UpperBound)
				}
				c.Values[i] = v
			}
		}
	}
}

func requireArithmetic[T Scalar](op string) error {
	if KindOf[T]() == kindmode.Bool {
		return errs.New(errs.UnsupportedKind, "%s is not defined for bool", op)
	}
	return nil
}

// MultiplyByRandom multiplies every matching value of kind T by a
// fresh uniform draw in [lo,hi) (spec §4.2). Fails for bool.
func MultiplyByRandom[T Scalar](s *Set, lo, hi T, act Activity, rng rngsvc.Source) error {
	if err := requireArithmetic[T]("multiply_by_random"); err != nil {
		return err
	}
	lof, hif := toFloat(lo), toFloat(hi)
	forEachMatching(s, act, func(v T) T {
		r := lof + rng.UniformFloat64()*(hif-lof)
		return fromFloat[T](toFloat(v) * r)
	})
	return nil
}

// MultiplyByRandom01 multiplies every matching value of kind T by a
// fresh uniform draw in [0,1) (spec §4.2). Fails for bool.
func MultiplyByRandom01[T Scalar](s *Set, act Activity, rng rngsvc.Source) error {
	var zero, one T
	one = fromFloat[T](1)
	return MultiplyByRandom(s, zero, one, act, rng)
}

// MultiplyBy multiplies every matching value of kind T by the
// constant c (spec §4.2). Fails for bool.
func MultiplyBy[T Scalar](s *Set, c T, act Activity) error {
	if err := requireArithmetic[T]("multiply_by"); err != nil {
		return err
	}
	cf := toFloat(c)
	forEachMatching(s, act, func(v T) T { return fromFloat[T](toFloat(v) * cf) })
	return nil
}

// FixedValueInit overwrites every matching value of kind T with the
// constant c (spec §4.2). Fails for bool.
func FixedValueInit[T Scalar](s *Set, c T, act Activity) error {
	if err := requireArithmetic[T]("fixed_value_init"); err != nil {
		return err
	}
	forEachMatching(s, act, func(T) T { return c })
	return nil
}

// Add adds the corresponding matching values of other to dst,
// position-for-position in tree order (spec §4.2). Fails for bool or
// if the two trees do not expose the same number of matching values.
func Add[T Scalar](dst, other *Set, act Activity) error {
	return combine[T](dst, other, act, "add", func(a, b float64) float64 { return a + b })
}

// Subtract subtracts other's corresponding matching values from dst,
// position-for-position in tree order (spec §4.2). Fails for bool or
// on a shape mismatch.
func Subtract[T Scalar](dst, other *Set, act Activity) error {
	return combine[T](dst, other, act, "subtract", func(a, b float64) float64 { return a - b })
}

func combine[T Scalar](dst, other *Set, act Activity, op string, f func(a, b float64) float64) error {
	if err := requireArithmetic[T](op); err != nil {
		return err
	}
	a := Streamline[T](dst, nil, act)
	b := Streamline[T](other, nil, act)
	if len(a) != len(b) {
		return errs.New(errs.InvalidConfiguration, "%s: shape mismatch (%d vs %d matching values)", op, len(a), len(b))
	}
	for i := range a {
		a[i] = fromFloat[T](f(toFloat(a[i]), toFloat(b[i])))
	}
	pos := 0
	return Assign(dst, a, &pos, act)
}
