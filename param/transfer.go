package param

import (
	"math"

	"github.com/pa-m/paramopt/kindmode"
)

// Transfer folds an internal value into the visible, constrained
// range [lo,hi] (spec §4.2). Already in-range values pass through
// unchanged; out-of-range values are reflected back in, so repeated
// application is idempotent and the result always lies in [lo,hi].
//
// bool has no meaningful constrained range and passes through
// unchanged. int32 uses a discrete reflective fold; float32/float64
// use the continuous analogue. The discrete period is
// 2*(hi-lo)+1 rather than the 2*(hi-lo+1) named in spec §4.2's prose:
// the latter does not reproduce the worked example of spec §8
// (transfer(7)=2, transfer(-3)=3 for lo=0,hi=4) because it makes
// values exactly one period apart collide onto the same fold, which
// the example requires them not to — see DESIGN.md Open Question 1.
func Transfer[T Scalar](v, lo, hi T) T {
	switch KindOf[T]() {
	case kindmode.Bool:
		return v
	case kindmode.Int32:
		return fromFloat[T](transferDiscrete(toFloat(v), toFloat(lo), toFloat(hi)))
	default:
		return fromFloat[T](transferContinuous(toFloat(v), toFloat(lo), toFloat(hi)))
	}
}

func transferDiscrete(v, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	span := hi - lo
	period := 2*span + 1
	m := math.Mod(v-lo, period)
	if m < 0 {
		m += period
	}
	if m <= span {
		return lo + m
	}
	return lo + period - m
}

func transferContinuous(v, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	span := hi - lo
	period := 2 * span
	m := math.Mod(v-lo, period)
	if m < 0 {
		m += period
	}
	if m <= span {
		return lo + m
	}
	return lo + period - m
}
