// Package adaptor implements the per-value mutation operators of spec
// §4.1: a shared probabilistic/threshold-gated call loop (Base),
// specialized by three concrete adaptors (Gaussian, Flip, Swarm) over
// the scalar value kinds of package kindmode.
package adaptor

import (
	"math"

	"github.com/pa-m/paramopt/errs"
	"github.com/pa-m/paramopt/rngsvc"
)

// Mode selects when Base.Step triggers an adaption.
type Mode int

const (
	Always Mode = iota
	Never
	Probabilistic
)

// Numeric is the set of scalar kinds an adaptor's custom_adapt may be
// instantiated over. bool is handled by dedicated Flip logic rather
// than through this constraint; see BoolFlipAdaptor.
type Numeric interface {
	~float64 | ~float32 | ~int32
}

// PropertySource is implemented by adaptors that expose named internal
// properties for introspection, grounded on GAdaptorPropertyLogger's
// queryAdaptor mechanism (spec §4.8's adaptor-property logger): given
// an adaptor kind name and a property name, report the matching
// internal value, if any.
type PropertySource interface {
	AdaptorKind() string
	Property(name string) (float64, bool)
}

// Base carries the configuration and call-loop state shared by every
// concrete adaptor: adaption_probability, adaption_threshold,
// adaption_mode, adaption_counter, n_vars, current_index (spec §4.1).
type Base struct {
	Probability float64
	Threshold   uint32
	Mode        Mode
	NVars       int

	counter      uint32
	currentIndex int
	pinned       bool // true for Swarm: SetAdaptionMode always fails.
}

// SetAdaptionMode changes the adaption mode, unless this adaptor pins
// its mode (Swarm), in which case it fails with StateViolation.
func (b *Base) SetAdaptionMode(m Mode) error {
	if b.pinned {
		return errs.New(errs.StateViolation, "adaptor mode is pinned to ALWAYS")
	}
	b.Mode = m
	return nil
}

func (b *Base) CurrentIndex() int { return b.currentIndex }

// gate runs steps 1-3 of spec §4.1: mode dispatch, probability draw,
// and threshold-triggered self-adaption. It reports whether
// custom_adapt should run at all (false for NEVER and for a failed
// probabilistic draw).
func (b *Base) gate(rng rngsvc.Source, selfAdapt func(rngsvc.Source)) bool {
	switch b.Mode {
	case Never:
		return false
	case Probabilistic:
		if rng.UniformFloat64() > b.Probability {
			return false
		}
	}
	b.counter++
	if b.Threshold > 0 && b.counter >= b.Threshold {
		b.counter = 0
		selfAdapt(rng)
	}
	return true
}

// advance runs step 5 of spec §4.1: wrap current_index modulo NVars.
func (b *Base) advance() {
	n := b.NVars
	if n <= 0 {
		n = 1
	}
	b.currentIndex = (b.currentIndex + 1) % n
}

func toT[T Numeric](f float64) T {
	switch any(T(0)).(type) {
	case int32:
		return T(math.Round(f))
	default:
		return T(f)
	}
}

func toF[T Numeric](v T) float64 { return float64(v) }

// GaussianAdaptor adds N(0,Sigma) noise to the value (rounded for
// int32) and self-adapts Sigma by a log-normal random walk (spec
// §4.1). Valid for double, float, int32.
type GaussianAdaptor[T Numeric] struct {
	Base
	Sigma      float64
	SigmaSigma float64
	MinSigma   float64
	MaxSigma   float64
}

// NewGaussianAdaptor validates its numeric parameters at construction
// time, failing fast with InvalidConfiguration (spec §4.1).
func NewGaussianAdaptor[T Numeric](sigma, sigmaSigma, minSigma, maxSigma float64) (*GaussianAdaptor[T], error) {
	if minSigma <= 0 {
		return nil, errs.New(errs.InvalidConfiguration, "min_sigma must be > 0, got %g", minSigma)
	}
	if maxSigma < minSigma {
		return nil, errs.New(errs.InvalidConfiguration, "max_sigma (%g) must be >= min_sigma (%g)", maxSigma, minSigma)
	}
	if sigma < minSigma || sigma > maxSigma {
		return nil, errs.New(errs.InvalidConfiguration, "sigma (%g) must lie within [min_sigma,max_sigma]=[%g,%g]", sigma, minSigma, maxSigma)
	}
	return &GaussianAdaptor[T]{
		Base:       Base{Mode: Always},
		Sigma:      sigma,
		SigmaSigma: sigmaSigma,
		MinSigma:   minSigma,
		MaxSigma:   maxSigma,
	}, nil
}

// Adapt runs the full per-call loop of spec §4.1 over v.
func (g *GaussianAdaptor[T]) Adapt(v T, rng rngsvc.Source) T {
	if !g.gate(rng, g.AdaptAdaption) {
		return v
	}
	out := toT[T](toF(v) + rng.Gaussian(0, g.Sigma))
	g.advance()
	return out
}

// AdaptAdaption performs the adaptor's own self-adaption step: a
// log-normal random walk on Sigma with a fair-coin sign, clamped to
// [MinSigma,MaxSigma].
func (g *GaussianAdaptor[T]) AdaptAdaption(rng rngsvc.Source) {
	sign := 1.0
	if !rng.Bernoulli(0.5) {
		sign = -1.0
	}
	g.Sigma *= math.Exp(sign * rng.Gaussian(0, g.SigmaSigma))
	g.Sigma = clamp(g.Sigma, g.MinSigma, g.MaxSigma)
}

// AdaptorKind identifies this adaptor's kind for property queries,
// independent of the scalar type T it is instantiated over.
func (g *GaussianAdaptor[T]) AdaptorKind() string { return "GaussianAdaptor" }

// Property reports sigma and sigma_sigma, the two self-adapting
// parameters of the Gaussian adaptor (spec §4.8's adaptor-property
// logger).
func (g *GaussianAdaptor[T]) Property(name string) (float64, bool) {
	switch name {
	case "sigma":
		return g.Sigma, true
	case "sigma_sigma":
		return g.SigmaSigma, true
	default:
		return 0, false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BoolFlipAdaptor toggles a boolean value (spec §4.1, flip adaptor for
// bool).
type BoolFlipAdaptor struct {
	Base
}

func NewBoolFlipAdaptor() *BoolFlipAdaptor {
	return &BoolFlipAdaptor{Base: Base{Mode: Always}}
}

func (f *BoolFlipAdaptor) Adapt(v bool, rng rngsvc.Source) bool {
	if !f.gate(rng, f.AdaptAdaption) {
		return v
	}
	out := !v
	f.advance()
	return out
}

// AdaptAdaption is a no-op for the bool flip adaptor: it carries no
// internal parameters to self-adapt.
func (f *BoolFlipAdaptor) AdaptAdaption(rngsvc.Source) {}

// AdaptorKind identifies this adaptor's kind for property queries.
func (f *BoolFlipAdaptor) AdaptorKind() string { return "BoolFlipAdaptor" }

// Property always fails: the bool flip adaptor carries no numeric
// internal properties to report.
func (f *BoolFlipAdaptor) Property(name string) (float64, bool) { return 0, false }

// Int32FlipAdaptor adds a nonzero step to an int32 value (spec §4.1,
// flip adaptor for int32): a draw from {-Range,...,Range} in which a
// draw of 0 is replaced by +1, so +1 is twice as likely as any other
// step.
type Int32FlipAdaptor struct {
	Base
	Range int32 // with Range 1 the step is -1 or +1.
}

func NewInt32FlipAdaptor(stepRange int32) (*Int32FlipAdaptor, error) {
	if stepRange <= 0 {
		return nil, errs.New(errs.InvalidConfiguration, "flip step range must be > 0, got %d", stepRange)
	}
	return &Int32FlipAdaptor{Base: Base{Mode: Always}, Range: stepRange}, nil
}

func (f *Int32FlipAdaptor) Adapt(v int32, rng rngsvc.Source) int32 {
	if !f.gate(rng, f.AdaptAdaption) {
		return v
	}
	step := int32(rng.UniformInt(-int(f.Range), int(f.Range)))
	if step == 0 {
		step = 1
	}
	out := v + step
	f.advance()
	return out
}

func (f *Int32FlipAdaptor) AdaptAdaption(rngsvc.Source) {}

// AdaptorKind identifies this adaptor's kind for property queries.
func (f *Int32FlipAdaptor) AdaptorKind() string { return "Int32FlipAdaptor" }

// Property reports range, the flip adaptor's one configurable
// parameter (spec §4.8's adaptor-property logger).
func (f *Int32FlipAdaptor) Property(name string) (float64, bool) {
	if name == "range" {
		return float64(f.Range), true
	}
	return 0, false
}

// SwarmAdaptor implements a single particle's PSO velocity update
// (spec §4.1). Its adaption mode is pinned to ALWAYS at construction;
// SetAdaptionMode always fails with StateViolation.
type SwarmAdaptor struct {
	Base
	CDelta, CLocal, CGlobal float64
	Velocity                float64
	LocalBest, GlobalBest   float64
}

func NewSwarmAdaptor(cDelta, cLocal, cGlobal float64) *SwarmAdaptor {
	s := &SwarmAdaptor{CDelta: cDelta, CLocal: cLocal, CGlobal: cGlobal}
	s.Mode = Always
	s.pinned = true
	return s
}

func (s *SwarmAdaptor) Adapt(v float64, rng rngsvc.Source) float64 {
	if !s.gate(rng, s.AdaptAdaption) {
		return v
	}
	s.Velocity = s.CDelta*s.Velocity +
		s.CLocal*rng.UniformFloat64()*(s.LocalBest-v) +
		s.CGlobal*rng.UniformFloat64()*(s.GlobalBest-v)
	out := v + s.Velocity
	s.advance()
	return out
}

// AdaptAdaption is a no-op: the swarm adaptor's "self adaption" is the
// velocity update already performed in Adapt.
func (s *SwarmAdaptor) AdaptAdaption(rngsvc.Source) {}

// AdaptorKind identifies this adaptor's kind for property queries.
func (s *SwarmAdaptor) AdaptorKind() string { return "SwarmAdaptor" }

// Property reports velocity, local_best, and global_best, the swarm
// adaptor's per-particle PSO state (spec §4.8's adaptor-property
// logger).
func (s *SwarmAdaptor) Property(name string) (float64, bool) {
	switch name {
	case "velocity":
		return s.Velocity, true
	case "local_best":
		return s.LocalBest, true
	case "global_best":
		return s.GlobalBest, true
	default:
		return 0, false
	}
}

// compile-time check that every concrete adaptor exposes PropertySource.
var (
	_ PropertySource = (*GaussianAdaptor[float64])(nil)
	_ PropertySource = (*BoolFlipAdaptor)(nil)
	_ PropertySource = (*Int32FlipAdaptor)(nil)
	_ PropertySource = (*SwarmAdaptor)(nil)
)
