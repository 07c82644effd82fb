// Package algorithm implements the algorithm base loop of spec §4.6: a
// shared IDLE→INIT→CYCLE→FINALIZE→IDLE state machine that every
// concrete algorithm plugin (parameter scan, local search, CMA-ES)
// drives through an Executor, reporting progress to a chain of
// Observers and honoring a configurable set of halt conditions.
package algorithm

import (
	"context"
	"encoding/gob"
	"io"
	"log"
	"time"

	"github.com/pa-m/paramopt/errs"
	"github.com/pa-m/paramopt/executor"
	"github.com/pa-m/paramopt/individual"
)

// State is the algorithm's current phase in the base loop.
type State int

const (
	Idle State = iota
	Init
	Cycle
	Finalize
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Init:
		return "INIT"
	case Cycle:
		return "CYCLE"
	case Finalize:
		return "FINALIZE"
	default:
		return "UNKNOWN"
	}
}

// InfoMode classifies why an Observer is being notified.
type InfoMode int

const (
	InfoInit InfoMode = iota
	InfoProcessing
	InfoEnd
)

// Observer is notified at well-defined points in the base loop (spec
// §4.8). Implementations must not retain the Context pointer across
// calls: its Population slice is reused between iterations.
type Observer interface {
	Notify(mode InfoMode, rc *Context)
}

// Context is the read-only view of run state an Observer receives.
type Context struct {
	Iteration  int
	Stall      int
	Population []*individual.Individual
	Best       *individual.Individual
	State      State
	Elapsed    time.Duration
}

// HaltFunc is a caller-supplied extra halt condition, evaluated once
// per cycle alongside the built-in ones.
type HaltFunc func(rc *Context) bool

// Config holds the halt conditions and wiring for one run of Base.
type Config struct {
	MaxIterations    int           // 0 disables
	MaxStall         int           // 0 disables
	MaxDuration      time.Duration // 0 disables
	QualityThreshold float64       // used only if QualityThresholdSet
	QualityThresholdSet bool
	CustomHalt       HaltFunc

	Executor  executor.Executor
	Observers []Observer
	Logger    *log.Logger
}

// Stepper is implemented by a concrete algorithm plugin: it owns the
// population and knows how to advance it by one cycle (spec §4.6: the
// base loop calls Step once per CYCLE iteration, then relies on the
// Executor to price the resulting individuals).
type Stepper interface {
	// Population returns the current population, in the order the
	// loop should treat as canonical (index 0 is not assumed best).
	Population() []*individual.Individual
	// Step advances the population by one iteration, returning false
	// once the stepper itself has nothing left to do (e.g. a scan
	// exhausted its enumeration) regardless of the base loop's own
	// halt conditions.
	Step(ctx context.Context) (bool, error)
	// Best returns the current best individual, or nil if none is
	// valid yet.
	Best() *individual.Individual
}

// Base is the shared iteration loop (spec §4.6). The zero value is
// ready to use; call Run to drive a Stepper to completion.
type Base struct {
	Config Config

	state      State
	iteration  int
	stall      int
	bestRaw    float64
	haveBest   bool
	startedAt  time.Time
}

// State returns the loop's current phase.
func (b *Base) State() State { return b.state }

// Iteration returns the number of completed CYCLE iterations.
func (b *Base) Iteration() int { return b.iteration }

// Stall returns the number of consecutive iterations without strict
// improvement in fitness criterion 0 (spec §9 design note: stall is
// defined on the primary criterion only).
func (b *Base) Stall() int { return b.stall }

// resetToOptimizationStart clears all run-local bookkeeping so Run can
// be called again on a fresh optimization (spec §4.6).
func (b *Base) resetToOptimizationStart() {
	b.iteration = 0
	b.stall = 0
	b.haveBest = false
	b.bestRaw = 0
	b.startedAt = time.Time{}
}

func (b *Base) notify(mode InfoMode, s Stepper) {
	if len(b.Config.Observers) == 0 {
		return
	}
	rc := &Context{
		Iteration:  b.iteration,
		Stall:      b.stall,
		Population: s.Population(),
		Best:       s.Best(),
		State:      b.state,
		Elapsed:    time.Since(b.startedAt),
	}
	for _, o := range b.Config.Observers {
		o.Notify(mode, rc)
	}
}

func (b *Base) updateStall(s Stepper) {
	best := s.Best()
	if best == nil || best.Dirty {
		return
	}
	raw, err := best.RawFitness(0)
	if err != nil {
		return
	}
	if !b.haveBest || raw < b.bestRaw {
		b.bestRaw = raw
		b.haveBest = true
		b.stall = 0
	} else {
		b.stall++
	}
}

func (b *Base) shouldHalt(s Stepper) bool {
	c := b.Config
	if c.MaxIterations > 0 && b.iteration >= c.MaxIterations {
		return true
	}
	if c.MaxStall > 0 && b.stall >= c.MaxStall {
		return true
	}
	if c.MaxDuration > 0 && time.Since(b.startedAt) >= c.MaxDuration {
		return true
	}
	if c.QualityThresholdSet && b.haveBest && b.bestRaw <= c.QualityThreshold {
		return true
	}
	if c.CustomHalt != nil {
		rc := &Context{Iteration: b.iteration, Stall: b.stall, Population: s.Population(), Best: s.Best(), State: b.state}
		if c.CustomHalt(rc) {
			return true
		}
	}
	return false
}

// Run drives s through IDLE→INIT→CYCLE→FINALIZE→IDLE until a halt
// condition fires or the context is canceled or the stepper itself
// reports it has nothing left to do (spec §4.6, §4.5's
// EndOfEnumeration halt conversion for the scan algorithm).
func (b *Base) Run(ctx context.Context, s Stepper) error {
	if b.Config.Executor == nil {
		return errs.New(errs.InvalidConfiguration, "algorithm: no executor configured")
	}

	b.resetToOptimizationStart()
	b.state = Init
	b.startedAt = time.Now()
	b.notify(InfoInit, s)

	b.state = Cycle
	for {
		select {
		case <-ctx.Done():
			b.state = Finalize
			b.notify(InfoEnd, s)
			b.state = Idle
			return ctx.Err()
		default:
		}

		more, err := s.Step(ctx)
		if err != nil {
			if errs.Is(err, errs.EndOfEnumeration) {
				more = false
			} else {
				b.state = Idle
				return err
			}
		}

		if err := b.Config.Executor.Process(ctx, s.Population()); err != nil {
			b.state = Idle
			return err
		}

		b.iteration++
		b.updateStall(s)
		b.notify(InfoProcessing, s)

		if !more || b.shouldHalt(s) {
			break
		}
	}

	b.state = Finalize
	b.notify(InfoEnd, s)
	b.state = Idle
	return nil
}

// CheckpointState is the serializable snapshot of Base's run-local
// bookkeeping (spec §6: an algorithm must be able to checkpoint and
// resume with value-equal state). It excludes the population and
// executor, which a caller must re-supply along with the Stepper.
type CheckpointState struct {
	Iteration int
	Stall     int
	BestRaw   float64
	HaveBest  bool
}

// Checkpoint encodes the loop's resumable state with encoding/gob,
// the stdlib's answer for round-tripping Go values: nothing in this
// module's dependency pack pulls in a dedicated serialization library.
func (b *Base) Checkpoint(w io.Writer) error {
	st := CheckpointState{Iteration: b.iteration, Stall: b.stall, BestRaw: b.bestRaw, HaveBest: b.haveBest}
	return gob.NewEncoder(w).Encode(st)
}

// Restore decodes a checkpoint written by Checkpoint, replacing this
// Base's run-local bookkeeping. The caller is responsible for
// restoring the matching population into the Stepper separately.
func (b *Base) Restore(r io.Reader) error {
	var st CheckpointState
	if err := gob.NewDecoder(r).Decode(&st); err != nil {
		return errs.New(errs.ResourceError, "algorithm: checkpoint decode failed: %v", err)
	}
	b.iteration, b.stall, b.bestRaw, b.haveBest = st.Iteration, st.Stall, st.BestRaw, st.HaveBest
	return nil
}
