// Package executor implements the executor contract of spec §4.7: the
// collaborator an algorithm hands a batch of individuals to in order
// to have their fitness computed.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pa-m/paramopt/individual"
)

// FitnessFunc computes the fitness results for one individual. It is
// the caller-supplied evaluation the executor wraps with timing and
// error bookkeeping.
type FitnessFunc func(ctx context.Context, ind *individual.Individual) ([]individual.FitnessResult, error)

// Executor processes a batch of individuals, populating each one's
// fitness results, processing times, and error flag (spec §4.7).
// Implementations must tolerate being called with a batch containing
// already-processed (non-dirty) individuals: GetNProcessable reports
// how many of the batch actually need work.
type Executor interface {
	Process(ctx context.Context, batch []*individual.Individual) error
	GetNProcessable(batch []*individual.Individual) int
}

func processable(batch []*individual.Individual) []*individual.Individual {
	var out []*individual.Individual
	for _, ind := range batch {
		if ind.Dirty || !ind.IsProcessed {
			out = append(out, ind)
		}
	}
	return out
}

func countProcessable(batch []*individual.Individual) int {
	n := 0
	for _, ind := range batch {
		if ind.Dirty || !ind.IsProcessed {
			n++
		}
	}
	return n
}

func runOne(ctx context.Context, fn FitnessFunc, ind *individual.Individual) {
	start := time.Now()
	results, err := fn(ctx, ind)
	elapsed := time.Since(start)
	ind.ProcessingTimes = individual.ProcessingTimes{Main: elapsed}
	if err != nil {
		ind.HasErrors = true
		ind.IsProcessed = true
		ind.Dirty = false
		return
	}
	ind.HasErrors = false
	ind.SetFitness(results)
}

// SerialExecutor processes individuals one at a time on the calling
// goroutine, in batch order (spec §4.7's simplest conforming
// implementation).
type SerialExecutor struct {
	Fitness FitnessFunc
}

// NewSerialExecutor builds a SerialExecutor around fn.
func NewSerialExecutor(fn FitnessFunc) *SerialExecutor { return &SerialExecutor{Fitness: fn} }

func (e *SerialExecutor) GetNProcessable(batch []*individual.Individual) int {
	return countProcessable(batch)
}

func (e *SerialExecutor) Process(ctx context.Context, batch []*individual.Individual) error {
	for _, ind := range processable(batch) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		runOne(ctx, e.Fitness, ind)
	}
	return nil
}

// PoolExecutor processes a batch's individuals concurrently across a
// fixed-size worker pool (spec §5: concurrency & resource model — a
// bounded pool of worker goroutines, one task per individual, no
// unbounded fan-out).
type PoolExecutor struct {
	Fitness     FitnessFunc
	Concurrency int
}

// NewPoolExecutor builds a PoolExecutor with the given worker count.
// A non-positive concurrency is treated as 1.
func NewPoolExecutor(fn FitnessFunc, concurrency int) *PoolExecutor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &PoolExecutor{Fitness: fn, Concurrency: concurrency}
}

func (e *PoolExecutor) GetNProcessable(batch []*individual.Individual) int {
	return countProcessable(batch)
}

func (e *PoolExecutor) Process(ctx context.Context, batch []*individual.Individual) error {
	work := processable(batch)
	if len(work) == 0 {
		return nil
	}

	sem := make(chan struct{}, e.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, ind := range work {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(ind *individual.Individual) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					ind.HasErrors = true
					ind.IsProcessed = true
					ind.Dirty = false
					if firstErr == nil {
						firstErr = fmt.Errorf("executor: panic processing individual %d: %v", ind.ID, r)
					}
					mu.Unlock()
				}
			}()
			runOne(ctx, e.Fitness, ind)
		}(ind)
	}
	wg.Wait()
	return firstErr
}
