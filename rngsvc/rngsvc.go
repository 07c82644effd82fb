// Package rngsvc is the one collaborator spec.md §1 explicitly treats
// as external to the core: a per-thread random-number service. The
// core never shares a generator across threads (spec §5); this
// package defines the interface the core consumes and a default
// implementation for callers who do not bring their own.
package rngsvc

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Source supplies the four draws the core needs: a uniform real in
// [0,1), a uniform int in [lo,hi], a Bernoulli(p) bool, and a Gaussian
// with the given mean/sigma. One Source belongs to exactly one
// goroutine at a time; see spec §5.
type Source interface {
	UniformFloat64() float64
	UniformInt(lo, hi int) int
	Bernoulli(p float64) bool
	Gaussian(mean, sigma float64) float64
}

// Default is a Source backed by golang.org/x/exp/rand and
// gonum.org/v1/gonum/stat/distuv, matching the teacher's own choice of
// RNG stack (cmaesbounded.go's Src rand.Source field). Not safe for
// concurrent use; construct one per evaluating goroutine.
type Default struct {
	src  rand.Source
	rng  *rand.Rand
	norm distuv.Normal
}

// New builds a Default source seeded from seed. Two sources built from
// the same seed draw identical sequences.
func New(seed uint64) *Default {
	src := rand.NewSource(seed)
	d := &Default{src: src, rng: rand.New(src)}
	d.norm = distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	return d
}

func (d *Default) UniformFloat64() float64 {
	return d.rng.Float64()
}

func (d *Default) UniformInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + d.rng.Intn(hi-lo+1)
}

func (d *Default) Bernoulli(p float64) bool {
	return d.rng.Float64() < p
}

func (d *Default) Gaussian(mean, sigma float64) float64 {
	return mean + sigma*d.norm.Rand()
}
