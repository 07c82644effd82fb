// adapted from gonum.org/v1/gonum/optimize/cmaes.go via pa-m/optimize's
// cmaesbounded.go. added ensureBounds; re-hosted onto this module's
// Stepper contract instead of gonum/optimize's Task/Operation channel
// protocol.

// Copyright ©2017 The Gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
/* BSD license for code copied from gonum/optimize/cmaes.go (all except
ensureBounds and the Stepper wiring in optimizer.go)
Copyright ©2013 The Gonum Authors. All rights reserved.

Redistribution and use in source and binary forms, with or without
modification, are permitted provided that the following conditions are met:
    * Redistributions of source code must retain the above copyright
      notice, this list of conditions and the following disclaimer.
    * Redistributions in binary form must reproduce the above copyright
      notice, this list of conditions and the following disclaimer in the
      documentation and/or other materials provided with the distribution.
    * Neither the name of the gonum project nor the names of its authors and
      contributors may be used to endorse or promote products derived from this
      software without specific prior written permission.

THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND
ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED
WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.
*/

// Package cmaes implements bounded CMA-ES (spec's supplemental
// algorithm list): the covariance-matrix-adaptation evolution
// strategy, constrained to a box via the teacher's ensureBounds
// extension, driven through this module's algorithm.Stepper contract
// instead of gonum/optimize's channel protocol.
package cmaes

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// core holds the fixed and adaptive CMA-ES-with-Cholesky parameters,
// unchanged from pa-m/optimize's CmaEsCholB except that sendTask's
// channel send and Run's Task/Operation loop are gone: callers drive
// sampling and updating directly (see optimizer.go).
type core struct {
	InitStepSize float64
	Population   int
	InitCholesky *mat.Cholesky
	StopLogDet   float64
	ForgetBest   bool
	Src          rand.Source

	dim                 int
	pop                 int
	weights             []float64
	muEff               float64
	cc, cs, c1, cmu, ds float64
	eChi                float64

	xs *mat.Dense
	fs []float64

	invSigma float64
	pc, ps   []float64
	mean     []float64
	chol     mat.Cholesky

	bestX, Xmin, Xmax []float64
	bestF             float64
}

func (cma *core) converged() bool {
	sd := cma.StopLogDet
	switch {
	case math.IsNaN(sd):
		return false
	case sd == 0:
		sd = float64(cma.dim) * -36.8413614879 // ln(1e-16)
	}
	return cma.chol.LogDet() < sd
}

func (cma *core) init(dim int) {
	cma.dim = dim
	cma.pop = cma.Population
	n := float64(dim)
	if cma.pop == 0 {
		cma.pop = 4 + int(3*math.Log(n))
	} else if cma.pop < 0 {
		panic("cmaes: negative population size")
	}
	mu := cma.pop / 2
	cma.weights = resize(cma.weights, mu)
	for i := range cma.weights {
		v := math.Log(float64(mu)+0.5) - math.Log(float64(i)+1)
		cma.weights[i] = v
	}
	floats.Scale(1/floats.Sum(cma.weights), cma.weights)
	cma.muEff = 0
	for _, v := range cma.weights {
		cma.muEff += v * v
	}
	cma.muEff = 1 / cma.muEff

	cma.cc = (4 + cma.muEff/n) / (n + 4 + 2*cma.muEff/n)
	cma.cs = (cma.muEff + 2) / (n + cma.muEff + 5)
	cma.c1 = 2 / ((n+1.3)*(n+1.3) + cma.muEff)
	cma.cmu = math.Min(1-cma.c1, 2*(cma.muEff-2+1/cma.muEff)/((n+2)*(n+2)+cma.muEff))
	cma.ds = 1 + 2*math.Max(0, math.Sqrt((cma.muEff-1)/(n+1))-1) + cma.cs
	cma.eChi = math.Sqrt(n) * (1 - 1.0/(4*n) + 1/(21*n*n))

	cma.xs = mat.NewDense(cma.pop, dim, nil)
	cma.fs = resize(cma.fs, cma.pop)

	cma.invSigma = 1 / cma.InitStepSize
	if cma.InitStepSize == 0 {
		cma.invSigma = 10.0 / 3
	} else if cma.InitStepSize < 0 {
		panic("cmaes: negative initial step size")
	}
	cma.pc = resize(cma.pc, dim)
	cma.ps = resize(cma.ps, dim)
	cma.mean = resize(cma.mean, dim)

	if cma.InitCholesky != nil {
		if cma.InitCholesky.SymmetricDim() != dim {
			panic("cmaes: incorrect InitCholesky size")
		}
		cma.chol.Clone(cma.InitCholesky)
	} else {
		b := mat.NewDiagDense(dim, nil)
		for i := 0; i < dim; i++ {
			b.SetDiag(i, 1)
		}
		var chol mat.Cholesky
		if !chol.Factorize(b) {
			panic("cmaes: bad cholesky, shouldn't happen")
		}
		cma.chol = chol
	}

	cma.bestX = resize(cma.bestX, dim)
	cma.bestF = math.Inf(1)
}

// ensureBounds folds x back inside [Xmin,Xmax], matching
// pa-m/optimize's extension to gonum's CMA-ES: while at least one
// coordinate of x lies strictly inside its bounds, each out-of-range
// coordinate is clipped to the bound it crossed; when every coordinate
// is at or past a bound, out-of-range coordinates are instead walked
// repeatedly halfway toward the mean until inside, to avoid collapsing
// the distribution onto the boundary.
func (cma *core) ensureBounds(x []float64) {
	nBounded := 0
	for i := range x {
		if (i < len(cma.Xmin) && x[i] <= cma.Xmin[i]) || (i < len(cma.Xmax) && x[i] >= cma.Xmax[i]) {
			nBounded++
		}
	}
	for i := range x {
		if i < len(cma.Xmin) && x[i] < cma.Xmin[i] {
			if nBounded < len(x) {
				x[i] = cma.Xmin[i]
			} else {
				for x[i] < cma.Xmin[i] {
					x[i] = (x[i] + cma.mean[i]) / 2
				}
			}
		}
		if i < len(cma.Xmax) && x[i] > cma.Xmax[i] {
			if nBounded < len(x) {
				x[i] = cma.Xmax[i]
			} else {
				for x[i] > cma.Xmax[i] {
					x[i] = (x[i] + cma.mean[i]) / 2
				}
			}
		}
	}
}

func (cma *core) sample(idx int) {
	distmv.NormalRand(cma.xs.RawRowView(idx), cma.mean, &cma.chol, cma.Src)
	cma.ensureBounds(cma.xs.RawRowView(idx))
}

func (cma *core) bestIdx() int {
	best := -1
	bestVal := math.Inf(1)
	for i, v := range cma.fs {
		if math.IsNaN(v) {
			continue
		}
		if v <= bestVal {
			best = i
			bestVal = v
		}
	}
	return best
}

// recordBest updates the overall best from the current generation's
// evaluated fs, honoring ForgetBest.
func (cma *core) recordBest() {
	best := cma.bestIdx()
	if best == -1 {
		return
	}
	bestF := cma.fs[best]
	if cma.ForgetBest {
		cma.bestF = bestF
		copy(cma.bestX, cma.xs.RawRowView(best))
		return
	}
	if bestF < cma.bestF {
		cma.bestF = bestF
		copy(cma.bestX, cma.xs.RawRowView(best))
	}
}

// update computes the new mean/covariance/step-size from the current
// generation's evaluated fs (pa-m/optimize's update, unchanged).
func (cma *core) update() error {
	ftmp := make([]float64, cma.pop)
	copy(ftmp, cma.fs)
	indexes := make([]int, cma.pop)
	for i := range indexes {
		indexes[i] = i
	}
	sort.Sort(bestSorter{F: ftmp, Idx: indexes})

	meanOld := make([]float64, len(cma.mean))
	copy(meanOld, cma.mean)

	for i := range cma.mean {
		cma.mean[i] = 0
	}
	for i, w := range cma.weights {
		idx := indexes[i]
		floats.AddScaled(cma.mean, w, cma.xs.RawRowView(idx))
	}
	cma.ensureBounds(cma.mean)
	meanDiff := make([]float64, len(cma.mean))
	floats.SubTo(meanDiff, cma.mean, meanOld)

	floats.Scale(1-cma.cc, cma.pc)
	scaleC := math.Sqrt(cma.cc*(2-cma.cc)*cma.muEff) * cma.invSigma
	floats.AddScaled(cma.pc, scaleC, meanDiff)

	floats.Scale(1-cma.cs, cma.ps)
	tmp := make([]float64, cma.dim)
	tmpVec := mat.NewVecDense(cma.dim, tmp)
	diffVec := mat.NewVecDense(cma.dim, meanDiff)
	if err := tmpVec.SolveVec(cma.chol.RawU().T(), diffVec); err != nil {
		return err
	}
	scaleS := math.Sqrt(cma.cs*(2-cma.cs)*cma.muEff) * cma.invSigma
	floats.AddScaled(cma.ps, scaleS, tmp)

	scaleChol := 1 - cma.c1 - cma.cmu
	if scaleChol == 0 {
		scaleChol = math.SmallestNonzeroFloat64
	}
	cma.chol.Scale(scaleChol, &cma.chol)
	cma.chol.SymRankOne(&cma.chol, cma.c1, mat.NewVecDense(cma.dim, cma.pc))
	for i, w := range cma.weights {
		idx := indexes[i]
		floats.SubTo(tmp, cma.xs.RawRowView(idx), meanOld)
		cma.chol.SymRankOne(&cma.chol, cma.cmu*w*cma.invSigma, tmpVec)
	}

	normPs := floats.Norm(cma.ps, 2)
	cma.invSigma /= math.Exp(cma.cs / cma.ds * (normPs/cma.eChi - 1))
	return nil
}

type bestSorter struct {
	F   []float64
	Idx []int
}

func (b bestSorter) Len() int           { return len(b.F) }
func (b bestSorter) Less(i, j int) bool { return b.F[i] < b.F[j] }
func (b bestSorter) Swap(i, j int) {
	b.F[i], b.F[j] = b.F[j], b.F[i]
	b.Idx[i], b.Idx[j] = b.Idx[j], b.Idx[i]
}

func resize(buf []float64, n int) []float64 {
	if n > cap(buf) {
		return make([]float64, n)
	}
	return buf[:n]
}
