package param

import (
	"github.com/pa-m/paramopt/kindmode"
	"github.com/pa-m/paramopt/rngsvc"
)

// Set is the typed, nested parameter tree owned by an individual
// (spec §3): an ordered collection of leaves and collection leaves,
// grouped by value kind. The tree's shape is immutable once built;
// only leaf values change during a run (spec §3 invariant).
type Set struct {
	doubleLeaves []*Leaf[float64]
	doubleCols   []*CollectionLeaf[float64]
	floatLeaves  []*Leaf[float32]
	floatCols    []*CollectionLeaf[float32]
	int32Leaves  []*Leaf[int32]
	int32Cols    []*CollectionLeaf[int32]
	boolLeaves   []*Leaf[bool]
	boolCols     []*CollectionLeaf[bool]
}

func NewSet() *Set { return &Set{} }

// Activity re-exports kindmode.Activity for convenience within this
// package's public bulk-operation signatures.
type Activity = kindmode.Activity

// AddLeaf appends a scalar leaf to the tree, in the kind bucket
// matching T.
func AddLeaf[T Scalar](s *Set, l *Leaf[T]) {
	switch KindOf[T]() {
	case kindmode.Double:
		s.doubleLeaves = append(s.doubleLeaves, any(l).(*Leaf[float64]))
	case kindmode.Float:
		s.floatLeaves = append(s.floatLeaves, any(l).(*Leaf[float32]))
	case kindmode.Int32:
		s.int32Leaves = append(s.int32Leaves, any(l).(*Leaf[int32]))
	case kindmode.Bool:
		s.boolLeaves = append(s.boolLeaves, any(l).(*Leaf[bool]))
	}
}

// AddCollection appends a collection leaf to the tree.
func AddCollection[T Scalar](s *Set, c *CollectionLeaf[T]) {
	switch KindOf[T]() {
	case kindmode.Double:
		s.doubleCols = append(s.doubleCols, any(c).(*CollectionLeaf[float64]))
	case kindmode.Float:
		s.floatCols = append(s.floatCols, any(c).(*CollectionLeaf[float32]))
	case kindmode.Int32:
		s.int32Cols = append(s.int32Cols, any(c).(*CollectionLeaf[int32]))
	case kindmode.Bool:
		s.boolCols = append(s.boolCols, any(c).(*CollectionLeaf[bool]))
	}
}

func leavesFor[T Scalar](s *Set) []*Leaf[T] {
	switch KindOf[T]() {
	case kindmode.Double:
		return any(s.doubleLeaves).([]*Leaf[T])
	case kindmode.Float:
		return any(s.floatLeaves).([]*Leaf[T])
	case kindmode.Int32:
		return any(s.int32Leaves).([]*Leaf[T])
	case kindmode.Bool:
		return any(s.boolLeaves).([]*Leaf[T])
	}
	return nil
}

func colLeavesFor[T Scalar](s *Set) []*CollectionLeaf[T] {
	switch KindOf[T]() {
	case kindmode.Double:
		return any(s.doubleCols).([]*CollectionLeaf[T])
	case kindmode.Float:
		return any(s.floatCols).([]*CollectionLeaf[T])
	case kindmode.Int32:
		return any(s.int32Cols).([]*CollectionLeaf[T])
	case kindmode.Bool:
		return any(s.boolCols).([]*CollectionLeaf[T])
	}
	return nil
}

// Leaves returns the scalar leaves of kind T, in tree order.
func Leaves[T Scalar](s *Set) []*Leaf[T] { return leavesFor[T](s) }

// Collections returns the collection leaves of kind T, in tree order.
func Collections[T Scalar](s *Set) []*CollectionLeaf[T] { return colLeavesFor[T](s) }

// AdaptAll runs Adapt on every leaf and collection leaf in the tree
// (regardless of kind), summing the scalar adaptions performed. This
// is the per-individual adapt() hook of spec §4.4.
func (s *Set) AdaptAll(rng rngsvc.Source) int {
	n := 0
	for _, l := range s.doubleLeaves {
		n += l.Adapt(rng)
	}
	for _, c := range s.doubleCols {
		n += c.Adapt(rng)
	}
	for _, l := range s.floatLeaves {
		n += l.Adapt(rng)
	}
	for _, c := range s.floatCols {
		n += c.Adapt(rng)
	}
	for _, l := range s.int32Leaves {
		n += l.Adapt(rng)
	}
	for _, c := range s.int32Cols {
		n += c.Adapt(rng)
	}
	for _, l := range s.boolLeaves {
		n += l.Adapt(rng)
	}
	for _, c := range s.boolCols {
		n += c.Adapt(rng)
	}
	return n
}

// RandomInitAll draws fresh values for every leaf in the tree from its
// initialization range, honoring RandomInitBlocked.
func (s *Set) RandomInitAll(rng rngsvc.Source) {
	for _, l := range s.doubleLeaves {
		l.RandomInit(rng)
	}
	for _, c := range s.doubleCols {
		c.RandomInit(rng)
	}
	for _, l := range s.floatLeaves {
		l.RandomInit(rng)
	}
	for _, c := range s.floatCols {
		c.RandomInit(rng)
	}
	for _, l := range s.int32Leaves {
		l.RandomInit(rng)
	}
	for _, c := range s.int32Cols {
		c.RandomInit(rng)
	}
	for _, l := range s.boolLeaves {
		l.RandomInit(rng)
	}
	for _, c := range s.boolCols {
		c.RandomInit(rng)
	}
}

// Clone returns a deep copy of the tree (spec §8 testable property 1).
func (s *Set) Clone() *Set {
	c := &Set{}
	for _, l := range s.doubleLeaves {
		c.doubleLeaves = append(c.doubleLeaves, l.Clone())
	}
	for _, cc := range s.doubleCols {
		c.doubleCols = append(c.doubleCols, cc.Clone())
	}
	for _, l := range s.floatLeaves {
		c.floatLeaves = append(c.floatLeaves, l.Clone())
	}
	for _, cc := range s.floatCols {
		c.floatCols = append(c.floatCols, cc.Clone())
	}
	for _, l := range s.int32Leaves {
		c.int32Leaves = append(c.int32Leaves, l.Clone())
	}
	for _, cc := range s.int32Cols {
		c.int32Cols = append(c.int32Cols, cc.Clone())
	}
	for _, l := range s.boolLeaves {
		c.boolLeaves = append(c.boolLeaves, l.Clone())
	}
	for _, cc := range s.boolCols {
		c.boolCols = append(c.boolCols, cc.Clone())
	}
	return c
}

// Equal reports whether s and o hold equal values for every leaf,
// comparing floating-point kinds within tolerance eps (spec §8
// testable property 1).
func (s *Set) Equal(o *Set, eps float64) bool {
	return equalLeaves(s.doubleLeaves, o.doubleLeaves, eps) &&
		equalCols(s.doubleCols, o.doubleCols, eps) &&
		equalLeaves(s.floatLeaves, o.floatLeaves, eps) &&
		equalCols(s.floatCols, o.floatCols, eps) &&
		equalLeaves(s.int32Leaves, o.int32Leaves, eps) &&
		equalCols(s.int32Cols, o.int32Cols, eps) &&
		equalLeaves(s.boolLeaves, o.boolLeaves, eps) &&
		equalCols(s.boolCols, o.boolCols, eps)
}

func equalLeaves[T Scalar](a, b []*Leaf[T], eps float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !approxEqual(a[i].Value, b[i].Value, eps) {
			return false
		}
	}
	return true
}

func equalCols[T Scalar](a, b []*CollectionLeaf[T], eps float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i].Values) != len(b[i].Values) {
			return false
		}
		for j := range a[i].Values {
			if !approxEqual(a[i].Values[j], b[i].Values[j], eps) {
				return false
			}
		}
	}
	return true
}

func approxEqual[T Scalar](a, b T, eps float64) bool {
	if KindOf[T]() == kindmode.Bool {
		return a == b
	}
	d := toFloat(a) - toFloat(b)
	if d < 0 {
		d = -d
	}
	return d <= eps
}

// resizeT returns a slice of length n, reusing buf's backing array
// when it has enough capacity. Adapted from pa-m/optimize's
// types.go:resize.
func resizeT[T any](buf []T, n int) []T {
	if n > cap(buf) {
		return make([]T, n)
	}
	return buf[:n]
}
