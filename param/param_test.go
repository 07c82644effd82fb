package param

import (
	"testing"

	"github.com/pa-m/paramopt/errs"
	"github.com/pa-m/paramopt/kindmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferIntegerIdempotence(t *testing.T) {
	// spec §8: Integer transfer idempotence example.
	assert.Equal(t, int32(2), Transfer(int32(7), int32(0), int32(4)))
	assert.Equal(t, int32(3), Transfer(int32(-3), int32(0), int32(4)))
	for v := int32(-20); v <= 20; v++ {
		once := Transfer(v, int32(0), int32(4))
		assert.GreaterOrEqual(t, once, int32(0))
		assert.LessOrEqual(t, once, int32(4))
		twice := Transfer(once, int32(0), int32(4))
		assert.Equal(t, once, twice, "transfer not idempotent at v=%d", v)
	}
}

func TestTransferFloatIdempotentAndBounded(t *testing.T) {
	for _, v := range []float64{-37.2, -5.001, 0, 2.5, 5, 17.9} {
		once := Transfer(v, -5.0, 5.0)
		assert.GreaterOrEqual(t, once, -5.0)
		assert.LessOrEqual(t, once, 5.0)
		twice := Transfer(once, -5.0, 5.0)
		assert.InDelta(t, once, twice, 1e-9)
	}
}

func TestTransferInRangeIsIdentity(t *testing.T) {
	assert.Equal(t, 2.5, Transfer(2.5, -5.0, 5.0))
	assert.Equal(t, int32(3), Transfer(int32(3), int32(0), int32(4)))
}

func TestStreamlineAssignRoundTrip(t *testing.T) {
	s := NewSet()
	x := NewLeaf[float64]("x", 1.0, -5, 5)
	require.NoError(t, x.SetBounds(-5, 5))
	y := NewLeaf[float64]("y", -2.0, -5, 5)
	AddLeaf(s, x)
	AddLeaf(s, y)
	col := NewCollectionLeaf[float64]("zs", []float64{0.1, 0.2, 0.3}, -1, 1)
	AddCollection(s, col)

	before := Streamline[float64](s, nil, kindmode.All)
	require.Len(t, before, 5)

	pos := 0
	require.NoError(t, Assign(s, before, &pos, kindmode.All))
	after := Streamline[float64](s, nil, kindmode.All)
	assert.Equal(t, before, after)
}

func TestStreamlineMapAssignMapRoundTrip(t *testing.T) {
	s := NewSet()
	AddLeaf(s, NewLeaf[int32]("n", 3, 0, 10))
	AddLeaf(s, NewLeaf[int32]("m", 7, 0, 10))

	m := map[string][]int32{}
	StreamlineMap[int32](s, m, kindmode.All)
	assert.Equal(t, []int32{3}, m["n"])
	assert.Equal(t, []int32{7}, m["m"])

	m["n"] = []int32{99}
	require.NoError(t, AssignMap(s, m, kindmode.All))
	assert.Equal(t, int32(99), Leaves[int32](s)[0].Value)
}

func TestBulkArithmeticFailsForBool(t *testing.T) {
	s := NewSet()
	AddLeaf(s, NewLeaf[bool]("b", true, false, true))

	err := MultiplyBy(s, true, kindmode.All)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.UnsupportedKind))

	err = FixedValueInit(s, false, kindmode.All)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.UnsupportedKind))

	err = Add[bool](s, s, kindmode.All)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.UnsupportedKind))
}

func TestCloneIndependence(t *testing.T) {
	s := NewSet()
	AddLeaf(s, NewLeaf[float64]("x", 1.0, -5, 5))
	clone := s.Clone()
	assert.True(t, s.Equal(clone, 1e-9))

	clone.doubleLeaves[0].Value = 42
	assert.False(t, s.Equal(clone, 1e-9))
	assert.Equal(t, 1.0, s.doubleLeaves[0].Value)
}

func TestMultiplyByAndFixedValueInit(t *testing.T) {
	s := NewSet()
	AddLeaf(s, NewLeaf[float64]("x", 2.0, -5, 5))
	require.NoError(t, MultiplyBy(s, 3.0, kindmode.All))
	assert.Equal(t, 6.0, s.doubleLeaves[0].Value)

	require.NoError(t, FixedValueInit(s, -1.0, kindmode.All))
	assert.Equal(t, -1.0, s.doubleLeaves[0].Value)
}

func TestAddSubtract(t *testing.T) {
	a := NewSet()
	AddLeaf(a, NewLeaf[float64]("x", 1.0, -5, 5))
	b := NewSet()
	AddLeaf(b, NewLeaf[float64]("x", 4.0, -5, 5))

	require.NoError(t, Add[float64](a, b, kindmode.All))
	assert.Equal(t, 5.0, a.doubleLeaves[0].Value)

	require.NoError(t, Subtract[float64](a, b, kindmode.All))
	assert.Equal(t, 1.0, a.doubleLeaves[0].Value)
}
