package personality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type cmaesTraits struct {
	SigmaHistory []float64
}

func TestTableSetGetDelete(t *testing.T) {
	tbl := NewTable[cmaesTraits]()
	_, ok := tbl.Get(1)
	assert.False(t, ok)

	tbl.Set(1, cmaesTraits{SigmaHistory: []float64{1, 0.5}})
	v, ok := tbl.Get(1)
	assert.True(t, ok)
	assert.Equal(t, []float64{1, 0.5}, v.SigmaHistory)
	assert.Equal(t, 1, tbl.Len())

	tbl.Delete(1)
	_, ok = tbl.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, tbl.Len())
}
