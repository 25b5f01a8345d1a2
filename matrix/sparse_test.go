package matrix

import (
	"math"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparseVectorBasic(t *testing.T) {
	v := NewSparseVector(100, 50, 60)
	expect.EQ(t, v.allocBegin, 42)
	expect.EQ(t, v.allocEnd, 68)
	expect.True(t, math.IsInf(v.Get(0), -1))
	expect.True(t, math.IsInf(v.Get(55), -1))

	v.Set(55, 1.5)
	expect.EQ(t, v.Get(55), 1.5)
	expect.True(t, math.IsInf(v.Get(54), -1))
}

func TestSparseVectorGrowPreservesValues(t *testing.T) {
	v := NewSparseVector(200, 50, 60)
	for i := 50; i < 60; i++ {
		v.Set(i, float64(i))
	}
	v.Set(10, -1)
	v.Set(150, -2)
	for i := 50; i < 60; i++ {
		assert.Equal(t, float64(i), v.Get(i), "row %d", i)
	}
	expect.EQ(t, v.Get(10), -1.0)
	expect.EQ(t, v.Get(150), -2.0)
	expect.True(t, math.IsInf(v.Get(11), -1))
	expect.True(t, math.IsInf(v.Get(149), -1))
	expect.EQ(t, v.allocBegin, 2)
	expect.EQ(t, v.allocEnd, 158)
	v.CheckInvariants()
}

func TestSparseVectorClipsToLength(t *testing.T) {
	v := NewSparseVector(10, 0, 10)
	expect.EQ(t, v.allocBegin, 0)
	expect.EQ(t, v.allocEnd, 10)
	v.Set(9, 3)
	expect.EQ(t, v.Get(9), 3.0)
	assert.Panics(t, func() { v.Get(10) })
	assert.Panics(t, func() { v.Set(-1, 0) })
}

func TestSparseVectorResetForRange(t *testing.T) {
	v := NewSparseVector(1000, 0, 100)
	v.Set(5, 1)
	size := v.allocEnd - v.allocBegin

	// Slightly smaller range: storage is kept but cleared.
	v.ResetForRange(10, 95)
	expect.EQ(t, v.nReallocs, 0)
	expect.True(t, math.IsInf(v.Get(5), -1))

	// Much smaller range: storage shrinks.
	v.ResetForRange(10, 20)
	expect.EQ(t, v.nReallocs, 1)
	expect.LT(t, v.allocEnd-v.allocBegin, size)

	// Larger range: storage grows.
	v.ResetForRange(0, 500)
	expect.EQ(t, v.nReallocs, 2)
	expect.EQ(t, v.allocEnd, 508)
	for i := 0; i < 508; i++ {
		require.True(t, math.IsInf(v.Get(i), -1), "row %d", i)
	}
}

func TestSparseVectorGet4Set4(t *testing.T) {
	v := NewSparseVector(40, 16, 20)
	v.Set4(16, [4]float64{1, 2, 3, 4})
	expect.EQ(t, v.Get4(16), [4]float64{1, 2, 3, 4})

	// Straddles the allocation edge: falls back to element access.
	v.Set4(26, [4]float64{5, 6, 7, 8})
	expect.EQ(t, v.Get4(26), [4]float64{5, 6, 7, 8})
	expect.EQ(t, v.Get(29), 8.0)
	expect.EQ(t, v.Get4(16), [4]float64{1, 2, 3, 4})

	got := v.Get4(0)
	for _, x := range got {
		expect.True(t, math.IsInf(x, -1))
	}
	assert.Panics(t, func() { v.Get4(37) })
}

func TestSparseEditingDiscipline(t *testing.T) {
	m := NewSparse(10, 5)
	expect.False(t, m.IsNull())
	expect.True(t, Null().IsNull())
	expect.True(t, m.IsColumnEmpty(0))

	m.StartEditingColumn(0, 2, 5)
	for i := 2; i < 5; i++ {
		m.Set(i, 0, float64(i))
	}
	assert.Panics(t, func() { m.StartEditingColumn(1, 0, 1) })
	assert.Panics(t, func() { m.Set(1, 1, 0) })
	assert.Panics(t, func() { m.FinishEditingColumn(1, 0, 1) })
	m.FinishEditingColumn(0, 2, 5)

	expect.EQ(t, m.UsedRowRange(0), Interval{2, 5})
	expect.False(t, m.IsColumnEmpty(0))
	expect.EQ(t, m.Get(3, 0), 3.0)
	expect.True(t, math.IsInf(m.Get(0, 0), -1))
	expect.True(t, math.IsInf(m.Get(0, 4), -1))
	expect.EQ(t, m.UsedEntries(), 3)
	expect.GT(t, m.AllocatedEntries(), 0)
	m.CheckInvariants()

	assert.Panics(t, func() { m.Get(10, 0) })
	assert.Panics(t, func() { m.Get(0, 5) })

	m.ClearColumn(0)
	expect.True(t, m.IsColumnEmpty(0))
	expect.True(t, math.IsInf(m.Get(3, 0), -1))
}

func TestSparseInvariantViolation(t *testing.T) {
	m := NewSparse(10, 2)
	m.StartEditingColumn(0, 0, 10)
	m.Set(7, 0, 1)
	// Row 7 holds a value outside the declared range.
	m.editing = -1
	m.used[0] = Interval{0, 5}
	assert.Panics(t, func() { m.CheckInvariants() })
}

func TestSparseToDense(t *testing.T) {
	m := NewSparse(30, 2)
	m.StartEditingColumn(1, 0, 1)
	m.Set(0, 1, 4)
	m.FinishEditingColumn(1, 0, 1)
	d := m.ToDense()
	require.Len(t, d, 30)
	expect.True(t, math.IsNaN(d[0][0]))
	expect.EQ(t, d[0][1], 4.0)
	expect.True(t, math.IsInf(d[1][1], -1))
	expect.True(t, math.IsNaN(d[29][1]))
}

func TestIntervalUnion(t *testing.T) {
	expect.EQ(t, Interval{3, 5}.Union(Interval{1, 4}), Interval{1, 5})
	expect.EQ(t, Interval{3, 5}.Len(), 2)
	expect.EQ(t, Interval{5, 3}.Len(), 0)
}
