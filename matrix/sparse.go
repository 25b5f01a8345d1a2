// Package matrix implements the column-banded score matrices used by the
// forward/backward recursions. Each column stores only a contiguous run of
// rows; every other entry reads as Floor.
package matrix

import (
	"fmt"
	"math"

	"github.com/grailbio/base/log"
	"github.com/grailbio/consensus/internal/invariant"
)

// Interval is a half-open row range [Begin, End).
type Interval struct {
	Begin, End int
}

// Len returns the number of rows in the interval, or 0 if it is empty.
func (r Interval) Len() int {
	if r.End <= r.Begin {
		return 0
	}
	return r.End - r.Begin
}

// Union returns the smallest interval covering r and o.
func (r Interval) Union(o Interval) Interval {
	return Interval{minInt(r.Begin, o.Begin), maxInt(r.End, o.End)}
}

// Sparse is a rows×cols matrix that stores, per column, only the rows of its
// used range. Columns are written under an explicit editing discipline:
// StartEditingColumn, then Set/Set4, then FinishEditingColumn, one column at
// a time.
type Sparse struct {
	columns []*SparseVector
	used    []Interval
	rows    int
	cols    int
	editing int
}

var null = &Sparse{editing: -1}

// Null returns the 0×0 matrix used to signal "no guide available".
func Null() *Sparse { return null }

// NewSparse allocates an empty rows×cols matrix. No column storage is
// allocated until a column is first edited.
func NewSparse(rows, cols int) *Sparse {
	if rows < 0 || cols < 0 {
		log.Panicf("matrix: bad dimensions %dx%d", rows, cols)
	}
	return &Sparse{
		columns: make([]*SparseVector, cols),
		used:    make([]Interval, cols),
		rows:    rows,
		cols:    cols,
		editing: -1,
	}
}

// IsNull reports whether m is the null matrix.
func (m *Sparse) IsNull() bool { return m.rows == 0 && m.cols == 0 }

// Rows returns the logical number of rows.
func (m *Sparse) Rows() int { return m.rows }

// Columns returns the logical number of columns.
func (m *Sparse) Columns() int { return m.cols }

// StartEditingColumn opens column j for writing, clearing it and reserving
// storage for the hinted row range.
func (m *Sparse) StartEditingColumn(j, hintBegin, hintEnd int) {
	m.checkColumn(j)
	if m.editing != -1 {
		log.Panicf("matrix: column %d opened while column %d is being edited", j, m.editing)
	}
	m.editing = j
	if c := m.columns[j]; c != nil {
		c.ResetForRange(hintBegin, hintEnd)
	} else {
		m.columns[j] = NewSparseVector(m.rows, hintBegin, hintEnd)
	}
}

// FinishEditingColumn closes column j and records [usedBegin, usedEnd) as
// its used row range.
func (m *Sparse) FinishEditingColumn(j, usedBegin, usedEnd int) {
	if m.editing != j {
		log.Panicf("matrix: finishing column %d but column %d is being edited", j, m.editing)
	}
	m.used[j] = Interval{usedBegin, usedEnd}
	if invariant.Enabled {
		m.checkColumnInvariants(j)
	}
	m.editing = -1
}

// UsedRowRange returns the used rows of column j.
func (m *Sparse) UsedRowRange(j int) Interval {
	m.checkColumn(j)
	return m.used[j]
}

// IsColumnEmpty reports whether column j has no used rows.
func (m *Sparse) IsColumnEmpty(j int) bool {
	m.checkColumn(j)
	return m.used[j].Begin >= m.used[j].End
}

// IsAllocated reports whether (i, j) has backing storage.
func (m *Sparse) IsAllocated(i, j int) bool {
	m.checkColumn(j)
	return m.columns[j] != nil && m.columns[j].IsAllocated(i)
}

// Get returns entry (i, j), or Floor if it is not stored.
func (m *Sparse) Get(i, j int) float64 {
	m.checkColumn(j)
	c := m.columns[j]
	if c == nil {
		m.checkRow(i)
		return Floor
	}
	return c.Get(i)
}

// Set stores x at (i, j). Column j must be open for editing.
func (m *Sparse) Set(i, j int, x float64) {
	if m.editing != j {
		log.Panicf("matrix: write to column %d while column %d is being edited", j, m.editing)
	}
	m.columns[j].Set(i, x)
}

// Get4 returns rows i..i+3 of column j.
func (m *Sparse) Get4(i, j int) [4]float64 {
	m.checkColumn(j)
	c := m.columns[j]
	if c == nil {
		if i < 0 || i+3 >= m.rows {
			log.Panicf("matrix: Get4 row %d out of range [0,%d)", i, m.rows)
		}
		return [4]float64{Floor, Floor, Floor, Floor}
	}
	return c.Get4(i)
}

// Set4 stores x at rows i..i+3 of column j, which must be open for editing.
func (m *Sparse) Set4(i, j int, x [4]float64) {
	if m.editing != j {
		log.Panicf("matrix: write to column %d while column %d is being edited", j, m.editing)
	}
	m.columns[j].Set4(i, x)
}

// ClearColumn forgets the contents and used range of column j.
func (m *Sparse) ClearColumn(j int) {
	m.checkColumn(j)
	m.used[j] = Interval{}
	if c := m.columns[j]; c != nil {
		c.Clear()
	}
}

// UsedEntries returns the total number of used cells.
func (m *Sparse) UsedEntries() int {
	n := 0
	for _, r := range m.used {
		n += r.Len()
	}
	return n
}

// AllocatedEntries returns the total number of cells with backing storage.
func (m *Sparse) AllocatedEntries() int {
	n := 0
	for _, c := range m.columns {
		if c != nil {
			n += c.AllocatedEntries()
		}
	}
	return n
}

// ToDense returns the matrix as row-major slices, with NaN for cells that
// have no backing storage.
func (m *Sparse) ToDense() [][]float64 {
	d := make([][]float64, m.rows)
	for i := range d {
		d[i] = make([]float64, m.cols)
		for j := range d[i] {
			if m.IsAllocated(i, j) {
				d[i][j] = m.Get(i, j)
			} else {
				d[i][j] = math.NaN()
			}
		}
	}
	return d
}

// CheckInvariants panics if any column's storage is inconsistent, or if a
// stored entry outside a column's used range differs from Floor.
func (m *Sparse) CheckInvariants() {
	for j := range m.columns {
		m.checkColumnInvariants(j)
	}
}

func (m *Sparse) checkColumnInvariants(j int) {
	c := m.columns[j]
	if c == nil {
		return
	}
	c.CheckInvariants()
	r := m.used[j]
	if r.Begin < 0 || r.End > m.rows || r.Begin > r.End {
		log.Panicf("matrix: column %d has bad used range %+v", j, r)
	}
	for i := c.allocBegin; i < c.allocEnd; i++ {
		if (i < r.Begin || i >= r.End) && c.storage[i-c.allocBegin] != Floor {
			log.Panicf("matrix: column %d row %d is outside used range %+v but holds %v",
				j, i, r, c.storage[i-c.allocBegin])
		}
	}
}

func (m *Sparse) checkColumn(j int) {
	if j < 0 || j >= m.cols {
		panic(fmt.Sprintf("matrix: column %d out of range [0,%d)", j, m.cols))
	}
}

func (m *Sparse) checkRow(i int) {
	if i < 0 || i >= m.rows {
		panic(fmt.Sprintf("matrix: row %d out of range [0,%d)", i, m.rows))
	}
}
