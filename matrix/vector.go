package matrix

import (
	"fmt"
	"math"

	"github.com/grailbio/base/log"
)

const (
	// padding is the number of extra rows allocated on either side of a
	// requested range, so that small band shifts do not reallocate.
	padding = 8
	// shrinkThreshold: a column is reallocated smaller only when the new
	// range needs less than this fraction of the current allocation.
	shrinkThreshold = 0.8
)

// Floor is the value of every entry that is not stored. It is the additive
// identity of both score semirings (max-plus and log-sum-exp).
var Floor = math.Inf(-1)

// SparseVector stores the entries [allocBegin, allocEnd) of a vector of
// logical length n. Reads outside the allocation return Floor; writes outside
// it grow the allocation, preserving the stored entries.
type SparseVector struct {
	storage    []float64
	n          int
	allocBegin int
	allocEnd   int
	nReallocs  int
}

// NewSparseVector creates a vector of logical length n with storage for at
// least rows [begin, end).
func NewSparseVector(n, begin, end int) *SparseVector {
	if begin < 0 || begin > end || end > n {
		log.Panicf("matrix: bad sparse vector range [%d,%d) for length %d", begin, end, n)
	}
	v := &SparseVector{
		n:          n,
		allocBegin: maxInt(begin-padding, 0),
		allocEnd:   minInt(end+padding, n),
	}
	v.storage = make([]float64, v.allocEnd-v.allocBegin)
	v.Clear()
	return v
}

// Len returns the logical length of the vector.
func (v *SparseVector) Len() int { return v.n }

// ResetForRange makes sure there is storage for [begin, end) and clears every
// stored entry. Storage shrinks only when the new range is much smaller than
// the current allocation.
func (v *SparseVector) ResetForRange(begin, end int) {
	if begin < 0 || begin > end || end > v.n {
		log.Panicf("matrix: bad reset range [%d,%d) for length %d", begin, end, v.n)
	}
	newBegin := maxInt(begin-padding, 0)
	newEnd := minInt(end+padding, v.n)
	size, cur := newEnd-newBegin, v.allocEnd-v.allocBegin
	switch {
	case size > cur:
		if size <= cap(v.storage) {
			v.storage = v.storage[:size]
		} else {
			v.storage = make([]float64, size)
		}
		v.nReallocs++
	case float64(size) < shrinkThreshold*float64(cur):
		v.storage = make([]float64, size)
		v.nReallocs++
	default:
		v.storage = v.storage[:size]
	}
	v.allocBegin, v.allocEnd = newBegin, newEnd
	v.Clear()
}

// expandAllocated grows the allocation to [newBegin, newEnd), which must
// contain the current one, keeping the stored values in place.
func (v *SparseVector) expandAllocated(newBegin, newEnd int) {
	if newBegin > v.allocBegin || newEnd < v.allocEnd {
		log.Panicf("matrix: expand [%d,%d) does not contain [%d,%d)", newBegin, newEnd, v.allocBegin, v.allocEnd)
	}
	storage := make([]float64, newEnd-newBegin)
	for i := range storage {
		storage[i] = Floor
	}
	copy(storage[v.allocBegin-newBegin:], v.storage[:v.allocEnd-v.allocBegin])
	v.storage = storage
	v.allocBegin, v.allocEnd = newBegin, newEnd
	v.nReallocs++
}

// IsAllocated reports whether row i has backing storage.
func (v *SparseVector) IsAllocated(i int) bool {
	v.checkRow(i)
	return i >= v.allocBegin && i < v.allocEnd
}

// Get returns entry i, or Floor if it is not stored.
func (v *SparseVector) Get(i int) float64 {
	if v.IsAllocated(i) {
		return v.storage[i-v.allocBegin]
	}
	return Floor
}

// Set stores x at row i, growing the allocation if needed.
func (v *SparseVector) Set(i int, x float64) {
	if !v.IsAllocated(i) {
		newBegin := maxInt(minInt(i-padding, v.allocBegin), 0)
		newEnd := minInt(maxInt(i+padding, v.allocEnd), v.n)
		v.expandAllocated(newBegin, newEnd)
	}
	v.storage[i-v.allocBegin] = x
}

// Get4 returns rows i..i+3.
func (v *SparseVector) Get4(i int) (r [4]float64) {
	if i < 0 || i+3 >= v.n {
		log.Panicf("matrix: Get4 row %d out of range for length %d", i, v.n)
	}
	if i >= v.allocBegin && i+4 <= v.allocEnd {
		copy(r[:], v.storage[i-v.allocBegin:])
		return r
	}
	for k := range r {
		r[k] = v.Get(i + k)
	}
	return r
}

// Set4 stores x at rows i..i+3.
func (v *SparseVector) Set4(i int, x [4]float64) {
	if i < 0 || i+3 >= v.n {
		log.Panicf("matrix: Set4 row %d out of range for length %d", i, v.n)
	}
	if i >= v.allocBegin && i+4 <= v.allocEnd {
		copy(v.storage[i-v.allocBegin:], x[:])
		return
	}
	for k, y := range x {
		v.Set(i+k, y)
	}
}

// Clear resets every stored entry to Floor.
func (v *SparseVector) Clear() {
	for i := range v.storage {
		v.storage[i] = Floor
	}
}

// AllocatedEntries returns the number of float64 slots held by the vector.
func (v *SparseVector) AllocatedEntries() int { return cap(v.storage) }

// CheckInvariants panics if the allocation bookkeeping is inconsistent.
func (v *SparseVector) CheckInvariants() {
	if v.n < 0 ||
		v.allocBegin < 0 || v.allocEnd > v.n || v.allocBegin > v.allocEnd ||
		v.allocEnd-v.allocBegin > len(v.storage) {
		log.Panicf("matrix: corrupt sparse vector: len %d alloc [%d,%d) storage %d",
			v.n, v.allocBegin, v.allocEnd, len(v.storage))
	}
}

func (v *SparseVector) checkRow(i int) {
	if i < 0 || i >= v.n {
		panic(fmt.Sprintf("matrix: row %d out of range [0,%d)", i, v.n))
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
