package mutation

import (
	"github.com/tidwall/btree"

	"github.com/grailbio/consensus/dna"
)

// Enumerator proposes candidate mutations of a fixed template.
type Enumerator interface {
	// Mutations returns the candidates over the whole template.
	Mutations() []Mutation
	// MutationsIn returns the candidates starting in [begin, end), with the
	// interval clipped to the template.
	MutationsIn(begin, end int) []Mutation
}

func clip(tpl string, begin, end int) (int, int) {
	bound := func(p int) int {
		if p < 0 {
			return 0
		}
		if p > len(tpl) {
			return len(tpl)
		}
		return p
	}
	return bound(begin), bound(end)
}

type allSingleBase struct{ tpl string }

// AllSingleBase enumerates, at every position, the three substitutions, the
// four single-base insertions and the single-base deletion.
func AllSingleBase(tpl string) Enumerator { return allSingleBase{tpl} }

func (e allSingleBase) Mutations() []Mutation { return e.MutationsIn(0, len(e.tpl)) }

func (e allSingleBase) MutationsIn(begin, end int) []Mutation {
	begin, end = clip(e.tpl, begin, end)
	var r []Mutation
	for pos := begin; pos < end; pos++ {
		for _, b := range []byte(dna.Bases) {
			if b != e.tpl[pos] {
				r = append(r, Mutation{Substitution, pos, pos + 1, string(b)})
			}
		}
		for _, b := range []byte(dna.Bases) {
			r = append(r, Mutation{Insertion, pos, pos, string(b)})
		}
		r = append(r, Mutation{Deletion, pos, pos + 1, ""})
	}
	return r
}

type uniqueSingleBase struct{ tpl string }

// UniqueSingleBase is like AllSingleBase, but places insertions and deletions
// only at the start of homopolymer runs, so that no two candidates yield the
// same template.
func UniqueSingleBase(tpl string) Enumerator { return uniqueSingleBase{tpl} }

func (e uniqueSingleBase) Mutations() []Mutation { return e.MutationsIn(0, len(e.tpl)) }

func (e uniqueSingleBase) MutationsIn(begin, end int) []Mutation {
	begin, end = clip(e.tpl, begin, end)
	var r []Mutation
	for pos := begin; pos < end; pos++ {
		prev := byte('-')
		if pos > 0 {
			prev = e.tpl[pos-1]
		}
		for _, b := range []byte(dna.Bases) {
			if b != e.tpl[pos] {
				r = append(r, Mutation{Substitution, pos, pos + 1, string(b)})
			}
		}
		for _, b := range []byte(dna.Bases) {
			if b != prev {
				r = append(r, Mutation{Insertion, pos, pos, string(b)})
			}
		}
		if e.tpl[pos] != prev {
			r = append(r, Mutation{Deletion, pos, pos + 1, ""})
		}
	}
	return r
}

// maxRepeatLength is the longest repeat unit Repeat considers.
const maxRepeatLength = 31

type repeat struct {
	tpl         string
	length      int
	minElements int
}

// Repeat enumerates, for every tandem repeat of a unit of repeatLength bases
// with at least minElements copies, the insertion and the deletion of one
// copy of the unit at the start of the repeat.
func Repeat(tpl string, repeatLength, minElements int) Enumerator {
	return repeat{tpl, repeatLength, minElements}
}

func (e repeat) Mutations() []Mutation { return e.MutationsIn(0, len(e.tpl)) }

func (e repeat) MutationsIn(begin, end int) []Mutation {
	if e.minElements <= 0 || e.length <= 0 || e.length > maxRepeatLength {
		return nil
	}
	begin, end = clip(e.tpl, begin, end)
	var r []Mutation
	for pos := begin; pos+e.length <= end; {
		unit := e.tpl[pos : pos+e.length]
		n := 1
		for i := pos + e.length; i+e.length <= len(e.tpl); i += e.length {
			// Past the window with enough copies already.
			if n >= e.minElements && i >= end {
				break
			}
			if e.tpl[i:i+e.length] != unit {
				break
			}
			n++
		}
		if n >= e.minElements {
			r = append(r,
				Mutation{Insertion, pos, pos, unit},
				Mutation{Deletion, pos, pos + e.length, ""})
		}
		// Resume on the second base of the last copy.
		if n > 1 {
			pos += e.length*(n-1) + 1
		} else {
			pos++
		}
	}
	return r
}

// Set is an ordered set of mutations.
type Set struct {
	tree *btree.BTreeG[Mutation]
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{tree: btree.NewBTreeG[Mutation](func(a, b Mutation) bool { return a.Less(b) })}
}

// Insert adds muts to the set.
func (s *Set) Insert(muts ...Mutation) {
	for _, m := range muts {
		s.tree.Set(m)
	}
}

// Len returns the number of distinct mutations in the set.
func (s *Set) Len() int { return s.tree.Len() }

// Items returns the mutations in order.
func (s *Set) Items() []Mutation {
	r := make([]Mutation, 0, s.tree.Len())
	s.tree.Scan(func(m Mutation) bool {
		r = append(r, m)
		return true
	})
	return r
}

// UniqueNearby returns, in order and without duplicates, the candidates of
// enum that start within [c-neighborhood, c+neighborhood) of the start c of
// some center.
func UniqueNearby(enum Enumerator, centers []Mutation, neighborhood int) []Mutation {
	s := NewSet()
	for _, c := range centers {
		s.Insert(enum.MutationsIn(c.Start-neighborhood, c.Start+neighborhood)...)
	}
	return s.Items()
}
