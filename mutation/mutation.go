// Package mutation describes local edits to a consensus template: single and
// multi-base insertions, deletions and substitutions, and the enumerators that
// propose them.
package mutation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/consensus/dna"
)

// Type is the kind of edit a Mutation performs.
type Type int

const (
	// Insertion adds bases before template position Start (Start == End).
	Insertion Type = iota
	// Deletion removes template positions [Start, End).
	Deletion
	// Substitution replaces template positions [Start, End) with the same
	// number of new bases.
	Substitution
)

func (t Type) String() string {
	switch t {
	case Insertion:
		return "Insertion"
	case Deletion:
		return "Deletion"
	case Substitution:
		return "Substitution"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Mutation is an edit of template positions [Start, End). Use New or
// NewSingle to build one; the zero value is not a valid mutation.
type Mutation struct {
	Type  Type
	Start int
	End   int
	// Bases are the new bases; empty for deletions.
	Bases string
}

// New creates a mutation, checking that its shape agrees with its type and
// that every new base is one of ACGT.
func New(t Type, start, end int, bases string) (Mutation, error) {
	m := Mutation{Type: t, Start: start, End: end, Bases: bases}
	if err := m.validate(); err != nil {
		return Mutation{}, err
	}
	return m, nil
}

// NewSingle creates a single-base mutation at pos. The base is ignored for
// deletions.
func NewSingle(t Type, pos int, base byte) (Mutation, error) {
	switch t {
	case Insertion:
		return New(t, pos, pos, string(base))
	case Deletion:
		return New(t, pos, pos+1, "")
	default:
		return New(t, pos, pos+1, string(base))
	}
}

// Must panics if err is non-nil and otherwise returns m. It is meant for
// mutations whose arguments are known to be valid.
func Must(m Mutation, err error) Mutation {
	if err != nil {
		log.Panicf("mutation: %v", err)
	}
	return m
}

func (m Mutation) validate() error {
	ok := false
	switch m.Type {
	case Insertion:
		ok = m.Start == m.End && len(m.Bases) > 0
	case Deletion:
		ok = m.Start < m.End && len(m.Bases) == 0
	case Substitution:
		ok = m.Start < m.End && len(m.Bases) == m.End-m.Start
	}
	if !ok || m.Start < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("mutation: malformed %v [%d,%d) %q", m.Type, m.Start, m.End, m.Bases))
	}
	if err := dna.Validate(m.Bases); err != nil {
		return errors.E(errors.Invalid, "mutation: new bases", err)
	}
	return nil
}

// IsInsertion reports whether m is an insertion.
func (m Mutation) IsInsertion() bool { return m.Type == Insertion }

// IsDeletion reports whether m is a deletion.
func (m Mutation) IsDeletion() bool { return m.Type == Deletion }

// IsSubstitution reports whether m is a substitution.
func (m Mutation) IsSubstitution() bool { return m.Type == Substitution }

// LengthDiff is the change in template length caused by applying m.
func (m Mutation) LengthDiff() int {
	switch m.Type {
	case Insertion:
		return len(m.Bases)
	case Deletion:
		return m.Start - m.End
	}
	return 0
}

// Less orders mutations by start, end, type, then bases.
func (m Mutation) Less(o Mutation) bool {
	if m.Start != o.Start {
		return m.Start < o.Start
	}
	if m.End != o.End {
		return m.End < o.End
	}
	if m.Type != o.Type {
		return m.Type < o.Type
	}
	return m.Bases < o.Bases
}

func (m Mutation) String() string {
	switch m.Type {
	case Insertion:
		return fmt.Sprintf("Insertion (%s) @%d", m.Bases, m.Start)
	case Deletion:
		return fmt.Sprintf("Deletion @%d:%d", m.Start, m.End)
	}
	return fmt.Sprintf("Substitution (%s) @%d:%d", m.Bases, m.Start, m.End)
}

// WithScore pairs m with a score.
func (m Mutation) WithScore(score float64) Scored {
	return Scored{Mutation: m, Score: score}
}

// Scored is a mutation together with the change in total score it causes.
type Scored struct {
	Mutation
	Score float64
}

func (s Scored) String() string {
	return fmt.Sprintf("%v %.3f", s.Mutation, s.Score)
}

func applyAt(m Mutation, start int, tpl string) string {
	switch m.Type {
	case Insertion:
		return tpl[:start] + m.Bases + tpl[start:]
	case Deletion:
		return tpl[:start] + tpl[start+m.End-m.Start:]
	}
	return tpl[:start] + m.Bases + tpl[start+m.End-m.Start:]
}

// Apply returns tpl with m applied. It panics if m does not fit in tpl.
func Apply(m Mutation, tpl string) string {
	if m.End > len(tpl) {
		log.Panicf("mutation: %v does not fit template of length %d", m, len(tpl))
	}
	return applyAt(m, m.Start, tpl)
}

// Sorted returns a sorted copy of muts.
func Sorted(muts []Mutation) []Mutation {
	s := append([]Mutation(nil), muts...)
	sort.Slice(s, func(i, j int) bool { return s[i].Less(s[j]) })
	return s
}

// ApplyAll applies muts, which refer to positions of the original tpl and
// must not overlap, and returns the edited template.
func ApplyAll(muts []Mutation, tpl string) string {
	n, diff := len(tpl), 0
	for _, m := range Sorted(muts) {
		if m.End > n {
			log.Panicf("mutation: %v does not fit template of length %d", m, n)
		}
		tpl = applyAt(m, m.Start+diff, tpl)
		diff += m.LengthDiff()
	}
	return tpl
}

// Transcript returns the alignment transcript that takes tpl to
// ApplyAll(muts, tpl): 'M' for kept positions, 'I' for inserted bases, 'D' for
// deleted positions and 'R' for substituted ones.
func Transcript(muts []Mutation, tpl string) string {
	var b strings.Builder
	pos := 0
	for _, m := range Sorted(muts) {
		for ; pos < m.Start; pos++ {
			b.WriteByte('M')
		}
		switch m.Type {
		case Insertion:
			b.WriteString(strings.Repeat("I", len(m.Bases)))
		case Deletion:
			b.WriteString(strings.Repeat("D", m.End-m.Start))
			pos = m.End
		case Substitution:
			b.WriteString(strings.Repeat("R", m.End-m.Start))
			pos = m.End
		}
	}
	for ; pos < len(tpl); pos++ {
		b.WriteByte('M')
	}
	return b.String()
}

// TargetToQueryPositions returns, for every position of tpl and for its end,
// the corresponding position in ApplyAll(muts, tpl). For any slice [s, e) of
// tpl, the mutated slice is found at [mtp[s], mtp[e]) of the new template.
//
// For example "GATTACA" with (Deletion @2:3, Insertion (C) @5) becomes
// "GATACCA", and the result is 0 1 2 2 3 5 6 7.
func TargetToQueryPositions(muts []Mutation, tpl string) []int {
	return transcriptPositions(Transcript(muts, tpl))
}

func transcriptPositions(transcript string) []int {
	mtp := make([]int, 0, len(transcript)+1)
	q := 0
	for i := 0; i < len(transcript); i++ {
		switch transcript[i] {
		case 'M', 'R':
			mtp = append(mtp, q)
			q++
		case 'D':
			mtp = append(mtp, q)
		case 'I':
			q++
		default:
			log.Panicf("mutation: bad transcript character %q", transcript[i])
		}
	}
	return append(mtp, q)
}
