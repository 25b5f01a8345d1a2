package quiver

import (
	"math"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/consensus/matrix"
)

// PairwiseAlignment is a gapped alignment of a read (query) to a template
// (target). Both strings have the same length; '-' marks a gap.
type PairwiseAlignment struct {
	Target string
	Query  string
}

// Len returns the number of alignment columns.
func (a *PairwiseAlignment) Len() int { return len(a.Target) }

// Transcript returns one character per column: 'M' match, 'R' mismatch, 'I'
// a query base missing from the target, 'D' a target base missing from the
// query.
func (a *PairwiseAlignment) Transcript() string {
	var b strings.Builder
	for k := 0; k < len(a.Target); k++ {
		t, q := a.Target[k], a.Query[k]
		switch {
		case t == '-':
			b.WriteByte('I')
		case q == '-':
			b.WriteByte('D')
		case t == q:
			b.WriteByte('M')
		default:
			b.WriteByte('R')
		}
	}
	return b.String()
}

func (a *PairwiseAlignment) count(c byte) int {
	return strings.Count(a.Transcript(), string(c))
}

// Matches returns the number of 'M' columns.
func (a *PairwiseAlignment) Matches() int { return a.count('M') }

// Mismatches returns the number of 'R' columns.
func (a *PairwiseAlignment) Mismatches() int { return a.count('R') }

// Insertions returns the number of 'I' columns.
func (a *PairwiseAlignment) Insertions() int { return a.count('I') }

// Deletions returns the number of 'D' columns.
func (a *PairwiseAlignment) Deletions() int { return a.count('D') }

// Accuracy is one minus the fraction of columns that are not matches.
func (a *PairwiseAlignment) Accuracy() float64 {
	if a.Len() == 0 {
		return 0
	}
	errs := a.Mismatches() + a.Insertions() + a.Deletions()
	return 1 - float64(errs)/float64(a.Len())
}

type moveSpec struct {
	move       Moves
	readStep   int
	targetStep int
}

var (
	incMove   = moveSpec{Incorporate, 1, 1}
	delMove   = moveSpec{Delete, 0, 1}
	extraMove = moveSpec{Extra, 1, 0}
	mergeMove = moveSpec{Merge, 1, 2}
)

// Alignment traces the best path back through a Viterbi alpha matrix.
func (r *Recursor) Alignment(e Evaluator, alpha *matrix.Sparse) (*PairwiseAlignment, error) {
	if _, ok := r.Combiner.(Viterbi); !ok {
		return nil, errors.E(errors.NotSupported, "quiver: alignment traceback needs a Viterbi recursor")
	}
	I, J := e.ReadLength(), e.TemplateLength()
	if math.IsInf(alpha.Get(I, J), -1) {
		return nil, errors.E(errors.Invalid, "quiver: alpha matrix does not reach the final cell")
	}
	var moves []moveSpec
	i, j := I, J
	for i > 0 || j > 0 {
		var best moveSpec
		bestScore := matrix.Floor
		try := func(m moveSpec, s float64) {
			if s > bestScore {
				best, bestScore = m, s
			}
		}
		if i > 0 && j > 0 {
			try(incMove, alpha.Get(i-1, j-1)+e.Inc(i-1, j-1))
		}
		if j > 0 {
			try(delMove, alpha.Get(i, j-1)+e.Del(i, j-1))
		}
		if i > 0 {
			try(extraMove, alpha.Get(i-1, j)+e.Extra(i-1, j))
		}
		if r.merge() && i > 0 && j > 1 {
			try(mergeMove, alpha.Get(i-1, j-2)+e.Merge(i-1, j-2))
		}
		if best.move == 0 {
			log.Panicf("quiver: traceback stuck at (%d,%d)", i, j)
		}
		moves = append(moves, best)
		i -= best.readStep
		j -= best.targetStep
	}

	read, tpl := e.Read(), e.Template()
	var target, query strings.Builder
	i, j = 0, 0
	for k := len(moves) - 1; k >= 0; k-- {
		m := moves[k]
		switch m.move {
		case Incorporate:
			target.WriteByte(tpl[j])
			query.WriteByte(read[i])
		case Extra:
			target.WriteByte('-')
			query.WriteByte(read[i])
		case Delete:
			target.WriteByte(tpl[j])
			query.WriteByte('-')
		case Merge:
			target.WriteByte(tpl[j])
			target.WriteByte(tpl[j+1])
			query.WriteByte('-')
			query.WriteByte(read[i])
		}
		i += m.readStep
		j += m.targetStep
	}
	return &PairwiseAlignment{Target: target.String(), Query: query.String()}, nil
}
