package quiver

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/consensus/matrix"
)

// ExtendAlpha computes numExtColumns columns of the forward matrix for e's
// template, starting at column beginColumn, into columns 0..numExtColumns-1
// of ext. Columns before beginColumn are read from alpha, which must have
// been filled for a template that shares e's template up to beginColumn-1.
// Row bands are borrowed from alpha. alpha is not modified.
func (r *Recursor) ExtendAlpha(e Evaluator, alpha *matrix.Sparse, beginColumn int, ext *matrix.Sparse, numExtColumns int) {
	if beginColumn < 2 || numExtColumns < 2 || ext.Columns() < numExtColumns || ext.Rows() != alpha.Rows() {
		log.Panicf("quiver: bad extension: begin %d, %d columns into %dx%d", beginColumn, numExtColumns, ext.Rows(), ext.Columns())
	}
	c := r.Combiner
	for extCol := 0; extCol < numExtColumns; extCol++ {
		j := beginColumn + extCol
		var band matrix.Interval
		if j < alpha.Columns() {
			band = alpha.UsedRowRange(j)
		} else {
			band = matrix.Interval{Begin: alpha.UsedRowRange(alpha.Columns() - 1).Begin, End: alpha.Rows()}
		}
		// prev returns column j-d of the extended matrix.
		prev := func(i, d int) float64 {
			if extCol >= d {
				return ext.Get(i, extCol-d)
			}
			return alpha.Get(i, j-d)
		}
		ext.StartEditingColumn(extCol, band.Begin, band.End)
		for i := band.Begin; i < band.End; i++ {
			s := matrix.Floor
			if i > 0 && j > 0 {
				s = c.Combine(s, prev(i-1, 1)+e.Inc(i-1, j-1))
			}
			if i > 0 {
				s = c.Combine(s, ext.Get(i-1, extCol)+e.Extra(i-1, j))
			}
			if j > 0 {
				s = c.Combine(s, prev(i, 1)+e.Del(i, j-1))
			}
			if r.merge() && j > 1 && i > 0 {
				s = c.Combine(s, prev(i-1, 2)+e.Merge(i-1, j-2))
			}
			ext.Set(i, extCol, s)
		}
		ext.FinishEditingColumn(extCol, band.Begin, band.End)
	}
}

// LinkAlphaBeta joins forward columns alphaColumn-2 and alphaColumn-1 to
// backward columns betaColumn and betaColumn+1 and returns the total score.
// absoluteColumn is the template column alphaColumn stands for; moves are
// scored at absoluteColumn-1 and absoluteColumn-2.
func (r *Recursor) LinkAlphaBeta(e Evaluator, alpha *matrix.Sparse, alphaColumn int, beta *matrix.Sparse, betaColumn, absoluteColumn int) float64 {
	I := e.ReadLength()
	if alphaColumn < 2 || absoluteColumn < 2 || absoluteColumn >= e.TemplateLength() {
		log.Panicf("quiver: bad link: alpha column %d, absolute column %d, template length %d",
			alphaColumn, absoluteColumn, e.TemplateLength())
	}
	rows := alpha.UsedRowRange(alphaColumn - 2).
		Union(alpha.UsedRowRange(alphaColumn - 1)).
		Union(beta.UsedRowRange(betaColumn)).
		Union(beta.UsedRowRange(betaColumn + 1))
	c := r.Combiner
	v := matrix.Floor
	for i := rows.Begin; i < rows.End; i++ {
		if i < I {
			v = c.Combine(v, alpha.Get(i, alphaColumn-1)+e.Inc(i, absoluteColumn-1)+beta.Get(i+1, betaColumn))
			if r.merge() {
				v = c.Combine(v, alpha.Get(i, alphaColumn-2)+e.Merge(i, absoluteColumn-2)+beta.Get(i+1, betaColumn))
				v = c.Combine(v, alpha.Get(i, alphaColumn-1)+e.Merge(i, absoluteColumn-1)+beta.Get(i+1, betaColumn+1))
			}
		}
		v = c.Combine(v, alpha.Get(i, alphaColumn-1)+e.Del(i, absoluteColumn-1)+beta.Get(i, betaColumn))
	}
	return v
}
