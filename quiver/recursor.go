package quiver

import (
	"fmt"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/consensus/matrix"
)

const (
	maxFlipFlops = 5
	// alphaBetaTolerance is the largest accepted difference between
	// alpha(I,J) and beta(0,0).
	alphaBetaTolerance = 0.2
	// rebandingThreshold: if a first-pass fill uses more than this fraction
	// of the full matrix, the fills are redone guided by each other.
	rebandingThreshold = 0.04
)

// AlphaBetaMismatch is returned when forward and backward fills still
// disagree on the total score after the retry limit. The matrices are
// usable but the score is unreliable.
type AlphaBetaMismatch struct {
	Alpha, Beta float64
	FlipFlops   int
}

func (e *AlphaBetaMismatch) Error() string {
	return fmt.Sprintf("quiver: alpha %.4f and beta %.4f disagree after %d flip-flops", e.Alpha, e.Beta, e.FlipFlops)
}

// Recursor fills banded forward (alpha) and backward (beta) matrices for an
// Evaluator. Alpha(i,j) is the score of aligning read[:i] to tpl[:j];
// beta(i,j) that of aligning read[i:] to tpl[j:].
//
// A Recursor is immutable and may be shared between goroutines.
type Recursor struct {
	Moves    Moves
	Banding  BandingOptions
	Combiner Combiner
	// Batched fills rows four at a time. The result is the same as the
	// scalar fill's wherever both bands cover the best path.
	Batched bool
}

// NewRecursor returns a scalar recursor. Burst moves are not supported.
func NewRecursor(moves Moves, banding BandingOptions, combiner Combiner) (*Recursor, error) {
	if moves&Burst != 0 {
		return nil, errors.E(errors.NotSupported, "quiver: burst moves")
	}
	if !moves.Has(BasicMoves) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("quiver: move set %v lacks basic moves", moves))
	}
	if combiner == nil {
		return nil, errors.E(errors.Invalid, "quiver: nil combiner")
	}
	return &Recursor{Moves: moves, Banding: banding, Combiner: combiner}, nil
}

func (r *Recursor) merge() bool { return r.Moves&Merge != 0 }

// RowRange returns the rows of column j of m that score within scoreDiff of
// the column maximum, trimming only from the ends of the used range.
func RowRange(j int, m *matrix.Sparse, scoreDiff float64) matrix.Interval {
	used := m.UsedRowRange(j)
	if used.Len() == 0 {
		return used
	}
	maxRow, maxScore := used.Begin, m.Get(used.Begin, j)
	for i := used.Begin + 1; i < used.End; i++ {
		if s := m.Get(i, j); s > maxScore {
			maxRow, maxScore = i, s
		}
	}
	thr := maxScore - scoreDiff
	b := used.Begin
	for b < maxRow && m.Get(b, j) < thr {
		b++
	}
	e := used.End - 1
	for e >= maxRow && m.Get(e, j) < thr {
		e--
	}
	return matrix.Interval{Begin: b, End: e + 1}
}

// rangeGuide widens the hint [hb, he) for column j by the significant rows
// of the guide and of the matrix's previous contents.
func (r *Recursor) rangeGuide(j int, guide, m *matrix.Sparse, hb, he int) (int, int) {
	useGuide := !guide.IsNull() && !guide.IsColumnEmpty(j)
	useSelf := !m.IsNull() && !m.IsColumnEmpty(j)
	if !useGuide && !useSelf {
		return hb, he
	}
	var g matrix.Interval
	switch {
	case useGuide && useSelf:
		g = RowRange(j, guide, r.Banding.ScoreDiff).Union(RowRange(j, m, r.Banding.ScoreDiff))
	case useGuide:
		g = RowRange(j, guide, r.Banding.ScoreDiff)
	default:
		g = RowRange(j, m, r.Banding.ScoreDiff)
	}
	return minInt(hb, g.Begin), maxInt(he, g.End)
}

// diagonalRow is the row the matrix diagonal crosses column j at.
func diagonalRow(j, I, J int) int {
	if J == 0 {
		return 0
	}
	return j * I / J
}

// alphaHint applies the guide and the diagonal bound to an alpha hint.
func (r *Recursor) alphaHint(j, I, J int, guide, alpha *matrix.Sparse, hb, he int) (int, int) {
	hb, he = r.rangeGuide(j, guide, alpha, hb, he)
	if c := r.Banding.DiagonalCross; c > 0 {
		if d := minInt(diagonalRow(j, I, J)-c+1, I+1); d > he {
			he = d
		}
	}
	if hb > he {
		hb = he
	}
	return hb, he
}

// betaHint is alphaHint for beta.
func (r *Recursor) betaHint(j, I, J int, guide, beta *matrix.Sparse, hb, he int) (int, int) {
	hb, he = r.rangeGuide(j, guide, beta, hb, he)
	if c := r.Banding.DiagonalCross; c > 0 {
		if d := maxInt(diagonalRow(j, I, J)+c, 0); d < hb {
			hb = d
		}
	}
	if he < hb {
		he = hb
	}
	return hb, he
}

func checkShape(e Evaluator, guide, m *matrix.Sparse) {
	I, J := e.ReadLength(), e.TemplateLength()
	if m.Rows() != I+1 || m.Columns() != J+1 {
		log.Panicf("quiver: matrix is %dx%d, want %dx%d", m.Rows(), m.Columns(), I+1, J+1)
	}
	if !guide.IsNull() && (guide.Rows() != I+1 || guide.Columns() != J+1) {
		log.Panicf("quiver: guide is %dx%d, want %dx%d", guide.Rows(), guide.Columns(), I+1, J+1)
	}
}

// alphaCell computes alpha(i,j) from filled neighbors.
func (r *Recursor) alphaCell(e Evaluator, alpha *matrix.Sparse, i, j int) float64 {
	c := r.Combiner
	s := matrix.Floor
	if i == 0 && j == 0 {
		s = 0
	}
	if i > 0 && j > 0 {
		s = c.Combine(s, alpha.Get(i-1, j-1)+e.Inc(i-1, j-1))
	}
	if i > 0 {
		s = c.Combine(s, alpha.Get(i-1, j)+e.Extra(i-1, j))
	}
	if j > 0 {
		s = c.Combine(s, alpha.Get(i, j-1)+e.Del(i, j-1))
	}
	if r.merge() && j > 1 && i > 0 {
		s = c.Combine(s, alpha.Get(i-1, j-2)+e.Merge(i-1, j-2))
	}
	return s
}

// betaCell computes beta(i,j) from filled neighbors.
func (r *Recursor) betaCell(e Evaluator, beta *matrix.Sparse, i, j int) float64 {
	I, J := e.ReadLength(), e.TemplateLength()
	c := r.Combiner
	s := matrix.Floor
	if i == I && j == J {
		s = 0
	}
	if i < I && j < J {
		s = c.Combine(s, beta.Get(i+1, j+1)+e.Inc(i, j))
	}
	if i < I {
		s = c.Combine(s, beta.Get(i+1, j)+e.Extra(i, j))
	}
	if j < J {
		s = c.Combine(s, beta.Get(i, j+1)+e.Del(i, j))
	}
	if r.merge() && j < J-1 && i < I {
		s = c.Combine(s, beta.Get(i+1, j+2)+e.Merge(i, j))
	}
	return s
}

// FillAlpha fills the forward matrix, column by column, within a band
// derived from guide (which may be matrix.Null()) and from alpha's previous
// contents.
func (r *Recursor) FillAlpha(e Evaluator, guide, alpha *matrix.Sparse) {
	checkShape(e, guide, alpha)
	if r.Batched {
		r.fillAlpha4(e, guide, alpha)
		return
	}
	I, J := e.ReadLength(), e.TemplateLength()
	hb, he := 0, 0
	for j := 0; j <= J; j++ {
		hb, he = r.alphaHint(j, I, J, guide, alpha, hb, he)
		requiredEnd := minInt(I+1, he)
		score, thr, maxScore := matrix.Floor, matrix.Floor, matrix.Floor
		alpha.StartEditingColumn(j, hb, he)
		i := hb
		for ; i < I+1 && (score >= thr || i < requiredEnd); i++ {
			score = r.alphaCell(e, alpha, i, j)
			alpha.Set(i, j, score)
			if score > maxScore {
				maxScore = score
				thr = maxScore - r.Banding.ScoreDiff
			}
		}
		begin, end := hb, i
		alpha.FinishEditingColumn(j, begin, end)
		he = end
		for i = begin; i < end && alpha.Get(i, j) < thr; i++ {
		}
		hb = i
	}
}

// FillBeta fills the backward matrix, from the last column to the first.
func (r *Recursor) FillBeta(e Evaluator, guide, beta *matrix.Sparse) {
	checkShape(e, guide, beta)
	if r.Batched {
		r.fillBeta4(e, guide, beta)
		return
	}
	I, J := e.ReadLength(), e.TemplateLength()
	hb, he := I+1, I+1
	for j := J; j >= 0; j-- {
		hb, he = r.betaHint(j, I, J, guide, beta, hb, he)
		requiredBegin := maxInt(0, hb)
		score, thr, maxScore := matrix.Floor, matrix.Floor, matrix.Floor
		beta.StartEditingColumn(j, hb, he)
		end := he
		i := end - 1
		for ; i >= 0 && (score >= thr || i >= requiredBegin); i-- {
			score = r.betaCell(e, beta, i, j)
			beta.Set(i, j, score)
			if score > maxScore {
				maxScore = score
				thr = maxScore - r.Banding.ScoreDiff
			}
		}
		begin := i + 1
		beta.FinishEditingColumn(j, begin, end)
		hb = begin
		for i = end; i > begin && beta.Get(i-1, j) < thr; i-- {
		}
		he = i
	}
}

// FillAlphaBeta fills alpha, then beta guided by alpha, and refills them
// guided by each other until alpha(I,J) and beta(0,0) agree. It returns the
// number of refills. An *AlphaBetaMismatch error means they never agreed.
func (r *Recursor) FillAlphaBeta(e Evaluator, alpha, beta *matrix.Sparse) (int, error) {
	r.FillAlpha(e, matrix.Null(), alpha)
	r.FillBeta(e, alpha, beta)

	I, J := e.ReadLength(), e.TemplateLength()
	flipflops := 0
	maxSize := int(0.5 + rebandingThreshold*float64((I+1)*(J+1)))
	if alpha.UsedEntries() >= maxSize || beta.UsedEntries() >= maxSize {
		r.FillAlpha(e, beta, alpha)
		r.FillBeta(e, alpha, beta)
		r.FillAlpha(e, beta, alpha)
		flipflops += 3
	}
	for math.Abs(alpha.Get(I, J)-beta.Get(0, 0)) > alphaBetaTolerance && flipflops <= maxFlipFlops {
		if flipflops%2 == 0 {
			r.FillAlpha(e, beta, alpha)
		} else {
			r.FillBeta(e, alpha, beta)
		}
		flipflops++
	}
	fillFlipFlops.Observe(float64(flipflops))
	if a, b := alpha.Get(I, J), beta.Get(0, 0); math.Abs(a-b) > alphaBetaTolerance {
		alphaBetaMismatches.Inc()
		log.Debug.Printf("quiver: could not mate alpha and beta: read %s template %s", e.Read(), e.Template())
		return flipflops, &AlphaBetaMismatch{Alpha: a, Beta: b, FlipFlops: flipflops}
	}
	return flipflops, nil
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
