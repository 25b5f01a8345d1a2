package quiver

import (
	"github.com/grailbio/consensus/matrix"
)

var floor4 = [4]float64{matrix.Floor, matrix.Floor, matrix.Floor, matrix.Floor}

func min4(x [4]float64) float64 {
	m := x[0]
	for _, v := range x[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func max4(x [4]float64) float64 {
	m := x[0]
	for _, v := range x[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// fillAlpha4 is FillAlpha working on blocks of four rows. Leading rows are
// computed one at a time until the remaining rows of the column divide into
// blocks; the Extra move, which depends on the row above, is resolved
// serially within each block.
func (r *Recursor) fillAlpha4(e Evaluator, guide, alpha *matrix.Sparse) {
	I, J := e.ReadLength(), e.TemplateLength()
	c := r.Combiner
	hb, he := 0, 0
	for j := 0; j <= J; j++ {
		hb, he = r.alphaHint(j, I, J, guide, alpha, hb, he)
		requiredEnd := minInt(I+1, he)
		score, thr, maxScore := matrix.Floor, matrix.Floor, matrix.Floor
		alpha.StartEditingColumn(j, hb, he)
		i := hb
		for ; (i == 0 || (I-i+1)%4 != 0) && i <= I; i++ {
			score = r.alphaCell(e, alpha, i, j)
			alpha.Set(i, j, score)
			if score > maxScore {
				maxScore = score
				thr = maxScore - r.Banding.ScoreDiff
			}
		}
		for ; i <= I && (score >= thr || i < requiredEnd); i += 4 {
			s4 := floor4
			if j > 0 {
				s4 = c.Combine4(s4, add4(alpha.Get4(i-1, j-1), e.Inc4(i-1, j-1)))
			}
			if r.merge() && j > 1 {
				s4 = c.Combine4(s4, add4(alpha.Get4(i-1, j-2), e.Merge4(i-1, j-2)))
			}
			if j > 0 {
				s4 = c.Combine4(s4, add4(alpha.Get4(i, j-1), e.Del4(i, j-1)))
			}
			extra := e.Extra4(i-1, j)
			above := alpha.Get(i-1, j)
			for k := range s4 {
				s4[k] = c.Combine(s4[k], above+extra[k])
				above = s4[k]
			}
			alpha.Set4(i, j, s4)
			score = min4(s4)
			if m := max4(s4); m > maxScore {
				maxScore = m
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

// fillBeta4 is the four-row version of FillBeta.
func (r *Recursor) fillBeta4(e Evaluator, guide, beta *matrix.Sparse) {
	I, J := e.ReadLength(), e.TemplateLength()
	c := r.Combiner
	hb, he := I+1, I+1
	for j := J; j >= 0; j-- {
		hb, he = r.betaHint(j, I, J, guide, beta, hb, he)
		requiredBegin := maxInt(0, hb)
		score, thr, maxScore := matrix.Floor, matrix.Floor, matrix.Floor
		beta.StartEditingColumn(j, hb, he)
		end := he
		i := end - 1
		for ; (i == I || (i+1)%4 != 0) && i >= 0; i-- {
			score = r.betaCell(e, beta, i, j)
			beta.Set(i, j, score)
			if score > maxScore {
				maxScore = score
				thr = maxScore - r.Banding.ScoreDiff
			}
		}
		// Rows i-3..i form the first block.
		i -= 3
		for ; i >= 0 && (score >= thr || i >= requiredBegin); i -= 4 {
			s4 := floor4
			if j < J {
				s4 = c.Combine4(s4, add4(beta.Get4(i+1, j+1), e.Inc4(i, j)))
			}
			if r.merge() && j < J-1 {
				s4 = c.Combine4(s4, add4(beta.Get4(i+1, j+2), e.Merge4(i, j)))
			}
			if j < J {
				s4 = c.Combine4(s4, add4(beta.Get4(i, j+1), e.Del4(i, j)))
			}
			extra := e.Extra4(i, j)
			below := beta.Get(i+4, j)
			for k := 3; k >= 0; k-- {
				s4[k] = c.Combine(s4[k], below+extra[k])
				below = s4[k]
			}
			beta.Set4(i, j, s4)
			score = min4(s4)
			if m := max4(s4); m > maxScore {
				maxScore = m
				thr = maxScore - r.Banding.ScoreDiff
			}
		}
		begin := i + 4
		beta.FinishEditingColumn(j, begin, end)
		hb = begin
		for i = end; i > begin && beta.Get(i-1, j) < thr; i-- {
		}
		he = i
	}
}
