package quiver

import (
	"math"
	"math/rand"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/consensus/matrix"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecursor(t *testing.T) {
	_, err := NewRecursor(AllMoves|Burst, fullBand, Viterbi{})
	expect.True(t, errors.Is(errors.NotSupported, err))
	_, err = NewRecursor(Incorporate|Extra, fullBand, Viterbi{})
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = NewRecursor(BasicMoves, fullBand, nil)
	expect.True(t, errors.Is(errors.Invalid, err))
	r, err := NewRecursor(BasicMoves, fullBand, SumProduct{})
	require.NoError(t, err)
	expect.False(t, r.Batched)
}

func TestFillAlphaBetaAgree(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	r, err := NewRecursor(AllMoves, BandingOptions{DiagonalCross: 4, ScoreDiff: 18}, Viterbi{})
	require.NoError(t, err)
	for iter := 0; iter < 20; iter++ {
		tpl := randomSeq(rnd, 20+rnd.Intn(60))
		e := newEvaluator(t, mutate(rnd, tpl, 2), tpl)
		I, J := e.ReadLength(), e.TemplateLength()
		alpha, beta := matrix.NewSparse(I+1, J+1), matrix.NewSparse(I+1, J+1)
		_, err := r.FillAlphaBeta(e, alpha, beta)
		require.NoError(t, err)
		assert.InDelta(t, alpha.Get(I, J), beta.Get(0, 0), alphaBetaTolerance)
		alpha.CheckInvariants()
		beta.CheckInvariants()
	}
}

func TestBatchedMatchesScalar(t *testing.T) {
	rnd := rand.New(rand.NewSource(4))
	for _, c := range []Combiner{Viterbi{}, SumProduct{}} {
		for iter := 0; iter < 20; iter++ {
			tpl := randomSeq(rnd, 10+rnd.Intn(50))
			read := mutate(rnd, tpl, 3)
			scalar := newScorer(t, read, tpl, fullBand, c, false)
			batched := newScorer(t, read, tpl, fullBand, c, true)
			assert.InDelta(t, scalar.Score(), batched.Score(), 1e-6, "%s vs %s", read, tpl)
			I, J := len(read), len(tpl)
			assert.InDelta(t, scalar.Alpha().Get(I, J), batched.Alpha().Get(I, J), 1e-6)
		}
	}
}

func TestRowRange(t *testing.T) {
	m := matrix.NewSparse(10, 1)
	m.StartEditingColumn(0, 2, 8)
	for i, s := range []float64{-30, -5, 0, -2, -25, -40} {
		m.Set(i+2, 0, s)
	}
	m.FinishEditingColumn(0, 2, 8)
	expect.EQ(t, RowRange(0, m, 10), matrix.Interval{Begin: 3, End: 6})
	expect.EQ(t, RowRange(0, m, 100), matrix.Interval{Begin: 2, End: 8})
	expect.EQ(t, RowRange(0, matrix.NewSparse(10, 1), 10), matrix.Interval{})
}

func TestBandedFillIsNarrow(t *testing.T) {
	tpl := randomSeq(rand.New(rand.NewSource(5)), 200)
	s := newScorer(t, tpl, tpl, BandingOptions{DiagonalCross: 4, ScoreDiff: 12}, Viterbi{}, false)
	expect.EQ(t, s.Score(), 0.0)
	full := 201 * 201
	expect.LT(t, s.Alpha().UsedEntries(), full/4)
	expect.LT(t, s.Beta().UsedEntries(), full/4)
}

func TestCombiners(t *testing.T) {
	inf := math.Inf(-1)
	expect.EQ(t, Viterbi{}.Combine(-1, -2), -1.0)
	expect.EQ(t, SumProduct{}.Combine(inf, -2), -2.0)
	expect.EQ(t, SumProduct{}.Combine(-2, inf), -2.0)
	expect.True(t, math.IsInf(SumProduct{}.Combine(inf, inf), -1))
	assert.InDelta(t, math.Log(2), SumProduct{}.Combine(0, 0), 1e-12)
	got := SumProduct{}.Combine4([4]float64{0, inf, -1, 3}, [4]float64{0, 1, inf, 3})
	assert.InDelta(t, math.Log(2), got[0], 1e-12)
	expect.EQ(t, got[1], 1.0)
	expect.EQ(t, got[2], -1.0)
	assert.InDelta(t, 3+math.Log(2), got[3], 1e-12)
	expect.EQ(t, Viterbi{}.Combine4([4]float64{0, 1, 2, 3}, [4]float64{3, 2, 1, 0}), [4]float64{3, 2, 2, 3})
}

func TestEvaluator(t *testing.T) {
	f, err := NewFeatures("GATTACA")
	require.NoError(t, err)
	f.SubsQv[1] = 20
	f.DelTag[2] = 'C'
	f.DelQv[2] = 10
	e, err := NewQvEvaluator(f, "GATTACA", TestingParams, false, true)
	require.NoError(t, err)
	expect.EQ(t, e.Inc(0, 0), 0.0)
	assert.InDelta(t, -12.0, e.Inc(1, 0), 1e-12)
	expect.EQ(t, e.Del(0, 3), 0.0)
	expect.EQ(t, e.Del(3, 3), -4.0)
	assert.InDelta(t, -7.0, e.Del(2, 5), 1e-12)
	expect.EQ(t, e.Extra(2, 3), -5.0)
	expect.EQ(t, e.Extra(2, 4), -8.0)
	expect.EQ(t, e.Extra(2, 7), -8.0)
	expect.EQ(t, e.Merge(2, 2), -2.0)
	expect.True(t, math.IsInf(e.Merge(1, 2), -1))
	expect.True(t, math.IsInf(e.Merge(6, 6), -1))
	expect.EQ(t, e.Inc4(0, 0), [4]float64{0, -12, -10, -10})

	_, err = NewQvEvaluator(f, "GAUTACA", TestingParams, true, true)
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = NewFeatures("")
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestFeaturesFromQuality(t *testing.T) {
	f, err := NewFeaturesFromQuality("ACG", "!+5")
	require.NoError(t, err)
	expect.EQ(t, f.SubsQv, []float64{0, 10, 20})
	expect.EQ(t, f.InsQv, f.SubsQv)
	expect.EQ(t, f.DelTag, []byte("NNN"))
	_, err = NewFeaturesFromQuality("ACG", "!!")
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = NewFeaturesFromQuality("ACG", "!! ")
	expect.True(t, errors.Is(errors.Invalid, err))
}

func fillBanded(t *testing.T, e Evaluator, moves Moves, banding BandingOptions) (alpha, beta *matrix.Sparse) {
	r, err := NewRecursor(moves, banding, Viterbi{})
	require.NoError(t, err)
	I, J := e.ReadLength(), e.TemplateLength()
	alpha, beta = matrix.NewSparse(I+1, J+1), matrix.NewSparse(I+1, J+1)
	_, err = r.FillAlphaBeta(e, alpha, beta)
	require.NoError(t, err)
	return alpha, beta
}

type cell struct{ i, j int }

// pathCells lists the alpha cells visited by a gapped alignment without
// merges.
func pathCells(a *PairwiseAlignment) []cell {
	cells := []cell{{0, 0}}
	i, j := 0, 0
	for k := 0; k < a.Len(); k++ {
		if a.Target[k] != '-' {
			j++
		}
		if a.Query[k] != '-' {
			i++
		}
		cells = append(cells, cell{i, j})
	}
	return cells
}

// A banded fill must find the same best score as an unbanded one, and must
// agree with it along the best path.
func TestBandingIsSound(t *testing.T) {
	rnd := rand.New(rand.NewSource(6))
	unbanded := BandingOptions{ScoreDiff: 1e12}
	for _, moves := range []Moves{BasicMoves, AllMoves} {
		for _, banding := range []BandingOptions{
			{DiagonalCross: 4, ScoreDiff: 12},
			{DiagonalCross: 4, ScoreDiff: 18},
		} {
			for iter := 0; iter < 40; iter++ {
				tpl := randomSeq(rnd, 30+rnd.Intn(90))
				read := mutate(rnd, tpl, 1+rnd.Intn(3))
				e := newEvaluator(t, read, tpl)
				I, J := len(read), len(tpl)
				alpha, beta := fillBanded(t, e, moves, banding)
				fullAlpha, fullBeta := fillBanded(t, e, moves, unbanded)
				require.Equal(t, (I+1)*(J+1), fullAlpha.UsedEntries())
				require.InDelta(t, fullAlpha.Get(I, J), alpha.Get(I, J), 1e-9, "read %s tpl %s", read, tpl)
				require.InDelta(t, fullBeta.Get(0, 0), beta.Get(0, 0), 1e-9, "read %s tpl %s", read, tpl)
				if moves != BasicMoves {
					continue
				}
				r, err := NewRecursor(moves, unbanded, Viterbi{})
				require.NoError(t, err)
				aln, err := r.Alignment(e, fullAlpha)
				require.NoError(t, err)
				for _, c := range pathCells(aln) {
					require.InDelta(t, fullAlpha.Get(c.i, c.j), alpha.Get(c.i, c.j), 1e-9, "cell %v read %s tpl %s", c, read, tpl)
				}
			}
		}
	}
}
