package quiver

import (
	"context"
	"testing"

	"github.com/grailbio/consensus/dna"
	"github.com/grailbio/consensus/mutation"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const refineTruth = "GATCGTACGATTCAGCTAGCATGCAGTCGA"

func newRefineScorer(t *testing.T, tpl string, reads ...string) *MultiReadScorer {
	mms, err := NewMultiReadScorer(DefaultConfigTable(), tpl)
	require.NoError(t, err)
	for _, r := range reads {
		active, err := mms.AddRead(mappedRead(t, r, Forward, 0, len(tpl)))
		require.NoError(t, err)
		require.True(t, active)
	}
	return mms
}

func TestRefineFixesSubstitution(t *testing.T) {
	tpl := refineTruth[:15] + "A" + refineTruth[16:]
	mms := newRefineScorer(t, tpl, refineTruth, refineTruth, refineTruth)
	assert.InDelta(t, -30.0, mms.BaselineScore(), 1e-9)

	converged, err := RefineConsensus(context.Background(), mms, DefaultRefineOptions)
	require.NoError(t, err)
	expect.True(t, converged)
	expect.EQ(t, mms.Template(), refineTruth)
	assert.InDelta(t, 0.0, mms.BaselineScore(), 1e-9)

	qvs, err := ConsensusQVs(mms, 2)
	require.NoError(t, err)
	require.Len(t, qvs, len(refineTruth))
	for pos, qv := range qvs {
		expect.GE(t, qv, 20, "position %d", pos)
		expect.LE(t, qv, MaxQV, "position %d", pos)
	}
	expect.EQ(t, qvs[0], MaxQV)
}

func TestRefineReverseReads(t *testing.T) {
	// A substitution at 15 and a deleted G at 22.
	tpl := refineTruth[:15] + "A" + refineTruth[16:22] + refineTruth[23:]
	mms, err := NewMultiReadScorer(DefaultConfigTable(), tpl)
	require.NoError(t, err)
	read := dna.ReverseComplement(refineTruth)
	for k := 0; k < 3; k++ {
		active, err := mms.AddRead(mappedRead(t, read, Reverse, 0, len(tpl)))
		require.NoError(t, err)
		require.True(t, active)
	}
	expect.LT(t, mms.BaselineScore(), 0.0)

	converged, err := RefineConsensus(context.Background(), mms, DefaultRefineOptions)
	require.NoError(t, err)
	expect.True(t, converged)
	expect.EQ(t, mms.Template(), refineTruth)
	assert.InDelta(t, 0.0, mms.BaselineScore(), 1e-9)
	for i := 0; i < mms.NumReads(); i++ {
		r, active := mms.Read(i)
		expect.True(t, active)
		expect.EQ(t, r.TemplateStart, 0)
		expect.EQ(t, r.TemplateEnd, len(refineTruth))
	}
	mms.CheckInvariants()
}

func TestRefineNegativeParallelism(t *testing.T) {
	tpl := refineTruth[:15] + "A" + refineTruth[16:]
	want := newRefineScorer(t, refineTruth, refineTruth, refineTruth, refineTruth)
	wantQVs, err := ConsensusQVs(want, 1)
	require.NoError(t, err)
	for _, parallelism := range []int{0, -1, -8} {
		mms := newRefineScorer(t, tpl, refineTruth, refineTruth, refineTruth)
		opts := DefaultRefineOptions
		opts.Parallelism = parallelism
		converged, err := RefineConsensus(context.Background(), mms, opts)
		require.NoError(t, err)
		expect.True(t, converged)
		expect.EQ(t, mms.Template(), refineTruth)

		qvs, err := ConsensusQVs(mms, parallelism)
		require.NoError(t, err)
		expect.EQ(t, qvs, wantQVs, "parallelism %d", parallelism)
	}
}

func TestRefineRepeats(t *testing.T) {
	const truth = "ACGTCAGCAGCAGCAGTTGCA"
	tpl := "ACGTCAGCAGCAGTTGCA"
	mms := newRefineScorer(t, tpl, truth, truth, truth)
	require.NoError(t, RefineRepeats(context.Background(), mms, 3, 3, DefaultRefineOptions))
	expect.EQ(t, mms.Template(), truth)
}

func TestRefineCancelled(t *testing.T) {
	mms := newRefineScorer(t, refineTruth, refineTruth)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RefineConsensus(ctx, mms, DefaultRefineOptions)
	expect.EQ(t, err, context.Canceled)

	opts := DefaultRefineOptions
	opts.MaximumIterations = 0
	converged, err := RefineConsensus(context.Background(), mms, opts)
	require.NoError(t, err)
	expect.False(t, converged)
}

func TestBestSubset(t *testing.T) {
	sub := func(pos int, score float64) mutation.Scored {
		return mutation.Must(mutation.NewSingle(mutation.Substitution, pos, 'A')).WithScore(score)
	}
	got := BestSubset([]mutation.Scored{
		sub(10, 1), sub(15, 5), sub(21, 2), sub(26, 3), sub(40, 0.5),
	}, 10)
	var starts []int
	for _, m := range got {
		starts = append(starts, m.Start)
	}
	// 15 blocks 10 and 21; 26 is far enough from 15.
	expect.EQ(t, starts, []int{15, 26, 40})
	expect.EQ(t, len(BestSubset(nil, 10)), 0)
}

func TestProbabilityToQV(t *testing.T) {
	for _, test := range []struct {
		p  float64
		qv int
	}{
		{1, 0},
		{0.1, 10},
		{0.001, 30},
		{0.5, 3},
		{0, 3233},
	} {
		qv, err := ProbabilityToQV(test.p)
		require.NoError(t, err)
		expect.EQ(t, qv, test.qv, "p=%v", test.p)
	}
	_, err := ProbabilityToQV(-0.1)
	expect.NotNil(t, err)
	_, err = ProbabilityToQV(1.5)
	expect.NotNil(t, err)
}
