package consensus

import (
	"context"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/consensus/poa"
	"github.com/grailbio/consensus/quiver"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

const truth = "ACGTTGCAAGCTTAGCCGATGCATCGGATCCTAGGCTACG"

func noisyReads(qual byte) []Read {
	reads := []Read{{Name: "r0", Seq: truth}}
	for k, pos := range []int{5, 12, 20, 28, 35} {
		b := []byte(truth)
		b[pos] = "ACGT"[(strings.IndexByte("ACGT", b[pos])+1)%4]
		reads = append(reads, Read{Name: "r" + string(rune('1'+k)), Seq: string(b)})
	}
	if qual != 0 {
		for i := range reads {
			reads[i].Qual = strings.Repeat(string(qual), len(reads[i].Seq))
		}
	}
	return reads
}

func testOpts() Opts {
	opts := DefaultOpts
	opts.Parallelism = 2
	return opts
}

func TestCompute(t *testing.T) {
	res, err := Compute(context.Background(), noisyReads(0), testOpts())
	require.NoError(t, err)
	expect.EQ(t, res.Sequence, truth)
	expect.EQ(t, res.PoaSequence, truth)
	expect.EQ(t, res.DraftDistance, 0)
	expect.True(t, res.Converged)
	expect.EQ(t, res.NumActiveReads, 6)
	expect.LT(t, res.BaselineScore, 0.0)
	require.Len(t, res.QVs, len(truth))
	for _, qv := range res.QVs {
		expect.GE(t, qv, 0)
		expect.LE(t, qv, quiver.MaxQV)
	}
}

func TestComputeOptions(t *testing.T) {
	opts := testOpts()
	opts.Batched = true
	opts.UseRangeFinder = true
	opts.ComputeQVs = false
	opts.RefineRepeats = false
	res, err := Compute(context.Background(), noisyReads('I'), opts)
	require.NoError(t, err)
	expect.EQ(t, res.Sequence, truth)
	expect.EQ(t, len(res.QVs), 0)

	opts = testOpts()
	opts.PoaMode = poa.SemiGlobal
	res, err = Compute(context.Background(), noisyReads(0), opts)
	require.NoError(t, err)
	expect.EQ(t, res.Sequence, truth)
}

func TestComputeErrors(t *testing.T) {
	ctx := context.Background()
	_, err := Compute(ctx, nil, testOpts())
	expect.True(t, errors.Is(errors.Invalid, err))

	opts := testOpts()
	opts.MinReads = 10
	_, err = Compute(ctx, noisyReads(0), opts)
	expect.True(t, errors.Is(errors.Invalid, err))

	reads := append(noisyReads(0), Read{Name: "bad", Seq: "ACGN"})
	_, err = Compute(ctx, reads, testOpts())
	expect.True(t, errors.Is(errors.Invalid, err))

	reads = noisyReads(0)
	reads[2].Qual = "II"
	_, err = Compute(ctx, reads, testOpts())
	expect.True(t, errors.Is(errors.Invalid, err))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Compute(cctx, noisyReads(0), testOpts())
	expect.EQ(t, err, context.Canceled)
}
