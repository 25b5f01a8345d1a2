package poa

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/consensus/matrix"
	"github.com/grailbio/consensus/mutation"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const truth = "ACGTTGCAAGCTTAGCCGATGCATCGGATCCTAGGCTACG"

// substitute replaces s[pos] with the next base in ACGT order.
func substitute(s string, pos int) string {
	const bases = "ACGT"
	b := bases[(strings.IndexByte(bases, s[pos])+1)%4]
	return s[:pos] + string(b) + s[pos+1:]
}

func noisyReads() []string {
	reads := []string{truth}
	for _, pos := range []int{5, 12, 20, 28, 35} {
		reads = append(reads, substitute(truth, pos))
	}
	return reads
}

func buildGraph(t *testing.T, cfg Config, reads ...string) *Graph {
	g := NewGraph()
	for _, r := range reads {
		require.NoError(t, g.AddSequence(r, cfg))
	}
	g.CheckInvariants()
	return g
}

func TestSingleSequence(t *testing.T) {
	g := buildGraph(t, DefaultConfig, "GATTACA")
	expect.EQ(t, g.NumSequences(), 1)
	expect.EQ(t, g.NumVertices(), 7)
	for id := 2; id < 9; id++ {
		v := g.Vertex(id)
		expect.EQ(t, v.Reads, 1)
		expect.EQ(t, v.SpanningReads, 0)
	}
	expect.EQ(t, g.Successors(Enter), []int{2})
	expect.EQ(t, g.Predecessors(Exit), []int{8})

	c := g.FindConsensus(DefaultConfig)
	expect.EQ(t, c.Sequence, "GATTACA")
	expect.EQ(t, c.Path, []int{2, 3, 4, 5, 6, 7, 8})
	assert.InDelta(t, 7*0.9999, c.Score, 1e-9)
	expect.EQ(t, len(c.Variants), 0)
	for _, id := range c.Path {
		expect.True(t, g.Vertex(id).InConsensus)
	}
	expect.False(t, g.Vertex(Enter).InConsensus)
}

func TestGlobalInsertion(t *testing.T) {
	c, err := FindConsensus([]string{"GATTACA", "GATTTACA"}, DefaultConfig)
	require.NoError(t, err)
	expect.EQ(t, c.Sequence, "GATTACA")

	g := buildGraph(t, DefaultConfig, "GATTACA", "GATTTACA")
	expect.EQ(t, g.NumVertices(), 8)
}

func TestNoisyReads(t *testing.T) {
	for _, cfg := range []Config{
		DefaultConfig,
		{Params: DefaultParams, Mode: Global, UseRangeFinder: true},
		{Params: DefaultParams, Mode: SemiGlobal},
		{Params: DefaultParams, Mode: SemiGlobal, UseRangeFinder: true},
	} {
		c, err := FindConsensus(noisyReads(), cfg)
		require.NoError(t, err)
		assert.Equal(t, truth, c.Sequence, "mode %v, range finder %v", cfg.Mode, cfg.UseRangeFinder)
	}
}

func TestExtraScoring(t *testing.T) {
	for _, branch := range []float64{DefaultParams.Branch, 100} {
		cfg := DefaultConfig
		cfg.Params.Branch = branch
		g := buildGraph(t, cfg, "GATTACA")
		for _, seq := range []string{"GATTTACA", "GATTCACA"} {
			_, ex := g.alignColumns(seq, cfg, nil)
			// Seven matches and one extra base, homopolymer or not.
			assert.InDelta(t, 7*cfg.Params.Match+cfg.Params.Insert, ex.score, 1e-9, "branch %v, read %s", branch, seq)
		}
	}
}

func TestModes(t *testing.T) {
	reads := []string{"ACGTTGCAAGCT", "TTGCAAG"}
	c, err := FindConsensus(reads, DefaultConfig)
	require.NoError(t, err)
	expect.EQ(t, c.Sequence, "TTGCAAG")

	c, err = FindConsensus(reads, Config{Params: DefaultParams, Mode: SemiGlobal})
	require.NoError(t, err)
	expect.EQ(t, c.Sequence, "ACGTTGCAAGCT")

	g := buildGraph(t, Config{Params: DefaultParams, Mode: SemiGlobal}, reads...)
	expect.EQ(t, g.NumVertices(), 12)
}

func TestVariants(t *testing.T) {
	tests := []struct {
		extra string
		typ   mutation.Type
		pos   []int
		bases string
		score float64
	}{
		{"GATTCACA", mutation.Insertion, []int{4}, "C", -1.0001},
		{"GATGACA", mutation.Substitution, []int{3}, "G", -1.0001},
		{"GATTCA", mutation.Deletion, []int{4}, "", -0.9999},
	}
	for _, test := range tests {
		c, err := FindConsensus([]string{"GATTACA", "GATTACA", test.extra}, DefaultConfig)
		require.NoError(t, err)
		expect.EQ(t, c.Sequence, "GATTACA")
		require.Len(t, c.Variants, 1, "read %s", test.extra)
		v := c.Variants[0]
		expect.EQ(t, v.Type, test.typ)
		expect.EQ(t, v.Bases, test.bases)
		assert.Contains(t, test.pos, v.Start, "read %s", test.extra)
		assert.InDelta(t, test.score, v.Score, 1e-9)
	}
}

func TestInvalidSequences(t *testing.T) {
	g := NewGraph()
	err := g.AddSequence("", DefaultConfig)
	expect.True(t, errors.Is(errors.Invalid, err))
	err = g.AddSequence("GATNACA", DefaultConfig)
	expect.True(t, errors.Is(errors.Invalid, err))
	expect.EQ(t, g.NumSequences(), 0)

	_, err = FindConsensus([]string{"GATTACA", ""}, DefaultConfig)
	expect.True(t, errors.Is(errors.Invalid, err))

	_, err = ParseMode("sideways")
	expect.True(t, errors.Is(errors.Invalid, err))
	m, err := ParseMode("semiglobal")
	require.NoError(t, err)
	expect.EQ(t, m, SemiGlobal)
}

func TestFindAnchors(t *testing.T) {
	anchors := FindAnchors("AAAACCCCGGGGTTTT", "TAAAACCCCGGGGTTTT", 4)
	require.Len(t, anchors, 13)
	for k, a := range anchors {
		expect.EQ(t, a, Anchor{CssPos: k, ReadPos: k + 1})
	}
	expect.EQ(t, len(FindAnchors("ACACAC", "ACACAC", 2)), 0)
	expect.EQ(t, len(FindAnchors("ACGT", "ACGTACGT", 5)), 0)
}

func TestRangeFinder(t *testing.T) {
	g := buildGraph(t, DefaultConfig, truth)
	path := g.maxPath(Global)
	require.Len(t, path, len(truth))

	rf := NewRangeFinder()
	rf.Init(g, path, g.sequenceAlong(path), truth)
	expect.EQ(t, rf.Range(path[0]), matrix.Interval{Begin: 0, End: 30})
	expect.EQ(t, rf.Range(path[20]), matrix.Interval{Begin: 0, End: 40})
	expect.EQ(t, rf.Range(path[39]), matrix.Interval{Begin: 9, End: 40})
	expect.EQ(t, rf.Range(Enter), matrix.Interval{Begin: 0, End: 29})

	// Without anchors every vertex may align anywhere.
	rf.Init(g, path, g.sequenceAlong(path), "GATTACA")
	expect.EQ(t, rf.Range(path[0]), matrix.Interval{Begin: 0, End: 7})
}

func TestWriteDot(t *testing.T) {
	g := buildGraph(t, DefaultConfig, "GATTACA", "GATTTACA")
	g.FindConsensus(DefaultConfig)
	var buf bytes.Buffer
	require.NoError(t, g.WriteDot(&buf))
	out := buf.String()
	expect.True(t, strings.HasPrefix(out, "digraph poa {"))
	expect.True(t, strings.Contains(out, "0 -> 2;"))
	expect.True(t, strings.Contains(out, "fillcolor"))
	expect.EQ(t, strings.Count(out, "shape=Mrecord"), 10)
}
