package poa

import (
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/consensus/dna"
	"github.com/willf/bitset"
	"gonum.org/v1/gonum/floats"
)

type move uint8

const (
	invalidMove move = iota
	// startMove enters the graph from Enter without consuming a vertex.
	startMove
	// endMove leaves for Exit.
	endMove
	matchMove
	mismatchMove
	deleteMove
	extraMove
)

const none = -1

var negInf = math.Inf(-1)

// column is the alignment of a sequence against one vertex. Row i is the
// best score of an alignment that consumed i sequence bases and ends at the
// vertex. Row 0 is always computed; rows outside [begin, begin+len(score))
// are unreachable.
type column struct {
	row0     float64
	row0Move move
	row0Prev int
	begin    int
	score    []float64
	moves    []move
	prev     []int
}

func newColumn(begin, end int) *column {
	n := end - begin
	if n < 0 {
		n = 0
	}
	c := &column{
		row0:     negInf,
		row0Prev: none,
		begin:    begin,
		score:    make([]float64, n),
		moves:    make([]move, n),
		prev:     make([]int, n),
	}
	for k := range c.score {
		c.score[k] = negInf
		c.prev[k] = none
	}
	return c
}

func (c *column) get(i int) float64 {
	if i == 0 {
		return c.row0
	}
	if k := i - c.begin; k >= 0 && k < len(c.score) {
		return c.score[k]
	}
	return negInf
}

func (c *column) set(i int, s float64, m move, prev int) {
	if i == 0 {
		c.row0, c.row0Move, c.row0Prev = s, m, prev
		return
	}
	k := i - c.begin
	c.score[k], c.moves[k], c.prev[k] = s, m, prev
}

func (c *column) cell(i int) (move, int) {
	if i == 0 {
		return c.row0Move, c.row0Prev
	}
	if k := i - c.begin; k >= 0 && k < len(c.score) {
		return c.moves[k], c.prev[k]
	}
	return invalidMove, none
}

// argmax returns the first row holding the column's best score.
func (c *column) argmax() int {
	if len(c.score) == 0 {
		return 0
	}
	k := floats.MaxIdx(c.score)
	if c.row0 >= c.score[k] {
		return 0
	}
	return c.begin + k
}

// exitColumn records how the alignment reaches Exit at row I.
type exitColumn struct {
	score   float64
	prev    int
	prevRow int
}

func (g *Graph) makeColumn(v int, cols []*column, seq string, params Params, mode Mode, begin, end int) *column {
	vx := g.vertices[v]
	c := newColumn(begin, end)
	switch {
	case len(vx.in) == 0:
		c.set(0, 0, invalidMove, none)
	case mode != Global:
		c.set(0, 0, startMove, Enter)
	default:
		best, prev := negInf, none
		for _, u := range vx.in {
			if s := cols[u].get(0) + params.Delete; s > best {
				best, prev = s, u
			}
		}
		c.set(0, best, deleteMove, prev)
	}
	for i := begin; i < end; i++ {
		best, bestMove, bestPrev := negInf, invalidMove, none
		if mode == Local {
			best, bestMove, bestPrev = 0, startMove, Enter
		}
		base := seq[i-1]
		isMatch := base == vx.Base
		inc, incMove := params.Mismatch, mismatchMove
		if isMatch {
			inc, incMove = params.Match, matchMove
		}
		for _, u := range vx.in {
			pc := cols[u]
			if s := pc.get(i-1) + inc; s > best {
				best, bestMove, bestPrev = s, incMove, u
			}
			if s := pc.get(i) + params.Delete; s > best {
				best, bestMove, bestPrev = s, deleteMove, u
			}
		}
		if s := c.get(i-1) + params.Insert; s > best {
			best, bestMove, bestPrev = s, extraMove, v
		}
		c.set(i, best, bestMove, bestPrev)
	}
	return c
}

func (g *Graph) makeExitColumn(cols []*column, I int, mode Mode) exitColumn {
	ex := exitColumn{score: negInf, prev: none, prevRow: I}
	if mode == Global {
		for _, u := range g.vertices[Exit].in {
			if s := cols[u].get(I); s > ex.score {
				ex.score, ex.prev = s, u
			}
		}
		return ex
	}
	for u, c := range cols {
		if u == Exit || c == nil {
			continue
		}
		row := I
		if mode == Local {
			row = c.argmax()
		}
		if s := c.get(row); s > ex.score {
			ex.score, ex.prev, ex.prevRow = s, u, row
		}
	}
	return ex
}

// alignColumns aligns seq to every vertex in topological order. If rf is
// non-nil, each column is restricted to the rows rf allows.
func (g *Graph) alignColumns(seq string, cfg Config, rf *RangeFinder) ([]*column, exitColumn) {
	I := len(seq)
	cols := make([]*column, len(g.vertices))
	var ex exitColumn
	for _, v := range g.topologicalOrder() {
		if v == Exit {
			ex = g.makeExitColumn(cols, I, cfg.Mode)
			continue
		}
		begin, end := 1, I+1
		if rf != nil {
			r := rf.Range(v)
			begin, end = maxInt(r.Begin, 1), minInt(r.End+1, I+1)
			if end < begin {
				end = begin
			}
		}
		cols[v] = g.makeColumn(v, cols, seq, cfg.Params, cfg.Mode, begin, end)
	}
	return cols, ex
}

func validateSequence(seq string) error {
	if len(seq) == 0 {
		return errors.E(errors.Invalid, "poa: sequences must have nonzero length")
	}
	if err := dna.Validate(seq); err != nil {
		return errors.E(errors.Invalid, "poa: invalid sequence", err)
	}
	return nil
}

// AddSequence aligns seq to the graph and threads it in. The first sequence
// becomes a simple path from Enter to Exit. When cfg.UseRangeFinder is set,
// later sequences are aligned with AddSequenceWithRangeFinder.
func (g *Graph) AddSequence(seq string, cfg Config) error {
	if cfg.UseRangeFinder && len(g.sequences) > 0 {
		return g.AddSequenceWithRangeFinder(seq, cfg, NewRangeFinder())
	}
	if err := validateSequence(seq); err != nil {
		return err
	}
	if len(g.sequences) == 0 {
		g.threadFirst(seq)
	} else {
		cols, ex := g.alignColumns(seq, cfg, nil)
		g.tracebackAndThread(seq, cols, ex, cfg.Mode)
	}
	g.sequences = append(g.sequences, seq)
	g.checkInvariantsIfEnabled()
	return nil
}

// AddSequenceWithRangeFinder is AddSequence with each alignment column
// restricted to the read rows rf derives from anchors between seq and the
// current consensus. If the restricted alignment cannot reach Exit, seq is
// aligned again without restriction.
func (g *Graph) AddSequenceWithRangeFinder(seq string, cfg Config, rf *RangeFinder) error {
	if err := validateSequence(seq); err != nil {
		return err
	}
	if len(g.sequences) == 0 {
		g.threadFirst(seq)
	} else {
		path := g.maxPath(cfg.Mode)
		rf.Init(g, path, g.sequenceAlong(path), seq)
		cols, ex := g.alignColumns(seq, cfg, rf)
		if math.IsInf(ex.score, -1) {
			log.Debug.Printf("poa: banded alignment of sequence %d missed the exit; realigning fully", len(g.sequences))
			cols, ex = g.alignColumns(seq, cfg, nil)
		}
		g.tracebackAndThread(seq, cols, ex, cfg.Mode)
	}
	g.sequences = append(g.sequences, seq)
	g.checkInvariantsIfEnabled()
	return nil
}

func (g *Graph) threadFirst(seq string) {
	u := Enter
	path := bitset.New(uint(len(g.vertices) + len(seq)))
	first := none
	for k := 0; k < len(seq); k++ {
		v := g.addVertex(seq[k], 1)
		g.addEdge(u, v)
		path.Set(uint(v))
		if first == none {
			first = v
		}
		u = v
	}
	g.addEdge(u, Exit)
	g.tagSpan(first, u, path)
}

// tracebackAndThread walks the alignment back from Exit, adding the
// sequence's reads to matched vertices and threading new vertices for its
// other bases.
func (g *Graph) tracebackAndThread(seq string, cols []*column, ex exitColumn, mode Mode) {
	path := bitset.New(uint(len(g.vertices) + len(seq)))
	first, last := none, none
	onPath := func(v int) {
		path.Set(uint(v))
		if last == none {
			last = v
		}
		first = v
	}
	// fork is the vertex the next new vertex will link to.
	i, u, v, fork := len(seq), Exit, none, none
	thread := func() {
		nv := g.addVertex(seq[i-1], 1)
		g.addEdge(nv, fork)
		fork = nv
		onPath(nv)
		i--
	}
	for !(u == Enter && i == 0) {
		var (
			m    move
			prev int
		)
		if u == Exit {
			m, prev = endMove, ex.prev
		} else {
			m, prev = cols[u].cell(i)
		}
		switch m {
		case startMove:
			if fork == none {
				fork = v
			}
			for i > 0 {
				thread()
			}
		case endMove:
			fork = Exit
			if mode == Local {
				for i > ex.prevRow {
					thread()
				}
			}
		case matchMove:
			if fork != none {
				g.addEdge(u, fork)
				fork = none
			}
			g.vertices[u].Reads++
			onPath(u)
			i--
		case deleteMove:
			if fork == none {
				fork = v
			}
		case extraMove, mismatchMove:
			if fork == none {
				fork = v
			}
			thread()
		default:
			log.Panicf("poa: traceback reached an unreachable cell at vertex %d row %d", u, i)
		}
		v, u = u, prev
	}
	if fork != none {
		g.addEdge(Enter, fork)
	}
	if first != none {
		g.tagSpan(first, last, path)
	}
}

// tagSpan counts a spanning read for every vertex from first to last, in
// topological order, that the read does not pass through.
func (g *Graph) tagSpan(first, last int, path *bitset.BitSet) {
	spanning := false
	for _, v := range g.topologicalOrder() {
		if v == first {
			spanning = true
		}
		if spanning && !path.Test(uint(v)) {
			g.vertices[v].SpanningReads++
		}
		if v == last {
			break
		}
	}
}

func (g *Graph) sequenceAlong(path []int) string {
	b := make([]byte, len(path))
	for k, v := range path {
		b[k] = g.vertices[v].Base
	}
	return string(b)
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
