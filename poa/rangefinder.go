package poa

import (
	"sort"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/unsafe"
	"github.com/grailbio/consensus/matrix"
)

const (
	// rangeWidth is the number of read positions allowed on either side of
	// an anchored read position.
	rangeWidth = 30
	// DefaultAnchorLength is the k-mer length used to find anchors.
	DefaultAnchorLength = 10
)

// Anchor pairs a consensus position with a read position whose k-mers
// match.
type Anchor struct {
	CssPos, ReadPos int
}

type kmerHit struct {
	pos, count int
}

func kmerIndex(s string, k int) map[uint64]kmerHit {
	idx := make(map[uint64]kmerHit, len(s))
	for i := 0; i+k <= len(s); i++ {
		h := seahash.Sum64(unsafe.StringToBytes(s[i : i+k]))
		hit, ok := idx[h]
		if !ok {
			hit.pos = i
		}
		hit.count++
		idx[h] = hit
	}
	return idx
}

// FindAnchors returns the k-mers that occur exactly once in both consensus
// and read, as a chain with increasing positions in both sequences.
func FindAnchors(consensus, read string, k int) []Anchor {
	if k <= 0 || len(consensus) < k || len(read) < k {
		return nil
	}
	css, rd := kmerIndex(consensus, k), kmerIndex(read, k)
	var anchors []Anchor
	for h, c := range css {
		r, ok := rd[h]
		if !ok || c.count != 1 || r.count != 1 {
			continue
		}
		if consensus[c.pos:c.pos+k] != read[r.pos:r.pos+k] {
			continue
		}
		anchors = append(anchors, Anchor{c.pos, r.pos})
	}
	sort.Slice(anchors, func(i, j int) bool { return anchors[i].CssPos < anchors[j].CssPos })
	chain := anchors[:0]
	for _, a := range anchors {
		if len(chain) == 0 || a.ReadPos > chain[len(chain)-1].ReadPos {
			chain = append(chain, a)
		}
	}
	return chain
}

// RangeFinder computes, for each graph vertex, the interval of read
// positions that may align to it.
type RangeFinder struct {
	// AnchorLength is the k-mer length used to seed ranges.
	AnchorLength int

	ranges []matrix.Interval
	full   matrix.Interval
	// unbounded is set when no anchors were found, so every vertex may
	// align anywhere in the read.
	unbounded bool
}

// NewRangeFinder returns a RangeFinder using DefaultAnchorLength.
func NewRangeFinder() *RangeFinder {
	return &RangeFinder{AnchorLength: DefaultAnchorLength}
}

// hull is Interval.Union, ignoring empty intervals.
func hull(a, b matrix.Interval) matrix.Interval {
	switch {
	case a.Len() == 0:
		return b
	case b.Len() == 0:
		return a
	}
	return a.Union(b)
}

// Init computes the alignable ranges of read against g. path is the
// current consensus path and consensus its sequence.
func (rf *RangeFinder) Init(g *Graph, path []int, consensus, read string) {
	n, readLen := len(g.vertices), len(read)
	rf.full = matrix.Interval{Begin: 0, End: readLen}
	anchors := FindAnchors(consensus, read, rf.AnchorLength)
	rf.unbounded = len(anchors) == 0
	if rf.unbounded {
		rf.ranges = nil
		return
	}

	direct := make([]matrix.Interval, n)
	anchored := make([]bool, n)
	for _, a := range anchors {
		v := path[a.CssPos]
		direct[v] = matrix.Interval{
			Begin: maxInt(a.ReadPos-rangeWidth, 0),
			End:   minInt(a.ReadPos+rangeWidth, readLen),
		}
		anchored[v] = true
	}

	order := g.topologicalOrder()
	fwd := make([]matrix.Interval, n)
	for _, v := range order {
		if anchored[v] {
			fwd[v] = direct[v]
			continue
		}
		var r matrix.Interval
		for _, u := range g.vertices[v].in {
			p := fwd[u]
			r = hull(r, matrix.Interval{Begin: minInt(p.Begin+1, readLen), End: minInt(p.End+1, readLen)})
		}
		fwd[v] = r
	}
	rev := make([]matrix.Interval, n)
	for k := len(order) - 1; k >= 0; k-- {
		v := order[k]
		if anchored[v] {
			rev[v] = direct[v]
			continue
		}
		var r matrix.Interval
		for _, w := range g.vertices[v].out {
			s := rev[w]
			r = hull(r, matrix.Interval{Begin: maxInt(s.Begin-1, 0), End: maxInt(s.End-1, 0)})
		}
		rev[v] = r
	}

	rf.ranges = make([]matrix.Interval, n)
	for v := range rf.ranges {
		rf.ranges[v] = hull(fwd[v], rev[v])
	}
}

// Range returns the read positions [Begin, End] that vertex v may align
// to.
func (rf *RangeFinder) Range(v int) matrix.Interval {
	if rf.unbounded || v >= len(rf.ranges) {
		return rf.full
	}
	return rf.ranges[v]
}
