package poa

import (
	"github.com/grailbio/consensus/mutation"
	"github.com/willf/bitset"
)

// Consensus is the best-supported path through a graph.
type Consensus struct {
	Sequence string
	// Score is the path score: the sum of its vertex scores.
	Score float64
	// Variants are edits of Sequence suggested by branches off the path.
	Variants []mutation.Scored
	// Path lists the vertex IDs of Sequence.
	Path []int
}

// vertexScore is the support of a vertex: positive when more reads pass
// through it than bypass it.
func vertexScore(v *Vertex, mode Mode, totalReads int) float64 {
	if mode == Global {
		return float64(2*v.Reads-totalReads) - 0.0001
	}
	return float64(v.Reads-v.SpanningReads) - 0.0001
}

// maxPath scores every vertex and returns the path with the highest total
// score. The path may start and end anywhere in the graph.
func (g *Graph) maxPath(mode Mode) []int {
	bestPrev := make([]int, len(g.vertices))
	for k := range bestPrev {
		bestPrev[k] = none
	}
	g.vertices[Enter].ReachingScore = 0
	bestVertex, bestScore := none, negInf
	for _, id := range g.topologicalOrder() {
		if id == Enter || id == Exit {
			continue
		}
		v := g.vertices[id]
		v.Score = vertexScore(v, mode, len(g.sequences))
		v.ReachingScore = v.Score
		for _, u := range v.in {
			s := v.Score + g.vertices[u].ReachingScore
			if s > v.ReachingScore {
				v.ReachingScore = s
				bestPrev[id] = u
			}
			if s > bestScore {
				bestVertex, bestScore = id, s
			}
		}
	}
	var path []int
	for v := bestVertex; v != none; v = bestPrev[v] {
		path = append(path, v)
	}
	for a, b := 0, len(path)-1; a < b; a, b = a+1, b-1 {
		path[a], path[b] = path[b], path[a]
	}
	return path
}

// FindConsensus extracts the consensus path, marks its vertices, and
// collects candidate variants around it.
func (g *Graph) FindConsensus(cfg Config) *Consensus {
	path := g.maxPath(cfg.Mode)
	members := bitset.New(uint(len(g.vertices)))
	for _, v := range path {
		members.Set(uint(v))
	}
	for _, v := range g.vertices {
		v.InConsensus = members.Test(uint(v.ID))
	}
	c := &Consensus{
		Sequence: g.sequenceAlong(path),
		Path:     path,
		Variants: g.findVariants(path, members),
	}
	if len(path) > 0 {
		c.Score = g.vertices[path[len(path)-1]].ReachingScore
	}
	return c
}

// findVariants looks, at each consensus position p, for a skip edge around
// p (a deletion), a vertex between p-1 and p (an insertion), and an
// alternative vertex between p-1 and p+1 (a substitution).
func (g *Graph) findVariants(path []int, members *bitset.BitSet) []mutation.Scored {
	var variants []mutation.Scored
	for i := 2; i < len(path)-2; i++ {
		v := g.vertices[path[i]]
		next, next2 := g.vertices[path[i+1]], path[i+2]
		pos := i + 1
		if g.hasEdge(v.ID, next2) {
			m := mutation.Must(mutation.NewSingle(mutation.Deletion, pos, 0))
			variants = append(variants, m.WithScore(-next.Score))
		}

		ins, insScore := none, negInf
		for _, c := range v.out {
			if g.hasEdge(c, next.ID) {
				if s := g.vertices[c].Score; s > insScore {
					ins, insScore = c, s
				}
			}
		}
		if ins != none {
			m := mutation.Must(mutation.NewSingle(mutation.Insertion, pos, g.vertices[ins].Base))
			variants = append(variants, m.WithScore(insScore))
		}

		sub, subScore := none, negInf
		for _, c := range v.out {
			if members.Test(uint(c)) || g.vertices[c].Base == next.Base {
				continue
			}
			if g.hasEdge(c, next2) {
				if s := g.vertices[c].Score; s > subScore {
					sub, subScore = c, s
				}
			}
		}
		if sub != none {
			m := mutation.Must(mutation.NewSingle(mutation.Substitution, pos, g.vertices[sub].Base))
			variants = append(variants, m.WithScore(subScore))
		}
	}
	return variants
}

// FindConsensus builds a graph from reads and returns its consensus.
func FindConsensus(reads []string, cfg Config) (*Consensus, error) {
	g := NewGraph()
	for _, r := range reads {
		if err := g.AddSequence(r, cfg); err != nil {
			return nil, err
		}
	}
	return g.FindConsensus(cfg), nil
}
