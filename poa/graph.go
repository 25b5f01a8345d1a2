// Package poa builds partial-order alignment graphs from a set of sequences
// and extracts a consensus sequence and candidate variants from them.
//
// Vertices live in an arena and are addressed by integer IDs. Enter and Exit
// are sentinel vertices that carry no base.
package poa

import (
	"bufio"
	"fmt"
	"io"

	"github.com/grailbio/base/log"
	"github.com/grailbio/consensus/internal/invariant"
)

const (
	// Enter is the ID of the source sentinel.
	Enter = 0
	// Exit is the ID of the sink sentinel.
	Exit = 1
)

// Vertex is one base of the graph.
type Vertex struct {
	ID   int
	Base byte
	// Reads is the number of sequences threaded through the vertex.
	Reads int
	// SpanningReads is the number of sequences whose threaded span covers
	// the vertex without passing through it.
	SpanningReads int
	// Score and ReachingScore are set by consensus extraction.
	Score         float64
	ReachingScore float64
	InConsensus   bool

	in, out []int
}

// Graph is a partial-order alignment graph. It is not safe for concurrent
// use.
type Graph struct {
	vertices  []*Vertex
	sequences []string
}

// NewGraph returns a graph holding only the sentinels.
func NewGraph() *Graph {
	g := &Graph{}
	g.addVertex('^', 0)
	g.addVertex('$', 0)
	return g
}

func (g *Graph) addVertex(base byte, reads int) int {
	id := len(g.vertices)
	g.vertices = append(g.vertices, &Vertex{ID: id, Base: base, Reads: reads})
	return id
}

// addEdge links u to v unless the edge exists.
func (g *Graph) addEdge(u, v int) {
	for _, w := range g.vertices[u].out {
		if w == v {
			return
		}
	}
	g.vertices[u].out = append(g.vertices[u].out, v)
	g.vertices[v].in = append(g.vertices[v].in, u)
}

func (g *Graph) hasEdge(u, v int) bool {
	for _, w := range g.vertices[u].out {
		if w == v {
			return true
		}
	}
	return false
}

// NumSequences returns the number of sequences added.
func (g *Graph) NumSequences() int { return len(g.sequences) }

// NumVertices returns the number of vertices, not counting Enter and Exit.
func (g *Graph) NumVertices() int { return len(g.vertices) - 2 }

// Vertex returns a copy of vertex id.
func (g *Graph) Vertex(id int) Vertex {
	v := *g.vertices[id]
	v.in, v.out = nil, nil
	return v
}

// Successors returns the targets of id's out-edges, in insertion order.
func (g *Graph) Successors(id int) []int {
	return append([]int(nil), g.vertices[id].out...)
}

// Predecessors returns the sources of id's in-edges, in insertion order.
func (g *Graph) Predecessors(id int) []int {
	return append([]int(nil), g.vertices[id].in...)
}

// topologicalOrder returns every vertex ID so that each edge points forward.
// The order depends only on the order vertices and edges were added.
func (g *Graph) topologicalOrder() []int {
	n := len(g.vertices)
	indeg := make([]int, n)
	for _, v := range g.vertices {
		indeg[v.ID] = len(v.in)
	}
	order := make([]int, 0, n)
	for id := 0; id < n; id++ {
		if indeg[id] == 0 {
			order = append(order, id)
		}
	}
	for k := 0; k < len(order); k++ {
		for _, w := range g.vertices[order[k]].out {
			if indeg[w]--; indeg[w] == 0 {
				order = append(order, w)
			}
		}
	}
	if len(order) != n {
		log.Panicf("poa: graph has a cycle (%d of %d vertices ordered)", len(order), n)
	}
	return order
}

// CheckInvariants panics if the graph is malformed: sentinels with the wrong
// degree, a dangling inner vertex, asymmetric adjacency, or a cycle.
func (g *Graph) CheckInvariants() {
	empty := len(g.sequences) == 0
	for _, v := range g.vertices {
		switch v.ID {
		case Enter:
			if len(v.in) != 0 || (len(v.out) == 0 && !empty) {
				log.Panicf("poa: enter vertex has in-degree %d, out-degree %d", len(v.in), len(v.out))
			}
		case Exit:
			if len(v.out) != 0 || (len(v.in) == 0 && !empty) {
				log.Panicf("poa: exit vertex has in-degree %d, out-degree %d", len(v.in), len(v.out))
			}
		default:
			if len(v.in) == 0 || len(v.out) == 0 {
				log.Panicf("poa: vertex %d (%c) has in-degree %d, out-degree %d", v.ID, v.Base, len(v.in), len(v.out))
			}
		}
		for _, w := range v.out {
			found := false
			for _, u := range g.vertices[w].in {
				found = found || u == v.ID
			}
			if !found {
				log.Panicf("poa: edge %d->%d missing from in-edges of %d", v.ID, w, w)
			}
		}
	}
	g.topologicalOrder()
}

func (g *Graph) checkInvariantsIfEnabled() {
	if invariant.Enabled {
		g.CheckInvariants()
	}
}

// WriteDot writes the graph in Graphviz dot format. Consensus vertices are
// filled.
func (g *Graph) WriteDot(w io.Writer) error {
	b := bufio.NewWriter(w)
	fmt.Fprintln(b, "digraph poa {")
	for _, v := range g.vertices {
		fill := ""
		if v.InConsensus {
			fill = `style="filled", fillcolor="lightblue", `
		}
		fmt.Fprintf(b, "  %d [shape=Mrecord, %slabel=\"{ %c | %d | %d }\"];\n", v.ID, fill, v.Base, v.Reads, v.SpanningReads)
	}
	for _, v := range g.vertices {
		for _, t := range v.out {
			fmt.Fprintf(b, "  %d -> %d;\n", v.ID, t)
		}
	}
	fmt.Fprintln(b, "}")
	return b.Flush()
}
