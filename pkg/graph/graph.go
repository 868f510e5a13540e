package graph

import (
	"errors"
	"slices"

	graphlib "github.com/dominikbraun/graph"
)

// ErrUnknownNode is returned when a query references a node that is not part
// of the graph.
var ErrUnknownNode = errors.New("unknown node")

// Graph is a directed graph of derivation names without parallel edges or
// self-loops. A Graph is immutable and safe for concurrent reads.
//
// The zero value is an empty graph. Use a [Builder] to create a populated one.
type Graph struct {
	index map[string]int // name -> dense node index
	names []string       // node index -> name, sorted
	succ  [][]int        // node index -> successor indices, sorted
	pred  [][]int        // node index -> predecessor indices, sorted
	edges int
}

// snapshot copies the adjacency of a write-phase graph into dense index
// arrays. Node indices follow the lexicographic order of names.
func snapshot(adj, pred map[string]map[string]graphlib.Edge[string]) *Graph {
	g := &Graph{
		index: make(map[string]int, len(adj)),
		names: make([]string, 0, len(adj)),
	}
	for name := range adj {
		g.names = append(g.names, name)
	}
	slices.Sort(g.names)
	for i, name := range g.names {
		g.index[name] = i
	}

	dense := func(m map[string]map[string]graphlib.Edge[string]) [][]int {
		out := make([][]int, len(g.names))
		for i, name := range g.names {
			if len(m[name]) == 0 {
				continue
			}
			row := make([]int, 0, len(m[name]))
			for other := range m[name] {
				row = append(row, g.index[other])
			}
			slices.Sort(row)
			out[i] = row
		}
		return out
	}
	g.succ = dense(adj)
	g.pred = dense(pred)
	for _, row := range g.succ {
		g.edges += len(row)
	}
	return g
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.names) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return g.edges }

// HasNode reports whether id is a node of the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// HasEdge reports whether the edge from -> to exists.
func (g *Graph) HasEdge(from, to string) bool {
	u, ok := g.index[from]
	if !ok {
		return false
	}
	v, ok := g.index[to]
	if !ok {
		return false
	}
	_, found := slices.BinarySearch(g.succ[u], v)
	return found
}

// Nodes returns all node names in lexicographic order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.names)
}

// Successors returns the direct successors of id (the derivations that
// depend on it) in lexicographic order. Returns nil for unknown nodes.
func (g *Graph) Successors(id string) []string {
	return g.namesOf(g.succ, id)
}

// Predecessors returns the direct predecessors of id (its direct
// dependencies) in lexicographic order. Returns nil for unknown nodes.
func (g *Graph) Predecessors(id string) []string {
	return g.namesOf(g.pred, id)
}

func (g *Graph) namesOf(adj [][]int, id string) []string {
	i, ok := g.index[id]
	if !ok || len(adj[i]) == 0 {
		return nil
	}
	out := make([]string, len(adj[i]))
	for k, j := range adj[i] {
		out[k] = g.names[j]
	}
	return out
}
