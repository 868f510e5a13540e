package graph

import (
	"context"
	"errors"
	"path"
	"sync"
	"time"
	"unicode/utf8"

	graphlib "github.com/dominikbraun/graph"

	"github.com/matzehuels/drvgraph/pkg/edge"
	derrors "github.com/matzehuels/drvgraph/pkg/errors"
)

// Querier returns the textual graph dump for one store derivation.
// [nix.Client] is the production implementation.
type Querier interface {
	QueryGraph(ctx context.Context, drvPath string) ([]byte, error)
}

// Extension reports the outcome of one [Builder.ExtendFromQuery] call.
type Extension struct {
	Path       string        // Store path that was queried
	Skipped    bool          // The graph already contained the path's node
	FoundEdges int           // Edge lines found in the dump
	NewEdges   int           // Edges not previously in the graph
	Elapsed    time.Duration // Time spent querying and merging
}

// Builder accumulates edges into a shared graph during the write phase.
// All methods are safe for concurrent use. After [Builder.Finish] any
// further mutation panics.
type Builder struct {
	mu     sync.RWMutex
	g      graphlib.Graph[string, string]
	frozen *Graph
}

// NewBuilder returns a builder for an empty graph.
func NewBuilder() *Builder {
	return &Builder{g: graphlib.New(graphlib.StringHash, graphlib.Directed())}
}

// AddNode inserts id and reports whether it was new.
func (b *Builder) AddNode(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustBeOpen()
	return b.addNode(id)
}

// AddEdge inserts the edge from -> to together with both endpoints and
// reports whether the edge was new. Re-adding an existing edge is a no-op.
// Self-loops are ignored.
func (b *Builder) AddEdge(from, to string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustBeOpen()
	return b.addEdge(from, to)
}

// AddEdges inserts edges under a single lock acquisition and returns how
// many of them were new.
func (b *Builder) AddEdges(edges []edge.Edge) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustBeOpen()
	added := 0
	for _, e := range edges {
		if b.addEdge(e.From, e.To) {
			added++
		}
	}
	return added
}

// HasNode reports whether id has been inserted.
func (b *Builder) HasNode(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, err := b.g.Vertex(id)
	return err == nil
}

// NodeCount returns the number of nodes inserted so far.
func (b *Builder) NodeCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, err := b.g.Order()
	must(err)
	return n
}

// EdgeCount returns the number of distinct edges inserted so far.
func (b *Builder) EdgeCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, err := b.g.Size()
	must(err)
	return n
}

func (b *Builder) addNode(id string) bool {
	err := b.g.AddVertex(id)
	if errors.Is(err, graphlib.ErrVertexAlreadyExists) {
		return false
	}
	must(err)
	return true
}

func (b *Builder) addEdge(from, to string) bool {
	if from == to {
		return false
	}
	b.addNode(from)
	b.addNode(to)
	err := b.g.AddEdge(from, to)
	if errors.Is(err, graphlib.ErrEdgeAlreadyExists) {
		return false
	}
	must(err)
	return true
}

// must panics on errors the in-memory store cannot produce for a graph
// without cycle prevention.
func must(err error) {
	if err != nil {
		panic("graph: " + err.Error())
	}
}

// ExtendFromQuery merges the graph dump of drvPath into the graph.
//
// If the graph already contains the node named after the final segment of
// drvPath, the dump is assumed to be present already (a dump always contains
// the whole transitive closure of its root) and q is not called.
//
// The query runs without holding the builder lock, so independent paths can
// be queried concurrently. A failing query or a dump that is not valid UTF-8
// is returned as an error; edges of a failed query are never merged.
func (b *Builder) ExtendFromQuery(ctx context.Context, q Querier, drvPath string) (Extension, error) {
	start := time.Now()
	ext := Extension{Path: drvPath}

	if name := path.Base(drvPath); name != "." && name != "/" && b.HasNode(name) {
		ext.Skipped = true
		ext.Elapsed = time.Since(start)
		return ext, nil
	}

	out, err := q.QueryGraph(ctx, drvPath)
	if err != nil {
		return ext, err
	}
	if !utf8.Valid(out) {
		return ext, derrors.New(derrors.ErrCodeMalformedOutput, "graph dump of %s is not valid UTF-8", drvPath)
	}

	edges := edge.ParseAll(string(out))
	ext.FoundEdges = len(edges)
	ext.NewEdges = b.AddEdges(edges)
	ext.Elapsed = time.Since(start)
	return ext, nil
}

// Finish ends the write phase and returns the read-only graph.
// Calling Finish more than once returns the same graph.
func (b *Builder) Finish() *Graph {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen != nil {
		return b.frozen
	}
	adj, err := b.g.AdjacencyMap()
	must(err)
	pred, err := b.g.PredecessorMap()
	must(err)
	b.frozen = snapshot(adj, pred)
	return b.frozen
}

func (b *Builder) mustBeOpen() {
	if b.frozen != nil {
		panic("graph: mutation after Finish")
	}
}
