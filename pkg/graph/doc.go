// Package graph provides the in-memory derivation graph used for dependency
// analysis.
//
// The graph is built in two phases. During the write phase a [Builder]
// accumulates edges from any number of `nix-store --query --graph` dumps
// ([Builder.ExtendFromQuery]); insertion is idempotent and safe for concurrent
// use. The builder stores nodes and edges in a github.com/dominikbraun/graph
// directed graph. [Builder.Finish] ends the write phase and snapshots that
// graph into an immutable [Graph] with dense, sorted adjacency lists, which
// supports concurrent reachability ([Graph.HasPath]) and dominator
// ([Graph.Dominators]) queries.
//
// Nodes are keyed by derivation file name, e.g.
// "0286hdmnafzkx80vkqri0nwa2pr1qxdp-gtk+3-3.24.43.drv". Edges point from a
// dependency to the derivation that depends on it, which is the direction
// nix-store prints them in.
//
// # Reachability
//
// Dependency analysis issues many path queries against one graph. Each query
// borrows a [Space], a traversal workspace whose visited set is reset in O(1)
// between queries:
//
//	s := g.NewSpace()
//	for _, pair := range pairs {
//	    if g.HasPath(pair.from, pair.to, s) { ... }
//	}
//
// A Space must not be shared between goroutines; create one per worker.
//
// # Dominators
//
// [Graph.Dominators] computes the dominator tree of all nodes reachable from a
// root using the iterative algorithm of Cooper, Harvey and Kennedy ("A Simple,
// Fast Dominance Algorithm", 2001).
package graph
