package depmap

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	derrors "github.com/matzehuels/drvgraph/pkg/errors"
	"github.com/matzehuels/drvgraph/pkg/graph"
)

// Builder computes a [DependencyMap] over a finished graph.
type Builder struct {
	// Graph is the finished derivation graph.
	Graph *graph.Graph
	// Derivations are the tracked derivations the map is computed over.
	Derivations []Derivation
	// Skipped lists flake attribute paths excluded from the analysis, both as
	// dependents and as dependencies. Unknown paths have no effect.
	Skipped []string
	// SkipDominated drops dependencies that are only required through
	// another dependency of the same dependent.
	SkipDominated bool
	// Workers bounds the number of dependents processed concurrently.
	// Zero means runtime.GOMAXPROCS(0).
	Workers int
}

// Build computes the dependency map and, if SkipDominated is set, filters
// dominated dependencies.
func (b *Builder) Build(ctx context.Context) (DependencyMap, error) {
	m, err := b.BuildMap(ctx)
	if err != nil {
		return nil, err
	}
	if b.SkipDominated {
		return b.FilterDominated(ctx, m)
	}
	return m, nil
}

// tracked returns the derivations that are not skipped, sorted and unique.
func (b *Builder) tracked() []Derivation {
	out := slices.DeleteFunc(slices.Clone(b.Derivations), func(d Derivation) bool {
		return slices.Contains(b.Skipped, d.FlakePath)
	})
	slices.SortFunc(out, Derivation.Compare)
	return slices.Compact(out)
}

func (b *Builder) workers(n int) int {
	w := b.Workers
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	return max(1, min(w, n))
}

// BuildMap records, for each tracked derivation D, every other tracked
// derivation C with a path C -> D in the graph. Derivations missing from the
// graph get an empty set.
func (b *Builder) BuildMap(ctx context.Context) (DependencyMap, error) {
	if b.Graph == nil {
		return nil, derrors.New(derrors.ErrCodeInvalidInput, "dependency map requires a graph")
	}
	tracked := b.tracked()
	m := make(DependencyMap, len(tracked))

	// Worker w handles dependents w, w+n, w+2n, ... with its own traversal
	// workspace, so Space reuse needs no locking.
	err := stride(ctx, b.workers(len(tracked)), func(ctx context.Context, w, n int) error {
		space := b.Graph.NewSpace()
		for i := w; i < len(tracked); i += n {
			if err := ctx.Err(); err != nil {
				return err
			}
			dependent := tracked[i]
			deps := []Derivation{}
			for _, candidate := range tracked {
				if candidate == dependent {
					continue
				}
				// Edges point from dependencies to dependents.
				if b.Graph.HasPath(candidate.DrvName, dependent.DrvName, space) {
					deps = append(deps, candidate)
				}
			}
			m[i] = Entry{Dependent: dependent, Dependencies: deps}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortMap(m)
	return m, nil
}

// FilterDominated removes every dependency X of a dependent D for which
// another dependency of D strictly dominates D in the dominator tree rooted
// at X. The returned map has the same dependents as m; each dependency set
// is a subset of the input set. m is not modified.
//
// FilterDominated panics if a dependency cannot reach its dependent, which
// cannot happen for maps produced by [Builder.BuildMap] on the same graph.
func (b *Builder) FilterDominated(ctx context.Context, m DependencyMap) (DependencyMap, error) {
	if b.Graph == nil {
		return nil, derrors.New(derrors.ErrCodeInvalidInput, "dominance filter requires a graph")
	}
	cache := newDomCache(b.Graph)
	out := make(DependencyMap, len(m))

	err := stride(ctx, b.workers(len(m)), func(ctx context.Context, w, n int) error {
		for i := w; i < len(m); i += n {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := filterEntry(cache, m[i])
			if err != nil {
				return err
			}
			out[i] = entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortMap(out)
	return out, nil
}

// stride runs fn once per worker index in [0, n). A single worker runs on the
// calling goroutine.
func stride(ctx context.Context, n int, fn func(ctx context.Context, w, n int) error) error {
	if n <= 1 {
		return fn(ctx, 0, 1)
	}
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < n; w++ {
		g.Go(func() error { return fn(ctx, w, n) })
	}
	return g.Wait()
}

func filterEntry(cache *domCache, e Entry) (Entry, error) {
	kept := []Derivation{}
	for _, dependency := range e.Dependencies {
		tree, err := cache.get(dependency.DrvName)
		if err != nil {
			return Entry{}, err
		}
		doms, ok := tree.StrictDominators(e.Dependent.DrvName)
		if !ok {
			panic(fmt.Sprintf("depmap: dependency %s cannot reach dependent %s", dependency, e.Dependent))
		}
		dominated := slices.ContainsFunc(doms, func(dom string) bool {
			return slices.ContainsFunc(e.Dependencies, func(other Derivation) bool {
				return other != dependency && other.DrvName == dom
			})
		})
		if !dominated {
			kept = append(kept, dependency)
		}
	}
	return Entry{Dependent: e.Dependent, Dependencies: kept}, nil
}

// domCache holds one dominator tree per root. Entries are added once and
// never evicted; concurrent requests for the same root share one
// computation.
type domCache struct {
	g     *graph.Graph
	mu    sync.RWMutex
	trees map[string]*graph.DomTree
	group singleflight.Group
}

func newDomCache(g *graph.Graph) *domCache {
	return &domCache{g: g, trees: make(map[string]*graph.DomTree)}
}

func (c *domCache) get(root string) (*graph.DomTree, error) {
	c.mu.RLock()
	t, ok := c.trees[root]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	v, err, _ := c.group.Do(root, func() (any, error) {
		c.mu.RLock()
		t, ok := c.trees[root]
		c.mu.RUnlock()
		if ok {
			return t, nil
		}
		t, err := c.g.Dominators(root)
		if err != nil {
			return nil, derrors.Wrap(derrors.ErrCodeInternal, err, "dominator tree of %s", root)
		}
		c.mu.Lock()
		c.trees[root] = t
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*graph.DomTree), nil
}

// size returns the number of cached trees.
func (c *domCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.trees)
}
