package graph

import "fmt"

// DomTree is the dominator tree of the nodes reachable from Root.
// A node d dominates n if every path from Root to n passes through d.
// DomTree is immutable and safe for concurrent use.
type DomTree struct {
	Root string

	g    *Graph
	root int
	idom []int // node index -> immediate dominator index, -1 if unreachable
}

// Dominators computes the dominator tree rooted at root.
// Returns ErrUnknownNode if root is not part of the graph.
//
// Complexity is O(V+E) per iteration; dependency graphs are acyclic and
// converge after two passes over the reverse postorder.
func (g *Graph) Dominators(root string) (*DomTree, error) {
	r, ok := g.index[root]
	if !ok {
		return nil, fmt.Errorf("dominators of %q: %w", root, ErrUnknownNode)
	}

	order := g.reversePostorder(r)
	rank := make([]int, len(g.names)) // node index -> position in order, -1 unreachable
	for i := range rank {
		rank[i] = -1
	}
	for i, n := range order {
		rank[n] = i
	}

	idom := make([]int, len(g.names))
	for i := range idom {
		idom[i] = -1
	}
	idom[r] = r

	intersect := func(a, b int) int {
		for a != b {
			for rank[a] > rank[b] {
				a = idom[a]
			}
			for rank[b] > rank[a] {
				b = idom[b]
			}
		}
		return a
	}

	for changed := true; changed; {
		changed = false
		for _, n := range order[1:] {
			next := -1
			for _, p := range g.pred[n] {
				if idom[p] == -1 {
					continue
				}
				if next == -1 {
					next = p
				} else {
					next = intersect(p, next)
				}
			}
			if next != -1 && idom[n] != next {
				idom[n] = next
				changed = true
			}
		}
	}

	return &DomTree{Root: root, g: g, root: r, idom: idom}, nil
}

// reversePostorder returns the nodes reachable from r in reverse postorder
// of an iterative depth-first search. r is always first.
func (g *Graph) reversePostorder(r int) []int {
	type frame struct{ node, next int }

	visited := make([]bool, len(g.names))
	var post []int
	stack := []frame{{node: r}}
	visited[r] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(g.succ[top.node]) {
			w := g.succ[top.node][top.next]
			top.next++
			if !visited[w] {
				visited[w] = true
				stack = append(stack, frame{node: w})
			}
			continue
		}
		post = append(post, top.node)
		stack = stack[:len(stack)-1]
	}

	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// Reachable reports whether id is reachable from the root.
func (t *DomTree) Reachable(id string) bool {
	i, ok := t.g.index[id]
	return ok && t.idom[i] != -1
}

// ImmediateDominator returns the immediate dominator of id. The boolean is
// false if id is the root or is not reachable from it.
func (t *DomTree) ImmediateDominator(id string) (string, bool) {
	i, ok := t.g.index[id]
	if !ok || i == t.root || t.idom[i] == -1 {
		return "", false
	}
	return t.g.names[t.idom[i]], true
}

// StrictDominators returns every node that strictly dominates id, from its
// immediate dominator up to and including the root. The root itself has no
// strict dominators. The boolean is false if id is not reachable from the
// root.
func (t *DomTree) StrictDominators(id string) ([]string, bool) {
	i, ok := t.g.index[id]
	if !ok || t.idom[i] == -1 {
		return nil, false
	}
	var doms []string
	for i != t.root {
		i = t.idom[i]
		doms = append(doms, t.g.names[i])
	}
	return doms, true
}

// Dominates reports whether a dominates b. Every reachable node dominates
// itself.
func (t *DomTree) Dominates(a, b string) bool {
	if !t.Reachable(b) || !t.Reachable(a) {
		return false
	}
	if a == b {
		return true
	}
	doms, _ := t.StrictDominators(b)
	for _, d := range doms {
		if d == a {
			return true
		}
	}
	return false
}
