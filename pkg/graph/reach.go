package graph

// Space is a reusable workspace for [Graph.HasPath]. Visited marks are
// stamped with a generation counter so resetting between queries is O(1).
// A Space belongs to the graph that created it and must not be used
// concurrently.
type Space struct {
	g     *Graph
	mark  []uint32
	gen   uint32
	stack []int
}

// NewSpace allocates a traversal workspace sized for g.
func (g *Graph) NewSpace() *Space {
	return &Space{g: g, mark: make([]uint32, len(g.names))}
}

func (s *Space) reset() {
	s.gen++
	if s.gen == 0 {
		clear(s.mark)
		s.gen = 1
	}
	s.stack = s.stack[:0]
}

// HasPath reports whether a directed path leads from from to to. A node
// reaches itself. Unknown nodes reach nothing. If s is nil a temporary
// workspace is allocated.
func (g *Graph) HasPath(from, to string, s *Space) bool {
	u, ok := g.index[from]
	if !ok {
		return false
	}
	v, ok := g.index[to]
	if !ok {
		return false
	}
	if u == v {
		return true
	}
	if s == nil || s.g != g {
		s = g.NewSpace()
	}
	s.reset()

	s.mark[u] = s.gen
	s.stack = append(s.stack, u)
	for len(s.stack) > 0 {
		n := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		for _, w := range g.succ[n] {
			if w == v {
				return true
			}
			if s.mark[w] != s.gen {
				s.mark[w] = s.gen
				s.stack = append(s.stack, w)
			}
		}
	}
	return false
}
