package nearby

// EdgeSet is an ordered list of edges with at most one edge per peer id.
type EdgeSet struct {
	edges []Edge
	index map[string]int
}

// NewEdgeSet loads edges in order, keeping the first edge of every id and
// dropping any edge that points back at owner.
func NewEdgeSet(owner string, edges []Edge) *EdgeSet {
	s := &EdgeSet{
		edges: make([]Edge, 0, len(edges)),
		index: make(map[string]int, len(edges)),
	}
	for _, e := range edges {
		if e.ID != owner {
			s.Add(e)
		}
	}
	return s
}

func (s *EdgeSet) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Add appends e unless its id is already present.
func (s *EdgeSet) Add(e Edge) bool {
	if s.Contains(e.ID) {
		return false
	}
	s.index[e.ID] = len(s.edges)
	s.edges = append(s.edges, e)
	return true
}

// Put appends e, or replaces the edge with the same id in place. It reports
// whether the set changed.
func (s *EdgeSet) Put(e Edge) bool {
	i, ok := s.index[e.ID]
	if !ok {
		return s.Add(e)
	}
	if s.edges[i] == e {
		return false
	}
	s.edges[i] = e
	return true
}

func (s *EdgeSet) Remove(id string) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.edges = append(s.edges[:i], s.edges[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.edges); j++ {
		s.index[s.edges[j].ID] = j
	}
	return true
}

func (s *EdgeSet) Len() int {
	return len(s.edges)
}

func (s *EdgeSet) Edges() []Edge {
	return append([]Edge(nil), s.edges...)
}
