package hnsw

// Stats summarizes the current shape of the graph for diagnostics and
// the metrics layer.
type Stats struct {
	TotalNodes       int
	ActiveNodes      int
	DeletedNodes     int
	TotalEdges       int
	AverageEdges     float64
	MaxLevel         int
	LevelDistribution map[int]int
	EntryPoint       string
	State            string
	M                int
	M0               int
	EfConstruction   int
	EfSearch         int
}

// Stats returns a snapshot of the graph's structure.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Stats{
		TotalNodes:        len(g.nodes),
		LevelDistribution: make(map[int]int),
		State:             g.state.String(),
		M:                 g.cfg.M,
		M0:                g.cfg.M0,
		EfConstruction:    g.cfg.EfConstruction,
		EfSearch:          g.cfg.EfSearch,
	}

	for _, n := range g.nodes {
		if n.Tombstone {
			continue
		}
		s.ActiveNodes++
		if n.Level > s.MaxLevel {
			s.MaxLevel = n.Level
		}
		s.LevelDistribution[n.Level]++
		for _, links := range n.Links {
			s.TotalEdges += len(links)
		}
	}
	s.DeletedNodes = s.TotalNodes - s.ActiveNodes
	if s.ActiveNodes > 0 {
		s.AverageEdges = float64(s.TotalEdges) / float64(s.ActiveNodes)
	}
	if g.hasEntry && int(g.entryPoint) < len(g.nodes) {
		s.EntryPoint = g.nodes[g.entryPoint].ID
	}
	return s
}
