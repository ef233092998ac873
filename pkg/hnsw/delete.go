package hnsw

import "github.com/liliang-cn/vectorizer/pkg/vzerr"

// Delete tombstones the node: edges are retained for traversal but the
// node is excluded from search results (spec.md §4.2). A rebuild is
// signalled via NeedsRebuild once the tombstone fraction crosses the
// configured threshold.
func (g *Graph) Delete(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == Rebuilding {
		return vzerr.New("hnsw.delete", vzerr.KindIndexBusy)
	}
	idx, ok := g.idToIndex[id]
	if !ok {
		return vzerr.New("hnsw.delete", vzerr.KindNotFound)
	}
	node := g.nodes[idx]
	if node.Tombstone {
		return nil
	}
	node.Tombstone = true
	g.tombstones++

	if g.hasEntry && g.entryPoint == idx {
		g.reassignEntryPointLocked()
	}
	return nil
}

func (g *Graph) reassignEntryPointLocked() {
	for i, n := range g.nodes {
		if !n.Tombstone {
			g.entryPoint = uint32(i)
			g.maxLevel = n.Level
			return
		}
	}
	g.hasEntry = false
}

// NeedsRebuild reports whether the tombstone fraction exceeds
// TombstoneRebuildFraction.
func (g *Graph) NeedsRebuild() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.nodes) == 0 {
		return false
	}
	return float64(g.tombstones)/float64(len(g.nodes)) > g.cfg.TombstoneRebuildFraction
}

// Get returns the stored vector for id, or ok=false if absent or
// tombstoned.
func (g *Graph) Get(id string) ([]float32, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.idToIndex[id]
	if !ok || g.nodes[idx].Tombstone {
		return nil, false
	}
	return g.vectorFor(g.nodes[idx]), true
}

// Exists reports whether id is present and live.
func (g *Graph) Exists(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.idToIndex[id]
	return ok && !g.nodes[idx].Tombstone
}
