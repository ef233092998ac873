package hnsw

import "context"

// liveEntry is a (id, vector) pair extracted from a graph snapshot for
// rebuilding.
type liveEntry struct {
	id     string
	vector []float32
}

// Rebuild reconstructs the graph from its currently-live vectors while
// continuing to serve searches from the old graph (spec.md §4.2
// Rebuilding state). The final swap takes the write lock only for the
// pointer exchange.
func (g *Graph) Rebuild(ctx context.Context) error {
	g.mu.Lock()
	if g.state == Rebuilding || g.state == Closed {
		g.mu.Unlock()
		return nil
	}
	snapshot := g.shallowCloneLocked()
	live := g.collectLiveLocked()
	g.state = Rebuilding
	g.oldSnapshot = snapshot
	cfg := g.cfg
	codec := g.codec
	g.mu.Unlock()

	fresh := New(cfg, g.log)
	fresh.SetCodec(codec)
	for _, e := range live {
		if err := fresh.Insert(ctx, e.id, e.vector); err != nil {
			g.mu.Lock()
			g.state = Serving
			g.oldSnapshot = nil
			g.mu.Unlock()
			return err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = fresh.nodes
	g.idToIndex = fresh.idToIndex
	g.hasEntry = fresh.hasEntry
	g.entryPoint = fresh.entryPoint
	g.maxLevel = fresh.maxLevel
	g.tombstones = 0
	g.oldSnapshot = nil
	g.state = Serving
	return nil
}

// shallowCloneLocked returns a read-only Graph sharing this graph's
// current arena, used to keep serving searches during a rebuild. Caller
// holds g.mu.
func (g *Graph) shallowCloneLocked() *Graph {
	clone := &Graph{
		cfg:        g.cfg,
		state:      Serving,
		log:        g.log,
		nodes:      g.nodes,
		idToIndex:  g.idToIndex,
		hasEntry:   g.hasEntry,
		entryPoint: g.entryPoint,
		maxLevel:   g.maxLevel,
		codec:      g.codec,
		rng:        g.rng,
		ml:         g.ml,
	}
	return clone
}

func (g *Graph) collectLiveLocked() []liveEntry {
	live := make([]liveEntry, 0, len(g.nodes)-g.tombstones)
	for _, n := range g.nodes {
		if n.Tombstone {
			continue
		}
		v := g.vectorFor(n)
		if v == nil {
			continue
		}
		cp := make([]float32, len(v))
		copy(cp, v)
		live = append(live, liveEntry{id: n.ID, vector: cp})
	}
	return live
}

// Close transitions the graph to Closed. No further operations are valid.
func (g *Graph) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = Closed
}
