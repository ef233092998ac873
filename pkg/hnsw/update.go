package hnsw

import (
	"context"
	"math"

	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

// updateDriftThreshold is the cosine-similarity drop past which an update
// is treated as a different vector rather than a refinement of the old one
// (spec.md §9 Open Question: "update semantics when the new vector drifts
// far from the old"). Below this similarity, in-place edge reuse would
// leave the node's neighbors stale, so the node is tombstoned and
// reinserted from scratch instead of patched in place.
const updateDriftThreshold = 0.5

// Update replaces the vector stored under id. If the new vector is close
// to the old one (cosine similarity >= 1-updateDriftThreshold) the node's
// stored vector (or quantized code) is swapped in place and its edges are left untouched, since
// neighbors found under the old vector remain good approximate neighbors
// under the new one. Otherwise the node is removed and reinserted, since
// its existing edges were selected for a different region of the space.
func (g *Graph) Update(ctx context.Context, id string, vector []float32) error {
	g.mu.Lock()
	if g.state == Rebuilding {
		g.mu.Unlock()
		return vzerr.New("hnsw.update", vzerr.KindIndexBusy)
	}
	idx, ok := g.idToIndex[id]
	if !ok {
		g.mu.Unlock()
		return vzerr.New("hnsw.update", vzerr.KindNotFound)
	}
	node := g.nodes[idx]
	if node.Tombstone {
		g.mu.Unlock()
		return vzerr.New("hnsw.update", vzerr.KindNotFound)
	}

	oldVector := g.vectorFor(node)
	drifted := oldVector == nil || cosineSimilarity(oldVector, vector) < (1-updateDriftThreshold)
	if !drifted {
		g.reencodeLocked(node, vector)
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	if err := g.Delete(id); err != nil {
		return err
	}
	g.releaseTombstonedID(id)
	return g.Insert(ctx, id, vector)
}

// releaseTombstonedID frees id's entry in idToIndex after Delete has
// tombstoned it, so a same-id Insert right after does not fail with
// AlreadyExists. The underlying arena slot stays tombstoned and is only
// reclaimed by a rebuild; this only removes the lookup that would otherwise
// still point a "new" insert of the same id back at the old, now-stale node.
func (g *Graph) releaseTombstonedID(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.idToIndex, id)
}

// reencodeLocked swaps a node's stored vector/code without touching its
// edges. Caller holds g.mu.
func (g *Graph) reencodeLocked(node *Node, vector []float32) {
	if g.codec != nil && g.codec.Fitted() {
		if code, err := g.codec.Encode(vector); err == nil {
			node.Vector = nil
			node.Code = code
			return
		}
	}
	node.Vector = vector
	node.Code = nil
}

func cosineSimilarity(a, b []float32) float32 {
	var dotP, na, nb float64
	for i := range a {
		dotP += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dotP / (math.Sqrt(na) * math.Sqrt(nb)))
}
