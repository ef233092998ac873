package hnsw

import (
	"context"

	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

// Insert adds vector under id to the graph, following spec.md §4.2's
// algorithm: draw a layer, greedy-descend to it, then beam-search and
// heuristically select neighbors at each layer down to 0, adding
// bidirectional edges and pruning any neighbor that now exceeds its
// degree cap.
func (g *Graph) Insert(ctx context.Context, id string, vector []float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == Rebuilding {
		return vzerr.New("hnsw.insert", vzerr.KindIndexBusy)
	}
	if _, exists := g.idToIndex[id]; exists {
		return vzerr.New("hnsw.insert", vzerr.KindAlreadyExists)
	}

	var storedVector []float32
	var code []byte
	if g.codec != nil && g.codec.Fitted() {
		c, err := g.codec.Encode(vector)
		if err == nil {
			code = c
		} else {
			storedVector = vector
		}
	} else {
		storedVector = vector
	}

	level := g.selectLevel()
	node := newNode(id, level, storedVector, code)
	idx := uint32(len(g.nodes))

	if !g.hasEntry {
		g.nodes = append(g.nodes, node)
		g.idToIndex[id] = idx
		g.entryPoint = idx
		g.hasEntry = true
		g.maxLevel = level
		if g.state == Empty {
			g.state = Building
		}
		return nil
	}

	entryIdx := g.entryPoint
	curNearest := []uint32{entryIdx}

	visited := 0
	for lc := g.nodes[entryIdx].Level; lc > level; lc-- {
		var err error
		curNearest, err = g.searchLayerClosest(ctx, vector, curNearest, 1, lc, &visited)
		if err != nil {
			return err
		}
	}

	g.nodes = append(g.nodes, node)
	g.idToIndex[id] = idx

	var added []addedEdge
	for lc := level; lc >= 0; lc-- {
		m := g.cfg.M
		if lc == 0 {
			m = g.cfg.M0
		}

		candidates, err := g.searchLayer(ctx, vector, curNearest, g.cfg.EfConstruction, lc, &visited)
		if err != nil {
			g.rollbackInsert(id, idx, added)
			return err
		}
		neighbors := g.selectNeighborsHeuristic(vector, candidates, m)

		if lc < len(node.Links) {
			node.Links[lc] = neighbors
		}
		for _, nb := range neighbors {
			g.addConnection(nb, idx, lc)
			added = append(added, addedEdge{neighbor: nb, layer: lc})
			g.pruneIfOverCapacity(nb, lc)
		}
		if len(neighbors) > 0 {
			curNearest = neighbors
		}
	}

	if level > g.maxLevel {
		g.maxLevel = level
		g.entryPoint = idx
	}

	if g.state == Building && len(g.nodes)-g.tombstones >= g.cfg.EfConstruction {
		g.state = Serving
	}
	return nil
}

// addedEdge records one bidirectional edge written during an in-progress
// Insert, so rollbackInsert can undo exactly the edges that made it in
// before a lower layer failed.
type addedEdge struct {
	neighbor uint32
	layer    int
}

// rollbackInsert undoes a partially-inserted node on failure (e.g. a
// cancelled or deadline-exceeded search), per spec.md §4.2 failure
// semantics: "the partially-inserted node is rolled back, edges not added".
// Neighbors already linked to idx at a higher layer must have that edge
// stripped too, or a later search dereferences idx after it is gone from
// the arena.
func (g *Graph) rollbackInsert(id string, idx uint32, added []addedEdge) {
	for _, e := range added {
		g.removeConnection(e.neighbor, idx, e.layer)
	}
	if int(idx) == len(g.nodes)-1 {
		g.nodes = g.nodes[:idx]
	}
	delete(g.idToIndex, id)
}

func (g *Graph) addConnection(fromIdx, toIdx uint32, layer int) {
	from := g.nodes[fromIdx]
	if layer >= len(from.Links) {
		return
	}
	for _, existing := range from.Links[layer] {
		if existing == toIdx {
			return
		}
	}
	from.Links[layer] = append(from.Links[layer], toIdx)
}

func (g *Graph) removeConnection(fromIdx, toIdx uint32, layer int) {
	from := g.nodes[fromIdx]
	if layer >= len(from.Links) {
		return
	}
	links := from.Links[layer]
	for i, existing := range links {
		if existing == toIdx {
			from.Links[layer] = append(links[:i], links[i+1:]...)
			return
		}
	}
}

func (g *Graph) pruneIfOverCapacity(idx uint32, layer int) {
	node := g.nodes[idx]
	if layer >= len(node.Links) {
		return
	}
	degreeCap := g.cfg.M
	if layer == 0 {
		degreeCap = g.cfg.M0
	}
	if len(node.Links[layer]) <= degreeCap {
		return
	}
	vec := g.vectorFor(node)
	if vec == nil {
		return
	}
	node.Links[layer] = g.selectNeighborsHeuristic(vec, node.Links[layer], degreeCap)
}

// vectorFor returns a usable f32 vector for a node, decoding its
// quantized code if the raw vector was dropped.
func (g *Graph) vectorFor(n *Node) []float32 {
	if n.Vector != nil {
		return n.Vector
	}
	if n.Code != nil && g.codec != nil && g.codec.Fitted() {
		v, err := g.codec.Decode(n.Code)
		if err == nil {
			return v
		}
	}
	return nil
}

// selectNeighborsHeuristic implements spec.md §4.2's selection rule: sort
// candidates by distance, keep the closest, then admit each subsequent
// candidate only if it is closer to the new node than to any already
// accepted neighbor.
func (g *Graph) selectNeighborsHeuristic(query []float32, candidates []uint32, m int) []uint32 {
	if len(candidates) <= m {
		out := make([]uint32, len(candidates))
		copy(out, candidates)
		return out
	}

	type scored struct {
		idx  uint32
		dist float32
	}
	pairs := make([]scored, len(candidates))
	for i, c := range candidates {
		pairs[i] = scored{idx: c, dist: g.distanceTo(query, g.nodes[c])}
	}
	// insertion sort: candidate lists are small (bounded by ef_construction)
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j].dist < pairs[j-1].dist; j-- {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
		}
	}

	selected := make([]uint32, 0, m)
	selectedVecs := make([][]float32, 0, m)
	for _, p := range pairs {
		if len(selected) >= m {
			break
		}
		candVec := g.vectorFor(g.nodes[p.idx])
		if candVec == nil {
			continue
		}
		admit := true
		for _, sv := range selectedVecs {
			if g.cfg.Metric.searchDistance(candVec, sv) < p.dist {
				admit = false
				break
			}
		}
		if admit {
			selected = append(selected, p.idx)
			selectedVecs = append(selectedVecs, candVec)
		}
	}
	// Fall back to filling remaining slots by plain distance order if the
	// heuristic was too strict to reach m.
	if len(selected) < m {
		have := make(map[uint32]bool, len(selected))
		for _, s := range selected {
			have[s] = true
		}
		for _, p := range pairs {
			if len(selected) >= m {
				break
			}
			if !have[p.idx] {
				selected = append(selected, p.idx)
			}
		}
	}
	return selected
}
