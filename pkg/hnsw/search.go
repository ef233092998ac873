package hnsw

import (
	"container/heap"
	"context"
	"sort"

	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

// Result is one ranked hit from a search.
type Result struct {
	ID    string
	Score float32
}

// searchLayer runs the greedy beam search of spec.md §4.2: maintain a
// min-heap of frontier candidates and a max-heap of the current best-k,
// stopping once the frontier's minimum distance exceeds the worst best-k.
func (g *Graph) searchLayer(ctx context.Context, query []float32, entryPoints []uint32, ef int, layer int, visited *int) ([]uint32, error) {
	seen := make(map[uint32]bool, ef*2)
	candidates := &minHeap{}
	best := &maxHeap{}

	for _, ep := range entryPoints {
		if seen[ep] {
			continue
		}
		seen[ep] = true
		d := g.distanceTo(query, g.nodes[ep])
		heap.Push(candidates, &heapItem{idx: ep, dist: d})
		heap.Push(best, &heapItem{idx: ep, dist: d})
	}

	for candidates.Len() > 0 {
		*visited++
		if err := checkCancel(ctx, *visited, g.cfg.CancelCheckEvery); err != nil {
			return nil, err
		}

		nearest := (*candidates)[0]
		if best.Len() >= ef && nearest.dist > (*best)[0].dist {
			break
		}
		current := heap.Pop(candidates).(*heapItem)
		currentNode := g.nodes[current.idx]
		if layer >= len(currentNode.Links) {
			continue
		}

		for _, nbIdx := range currentNode.Links[layer] {
			if seen[nbIdx] {
				continue
			}
			seen[nbIdx] = true
			nbNode := g.nodes[nbIdx]
			if nbNode.Tombstone {
				continue
			}
			d := g.distanceTo(query, nbNode)
			if best.Len() < ef || d < (*best)[0].dist {
				heap.Push(candidates, &heapItem{idx: nbIdx, dist: d})
				heap.Push(best, &heapItem{idx: nbIdx, dist: d})
				if best.Len() > ef {
					heap.Pop(best)
				}
			}
		}
	}

	out := make([]uint32, best.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(best).(*heapItem).idx
	}
	return out, nil
}

func (g *Graph) searchLayerClosest(ctx context.Context, query []float32, entryPoints []uint32, num, layer int, visited *int) ([]uint32, error) {
	res, err := g.searchLayer(ctx, query, entryPoints, num, layer, visited)
	if err != nil {
		return nil, err
	}
	if len(res) > num {
		res = res[:num]
	}
	return res, nil
}

// FilterFunc decides whether a candidate id's payload matches a query
// predicate. The Collection layer supplies this; the graph itself knows
// nothing about payload schema.
type FilterFunc func(id string) bool

// Search runs k-NN search: greedy descent through upper layers with beam
// width 1, then a beam-width-ef search at layer 0 (spec.md §4.2). If
// filter is non-nil, ef is multiplied by a fixed factor of 100 (capped at
// 10000 candidates) and the predicate is applied after HNSW produces
// candidates; the factor does not depend on how selective the filter is.
func (g *Graph) Search(ctx context.Context, query []float32, k int, filter FilterFunc) ([]Result, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	active := g
	if g.state == Rebuilding && g.oldSnapshot != nil {
		active = g.oldSnapshot
	}
	return active.searchLocked(ctx, query, k, filter)
}

func (g *Graph) searchLocked(ctx context.Context, query []float32, k int, filter FilterFunc) ([]Result, bool, error) {
	if !g.hasEntry {
		return nil, false, nil
	}

	ef := g.cfg.EfSearch
	if ef < k {
		ef = k
	}
	if filter != nil {
		oversample := 100
		ef = ef * oversample
		const cap = 10000
		if ef > cap {
			ef = cap
		}
	}

	visited := 0
	curNearest := []uint32{g.entryPoint}
	for layer := g.nodes[g.entryPoint].Level; layer > 0; layer-- {
		next, err := g.searchLayerClosest(ctx, query, curNearest, 1, layer, &visited)
		if err != nil {
			return partialResults(g, curNearest, query, k, filter), true, nil
		}
		if len(next) > 0 {
			curNearest = next
		}
	}

	candidates, err := g.searchLayer(ctx, query, curNearest, ef, 0, &visited)
	partial := false
	if err != nil {
		if vzerr.Is(err, vzerr.KindDeadlineExceeded) || vzerr.Is(err, vzerr.KindCancelled) {
			partial = true
		} else {
			return nil, false, err
		}
	}

	results := scoreAndFilter(g, candidates, query, filter)
	if len(results) > k {
		results = results[:k]
	}
	return results, partial, nil
}

func partialResults(g *Graph, candidates []uint32, query []float32, k int, filter FilterFunc) []Result {
	results := scoreAndFilter(g, candidates, query, filter)
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func scoreAndFilter(g *Graph, candidates []uint32, query []float32, filter FilterFunc) []Result {
	results := make([]Result, 0, len(candidates))
	for _, idx := range candidates {
		node := g.nodes[idx]
		if node.Tombstone {
			continue
		}
		if filter != nil && !filter(node.ID) {
			continue
		}
		score := g.cfg.Metric.Score(query, g.vectorFor(node))
		results = append(results, Result{ID: node.ID, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID // tie-break lexicographically (spec.md §4.2)
	})
	return results
}
