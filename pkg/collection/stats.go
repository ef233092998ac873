package collection

import "github.com/liliang-cn/vectorizer/pkg/hnsw"

// Stats summarizes a collection for the health/stats surface (spec.md §6
// "stats() call returning per-collection vector count, indexed count,
// memory bytes, disk bytes, and auto-save state").
type Stats struct {
	Name           string
	Dimension      int
	Metric         hnsw.Metric
	VectorCount    int
	IndexedCount   int
	EstimatedBytes int64
	Dirty          bool
	ReadOnly       bool
	IndexState     string
	Quantization   string
}

// Stats computes a snapshot of the collection's current shape. It walks
// every row of every shard and calls the HNSW Stats, which walks every
// graph node, so its cost grows with the number of vectors.
func (c *Collection) Stats() Stats {
	vectorCount := 0
	var bytes int64
	for _, sh := range c.shards {
		sh.mu.RLock()
		vectorCount += len(sh.rows)
		for _, e := range sh.rows {
			bytes += int64(len(e.vector) * 4)
		}
		sh.mu.RUnlock()
	}

	hStats := c.hnswIdx.Stats()
	quantKind := "none"
	c.codecMu.RLock()
	if c.codec != nil {
		quantKind = c.codec.Kind()
	}
	c.codecMu.RUnlock()

	return Stats{
		Name:           c.cfg.Name,
		Dimension:      c.cfg.Dimension,
		Metric:         c.cfg.Metric,
		VectorCount:    vectorCount,
		IndexedCount:   hStats.ActiveNodes,
		EstimatedBytes: bytes,
		Dirty:          c.IsDirty(),
		ReadOnly:       c.ReadOnly(),
		IndexState:     hStats.State,
		Quantization:   quantKind,
	}
}
