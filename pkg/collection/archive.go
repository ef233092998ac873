package collection

import (
	"iter"
	"time"

	"github.com/liliang-cn/vectorizer/pkg/embedding"
	"github.com/liliang-cn/vectorizer/pkg/hnsw"
	"github.com/liliang-cn/vectorizer/pkg/quantization"
)

// The methods in this file exist for pkg/archive to snapshot and restore a
// collection's state without pkg/collection importing the archive layer
// (PersistFunc already keeps that dependency one-directional; this file is
// the matching read/write surface archive's writer and reader call
// against a *Collection directly).

// Config returns a copy of the collection's configuration, for writing
// into an archive header.
func (c *Collection) Config() Config { return c.cfg }

// Codec returns the collection's quantization codec, or nil if
// quantization is disabled or not yet fitted.
func (c *Collection) Codec() quantization.Codec {
	c.codecMu.RLock()
	defer c.codecMu.RUnlock()
	return c.codec
}

// SetCodec installs a codec restored from an archive, reattaching it to
// the HNSW graph the same way New does for a freshly fitted one.
func (c *Collection) SetCodec(codec quantization.Codec) {
	c.codecMu.Lock()
	c.codec = codec
	c.codecMu.Unlock()
	c.hnswIdx.SetCodec(codec)
}

// Embedder returns the wired text embedding provider, or nil for
// vector-only collections.
func (c *Collection) Embedder() embedding.Provider { return c.embedder }

// HNSW exposes the underlying graph so the archive writer/reader can
// stream it through Graph.Save/Load directly (spec.md §3's HNSW graph
// section).
func (c *Collection) HNSW() *hnsw.Graph { return c.hnswIdx }

// CreatedAt returns when this collection was first created.
func (c *Collection) CreatedAt() time.Time { return c.createdAt }

// SetCreatedAt restores the original creation time read back from an
// archive header.
func (c *Collection) SetCreatedAt(t time.Time) { c.createdAt = t }

// SetLastSnapshot records when this collection's state was last written
// to a durable archive.
func (c *Collection) SetLastSnapshot(t time.Time) { c.lastSnapshot = t }

// Row is one vector-table entry, as seen by the archive writer.
type Row struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ExportRows returns a lazy sequence over the vector table. Each shard is
// copied under its own read lock before yielding, so a concurrent
// insert/delete on a different shard never blocks the walk; it may still
// observe a row that changed after it was copied, acceptable for a
// snapshot that was already going to capture a single instant regardless.
func (c *Collection) ExportRows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for _, sh := range c.shards {
			sh.mu.RLock()
			rows := make([]Row, 0, len(sh.rows))
			for id, e := range sh.rows {
				rows = append(rows, Row{ID: id, Vector: e.vector, Payload: e.payload})
			}
			sh.mu.RUnlock()
			for _, row := range rows {
				if !yield(row) {
					return
				}
			}
		}
	}
}

// LoadRows repopulates the vector table from rows read out of an archive.
// It bypasses Insert's HNSW indexing step, since the graph is restored
// separately via HNSW().Load; callers must only use this before the
// collection is handed to anything else.
func (c *Collection) LoadRows(rows []Row) {
	for _, row := range rows {
		sh := c.shardFor(row.ID)
		sh.mu.Lock()
		sh.rows[row.ID] = &entry{vector: row.Vector, payload: row.Payload}
		sh.mu.Unlock()
	}
}

// ContentIndex returns a copy of the insert_text dedup index (content
// hash -> id).
func (c *Collection) ContentIndex() map[[32]byte]string {
	c.contentMu.Lock()
	defer c.contentMu.Unlock()
	out := make(map[[32]byte]string, len(c.contentIndex))
	for k, v := range c.contentIndex {
		out[k] = v
	}
	return out
}

// LoadContentIndex restores the dedup index read out of an archive.
func (c *Collection) LoadContentIndex(idx map[[32]byte]string) {
	c.contentMu.Lock()
	c.contentIndex = idx
	c.contentMu.Unlock()
}
