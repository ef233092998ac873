package collection

import (
	"context"
	"math"
	"sync"

	"github.com/liliang-cn/vectorizer/pkg/hnsw"
	"github.com/liliang-cn/vectorizer/pkg/normalize"
	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

// InsertOptions controls insert/upsert behavior.
type InsertOptions struct {
	Payload map[string]any
	Upsert  bool
}

// Insert validates and stores vector under id, then indexes it in HNSW
// (spec.md §4.2 "insert"). The first insert on a zero-dimension
// collection fixes its dimension.
func (c *Collection) Insert(ctx context.Context, id string, vector []float32, opts InsertOptions) error {
	if c.ReadOnly() {
		return vzerr.New("collection.insert", vzerr.KindOutOfResources)
	}
	vector, err := c.prepareVector(vector)
	if err != nil {
		return err
	}

	sh := c.shardFor(id)
	sh.mu.Lock()
	if _, exists := sh.rows[id]; exists && !opts.Upsert {
		sh.mu.Unlock()
		return vzerr.New("collection.insert", vzerr.KindAlreadyExists)
	}
	sh.rows[id] = &entry{vector: vector, payload: opts.Payload}
	sh.mu.Unlock()

	c.maybeFit(vector)

	if opts.Upsert && c.hnswIdx.Exists(id) {
		err = c.hnswIdx.Update(ctx, id, vector)
	} else {
		err = c.hnswIdx.Insert(ctx, id, vector)
	}
	if err != nil {
		sh.mu.Lock()
		delete(sh.rows, id)
		sh.mu.Unlock()
		return err
	}
	c.markDirty()
	return nil
}

// InsertText normalizes and embeds text, then delegates to Insert.
// Dedup policy controls what happens when the content hash already
// belongs to an id in this collection's content index (spec.md §4.3).
func (c *Collection) InsertText(ctx context.Context, id, text string, opts InsertOptions) (string, error) {
	if c.normalizer == nil || c.embedder == nil {
		return "", vzerr.New("collection.insert_text", vzerr.KindInvalidConfig)
	}
	result := c.normalizer.Process(text, "")
	hash := result.Artifact.Hash

	c.contentMu.Lock()
	existingID, dup := c.contentIndex[hash]
	c.contentMu.Unlock()

	if dup {
		switch c.cfg.Dedup {
		case normalize.DedupSkip:
			return existingID, nil
		case normalize.DedupWarn:
			c.log.Warn("collection: duplicate content hash on insert_text", "collection", c.cfg.Name, "existing_id", existingID, "new_id", id)
		case normalize.DedupAlwaysInsert:
			// fall through and embed/insert as usual
		}
	}

	vector, err := c.embedder.Embed(ctx, result.Artifact.NormalizedText)
	if err != nil {
		return "", vzerr.Wrap("collection.insert_text", vzerr.KindInvalidVector, err)
	}
	if err := c.Insert(ctx, id, vector, opts); err != nil {
		return "", err
	}
	c.contentMu.Lock()
	c.contentIndex[hash] = id
	c.contentMu.Unlock()
	return id, nil
}

// resolveDimension returns the collection's fixed dimension, auto-detecting
// and latching it from the first observed vector length if still unset.
// Guarded so two concurrent first-inserts into a zero-dimension collection
// can't each observe Dimension==0 and latch different values.
func (c *Collection) resolveDimension(observed int) int {
	c.dimMu.Lock()
	defer c.dimMu.Unlock()
	if c.cfg.Dimension == 0 {
		c.cfg.Dimension = observed
	}
	return c.cfg.Dimension
}

// prepareVector validates a raw vector against the collection's
// dimension/metric invariants, adapting or rejecting on mismatch per
// DimensionAdapt, normalizing for Cosine, and rejecting NaN/Inf/zero.
func (c *Collection) prepareVector(vector []float32) ([]float32, error) {
	for _, x := range vector {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil, vzerr.New("collection.prepare_vector", vzerr.KindInvalidVector)
		}
	}

	target := c.resolveDimension(len(vector))
	if len(vector) != target {
		adapted, err := adaptDimension(c.cfg.DimensionAdapt, vector, target)
		if err != nil {
			return nil, err
		}
		vector = adapted
	}

	out := make([]float32, len(vector))
	copy(out, vector)

	if c.cfg.Metric == hnsw.Cosine {
		if hnsw.L2Norm(out) == 0 {
			return nil, vzerr.New("collection.prepare_vector", vzerr.KindInvalidVector)
		}
		hnsw.L2Normalize(out)
	}
	return out, nil
}

// maybeFit accumulates a fitting sample and trains the codec exactly once
// it reaches FitSampleSize (spec.md §4.5 "fits exactly once per
// collection").
func (c *Collection) maybeFit(vector []float32) {
	c.codecMu.Lock()
	defer c.codecMu.Unlock()
	if c.codec == nil || c.codec.Fitted() {
		return
	}
	cp := make([]float32, len(vector))
	copy(cp, vector)
	c.fitting = append(c.fitting, cp)
	if len(c.fitting) < c.cfg.Quantization.FitSampleSize {
		return
	}
	if err := c.codec.Fit(c.fitting); err != nil {
		c.log.Warn("collection: quantization fit failed", "collection", c.cfg.Name, "error", err.Error())
	}
	c.fitting = nil
}

// Get returns id's vector and payload.
func (c *Collection) Get(id string) ([]float32, map[string]any, error) {
	sh := c.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.rows[id]
	if !ok {
		return nil, nil, vzerr.New("collection.get", vzerr.KindNotFound)
	}
	return e.vector, e.payload, nil
}

// Update replaces id's vector and/or payload (spec.md §4.2 "update").
func (c *Collection) Update(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	if c.ReadOnly() {
		return vzerr.New("collection.update", vzerr.KindOutOfResources)
	}
	sh := c.shardFor(id)
	sh.mu.Lock()
	e, ok := sh.rows[id]
	if !ok {
		sh.mu.Unlock()
		return vzerr.New("collection.update", vzerr.KindNotFound)
	}
	if vector == nil {
		if payload != nil {
			e.payload = payload
		}
		sh.mu.Unlock()
		c.markDirty()
		return nil
	}
	sh.mu.Unlock()

	prepared, err := c.prepareVector(vector)
	if err != nil {
		return err
	}
	if err := c.hnswIdx.Update(ctx, id, prepared); err != nil {
		return err
	}

	sh.mu.Lock()
	e.vector = prepared
	if payload != nil {
		e.payload = payload
	}
	sh.mu.Unlock()
	c.markDirty()
	return nil
}

// Delete tombstones id's HNSW node and removes its vector-table entry
// (spec.md §4.2 "delete").
func (c *Collection) Delete(id string) error {
	if c.ReadOnly() {
		return vzerr.New("collection.delete", vzerr.KindOutOfResources)
	}
	if err := c.hnswIdx.Delete(id); err != nil {
		return err
	}
	sh := c.shardFor(id)
	sh.mu.Lock()
	delete(sh.rows, id)
	sh.mu.Unlock()
	c.markDirty()

	if c.hnswIdx.NeedsRebuild() {
		go c.rebuildAsync()
	}
	return nil
}

func (c *Collection) rebuildAsync() {
	if err := c.hnswIdx.Rebuild(context.Background()); err != nil {
		c.log.Warn("collection: background rebuild failed", "collection", c.cfg.Name, "error", err.Error())
	}
}

// BatchItem is one element of a batch_insert call.
type BatchItem struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// BatchResult reports one item's outcome; a batch is not transactional
// (spec.md §4.2 "batch_insert"): partial progress is possible and
// reported element-wise.
type BatchResult struct {
	ID  string
	Err error
}

// BatchInsert applies items in order on the caller's goroutine. Per-item
// validation failures are reported element-wise without stopping the rest
// (spec.md §4.2: "not transactional"). Each item goes through Insert, which
// takes the HNSW write lock for that item only; the lock is not held across
// the batch, so other goroutines' inserts, deletes and searches can run
// between items and a concurrent search can observe a partially applied
// batch. BatchInsert does not use cpuPool; batch text embedding does (see
// BatchInsertText).
func (c *Collection) BatchInsert(ctx context.Context, items []BatchItem, upsert bool) []BatchResult {
	results := make([]BatchResult, len(items))
	for i, item := range items {
		err := c.Insert(ctx, item.ID, item.Vector, InsertOptions{Payload: item.Payload, Upsert: upsert})
		results[i] = BatchResult{ID: item.ID, Err: err}
	}
	return results
}

// BatchTextItem is one element of a batch_insert_text call.
type BatchTextItem struct {
	ID      string
	Text    string
	Payload map[string]any
}

// BatchInsertText embeds every item's text concurrently across the wired
// CPUPool (spec.md §4.7: "any batch embedding call" is a suspension point
// that belongs on the CPU-bound worker pool), then inserts the resulting
// vectors sequentially through BatchInsert. Falls back to a sequential embed+insert loop if no CPUPool is
// wired.
func (c *Collection) BatchInsertText(ctx context.Context, items []BatchTextItem, upsert bool) []BatchResult {
	if c.normalizer == nil || c.embedder == nil {
		results := make([]BatchResult, len(items))
		for i, item := range items {
			results[i] = BatchResult{ID: item.ID, Err: vzerr.New("collection.batch_insert_text", vzerr.KindInvalidConfig)}
		}
		return results
	}

	vectors := make([][]float32, len(items))
	embedErrs := make([]error, len(items))

	embedOne := func(i int, item BatchTextItem) {
		result := c.normalizer.Process(item.Text, "")
		v, err := c.embedder.Embed(ctx, result.Artifact.NormalizedText)
		vectors[i], embedErrs[i] = v, err
	}

	if c.cpuPool == nil {
		for i, item := range items {
			embedOne(i, item)
		}
	} else {
		var wg sync.WaitGroup
		wg.Add(len(items))
		for i, item := range items {
			i, item := i, item
			go func() {
				defer wg.Done()
				_ = c.cpuPool.Run(ctx, func() error { embedOne(i, item); return nil })
			}()
		}
		wg.Wait()
	}

	batchItems := make([]BatchItem, len(items))
	for i, item := range items {
		batchItems[i] = BatchItem{ID: item.ID, Vector: vectors[i], Payload: item.Payload}
	}
	results := c.BatchInsert(ctx, batchItems, upsert)
	for i, err := range embedErrs {
		if err != nil {
			results[i] = BatchResult{ID: items[i].ID, Err: vzerr.Wrap("collection.batch_insert_text", vzerr.KindInvalidVector, err)}
		}
	}
	return results
}
