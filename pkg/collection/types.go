// Package collection implements the per-collection container: config,
// sharded vector/payload table, HNSW index handle, quantization state,
// normalization pipeline and dirty flag (spec.md §4.2).
package collection

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/liliang-cn/vectorizer/pkg/corelog"
	"github.com/liliang-cn/vectorizer/pkg/embedding"
	"github.com/liliang-cn/vectorizer/pkg/hnsw"
	"github.com/liliang-cn/vectorizer/pkg/normalize"
	"github.com/liliang-cn/vectorizer/pkg/quantization"
	"github.com/liliang-cn/vectorizer/pkg/runtime"
)

// shardCount is the vector-table shard fan-out (spec.md §4.7: "sharded
// locking (64 shards by id hash)").
const shardCount = 64

// DedupPolicy controls what happens when insert_text finds an existing
// content-hash match.
type DedupPolicy = normalize.DedupMode

// Config is a collection's immutable-after-creation configuration
// (spec.md §3).
type Config struct {
	Name           string
	Dimension      int // 0 means auto-detect on first insert
	Metric         hnsw.Metric
	HNSW           hnsw.Config
	Quantization   quantization.Config
	Normalization  normalize.Policy
	Dedup          DedupPolicy
	DimensionAdapt DimensionAdaptPolicy
}

// entry is one row of the vector table: the source of truth for a
// vector's raw data and payload. The HNSW graph separately stores either
// the same float slice (by reference) or a quantized code.
type entry struct {
	vector  []float32
	payload map[string]any
}

type shard struct {
	mu   sync.RWMutex
	rows map[string]*entry
}

// PersistFunc is how a Collection asks its owner to write a durable
// archive. Injected by the Vector Store so this package never imports
// pkg/archive (which itself depends on pkg/collection).
type PersistFunc func(ctx context.Context, c *Collection) error

// Collection is the per-collection container (spec.md §3 "Collection").
type Collection struct {
	cfg Config
	log corelog.Logger

	shards [shardCount]*shard

	hnswIdx *hnsw.Graph

	codecMu sync.RWMutex
	codec   quantization.Codec
	fitting [][]float32 // buffered sample vectors, consumed once Fit runs

	embedder   embedding.Provider
	normalizer *normalize.Pipeline

	contentMu    sync.Mutex
	contentIndex map[[32]byte]string // content hash -> existing vector id (dedup)

	dimMu sync.Mutex // guards the one-time Dimension auto-detect in prepareVector

	dirty        atomic.Bool
	readOnly     atomic.Bool
	createdAt    time.Time
	lastSnapshot time.Time

	persistFunc PersistFunc
	cpuPool     *runtime.CPUPool // optional; nil means batch ops run sequentially
}

// SetCPUPool wires the process-wide CPU worker pool in, enabling
// BatchInsertText to fan its embedding calls out across the bounded pool
// instead of running sequentially (spec.md §4.7 "bounded worker pool").
// BatchInsert itself stays sequential regardless. Called once by the Vector Store at
// collection-creation time.
func (c *Collection) SetCPUPool(pool *runtime.CPUPool) { c.cpuPool = pool }

// New creates an empty Collection. embedder and normalizer may be nil for
// vector-only collections that never call insert_text/search_text.
func New(cfg Config, embedder embedding.Provider, normalizer *normalize.Pipeline, log corelog.Logger) *Collection {
	if log == nil {
		log = corelog.Nop()
	}
	if cfg.HNSW.Metric == 0 {
		cfg.HNSW.Metric = cfg.Metric
	}
	if cfg.Quantization.FitSampleSize <= 0 {
		cfg.Quantization.FitSampleSize = 10000
	}
	c := &Collection{
		cfg:          cfg,
		log:          log,
		hnswIdx:      hnsw.New(cfg.HNSW, log),
		embedder:     embedder,
		normalizer:   normalizer,
		createdAt:    time.Now(),
		contentIndex: make(map[[32]byte]string),
	}
	for i := range c.shards {
		c.shards[i] = &shard{rows: make(map[string]*entry)}
	}
	if cfg.Quantization.Scheme != quantization.SchemeNone && cfg.Dimension > 0 {
		codec, err := quantization.New(cfg.Dimension, cfg.Quantization)
		if err != nil {
			log.Warn("collection: failed to construct quantization codec", "collection", cfg.Name, "error", err.Error())
		} else if codec != nil {
			c.codec = codec
			c.hnswIdx.SetCodec(codec)
		}
	}
	return c
}

// SetPersistFunc wires the archive writer in. Called once by the Vector
// Store at collection-creation time.
func (c *Collection) SetPersistFunc(fn PersistFunc) { c.persistFunc = fn }

func (c *Collection) shardFor(id string) *shard {
	return c.shards[fnv32(id)%shardCount]
}

func fnv32(s string) uint32 {
	const prime = 16777619
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

// Name returns the collection's identifier.
func (c *Collection) Name() string { return c.cfg.Name }

// Dimension returns the configured vector dimension (0 if not yet
// auto-detected).
func (c *Collection) Dimension() int { return c.cfg.Dimension }

// IsDirty reports whether state has diverged from the last persisted
// archive.
func (c *Collection) IsDirty() bool { return c.dirty.Load() }

func (c *Collection) markDirty() { c.dirty.Store(true) }

// ClearDirty resets the dirty flag after a successful persist.
func (c *Collection) ClearDirty() { c.dirty.Store(false) }

// ReadOnly reports whether a persistent I/O failure has tripped this
// collection into read-only mode (spec.md §7).
func (c *Collection) ReadOnly() bool { return c.readOnly.Load() }

// SetReadOnly trips or clears the read-only flag.
func (c *Collection) SetReadOnly(v bool) { c.readOnly.Store(v) }

// SaveIfDirty implements runtime.Saveable.
func (c *Collection) SaveIfDirty(ctx context.Context) error {
	if !c.IsDirty() || c.persistFunc == nil {
		return nil
	}
	if err := c.persistFunc(ctx, c); err != nil {
		return err
	}
	c.ClearDirty()
	c.lastSnapshot = time.Now()
	return nil
}
