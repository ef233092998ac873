package normalize

// Pipeline binds a Policy to a shared Cache, implementing the full content
// flow: detect -> normalize -> hash -> cache lookup/store.
type Pipeline struct {
	Policy Policy
	Cache  *Cache
	Dedup  DedupMode
}

// NewPipeline builds a Pipeline over an already-open shared Cache.
func NewPipeline(policy Policy, cache *Cache, dedup DedupMode) *Pipeline {
	cache.Acquire()
	return &Pipeline{Policy: policy, Cache: cache, Dedup: dedup}
}

// Result is what a caller needs to decide whether to re-embed.
type Result struct {
	Artifact Artifact
	// Seen is true if this content hash already existed in the cache
	// before this call (a dedup candidate).
	Seen bool
}

// Process normalizes text, computing its hash, and consults the cache.
// It always stores the normalized text into the cache (idempotent if
// already present).
func (p *Pipeline) Process(text, extHint string) Result {
	artifact := Process(text, extHint, p.Policy)
	_, seen := p.Cache.Lookup(artifact.Hash)
	p.Cache.Store(artifact.Hash, artifact.NormalizedText)
	return Result{Artifact: artifact, Seen: seen}
}

// Close releases this pipeline's hold on the shared cache.
func (p *Pipeline) Close() error {
	return p.Cache.Release()
}
