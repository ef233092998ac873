// Package store implements the Vector Store: the process-wide registry and
// lifecycle manager for collections (spec.md §4.1).
package store

import (
	"context"
	"iter"
	goruntime "runtime"
	"sort"
	"sync"
	"time"

	"github.com/liliang-cn/vectorizer/pkg/collection"
	"github.com/liliang-cn/vectorizer/pkg/corelog"
	"github.com/liliang-cn/vectorizer/pkg/embedding"
	"github.com/liliang-cn/vectorizer/pkg/normalize"
	"github.com/liliang-cn/vectorizer/pkg/runtime"
	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

// Config configures a Store.
type Config struct {
	// DataRoot is the directory a persist factory should derive per-collection
	// archive paths from. Store itself never touches the filesystem; it only
	// threads DataRoot through to whatever PersistFactory the caller wires.
	DataRoot string
	// MaxVectors caps the total vectors held across all collections. Zero
	// means unlimited. Checked at create_collection time against the
	// store's current live total (spec.md §4.1 "OutOfResources if the
	// process vector count would exceed a configured cap").
	MaxVectors int64
	// AutoSaveInterval is how often the auto-save task wakes to persist
	// dirty collections (spec.md §4.6, default 30s).
	AutoSaveInterval time.Duration
	// CPUConcurrency sizes the shared CPU-bound worker pool handed to every
	// collection (spec.md §4.7, default runtime.NumCPU via zero).
	CPUConcurrency int
	// IOConcurrency sizes the shared I/O worker pool (spec.md §4.7).
	IOConcurrency int
}

// Summary is the per-collection digest returned by ListCollections
// (spec.md §4.1: "vector count, dimension, metric, and whether indexing is
// complete").
type Summary struct {
	Name             string
	Dimension        int
	VectorCount      int
	IndexingComplete bool
}

// PersistFactory builds the PersistFunc a newly created collection should
// use to write its durable archive. Injected by the caller (normally
// cmd/vectorizer, wiring in pkg/archive) so this package never imports the
// archive layer directly.
type PersistFactory func(name string) collection.PersistFunc

// Store is the process-wide registry and lifecycle owner of collections
// (spec.md §4.1 "Vector Store"). The registry uses a read-mostly lock: many
// concurrent readers (get/list), rare writers (create/delete). Once a
// caller successfully looks a collection up, the returned handle stays
// valid even if a concurrent delete_collection runs — Go's garbage
// collector keeps the Collection alive via the caller's own reference,
// matching spec.md §4.1's "handle acquisition... cannot fail after
// successful lookup".
type Store struct {
	mu          sync.RWMutex
	cfg         Config
	collections map[string]*collection.Collection

	cpuPool *runtime.CPUPool
	ioPool  *runtime.IOPool
	log     corelog.Logger

	persistFactory PersistFactory
	archiveRemover func(name string) error

	autosaveCancel context.CancelFunc
	autosaveDone   chan struct{}
}

// New creates an empty Store. Call StartAutoSave to begin the background
// persistence loop once a PersistFactory is wired via SetPersistFactory.
func New(cfg Config, log corelog.Logger) *Store {
	if log == nil {
		log = corelog.Nop()
	}
	if cfg.AutoSaveInterval <= 0 {
		cfg.AutoSaveInterval = 30 * time.Second
	}
	if cfg.CPUConcurrency <= 0 {
		cfg.CPUConcurrency = goruntime.NumCPU()
	}
	return &Store{
		cfg:         cfg,
		collections: make(map[string]*collection.Collection),
		cpuPool:     runtime.NewCPUPool(cfg.CPUConcurrency),
		ioPool:      runtime.NewIOPool(cfg.IOConcurrency),
		log:         log,
	}
}

// SetPersistFactory wires the archive layer in. Must be called before
// CreateCollection for collections to be durable.
func (s *Store) SetPersistFactory(fn PersistFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistFactory = fn
}

// SetArchiveRemover wires the callback DeleteCollection invokes when asked
// to also remove a collection's on-disk archive.
func (s *Store) SetArchiveRemover(fn func(name string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archiveRemover = fn
}

// CollectionDeps bundles the optional providers a new collection needs for
// insert_text/search_text; both may be nil for vector-only collections.
type CollectionDeps struct {
	Embedder   embedding.Provider
	Normalizer *normalize.Pipeline
}

// CreateCollection registers a new, empty collection (spec.md §4.1
// "create_collection"). Fails with AlreadyExists if the name is taken, and
// with OutOfResources if the store's current live vector total is already
// at or beyond MaxVectors (a newly created collection can hold zero
// vectors, but admitting it when the store is already full would only
// produce an immediate insert failure, so the check happens up front).
func (s *Store) CreateCollection(ctx context.Context, name string, ccfg collection.Config, deps CollectionDeps) (*collection.Collection, error) {
	if name == "" {
		return nil, vzerr.New("store.create_collection", vzerr.KindInvalidConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[name]; exists {
		return nil, vzerr.New("store.create_collection", vzerr.KindAlreadyExists)
	}
	if s.cfg.MaxVectors > 0 && s.liveVectorTotalLocked() >= s.cfg.MaxVectors {
		return nil, vzerr.New("store.create_collection", vzerr.KindOutOfResources)
	}

	ccfg.Name = name
	c := collection.New(ccfg, deps.Embedder, deps.Normalizer, s.log.With("collection", name))
	c.SetCPUPool(s.cpuPool)
	if s.persistFactory != nil {
		c.SetPersistFunc(s.persistFactory(name))
	}
	s.collections[name] = c
	return c, nil
}

// RegisterCollection admits an already-built collection into the registry,
// wiring the shared CPU pool and persist factory the same way
// CreateCollection does. Used at startup to bring collections restored from
// archives (pkg/archive.Restore) under the store's lifecycle management
// without re-running create_collection's AlreadyExists/OutOfResources
// checks against a process that was already holding these vectors on disk.
func (s *Store) RegisterCollection(name string, c *collection.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.collections[name]; exists {
		return vzerr.New("store.register_collection", vzerr.KindAlreadyExists)
	}
	c.SetCPUPool(s.cpuPool)
	if s.persistFactory != nil {
		c.SetPersistFunc(s.persistFactory(name))
	}
	s.collections[name] = c
	return nil
}

// GetCollection looks up a collection by name (spec.md §4.1
// "get_collection").
func (s *Store) GetCollection(name string) (*collection.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, vzerr.New("store.get_collection", vzerr.KindNotFound)
	}
	return c, nil
}

// ListCollections returns a lazy sequence of per-collection summaries
// sorted by name, matching spec.md §4.1's "lazy sequence of (name,
// summary)" via Go's range-over-func iterators rather than a pre-built
// slice, so a caller that only wants the first few names (e.g. a paginated
// CLI listing) does not pay for stats on every collection.
func (s *Store) ListCollections() iter.Seq[Summary] {
	s.mu.RLock()
	names := make([]string, 0, len(s.collections))
	snapshot := make(map[string]*collection.Collection, len(s.collections))
	for name, c := range s.collections {
		names = append(names, name)
		snapshot[name] = c
	}
	s.mu.RUnlock()
	sort.Strings(names)

	return func(yield func(Summary) bool) {
		for _, name := range names {
			c := snapshot[name]
			st := c.Stats()
			summary := Summary{
				Name:             name,
				Dimension:        st.Dimension,
				VectorCount:      st.VectorCount,
				IndexingComplete: st.IndexState == "serving",
			}
			if !yield(summary) {
				return
			}
		}
	}
}

// DeleteCollection removes a collection's in-memory state (spec.md §4.1
// "delete_collection: removes in-memory state; archive removal is an
// explicit flag"). When removeArchive is true and an ArchiveRemover is
// wired, it runs after the in-memory handle is dropped so a failed archive
// deletion never leaves a half-deleted collection visible to callers.
func (s *Store) DeleteCollection(name string, removeArchive bool) error {
	s.mu.Lock()
	if _, ok := s.collections[name]; !ok {
		s.mu.Unlock()
		return vzerr.New("store.delete_collection", vzerr.KindNotFound)
	}
	delete(s.collections, name)
	remover := s.archiveRemover
	s.mu.Unlock()

	if removeArchive && remover != nil {
		return remover(name)
	}
	return nil
}

// CPUPool returns the shared CPU-bound worker pool (spec.md §4.7).
func (s *Store) CPUPool() *runtime.CPUPool { return s.cpuPool }

// IOPool returns the shared I/O worker pool (spec.md §4.7).
func (s *Store) IOPool() *runtime.IOPool { return s.ioPool }

// liveVectorTotalLocked sums the current vector count across all
// collections. Callers must hold s.mu. Recomputed on demand rather than
// tracked incrementally: the store never observes individual insert/delete
// calls made directly against a collection handle a caller already holds,
// so an incremental counter would drift.
func (s *Store) liveVectorTotalLocked() int64 {
	var total int64
	for _, c := range s.collections {
		total += int64(c.Stats().VectorCount)
	}
	return total
}

// lookup resolves a collection name to a runtime.Saveable, matching
// runtime.Lookup's shape for the auto-save loop.
func (s *Store) lookup(name string) (runtime.Saveable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, false
	}
	return c, true
}

// names returns a snapshot of current collection names.
func (s *Store) names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	return names
}
