package hnsw

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/liliang-cn/vectorizer/pkg/corelog"
	"github.com/liliang-cn/vectorizer/pkg/quantization"
	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

// State is the lifecycle of an HNSW index within a Collection (spec.md
// §4.2 "State machine").
type State int

const (
	Empty State = iota
	Building
	Serving
	Rebuilding
	Closed
)

func (s State) String() string {
	switch s {
	case Building:
		return "building"
	case Serving:
		return "serving"
	case Rebuilding:
		return "rebuilding"
	case Closed:
		return "closed"
	default:
		return "empty"
	}
}

// Config holds the tunable HNSW parameters (spec.md §3).
type Config struct {
	M              int // per-node degree cap on upper layers
	M0             int // per-node degree cap on layer 0
	EfConstruction int // beam width during insertion
	EfSearch       int // beam width during search
	Seed           int64
	Metric         Metric
	// TombstoneRebuildFraction triggers a rebuild once exceeded (default 0.2).
	TombstoneRebuildFraction float64
	// CancelCheckEvery bounds how many candidates are visited between
	// cancellation-token checks (spec.md §9).
	CancelCheckEvery int
}

// DefaultConfig returns the spec's suggested defaults.
func DefaultConfig(metric Metric) Config {
	return Config{
		M:                        16,
		M0:                       32,
		EfConstruction:           200,
		EfSearch:                 64,
		Seed:                     42,
		Metric:                   metric,
		TombstoneRebuildFraction: 0.2,
		CancelCheckEvery:         256,
	}
}

// Graph is the concurrency-safe HNSW index. A single reader-writer lock
// guards it: concurrent searches share a read lock, inserts/deletes take
// the write lock (spec.md §4.7).
type Graph struct {
	mu sync.RWMutex

	cfg   Config
	rng   *rand.Rand
	ml    float64
	state State
	log   corelog.Logger

	nodes      []*Node
	idToIndex  map[string]uint32
	hasEntry   bool
	entryPoint uint32
	maxLevel   int
	tombstones int

	codec quantization.Codec

	// oldSnapshot serves reads while a rebuild constructs a fresh graph in
	// the background (spec.md §4.2 Rebuilding state).
	oldSnapshot *Graph
}

// New creates an empty Graph.
func New(cfg Config, log corelog.Logger) *Graph {
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.M0 <= 0 {
		cfg.M0 = cfg.M * 2
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = 200
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = 64
	}
	if cfg.TombstoneRebuildFraction <= 0 {
		cfg.TombstoneRebuildFraction = 0.2
	}
	if cfg.CancelCheckEvery <= 0 {
		cfg.CancelCheckEvery = 256
	}
	if log == nil {
		log = corelog.Nop()
	}
	return &Graph{
		cfg:       cfg,
		rng:       newRand(cfg.Seed),
		ml:        1.0 / math.Log(float64(cfg.M)),
		state:     Empty,
		log:       log,
		nodes:     make([]*Node, 0),
		idToIndex: make(map[string]uint32),
	}
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// SetCodec attaches a quantization codec; once set, newly inserted vectors
// are stored as codes rather than raw floats when the codec is fitted.
func (g *Graph) SetCodec(c quantization.Codec) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.codec = c
}

// State reports the current lifecycle state.
func (g *Graph) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Len returns the number of live (non-tombstoned) nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes) - g.tombstones
}

// selectLevel draws a layer from the geometric distribution with
// parameter ml = 1/ln(M) (spec.md §3), following the classical HNSW
// level-assignment formula level = floor(-ln(U) * ml).
func (g *Graph) selectLevel() int {
	u := g.rng.Float64()
	for u == 0 {
		u = g.rng.Float64()
	}
	level := int(-math.Log(u) * g.ml)
	if level > 32 {
		level = 32
	}
	return level
}

func (g *Graph) distanceTo(query []float32, n *Node) float32 {
	if n.Vector != nil {
		return g.cfg.Metric.searchDistance(query, n.Vector)
	}
	if n.Code != nil && g.codec != nil && g.codec.Fitted() {
		d, err := g.codec.AsymmetricDistance(query, n.Code)
		if err == nil {
			return d
		}
	}
	return float32(math.Inf(1))
}

func checkCancel(ctx context.Context, visited, every int) error {
	if ctx == nil {
		return nil
	}
	if visited%every != 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return vzerr.New("hnsw", vzerr.KindDeadlineExceeded)
		}
		return vzerr.New("hnsw", vzerr.KindCancelled)
	default:
		return nil
	}
}
