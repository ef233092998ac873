package hnsw

import (
	"encoding/gob"
	"io"
)

// gobHeader carries the scalar fields of a Graph; the arena itself is
// encoded separately as a slice so Load can size it up front.
type gobHeader struct {
	M              int
	M0             int
	EfConstruction int
	EfSearch       int
	Seed           int64
	Metric         Metric
	HasEntry       bool
	EntryPoint     uint32
	MaxLevel       int
	Tombstones     int
	NodeCount      int
}

// Save serializes the graph to w. The quantization codec is not part of
// this stream; pkg/archive persists it alongside under its own section
// and reattaches it via SetCodec after Load.
func (g *Graph) Save(w io.Writer) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	enc := gob.NewEncoder(w)
	hdr := gobHeader{
		M:              g.cfg.M,
		M0:             g.cfg.M0,
		EfConstruction: g.cfg.EfConstruction,
		EfSearch:       g.cfg.EfSearch,
		Seed:           g.cfg.Seed,
		Metric:         g.cfg.Metric,
		HasEntry:       g.hasEntry,
		EntryPoint:     g.entryPoint,
		MaxLevel:       g.maxLevel,
		Tombstones:     g.tombstones,
		NodeCount:      len(g.nodes),
	}
	if err := enc.Encode(hdr); err != nil {
		return err
	}
	for _, n := range g.nodes {
		if err := enc.Encode(n); err != nil {
			return err
		}
	}
	return nil
}

// Load replaces the graph's contents with a stream written by Save. The
// graph must not be concurrently used during Load.
func (g *Graph) Load(r io.Reader) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	dec := gob.NewDecoder(r)
	var hdr gobHeader
	if err := dec.Decode(&hdr); err != nil {
		return err
	}

	g.cfg.M = hdr.M
	g.cfg.M0 = hdr.M0
	g.cfg.EfConstruction = hdr.EfConstruction
	g.cfg.EfSearch = hdr.EfSearch
	g.cfg.Seed = hdr.Seed
	g.cfg.Metric = hdr.Metric
	g.hasEntry = hdr.HasEntry
	g.entryPoint = hdr.EntryPoint
	g.maxLevel = hdr.MaxLevel
	g.tombstones = hdr.Tombstones
	g.rng = newRand(hdr.Seed)

	g.nodes = make([]*Node, hdr.NodeCount)
	g.idToIndex = make(map[string]uint32, hdr.NodeCount)
	for i := 0; i < hdr.NodeCount; i++ {
		var n Node
		if err := dec.Decode(&n); err != nil {
			return err
		}
		g.nodes[i] = &n
		g.idToIndex[n.ID] = uint32(i)
	}

	if hdr.NodeCount == 0 {
		g.state = Empty
	} else {
		g.state = Serving
	}
	return nil
}
