package hnsw

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(seed int64) *Graph {
	cfg := DefaultConfig(Cosine)
	cfg.Seed = seed
	return New(cfg, nil)
}

// Scenario 1 (spec.md §8): 4-dim cosine "docs" collection.
func TestSearchDocsScenario(t *testing.T) {
	g := newTestGraph(1)
	ctx := context.Background()

	require.NoError(t, g.Insert(ctx, "a", []float32{1, 0, 0, 0}))
	require.NoError(t, g.Insert(ctx, "b", []float32{0, 1, 0, 0}))

	results, partial, err := g.Search(ctx, []float32{1, 0, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.False(t, partial)
	require.Len(t, results, 2)

	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "b", results[1].ID)
	assert.InDelta(t, 0.0, results[1].Score, 1e-6)
}

// Scenario 2 (spec.md §8): update is visible to subsequent search.
func TestUpdateVisibleInSearch(t *testing.T) {
	g := newTestGraph(1)
	ctx := context.Background()

	require.NoError(t, g.Insert(ctx, "a", []float32{1, 0, 0, 0}))
	require.NoError(t, g.Insert(ctx, "b", []float32{0, 1, 0, 0}))

	require.NoError(t, g.Update(ctx, "a", []float32{0, 1, 0, 0}))

	results, _, err := g.Search(ctx, []float32{0, 1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

// P1: round-trip — searching for an inserted vector returns it as the
// top-1 result with the best possible score.
func TestRoundTripBestScore(t *testing.T) {
	g := newTestGraph(7)
	ctx := context.Background()

	vecs := map[string][]float32{
		"v1": {1, 0, 0},
		"v2": {0, 1, 0},
		"v3": {0, 0, 1},
		"v4": {0.7, 0.7, 0},
	}
	for id, v := range vecs {
		require.NoError(t, g.Insert(ctx, id, v))
	}

	for id, v := range vecs {
		results, _, err := g.Search(ctx, v, 1, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, id, results[0].ID)
	}
}

// P4: deterministic HNSW — identical config, seed and insertion order
// produce identical adjacency lists.
func TestDeterministicGraph(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	vecs := [][]float32{
		{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1},
		{0.5, 0.5, 0, 0}, {0, 0.5, 0.5, 0}, {0.5, 0, 0, 0.5}, {0.25, 0.25, 0.25, 0.25},
	}

	build := func() *Graph {
		g := newTestGraph(99)
		ctx := context.Background()
		for i, id := range ids {
			if err := g.Insert(ctx, id, vecs[i]); err != nil {
				t.Fatal(err)
			}
		}
		return g
	}

	g1 := build()
	g2 := build()

	require.Equal(t, len(g1.nodes), len(g2.nodes))
	for i := range g1.nodes {
		n1, n2 := g1.nodes[i], g2.nodes[i]
		assert.Equal(t, n1.ID, n2.ID)
		assert.Equal(t, n1.Level, n2.Level)
		require.Equal(t, len(n1.Links), len(n2.Links))
		for l := range n1.Links {
			assert.Equal(t, n1.Links[l], n2.Links[l], "layer %d links differ for node %s", l, n1.ID)
		}
	}
}

// P2: cosine collections normalize stored vectors to unit length.
func TestL2NormalizeInvariant(t *testing.T) {
	v := []float32{3, 4, 0}
	L2Normalize(v)
	assert.InDelta(t, 1.0, L2Norm(v), 1e-6)
}

func TestDeleteTombstonesAndTriggersRebuildSignal(t *testing.T) {
	g := newTestGraph(3)
	g.cfg.TombstoneRebuildFraction = 0.2
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		require.NoError(t, g.Insert(ctx, id, []float32{float32(i), 1, 0}))
	}
	assert.False(t, g.NeedsRebuild())

	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		require.NoError(t, g.Delete(id))
	}
	assert.True(t, g.NeedsRebuild())

	require.NoError(t, g.Rebuild(ctx))
	assert.False(t, g.NeedsRebuild())
	assert.Equal(t, 7, g.Len())

	_, ok := g.Get("a")
	assert.False(t, ok)
	_, ok = g.Get("d")
	assert.True(t, ok)
}

func TestDeleteReassignsEntryPoint(t *testing.T) {
	g := newTestGraph(5)
	ctx := context.Background()
	require.NoError(t, g.Insert(ctx, "only", []float32{1, 0, 0}))

	ep := g.entryPoint
	require.NoError(t, g.Delete("only"))
	assert.False(t, g.hasEntry)
	_ = ep
}

// P5 (serialization layer): save/load round-trips adjacency and ids.
func TestSaveLoadRoundTrip(t *testing.T) {
	g := newTestGraph(11)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		v := []float32{float32(i), float32(20 - i), 1}
		require.NoError(t, g.Insert(ctx, string(rune('a'+i)), v))
	}

	var buf bytes.Buffer
	require.NoError(t, g.Save(&buf))

	loaded := New(DefaultConfig(Cosine), nil)
	require.NoError(t, loaded.Load(&buf))

	assert.Equal(t, g.Len(), loaded.Len())
	assert.Equal(t, len(g.nodes), len(loaded.nodes))
	for id, idx := range g.idToIndex {
		loadedIdx, ok := loaded.idToIndex[id]
		require.True(t, ok)
		assert.Equal(t, g.nodes[idx].Level, loaded.nodes[loadedIdx].Level)
	}
}

// Update with a large cosine drift tombstones and reinserts rather than
// patching the node in place, so old edges selected for the old region
// are not kept around a node that no longer lives there.
func TestUpdateBeyondDriftThresholdReinserts(t *testing.T) {
	g := newTestGraph(1)
	ctx := context.Background()
	require.NoError(t, g.Insert(ctx, "a", []float32{1, 0, 0}))
	originalIdx := g.idToIndex["a"]

	require.NoError(t, g.Update(ctx, "a", []float32{-1, 0, 0}))

	newIdx, ok := g.idToIndex["a"]
	require.True(t, ok)
	assert.NotEqual(t, originalIdx, newIdx)
	assert.True(t, g.nodes[originalIdx].Tombstone)

	results, _, err := g.Search(ctx, []float32{-1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestFilterCorrectness(t *testing.T) {
	g := newTestGraph(2)
	ctx := context.Background()
	langs := map[string]string{}
	for i := 0; i < 30; i++ {
		id := string(rune('a' + i))
		v := []float32{float32(i), 1, 0}
		require.NoError(t, g.Insert(ctx, id, v))
		if i%10 == 0 {
			langs[id] = "en"
		} else {
			langs[id] = "fr"
		}
	}
	filter := func(id string) bool { return langs[id] == "en" }

	results, _, err := g.Search(ctx, []float32{0, 1, 0}, 3, filter)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "en", langs[r.ID])
	}
}
