package collection

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/vectorizer/pkg/embedding"
	"github.com/liliang-cn/vectorizer/pkg/hnsw"
	"github.com/liliang-cn/vectorizer/pkg/normalize"
)

func newTestCollection(t *testing.T, dim int) *Collection {
	t.Helper()
	cfg := Config{
		Name:      "docs",
		Dimension: dim,
		Metric:    hnsw.Cosine,
		HNSW:      hnsw.DefaultConfig(hnsw.Cosine),
	}
	return New(cfg, nil, nil, nil)
}

func newTestCollectionWithText(t *testing.T) *Collection {
	t.Helper()
	dir := t.TempDir()
	cache, err := normalize.NewCache(normalize.CacheConfig{
		HotCapacity: 64,
		WarmPath:    filepath.Join(dir, "warm.bin"),
		ColdDir:     filepath.Join(dir, "cold"),
	})
	require.NoError(t, err)
	pipeline := normalize.NewPipeline(normalize.DefaultPolicy(), cache, normalize.DedupSkip)
	embedder := embedding.NewBagOfWords(32)

	cfg := Config{
		Name:          "docs",
		Dimension:     32,
		Metric:        hnsw.Cosine,
		HNSW:          hnsw.DefaultConfig(hnsw.Cosine),
		Normalization: normalize.DefaultPolicy(),
		Dedup:         normalize.DedupSkip,
	}
	return New(cfg, embedder, pipeline, nil)
}

// spec.md §8 scenario 1.
func TestScenarioDocsBasicSearch(t *testing.T) {
	c := newTestCollection(t, 4)
	ctx := context.Background()

	require.NoError(t, c.Insert(ctx, "a", []float32{1, 0, 0, 0}, InsertOptions{}))
	require.NoError(t, c.Insert(ctx, "b", []float32{0, 1, 0, 0}, InsertOptions{}))

	hits, partial, err := c.Search(ctx, []float32{1, 0, 0, 0}, 2, nil)
	require.NoError(t, err)
	assert.False(t, partial)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "b", hits[1].ID)
	assert.InDelta(t, 0.0, hits[1].Score, 1e-6)
}

func TestInsertDuplicateWithoutUpsertFails(t *testing.T) {
	c := newTestCollection(t, 3)
	ctx := context.Background()
	require.NoError(t, c.Insert(ctx, "x", []float32{1, 0, 0}, InsertOptions{}))
	err := c.Insert(ctx, "x", []float32{0, 1, 0}, InsertOptions{})
	assert.Error(t, err)
}

func TestUpsertReplacesVector(t *testing.T) {
	c := newTestCollection(t, 3)
	ctx := context.Background()
	require.NoError(t, c.Insert(ctx, "x", []float32{1, 0, 0}, InsertOptions{}))
	require.NoError(t, c.Insert(ctx, "x", []float32{0, 1, 0}, InsertOptions{Upsert: true}))

	v, _, err := c.Get("x")
	require.NoError(t, err)
	assert.InDelta(t, float32(0), v[0], 1e-6)
	assert.InDelta(t, float32(1), v[1], 1e-6)
}

func TestDeleteRemovesFromVectorTableAndIndex(t *testing.T) {
	c := newTestCollection(t, 3)
	ctx := context.Background()
	require.NoError(t, c.Insert(ctx, "x", []float32{1, 0, 0}, InsertOptions{}))
	require.NoError(t, c.Delete("x"))

	_, _, err := c.Get("x")
	assert.Error(t, err)
	assert.False(t, c.hnswIdx.Exists("x"))
}

func TestDimensionMismatchRejectedByDefault(t *testing.T) {
	c := newTestCollection(t, 4)
	ctx := context.Background()
	err := c.Insert(ctx, "x", []float32{1, 0, 0}, InsertOptions{})
	assert.Error(t, err)
}

func TestZeroVectorRejectedForCosine(t *testing.T) {
	c := newTestCollection(t, 3)
	ctx := context.Background()
	err := c.Insert(ctx, "x", []float32{0, 0, 0}, InsertOptions{})
	assert.Error(t, err)
}

func TestSearchFilterOnlyReturnsMatching(t *testing.T) {
	c := newTestCollection(t, 3)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		lang := "fr"
		if i%5 == 0 {
			lang = "en"
		}
		id := string(rune('a' + i))
		require.NoError(t, c.Insert(ctx, id, []float32{float32(i), 1, 0}, InsertOptions{
			Payload: map[string]any{"lang": lang},
		}))
	}
	filter := func(p map[string]any) bool { return p["lang"] == "en" }
	hits, _, err := c.Search(ctx, []float32{0, 1, 0}, 4, filter)
	require.NoError(t, err)
	for _, h := range hits {
		assert.Equal(t, "en", h.Payload["lang"])
	}
}

func TestFilterExpressionEvaluatesComparisons(t *testing.T) {
	expr := &FilterExpression{
		Bool: BoolAnd,
		Children: []*FilterExpression{
			{Field: "lang", Op: OpEQ, Value: "en"},
			{Field: "year", Op: OpGE, Value: float64(2020)},
		},
	}
	f := expr.Compile()
	assert.True(t, f(map[string]any{"lang": "en", "year": 2021.0}))
	assert.False(t, f(map[string]any{"lang": "en", "year": 2019.0}))
	assert.False(t, f(map[string]any{"lang": "fr", "year": 2021.0}))

	// coercion: stored as string "2021", filter value is float64.
	assert.True(t, f(map[string]any{"lang": "en", "year": "2021"}))
}

func TestInsertTextDedupSkipsEmbedding(t *testing.T) {
	c := newTestCollectionWithText(t)
	ctx := context.Background()

	id1, err := c.InsertText(ctx, "doc1", "the quick brown fox", InsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, "doc1", id1)

	returned, err := c.InsertText(ctx, "doc2", "the quick brown fox", InsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, "doc1", returned, "dedup should return the first id that embedded this content")

	_, _, err = c.Get("doc2")
	assert.Error(t, err, "doc2 should never have been inserted under DedupSkip")
}

func TestSearchTextRoundTrip(t *testing.T) {
	c := newTestCollectionWithText(t)
	ctx := context.Background()
	_, err := c.InsertText(ctx, "doc1", "vectors databases search engine", InsertOptions{})
	require.NoError(t, err)

	hits, _, err := c.SearchText(ctx, "vectors databases search engine", 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc1", hits[0].ID)
}

func TestBatchInsertReportsPerItemErrors(t *testing.T) {
	c := newTestCollection(t, 3)
	items := []BatchItem{
		{ID: "a", Vector: []float32{1, 0, 0}},
		{ID: "b", Vector: []float32{0, 0}}, // wrong dimension
		{ID: "c", Vector: []float32{0, 1, 0}},
	}
	results := c.BatchInsert(context.Background(), items, false)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
}

func TestBatchInsertTextEmbedsAndInsertsAll(t *testing.T) {
	c := newTestCollectionWithText(t)
	items := []BatchTextItem{
		{ID: "a", Text: "red fox jumps"},
		{ID: "b", Text: "blue whale swims"},
		{ID: "c", Text: "green frog hops"},
	}
	results := c.BatchInsertText(context.Background(), items, false)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
	for _, id := range []string{"a", "b", "c"} {
		_, _, err := c.Get(id)
		assert.NoError(t, err)
	}
}

func TestStatsReflectsLiveCount(t *testing.T) {
	c := newTestCollection(t, 3)
	ctx := context.Background()
	require.NoError(t, c.Insert(ctx, "a", []float32{1, 0, 0}, InsertOptions{}))
	require.NoError(t, c.Insert(ctx, "b", []float32{0, 1, 0}, InsertOptions{}))
	require.NoError(t, c.Delete("a"))

	s := c.Stats()
	assert.Equal(t, 1, s.VectorCount)
	assert.True(t, s.Dirty)
}
