package collection

import (
	"context"

	"github.com/liliang-cn/vectorizer/pkg/hnsw"
	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

// Hit is one ranked search result.
type Hit struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Filter is a predicate over a result's payload, evaluated after HNSW
// produces oversampled candidates (spec.md §4.2 "Filter").
type Filter func(payload map[string]any) bool

// Search runs a k-NN query against stored vectors (spec.md §4.2
// "search").
func (c *Collection) Search(ctx context.Context, query []float32, k int, filter Filter) ([]Hit, bool, error) {
	if c.cfg.Dimension != 0 && len(query) != c.cfg.Dimension {
		adapted, err := adaptDimension(c.cfg.DimensionAdapt, query, c.cfg.Dimension)
		if err != nil {
			return nil, false, err
		}
		query = adapted
	}
	if c.cfg.Metric == hnsw.Cosine {
		q := make([]float32, len(query))
		copy(q, query)
		if hnsw.L2Norm(q) != 0 {
			hnsw.L2Normalize(q)
		}
		query = q
	}

	var graphFilter hnsw.FilterFunc
	if filter != nil {
		graphFilter = func(id string) bool {
			_, payload, err := c.Get(id)
			if err != nil {
				return false
			}
			return filter(payload)
		}
	}

	results, partial, err := c.hnswIdx.Search(ctx, query, k, graphFilter)
	if err != nil {
		return nil, false, err
	}
	return c.toHits(results), partial, nil
}

func (c *Collection) toHits(results []hnsw.Result) []Hit {
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		_, payload, err := c.Get(r.ID)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{ID: r.ID, Score: r.Score, Payload: payload})
	}
	return hits
}

// SearchText normalizes and embeds query_text with the same pipeline and
// provider used at insertion time, then delegates to Search (spec.md
// §4.2 "search_text").
func (c *Collection) SearchText(ctx context.Context, queryText string, k int, filter Filter) ([]Hit, bool, error) {
	if c.normalizer == nil || c.embedder == nil {
		return nil, false, vzerr.New("collection.search_text", vzerr.KindInvalidConfig)
	}
	if c.normalizer.Policy.Version != c.cfg.Normalization.Version || c.normalizer.Policy.Level != c.cfg.Normalization.Level {
		return nil, false, vzerr.New("collection.search_text", vzerr.KindInvalidConfig)
	}
	result := c.normalizer.Process(queryText, "")
	vector, err := c.embedder.Embed(ctx, result.Artifact.NormalizedText)
	if err != nil {
		return nil, false, vzerr.Wrap("collection.search_text", vzerr.KindInvalidVector, err)
	}
	return c.Search(ctx, vector, k, filter)
}

// HybridSearch blends a vector-similarity search with a lexical overlap
// score against each candidate's stored payload text field (supplemented
// feature: spec.md's core is vector-only, but the embedding providers'
// corpus-derived vocabulary makes a cheap lexical re-rank pass natural to
// offer alongside pure ANN search, the way the teacher's reranker.go
// blends multiple signal sources). vectorWeight and textWeight should sum
// to 1; results are re-sorted by the blended score.
func (c *Collection) HybridSearch(ctx context.Context, query []float32, queryText, textField string, k int, vectorWeight, textWeight float32, filter Filter) ([]Hit, bool, error) {
	oversampled := k * 4
	if oversampled < 20 {
		oversampled = 20
	}
	hits, partial, err := c.Search(ctx, query, oversampled, filter)
	if err != nil {
		return nil, false, err
	}
	queryTokens := tokenizeForOverlap(queryText)
	for i := range hits {
		text, _ := hits[i].Payload[textField].(string)
		lexical := jaccardOverlap(queryTokens, tokenizeForOverlap(text))
		hits[i].Score = vectorWeight*hits[i].Score + textWeight*lexical
	}
	sortHitsDescending(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, partial, nil
}

func tokenizeForOverlap(s string) map[string]bool {
	tokens := make(map[string]bool)
	start := -1
	for i, r := range s {
		isWord := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if isWord {
			if start == -1 {
				start = i
			}
		} else if start != -1 {
			tokens[toLower(s[start:i])] = true
			start = -1
		}
	}
	if start != -1 {
		tokens[toLower(s[start:])] = true
	}
	return tokens
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func jaccardOverlap(a, b map[string]bool) float32 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float32(intersection) / float32(union)
}

func sortHitsDescending(hits []Hit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && (hits[j].Score > hits[j-1].Score || (hits[j].Score == hits[j-1].Score && hits[j].ID < hits[j-1].ID)); j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}
