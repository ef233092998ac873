// Package embedding implements the pluggable text->vector Provider
// contract (spec.md §4.4) and its BagOfWords, TF-IDF and BM25 variants.
package embedding

import (
	"context"
	"errors"
)

// ErrNotFitted is returned by stateful providers when embed/serialize is
// called before Fit.
var ErrNotFitted = errors.New("embedding: provider not fitted")

// Provider is the abstract text embedding capability the core consumes.
// Stateful variants (TfIdf, Bm25) must be referentially transparent within
// a collection's lifetime: once Fit is called the vocabulary is frozen.
type Provider interface {
	// Dimension returns the length of vectors this provider produces.
	Dimension() int

	// Embed converts normalized_text into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Fit trains vocabulary/statistics from a corpus. Stateless providers
	// (BagOfWords with a fixed hash space) may treat this as a no-op.
	Fit(ctx context.Context, corpus []string) error

	// Fitted reports whether Fit has completed successfully.
	Fitted() bool

	// Serialize persists provider state (vocabulary, idf weights, ...).
	Serialize() ([]byte, error)

	// Deserialize restores provider state produced by Serialize.
	Deserialize(data []byte) error

	// Kind identifies the concrete variant, for archive metadata.
	Kind() string
}
