package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBagOfWordsDeterministic(t *testing.T) {
	b := NewBagOfWords(64)
	v1, err := b.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	v2, err := b.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.Len(t, v1, 64)
}

func TestTfIdfFrozenAfterFit(t *testing.T) {
	p := NewTfIdf(0)
	require.False(t, p.Fitted())
	ctx := context.Background()
	corpus := []string{"cats and dogs", "dogs and birds", "birds fly high"}
	require.NoError(t, p.Fit(ctx, corpus))
	require.True(t, p.Fitted())

	dim := p.Dimension()
	v, err := p.Embed(ctx, "cats and dogs")
	require.NoError(t, err)
	require.Len(t, v, dim)

	// Fitting again with a different corpus changes the vocabulary size,
	// demonstrating the caller must not re-fit mid-lifetime without
	// invalidating the index (spec.md §4.4).
	require.NoError(t, p.Fit(ctx, []string{"only one term"}))
	require.NotEqual(t, dim, p.Dimension())
}

func TestTfIdfSerializeRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewTfIdf(0)
	require.NoError(t, p.Fit(ctx, []string{"alpha beta", "beta gamma"}))
	data, err := p.Serialize()
	require.NoError(t, err)

	p2 := NewTfIdf(0)
	require.NoError(t, p2.Deserialize(data))
	v1, _ := p.Embed(ctx, "alpha beta gamma")
	v2, _ := p2.Embed(ctx, "alpha beta gamma")
	require.Equal(t, v1, v2)
}

func TestBm25NotFittedBeforeFit(t *testing.T) {
	p := NewBm25(0)
	_, err := p.Embed(context.Background(), "text")
	require.ErrorIs(t, err, ErrNotFitted)
}

func TestBm25ScoresKnownTermsHigher(t *testing.T) {
	ctx := context.Background()
	p := NewBm25(0)
	require.NoError(t, p.Fit(ctx, []string{"rare unique term", "common common common", "common stuff"}))
	v, err := p.Embed(ctx, "rare unique term")
	require.NoError(t, err)
	require.Len(t, v, p.Dimension())
	require.Greater(t, v[p.vocab["rare"]], v[p.vocab["common"]])
}
