package embedding

import (
	"context"
	"hash/fnv"
)

// BagOfWords is a stateless hashing-trick embedder: each token is hashed
// into one of Dim buckets and counted. It needs no Fit step, so it is
// always "fitted" and never invalidates a collection's index.
type BagOfWords struct {
	dim int
}

// NewBagOfWords returns a BagOfWords embedder with the given bucket count.
func NewBagOfWords(dim int) *BagOfWords {
	if dim <= 0 {
		dim = 256
	}
	return &BagOfWords{dim: dim}
}

func (b *BagOfWords) Dimension() int { return b.dim }
func (b *BagOfWords) Fitted() bool   { return true }
func (b *BagOfWords) Kind() string   { return "bag_of_words" }

func (b *BagOfWords) Fit(ctx context.Context, corpus []string) error { return nil }

func (b *BagOfWords) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, b.dim)
	for _, tok := range tokenize(text) {
		vec[b.bucket(tok)]++
	}
	l2Normalize(vec)
	return vec, nil
}

func (b *BagOfWords) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := b.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (b *BagOfWords) bucket(token string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(b.dim))
}

func (b *BagOfWords) Serialize() ([]byte, error) {
	return []byte{byte(b.dim >> 24), byte(b.dim >> 16), byte(b.dim >> 8), byte(b.dim)}, nil
}

func (b *BagOfWords) Deserialize(data []byte) error {
	if len(data) < 4 {
		return ErrNotFitted
	}
	b.dim = int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
	return nil
}

func l2Normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	norm := sqrt32(sum)
	for i := range v {
		v[i] /= norm
	}
}
