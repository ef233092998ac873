package embedding

import (
	"bytes"
	"context"
	"encoding/gob"
	"sort"
	"sync"
)

// TfIdf is a stateful provider whose vocabulary is frozen after Fit.
// Dimension equals vocabulary size; components are term-frequency times
// inverse-document-frequency, L2-normalized.
type TfIdf struct {
	mu      sync.RWMutex
	vocab   map[string]int // term -> dimension index
	idf     []float32
	fitted  bool
	maxTerm int
}

// NewTfIdf returns an unfitted TF-IDF provider. maxTerms bounds vocabulary
// size (most frequent terms win); 0 means unbounded.
func NewTfIdf(maxTerms int) *TfIdf {
	return &TfIdf{maxTerm: maxTerms}
}

func (t *TfIdf) Kind() string { return "tfidf" }

func (t *TfIdf) Dimension() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.vocab)
}

func (t *TfIdf) Fitted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fitted
}

func (t *TfIdf) Fit(ctx context.Context, corpus []string) error {
	docFreq := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]bool)
		for _, tok := range tokenize(doc) {
			if !seen[tok] {
				docFreq[tok]++
				seen[tok] = true
			}
		}
	}

	type termCount struct {
		term string
		df   int
	}
	terms := make([]termCount, 0, len(docFreq))
	for term, df := range docFreq {
		terms = append(terms, termCount{term, df})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].df != terms[j].df {
			return terms[i].df > terms[j].df
		}
		return terms[i].term < terms[j].term
	})
	if t.maxTerm > 0 && len(terms) > t.maxTerm {
		terms = terms[:t.maxTerm]
	}

	n := float32(len(corpus))
	if n == 0 {
		n = 1
	}
	vocab := make(map[string]int, len(terms))
	idf := make([]float32, len(terms))
	for i, tc := range terms {
		vocab[tc.term] = i
		idf[i] = log32(n/(1+float32(tc.df))) + 1
	}

	t.mu.Lock()
	t.vocab = vocab
	t.idf = idf
	t.fitted = true
	t.mu.Unlock()
	return nil
}

func (t *TfIdf) Embed(ctx context.Context, text string) ([]float32, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.fitted {
		return nil, ErrNotFitted
	}
	counts := termCounts(tokenize(text))
	vec := make([]float32, len(t.vocab))
	for term, c := range counts {
		idx, ok := t.vocab[term]
		if !ok {
			continue
		}
		vec[idx] = float32(c) * t.idf[idx]
	}
	l2Normalize(vec)
	return vec, nil
}

func (t *TfIdf) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := t.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type tfidfState struct {
	Vocab map[string]int
	Idf   []float32
}

func (t *TfIdf) Serialize() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.fitted {
		return nil, ErrNotFitted
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(tfidfState{Vocab: t.vocab, Idf: t.idf}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *TfIdf) Deserialize(data []byte) error {
	var state tfidfState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	t.mu.Lock()
	t.vocab = state.Vocab
	t.idf = state.Idf
	t.fitted = true
	t.mu.Unlock()
	return nil
}
