package embedding

import (
	"bytes"
	"context"
	"encoding/gob"
	"sort"
	"sync"
)

// Bm25 embeds text as a sparse BM25-weighted term vector over a vocabulary
// frozen at Fit time. k1 and b are the standard BM25 free parameters.
type Bm25 struct {
	mu      sync.RWMutex
	vocab   map[string]int
	idf     []float32
	fitted  bool
	k1      float32
	b       float32
	avgLen  float32
	maxTerm int
}

// NewBm25 returns an unfitted BM25 provider with the conventional
// k1=1.2, b=0.75 defaults.
func NewBm25(maxTerms int) *Bm25 {
	return &Bm25{k1: 1.2, b: 0.75, maxTerm: maxTerms}
}

func (m *Bm25) Kind() string { return "bm25" }

func (m *Bm25) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vocab)
}

func (m *Bm25) Fitted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fitted
}

func (m *Bm25) Fit(ctx context.Context, corpus []string) error {
	docFreq := make(map[string]int)
	totalLen := 0
	for _, doc := range corpus {
		toks := tokenize(doc)
		totalLen += len(toks)
		seen := make(map[string]bool)
		for _, tok := range toks {
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
	if m.maxTerm > 0 && len(terms) > m.maxTerm {
		terms = terms[:m.maxTerm]
	}

	n := float32(len(corpus))
	if n == 0 {
		n = 1
	}
	vocab := make(map[string]int, len(terms))
	idf := make([]float32, len(terms))
	for i, tc := range terms {
		vocab[tc.term] = i
		// BM25 idf with +1 floor to avoid negative weights for very common terms.
		idf[i] = log32(1+(n-float32(tc.df)+0.5)/(float32(tc.df)+0.5))
		if idf[i] < 0 {
			idf[i] = 0
		}
	}

	avg := float32(0)
	if len(corpus) > 0 {
		avg = float32(totalLen) / n
	}

	m.mu.Lock()
	m.vocab = vocab
	m.idf = idf
	m.avgLen = avg
	m.fitted = true
	m.mu.Unlock()
	return nil
}

func (m *Bm25) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.fitted {
		return nil, ErrNotFitted
	}
	toks := tokenize(text)
	counts := termCounts(toks)
	docLen := float32(len(toks))
	avg := m.avgLen
	if avg == 0 {
		avg = 1
	}

	vec := make([]float32, len(m.vocab))
	for term, c := range counts {
		idx, ok := m.vocab[term]
		if !ok {
			continue
		}
		tf := float32(c)
		numer := tf * (m.k1 + 1)
		denom := tf + m.k1*(1-m.b+m.b*docLen/avg)
		vec[idx] = m.idf[idx] * numer / denom
	}
	return vec, nil
}

func (m *Bm25) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type bm25State struct {
	Vocab  map[string]int
	Idf    []float32
	AvgLen float32
	K1     float32
	B      float32
}

func (m *Bm25) Serialize() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.fitted {
		return nil, ErrNotFitted
	}
	var buf bytes.Buffer
	state := bm25State{Vocab: m.vocab, Idf: m.idf, AvgLen: m.avgLen, K1: m.k1, B: m.b}
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Bm25) Deserialize(data []byte) error {
	var state bm25State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	m.mu.Lock()
	m.vocab = state.Vocab
	m.idf = state.Idf
	m.avgLen = state.AvgLen
	m.k1 = state.K1
	m.b = state.B
	m.fitted = true
	m.mu.Unlock()
	return nil
}
