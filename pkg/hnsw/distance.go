package hnsw

import "math"

// Metric selects the distance/similarity semantics for a collection
// (spec.md §3, §4.2). Scores are always "larger is better" to callers.
type Metric int

const (
	Cosine Metric = iota
	Euclidean
	DotProduct
)

func (m Metric) String() string {
	switch m {
	case Cosine:
		return "cosine"
	case Euclidean:
		return "euclidean"
	case DotProduct:
		return "dot_product"
	default:
		return "unknown"
	}
}

// Score computes the caller-facing score for a and b under m: cosine
// similarity, negative Euclidean distance, or raw dot product. All three
// increase as vectors get closer.
func (m Metric) Score(a, b []float32) float32 {
	switch m {
	case Euclidean:
		return -euclidean(a, b)
	case DotProduct:
		return dot(a, b)
	default: // Cosine: vectors are pre-normalized at insertion, so dot == cosine similarity.
		return dot(a, b)
	}
}

// searchDistance is the internal "smaller is better" quantity the graph
// search routines operate on; it is the negation of Score.
func (m Metric) searchDistance(a, b []float32) float32 {
	return -m.Score(a, b)
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func euclidean(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

// L2Normalize scales v to unit length in place. Cosine collections
// normalize every vector at insertion (spec.md §3 Vector invariants).
func L2Normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(float64(sum)))
	for i := range v {
		v[i] /= norm
	}
}

// L2Norm returns the Euclidean length of v.
func L2Norm(v []float32) float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	return float32(math.Sqrt(float64(sum)))
}
