package collection

import (
	"math"

	"github.com/liliang-cn/vectorizer/pkg/hnsw"
	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

// DimensionAdaptPolicy decides what happens when an incoming vector's
// length does not match the collection's configured dimension. This
// supplements spec.md §4.2's bare "fails with DimensionMismatch" with the
// adaptation behaviors the teacher's dimension adapter offers, for
// callers that would rather coerce than reject (spec.md §9 is silent on
// this but it is a direct superset of the stated contract: Reject is the
// literal spec behavior and remains the default).
type DimensionAdaptPolicy int

const (
	// Reject returns DimensionMismatch, the literal spec.md behavior.
	Reject DimensionAdaptPolicy = iota
	// Truncate drops trailing components (or zero-pads if shorter).
	Truncate
	// Pad zero-pads shorter vectors (or truncates if longer).
	Pad
	// SmartAdapt truncates by dropping the lowest-magnitude components
	// and pads with low-magnitude noise, preserving more signal than a
	// bare truncate/pad for vectors whose energy isn't uniform.
	SmartAdapt
)

func adaptDimension(policy DimensionAdaptPolicy, vector []float32, target int) ([]float32, error) {
	if len(vector) == target {
		return vector, nil
	}
	switch policy {
	case Reject:
		return nil, vzerr.New("collection.adapt_dimension", vzerr.KindDimensionMismatch)
	case Truncate:
		return resize(vector, target, false), nil
	case Pad:
		return resize(vector, target, false), nil
	case SmartAdapt:
		return smartAdapt(vector, target), nil
	default:
		return nil, vzerr.New("collection.adapt_dimension", vzerr.KindInvalidConfig)
	}
}

func resize(vector []float32, target int, normalizeOut bool) []float32 {
	out := make([]float32, target)
	copy(out, vector)
	if normalizeOut {
		hnsw.L2Normalize(out)
	}
	return out
}

// smartAdapt truncates by keeping the highest-magnitude components (in
// original order) when shrinking, and pads with small deterministic noise
// derived from the existing components when growing.
func smartAdapt(vector []float32, target int) []float32 {
	if target < len(vector) {
		type idxVal struct {
			i   int
			abs float32
		}
		ranked := make([]idxVal, len(vector))
		for i, v := range vector {
			a := v
			if a < 0 {
				a = -a
			}
			ranked[i] = idxVal{i, a}
		}
		for i := 1; i < len(ranked); i++ {
			for j := i; j > 0 && ranked[j].abs > ranked[j-1].abs; j-- {
				ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
			}
		}
		keep := make(map[int]bool, target)
		for _, r := range ranked[:target] {
			keep[r.i] = true
		}
		out := make([]float32, 0, target)
		for i, v := range vector {
			if keep[i] {
				out = append(out, v)
			}
		}
		return out
	}

	out := make([]float32, target)
	copy(out, vector)
	seed := float32(0.0)
	for _, v := range vector {
		seed += v
	}
	for i := len(vector); i < target; i++ {
		out[i] = float32(math.Mod(float64(seed)*0.618+float64(i), 1.0)) * 1e-4
	}
	return out
}
