package quantization

import "math"

// This file adapts the teacher's three quantizer implementations
// (scalar_quantization.go, product_quantization.go) onto the Codec
// interface the engine's collection and HNSW layers consume, without
// disturbing their core encode/decode/train algorithms.

func (sq *ScalarQuantizer) Fitted() bool { return sq.Trained }
func (sq *ScalarQuantizer) Kind() string { return "scalar" }

// Fit is the Codec-facing name for the teacher's Train.
func (sq *ScalarQuantizer) Fit(vectors [][]float32) error { return sq.Train(vectors) }

// AsymmetricDistance computes squared Euclidean distance between an f32
// query and a quantized database code by decoding the code on the fly,
// exactly the asymmetric scheme spec.md §4.5 describes for SQ-k.
func (sq *ScalarQuantizer) AsymmetricDistance(query []float32, code []byte) (float32, error) {
	if !sq.Trained {
		return 0, notFittedError("scalar_quantizer.asymmetric_distance")
	}
	decoded, err := sq.Decode(code)
	if err != nil {
		return 0, err
	}
	var sum float32
	for i := range query {
		d := query[i] - decoded[i]
		sum += d * d
	}
	return sum, nil
}

func (bq *BinaryQuantizer) Fitted() bool { return bq.Trained }
func (bq *BinaryQuantizer) Kind() string { return "binary" }
func (bq *BinaryQuantizer) Fit(vectors [][]float32) error { return bq.Train(vectors) }

// AsymmetricDistance binarizes the query against the same thresholds and
// reports Hamming distance as the proxy metric spec.md §4.5 specifies.
func (bq *BinaryQuantizer) AsymmetricDistance(query []float32, code []byte) (float32, error) {
	if !bq.Trained {
		return 0, notFittedError("binary_quantizer.asymmetric_distance")
	}
	queryCode, err := bq.Encode(query)
	if err != nil {
		return 0, err
	}
	return float32(bq.HammingDistance(queryCode, code)), nil
}

func (pq *ProductQuantizer) Fitted() bool { return pq.Trained }
func (pq *ProductQuantizer) Kind() string { return "product" }
func (pq *ProductQuantizer) Fit(vectors [][]float32) error { return pq.Train(vectors) }

// AsymmetricDistance returns the square root of the teacher's
// ComputeDistance, which sums the per-subspace Euclidean distances from
// the query to the code's centroids.
func (pq *ProductQuantizer) AsymmetricDistance(query []float32, code []byte) (float32, error) {
	d, err := pq.ComputeDistance(code, query)
	if err != nil {
		return 0, err
	}
	return float32(math.Sqrt(float64(d))), nil
}

var (
	_ Codec = (*ScalarQuantizer)(nil)
	_ Codec = (*BinaryQuantizer)(nil)
	_ Codec = (*ProductQuantizer)(nil)
)
