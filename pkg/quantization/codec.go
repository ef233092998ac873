package quantization

import "github.com/liliang-cn/vectorizer/pkg/vzerr"

// Codec is the contract the collection and HNSW layers use against any
// quantization scheme: scalar, product or binary (spec.md §4.5). A
// Collection calls Fit once, when its fitting sample is full. Calling Fit
// again retrains the codec in place; codes produced before are not
// re-encoded.
type Codec interface {
	// Fit trains the codec from a sample of vectors (the "fitting set").
	Fit(vectors [][]float32) error
	// Fitted reports whether Fit has completed.
	Fitted() bool
	// Encode compresses a vector into its quantized code.
	Encode(vector []float32) ([]byte, error)
	// Decode reconstructs an approximate f32 vector from a code.
	Decode(code []byte) ([]float32, error)
	// AsymmetricDistance computes the distance between an uncompressed
	// query and a compressed database code. The scalar codec decodes the
	// code in full to do so.
	AsymmetricDistance(query []float32, code []byte) (float32, error)
	// CompressionRatio reports original-size / compressed-size.
	CompressionRatio() float32
	// Kind identifies the concrete scheme, for archive metadata.
	Kind() string
}

// notFittedError builds the QuantizationNotFitted error that the scalar
// and binary AsymmetricDistance return before Fit. Encode, Decode and the
// product codec's AsymmetricDistance return a plain "quantizer not
// trained" error instead, which carries no vzerr kind.
func notFittedError(op string) error {
	return vzerr.New(op, vzerr.KindQuantizationNotFitted)
}
