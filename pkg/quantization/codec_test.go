package quantization

import (
	"math/rand"
	"testing"

	"github.com/liliang-cn/vectorizer/pkg/vzerr"
	"github.com/stretchr/testify/require"
)

func randomVectors(n, dim int) [][]float32 {
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		for d := range v {
			v[d] = rand.Float32()*2 - 1
		}
		vecs[i] = v
	}
	return vecs
}

func TestCodecFactoryBuildsRequestedScheme(t *testing.T) {
	dim := 16
	for _, cfg := range []Config{
		{Scheme: SchemeScalar, Bits: 8},
		{Scheme: SchemeBinary},
	} {
		codec, err := New(dim, cfg)
		require.NoError(t, err)
		require.Equal(t, cfg.Scheme.String(), codec.Kind())
		require.False(t, codec.Fitted())
	}
}

func TestCodecNotFittedErrorKind(t *testing.T) {
	codec, err := New(8, Config{Scheme: SchemeScalar, Bits: 8})
	require.NoError(t, err)
	_, err = codec.AsymmetricDistance(make([]float32, 8), []byte{0})
	require.Equal(t, vzerr.KindQuantizationNotFitted, vzerr.KindOf(err))
}

func TestScalarCodecAsymmetricDistanceCloseToExact(t *testing.T) {
	dim := 32
	codec, err := New(dim, Config{Scheme: SchemeScalar, Bits: 8})
	require.NoError(t, err)
	training := randomVectors(200, dim)
	require.NoError(t, codec.Fit(training))

	query := training[0]
	code, err := codec.Encode(training[1])
	require.NoError(t, err)
	dist, err := codec.AsymmetricDistance(query, code)
	require.NoError(t, err)
	require.GreaterOrEqual(t, dist, float32(0))

	var exact float32
	for i := range query {
		d := query[i] - training[1][i]
		exact += d * d
	}
	// 8-bit codes over a per-component range of at most 2 err by under
	// 2/255 per component, which bounds the error over 32 components below 1.1.
	require.InDelta(t, exact, dist, 1.1)
}

func TestBinaryCodecRoundTripDistance(t *testing.T) {
	dim := 16
	codec, err := New(dim, Config{Scheme: SchemeBinary})
	require.NoError(t, err)
	require.NoError(t, codec.Fit(randomVectors(50, dim)))

	v := randomVectors(1, dim)[0]
	dist, err := codec.AsymmetricDistance(v, mustEncode(t, codec, v))
	require.NoError(t, err)
	require.Equal(t, float32(0), dist)
}

func mustEncode(t *testing.T, codec Codec, v []float32) []byte {
	t.Helper()
	code, err := codec.Encode(v)
	require.NoError(t, err)
	return code
}
