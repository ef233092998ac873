package archive

import (
	"bytes"

	"github.com/fxamacker/cbor/v2"

	"github.com/liliang-cn/vectorizer/pkg/collection"
	"github.com/liliang-cn/vectorizer/pkg/embedding"
	"github.com/liliang-cn/vectorizer/pkg/quantization"
	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

// vectorsSection is the CBOR body of the "vectors" section: the entire
// vector table as a flat list (spec.md §3 "serialized vector table").
type vectorsSection struct {
	Rows []collection.Row `cbor:"rows"`
}

func marshalVectors(c *collection.Collection) ([]byte, error) {
	var rows []collection.Row
	for row := range c.ExportRows() {
		rows = append(rows, row)
	}
	return cbor.Marshal(vectorsSection{Rows: rows})
}

func unmarshalVectors(data []byte) ([]collection.Row, error) {
	var sec vectorsSection
	if err := cbor.Unmarshal(data, &sec); err != nil {
		return nil, vzerr.Wrap("archive.unmarshal_vectors", vzerr.KindCorruptArchive, err)
	}
	return sec.Rows, nil
}

// quantSection carries at most one populated quantizer, discriminated by
// Kind. CBOR-marshaling the concrete struct directly (rather than going
// through ProductQuantizer's own SerializeCodebooks byte format) keeps all
// three schemes on one uniform encoding, since every field on
// ScalarQuantizer/BinaryQuantizer/ProductQuantizer is already exported.
type quantSection struct {
	Kind    string                        `cbor:"kind"`
	Scalar  *quantization.ScalarQuantizer `cbor:"scalar,omitempty"`
	Binary  *quantization.BinaryQuantizer `cbor:"binary,omitempty"`
	Product *quantization.ProductQuantizer `cbor:"product,omitempty"`
}

func marshalQuant(codec quantization.Codec) ([]byte, error) {
	sec := quantSection{Kind: "none"}
	switch q := codec.(type) {
	case *quantization.ScalarQuantizer:
		sec.Kind, sec.Scalar = "scalar", q
	case *quantization.BinaryQuantizer:
		sec.Kind, sec.Binary = "binary", q
	case *quantization.ProductQuantizer:
		sec.Kind, sec.Product = "product", q
	}
	return cbor.Marshal(sec)
}

func unmarshalQuant(data []byte) (quantization.Codec, error) {
	var sec quantSection
	if err := cbor.Unmarshal(data, &sec); err != nil {
		return nil, vzerr.Wrap("archive.unmarshal_quant", vzerr.KindCorruptArchive, err)
	}
	switch sec.Kind {
	case "scalar":
		return sec.Scalar, nil
	case "binary":
		return sec.Binary, nil
	case "product":
		return sec.Product, nil
	default:
		return nil, nil
	}
}

// vocabSection holds a text embedding provider's serialized state
// (spec.md §3 "serialized embedding vocabulary").
type vocabSection struct {
	Kind string `cbor:"kind"`
	Data []byte `cbor:"data"`
}

func marshalVocab(p embedding.Provider) ([]byte, error) {
	if p == nil {
		return cbor.Marshal(vocabSection{Kind: "none"})
	}
	data, err := p.Serialize()
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(vocabSection{Kind: p.Kind(), Data: data})
}

// newEmbedderByKind reconstructs the zero-value provider matching a
// vocabulary section's Kind, ready for Deserialize to restore its state.
// Dimension is irrelevant here: Deserialize overwrites whatever shape the
// constructor guessed (mirrors BagOfWords.Deserialize's own byte-level
// dim recovery).
func newEmbedderByKind(kind string) embedding.Provider {
	switch kind {
	case "bag_of_words":
		return embedding.NewBagOfWords(0)
	case "tfidf":
		return embedding.NewTfIdf(0)
	case "bm25":
		return embedding.NewBm25(0)
	default:
		return nil
	}
}

func unmarshalVocab(data []byte) (embedding.Provider, error) {
	var sec vocabSection
	if err := cbor.Unmarshal(data, &sec); err != nil {
		return nil, vzerr.Wrap("archive.unmarshal_vocab", vzerr.KindCorruptArchive, err)
	}
	if sec.Kind == "none" || sec.Kind == "" {
		return nil, nil
	}
	p := newEmbedderByKind(sec.Kind)
	if p == nil {
		return nil, vzerr.New("archive.unmarshal_vocab", vzerr.KindCorruptArchive)
	}
	if err := p.Deserialize(sec.Data); err != nil {
		return nil, vzerr.Wrap("archive.unmarshal_vocab", vzerr.KindCorruptArchive, err)
	}
	return p, nil
}

// dedupEntry is one row of the content-hash dedup index (spec.md §4.3
// insert_text dedup). Stored as a slice rather than a CBOR map since
// [32]byte isn't a valid CBOR map key type in fxamacker/cbor's default
// mode.
type dedupEntry struct {
	Hash [32]byte `cbor:"hash"`
	ID   string   `cbor:"id"`
}

func marshalDedup(index map[[32]byte]string) ([]byte, error) {
	entries := make([]dedupEntry, 0, len(index))
	for hash, id := range index {
		entries = append(entries, dedupEntry{Hash: hash, ID: id})
	}
	return cbor.Marshal(entries)
}

func unmarshalDedup(data []byte) (map[[32]byte]string, error) {
	var entries []dedupEntry
	if err := cbor.Unmarshal(data, &entries); err != nil {
		return nil, vzerr.Wrap("archive.unmarshal_dedup", vzerr.KindCorruptArchive, err)
	}
	out := make(map[[32]byte]string, len(entries))
	for _, e := range entries {
		out[e.Hash] = e.ID
	}
	return out, nil
}

func marshalHNSW(c *collection.Collection) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.HNSW().Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
