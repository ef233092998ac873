// Package archive implements the compact single-file archive format
// (spec.md §4.6/§3): one `.vecdb` file per collection holding its config,
// vector table, HNSW graph, quantization codec and embedding vocabulary,
// an atomic writer, a retention-bounded snapshot manager, and migration
// from the legacy multi-file layout.
package archive

import (
	"time"

	"github.com/liliang-cn/vectorizer/pkg/collection"
)

// Magic identifies a vecdb archive. Stored verbatim in the first 8 bytes.
const Magic = "VECDB01\x00"

// FormatVersion is bumped whenever the section layout or codec changes in
// a way old readers cannot tolerate.
const FormatVersion uint32 = 1

// Compression algorithm ids, stored as a little-endian u32 at bytes 12-15.
const (
	CompressionNone uint32 = 0
	CompressionZstd uint32 = 1
)

// ChecksumSize is the width of the trailing BLAKE3-class hash.
const ChecksumSize = 32

// Section names. Each is stored independently compressed and referenced
// by the header's catalog.
const (
	sectionVectors = "vectors"
	sectionHNSW    = "hnsw"
	sectionQuant   = "quant"
	sectionVocab   = "vocab"
	sectionDedup   = "dedup"
)

// SectionRef is one catalog entry: where a section lives in the file and
// whether it was compressed before being written.
type SectionRef struct {
	Name       string `cbor:"name"`
	Offset     uint64 `cbor:"offset"`
	Length     uint64 `cbor:"length"`
	Compressed bool   `cbor:"compressed"`
}

// Header is the CBOR-encoded structure written right after the 16-byte
// fixed preamble (spec.md §3 "CBOR-encoded header with collection config
// and catalog").
type Header struct {
	Config    collection.Config `cbor:"config"`
	CreatedAt time.Time         `cbor:"created_at"`
	SavedAt   time.Time         `cbor:"saved_at"`
	Catalog   []SectionRef      `cbor:"catalog"`
}

func (h *Header) section(name string) (SectionRef, bool) {
	for _, s := range h.Catalog {
		if s.Name == name {
			return s, true
		}
	}
	return SectionRef{}, false
}
