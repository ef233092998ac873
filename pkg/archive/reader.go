package archive

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/liliang-cn/vectorizer/pkg/collection"
	"github.com/liliang-cn/vectorizer/pkg/corelog"
	"github.com/liliang-cn/vectorizer/pkg/embedding"
	"github.com/liliang-cn/vectorizer/pkg/normalize"
	"github.com/liliang-cn/vectorizer/pkg/quantization"
	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

// Snapshot is the fully decoded contents of an archive, ready to be
// loaded back into a *collection.Collection.
type Snapshot struct {
	Header  Header
	Rows    []collection.Row
	HNSW    []byte
	Codec   quantization.Codec
	Vocab   embedding.Provider
	Content map[[32]byte]string
}

// validated reads path, checks the magic/version preamble and trailing
// checksum, and decodes the header. Returns the whole file's bytes (so
// callers can slice sections by catalog offset) alongside the decoded
// header and whether sections were written zstd-compressed.
func validated(path string) (data []byte, hdr Header, compressed bool, err error) {
	data, err = os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Header{}, false, vzerr.New("archive.read", vzerr.KindNotFound)
		}
		return nil, Header{}, false, vzerr.Wrap("archive.read", vzerr.KindIoFailure, err)
	}

	if len(data) < 16+ChecksumSize {
		return nil, Header{}, false, vzerr.New("archive.read", vzerr.KindCorruptArchive)
	}
	if string(data[0:8]) != Magic {
		return nil, Header{}, false, vzerr.New("archive.read", vzerr.KindCorruptArchive)
	}
	version := binary.LittleEndian.Uint32(data[8:12])
	if version != FormatVersion {
		return nil, Header{}, false, vzerr.New("archive.read", vzerr.KindCorruptArchive)
	}
	compressed = binary.LittleEndian.Uint32(data[12:16]) == CompressionZstd

	body := data[:len(data)-ChecksumSize]
	storedSum := data[len(data)-ChecksumSize:]
	computedSum := blake3.Sum256(body)
	if !bytes.Equal(storedSum, computedSum[:]) {
		return nil, Header{}, false, vzerr.New("archive.read", vzerr.KindCorruptArchive)
	}

	if _, err := cbor.UnmarshalFirst(data[16:], &hdr); err != nil {
		return nil, Header{}, false, vzerr.Wrap("archive.read", vzerr.KindCorruptArchive, err)
	}
	return data, hdr, compressed, nil
}

// ReadHeader validates an archive's checksum and decodes only its header
// and catalog, without decompressing any section. Used by `storage info`,
// which only needs config/catalog metadata.
func ReadHeader(path string) (Header, error) {
	_, hdr, _, err := validated(path)
	return hdr, err
}

// ReadArchive validates and decodes the archive at path, returning its
// sections unattached to any particular Collection instance. Checksum
// failure and structural corruption both surface as KindCorruptArchive
// (spec.md §7 "CorruptArchive: checksum / header mismatch").
func ReadArchive(path string) (*Snapshot, error) {
	data, hdr, compressed, err := validated(path)
	if err != nil {
		return nil, err
	}

	var dec *zstd.Decoder
	if compressed {
		dec, err = zstd.NewReader(nil)
		if err != nil {
			return nil, vzerr.Wrap("archive.read", vzerr.KindIoFailure, err)
		}
		defer dec.Close()
	}

	raw := make(map[string][]byte, len(hdr.Catalog))
	for _, ref := range hdr.Catalog {
		end := ref.Offset + ref.Length
		if end > uint64(len(data)) || ref.Offset > end {
			return nil, vzerr.New("archive.read", vzerr.KindCorruptArchive)
		}
		section := data[ref.Offset:end]
		if ref.Compressed {
			section, err = dec.DecodeAll(section, nil)
			if err != nil {
				return nil, vzerr.Wrap("archive.read", vzerr.KindCorruptArchive, err)
			}
		}
		raw[ref.Name] = section
	}

	rows, err := unmarshalVectors(raw[sectionVectors])
	if err != nil {
		return nil, err
	}
	codec, err := unmarshalQuant(raw[sectionQuant])
	if err != nil {
		return nil, err
	}
	vocab, err := unmarshalVocab(raw[sectionVocab])
	if err != nil {
		return nil, err
	}
	content, err := unmarshalDedup(raw[sectionDedup])
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Header:  hdr,
		Rows:    rows,
		HNSW:    raw[sectionHNSW],
		Codec:   codec,
		Vocab:   vocab,
		Content: content,
	}, nil
}

// Restore reconstructs a live Collection from a decoded snapshot.
// normalizer, if the collection used insert_text, must be supplied by the
// caller: the normalization cache is process-wide and outlives any single
// archive, so it is never itself archived (spec.md §4.3 "Ownership").
// log may be nil.
func Restore(snap *Snapshot, normalizer *normalize.Pipeline, log corelog.Logger) (*collection.Collection, error) {
	c := collection.New(snap.Header.Config, snap.Vocab, normalizer, log)
	if err := c.HNSW().Load(bytes.NewReader(snap.HNSW)); err != nil {
		return nil, vzerr.Wrap("archive.restore", vzerr.KindCorruptArchive, err)
	}
	if snap.Codec != nil {
		c.SetCodec(snap.Codec)
	}
	c.LoadRows(snap.Rows)
	c.LoadContentIndex(snap.Content)
	c.SetCreatedAt(snap.Header.CreatedAt)
	c.SetLastSnapshot(snap.Header.SavedAt)
	c.ClearDirty()
	return c, nil
}
