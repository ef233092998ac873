package archive

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/liliang-cn/vectorizer/pkg/collection"
	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

// WriteOptions controls how an archive is encoded.
type WriteOptions struct {
	// Compress enables per-section zstd compression (spec.md §3 "each
	// section is independently compressed"). The zero value writes
	// sections uncompressed; Manager sets it to true unless SetCompress
	// turns it off.
	Compress bool
}

// namedSection is a section's raw (possibly already compressed) bytes
// paired with the flag the catalog needs to record.
type namedSection struct {
	name       string
	data       []byte
	compressed bool
}

// WriteArchive snapshots c and atomically writes it to path (spec.md §4.6:
// "writes go to collection.vecdb.tmp; on completion, an fsync is issued,
// then the file is renamed over collection.vecdb... parent directory is
// also fsynced").
func WriteArchive(path string, c *collection.Collection, opts WriteOptions) error {
	sections, err := buildSections(c, opts)
	if err != nil {
		return err
	}

	body, catalog := layoutSections(sections)
	headerBytes, err := encodeHeader(c, catalog)
	if err != nil {
		return err
	}

	preamble := make([]byte, 16)
	copy(preamble[0:8], Magic)
	binary.LittleEndian.PutUint32(preamble[8:12], FormatVersion)
	compressionID := CompressionNone
	if opts.Compress {
		compressionID = CompressionZstd
	}
	binary.LittleEndian.PutUint32(preamble[12:16], compressionID)

	payload := append(append(append([]byte{}, preamble...), headerBytes...), body...)
	sum := blake3.Sum256(payload)
	checksum := sum[:]

	return atomicWrite(path, func(f *os.File) error {
		for _, chunk := range [][]byte{payload, checksum} {
			if _, err := f.Write(chunk); err != nil {
				return vzerr.Wrap("archive.write", vzerr.KindIoFailure, err)
			}
		}
		return nil
	})
}

func buildSections(c *collection.Collection, opts WriteOptions) ([]namedSection, error) {
	raw := make(map[string][]byte, 5)
	var err error
	if raw[sectionVectors], err = marshalVectors(c); err != nil {
		return nil, vzerr.Wrap("archive.write", vzerr.KindIoFailure, err)
	}
	if raw[sectionHNSW], err = marshalHNSW(c); err != nil {
		return nil, vzerr.Wrap("archive.write", vzerr.KindIoFailure, err)
	}
	if raw[sectionQuant], err = marshalQuant(c.Codec()); err != nil {
		return nil, vzerr.Wrap("archive.write", vzerr.KindIoFailure, err)
	}
	if raw[sectionVocab], err = marshalVocab(c.Embedder()); err != nil {
		return nil, vzerr.Wrap("archive.write", vzerr.KindIoFailure, err)
	}
	if raw[sectionDedup], err = marshalDedup(c.ContentIndex()); err != nil {
		return nil, vzerr.Wrap("archive.write", vzerr.KindIoFailure, err)
	}

	order := []string{sectionVectors, sectionHNSW, sectionQuant, sectionVocab, sectionDedup}
	sections := make([]namedSection, 0, len(order))
	var enc *zstd.Encoder
	if opts.Compress {
		enc, err = zstd.NewWriter(nil)
		if err != nil {
			return nil, vzerr.Wrap("archive.write", vzerr.KindIoFailure, err)
		}
		defer enc.Close()
	}
	for _, name := range order {
		data := raw[name]
		if opts.Compress {
			data = enc.EncodeAll(raw[name], nil)
		}
		sections = append(sections, namedSection{name: name, data: data, compressed: opts.Compress})
	}
	return sections, nil
}

// layoutSections concatenates section bytes in a fixed order and returns
// their bare lengths/flags; offsets are filled in once the header size is
// known (see encodeHeader's fixed-point loop).
func layoutSections(sections []namedSection) (body []byte, catalog []SectionRef) {
	catalog = make([]SectionRef, len(sections))
	for i, s := range sections {
		catalog[i] = SectionRef{Name: s.name, Length: uint64(len(s.data)), Compressed: s.compressed}
		body = append(body, s.data...)
	}
	return body, catalog
}

// encodeHeader assigns catalog offsets and marshals the CBOR header,
// iterating to a fixed point: offsets depend on the header's own encoded
// length (bytes 16..dataStart), and CBOR's variable-length integers mean
// that length can itself shift by a byte or two as offsets grow. Converges
// in one or two passes for any realistic collection; capped to guard
// against a pathological oscillation.
func encodeHeader(c *collection.Collection, catalog []SectionRef) ([]byte, error) {
	headerLen := 0
	savedAt := savedAtNow()
	for attempt := 0; attempt < 8; attempt++ {
		dataStart := uint64(16 + headerLen)
		offset := dataStart
		sized := make([]SectionRef, len(catalog))
		for i, ref := range catalog {
			ref.Offset = offset
			sized[i] = ref
			offset += ref.Length
		}
		hdr := Header{
			Config:    c.Config(),
			CreatedAt: c.CreatedAt(),
			SavedAt:   savedAt,
			Catalog:   sized,
		}
		buf, err := cbor.Marshal(hdr)
		if err != nil {
			return nil, vzerr.Wrap("archive.write", vzerr.KindIoFailure, err)
		}
		if len(buf) == headerLen {
			return buf, nil
		}
		headerLen = len(buf)
	}
	return nil, vzerr.New("archive.write", vzerr.KindIoFailure)
}

// savedAtNow is split out so tests can observe it is called exactly once
// per write without depending on wall-clock time elsewhere.
var savedAtNow = time.Now

// atomicWrite writes via a .tmp sibling, fsyncs it, renames it over path,
// then fsyncs the parent directory (spec.md §4.6).
func atomicWrite(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return vzerr.Wrap("archive.write", vzerr.KindIoFailure, err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return vzerr.Wrap("archive.write", vzerr.KindIoFailure, err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return vzerr.Wrap("archive.write", vzerr.KindIoFailure, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return vzerr.Wrap("archive.write", vzerr.KindIoFailure, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return vzerr.Wrap("archive.write", vzerr.KindIoFailure, err)
	}
	if dirF, err := os.Open(dir); err == nil {
		_ = dirF.Sync()
		_ = dirF.Close()
	}
	return nil
}
