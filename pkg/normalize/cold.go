package normalize

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// coldTier is the on-disk Zstandard-compressed blob store: ~5ms access.
// Each entry is one file, sharded into 256 subdirectories by the first hash
// byte to keep any single directory small.
type coldTier struct {
	mu      sync.Mutex
	dir     string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func openColdTier(dir string) (*coldTier, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &coldTier{dir: dir, encoder: enc, decoder: dec}, nil
}

func (c *coldTier) pathFor(hash [32]byte) string {
	shard := hex.EncodeToString(hash[:1])
	name := hex.EncodeToString(hash[:])
	return filepath.Join(c.dir, shard, name+".zst")
}

func (c *coldTier) get(hash [32]byte) (string, bool) {
	path := c.pathFor(hash)
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	c.mu.Lock()
	decoded, err := c.decoder.DecodeAll(raw, nil)
	c.mu.Unlock()
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

func (c *coldTier) put(hash [32]byte, text string) error {
	path := c.pathFor(hash)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	c.mu.Lock()
	compressed := c.encoder.EncodeAll([]byte(text), nil)
	c.mu.Unlock()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (c *coldTier) close() error {
	c.encoder.Close()
	c.decoder.Close()
	return nil
}
