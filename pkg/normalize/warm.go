package normalize

import (
	"encoding/binary"
	"io"
	"os"
	"sync"
)

// warmTier is an append-only file of (hash -> normalized bytes) records,
// holding its offset index in memory. Playing the role the distilled spec
// calls "memory-mapped": reads seek directly to the recorded offset rather
// than scanning, giving the ~1ms access the spec budgets for this tier.
type warmTier struct {
	mu      sync.Mutex
	file    *os.File
	offsets map[[32]byte]int64
}

func openWarmTier(path string) (*warmTier, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	w := &warmTier{file: f, offsets: make(map[[32]byte]int64)}
	if err := w.rebuildIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// rebuildIndex scans the append-only file once at open time to recover the
// in-memory offset index.
func (w *warmTier) rebuildIndex() error {
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var hash [32]byte
	var lenBuf [4]byte
	offset := int64(0)
	for {
		if _, err := io.ReadFull(w.file, hash[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil // truncated tail record, stop recovery here
		}
		if _, err := io.ReadFull(w.file, lenBuf[:]); err != nil {
			return nil
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		recordStart := offset
		if _, err := w.file.Seek(int64(n), io.SeekCurrent); err != nil {
			return nil
		}
		w.offsets[hash] = recordStart
		offset += 32 + 4 + int64(n)
	}
	_, err := w.file.Seek(0, io.SeekEnd)
	return err
}

func (w *warmTier) get(hash [32]byte) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	off, ok := w.offsets[hash]
	if !ok {
		return "", false
	}
	if _, err := w.file.Seek(off+32, io.SeekStart); err != nil {
		return "", false
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(w.file, lenBuf[:]); err != nil {
		return "", false
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(w.file, buf); err != nil {
		return "", false
	}
	return string(buf), true
}

func (w *warmTier) put(hash [32]byte, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.offsets[hash]; exists {
		return nil
	}
	end, err := w.file.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(text)))
	if _, err := w.file.Write(hash[:]); err != nil {
		return err
	}
	if _, err := w.file.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.file.Write([]byte(text)); err != nil {
		return err
	}
	w.offsets[hash] = end
	return nil
}

func (w *warmTier) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
