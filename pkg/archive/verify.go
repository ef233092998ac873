package archive

import (
	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

// Verify validates name's current archive without loading it into a
// Collection: checksum, preamble and header all have to decode cleanly.
func (m *Manager) Verify(name string) error {
	_, err := ReadArchive(m.ArchivePath(name))
	return err
}

// Repair replaces a corrupt current archive with the newest snapshot that
// still reads back cleanly, rewriting it in place. In-memory state is never
// rolled back by Repair itself; callers restart from the returned snapshot
// id (spec.md §7 "Archive corruption never rolls back in-memory state — the
// most recent good snapshot is offered instead").
func (m *Manager) Repair(name string) (string, error) {
	snaps, err := m.ListSnapshots(name)
	if err != nil {
		return "", err
	}
	if len(snaps) == 0 {
		return "", vzerr.New("archive.repair", vzerr.KindNotFound)
	}

	var lastErr error
	for _, s := range snaps {
		snap, err := ReadArchive(s.Path)
		if err != nil {
			lastErr = err
			continue
		}
		if err := rewriteFromSnapshot(m.ArchivePath(name), snap, m.compress); err != nil {
			return "", err
		}
		return s.ID, nil
	}
	if lastErr == nil {
		lastErr = vzerr.New("archive.repair", vzerr.KindCorruptArchive)
	}
	return "", lastErr
}

// rewriteFromSnapshot restores a Collection from a decoded snapshot just
// long enough to re-serialize it to path, without wiring a normalizer or
// logger: Repair only needs the bytes to round-trip, not a live collection.
func rewriteFromSnapshot(path string, snap *Snapshot, compress bool) error {
	c, err := Restore(snap, nil, nil)
	if err != nil {
		return vzerr.Wrap("archive.repair", vzerr.KindCorruptArchive, err)
	}
	return WriteArchive(path, c, WriteOptions{Compress: compress})
}
