package archive

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/liliang-cn/vectorizer/pkg/collection"
	"github.com/liliang-cn/vectorizer/pkg/corelog"
	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

// RetentionPolicy bounds how many snapshots survive per collection
// (spec.md §4.6 "keep at most max_snapshots (default 48) and discard any
// older than retention_days (default 2). Snapshots are removed
// oldest-first.").
type RetentionPolicy struct {
	MaxSnapshots  int
	RetentionDays int
}

// DefaultRetentionPolicy returns the spec's stated defaults.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{MaxSnapshots: 48, RetentionDays: 2}
}

// Manager owns the on-disk layout under a data root: the current archive
// per collection, its snapshot history, and retention enforcement
// (spec.md §4.6 filesystem layout).
type Manager struct {
	dataRoot  string
	retention RetentionPolicy
	compress  bool
	log       corelog.Logger
}

// NewManager creates a Manager rooted at dataRoot.
func NewManager(dataRoot string, retention RetentionPolicy, log corelog.Logger) *Manager {
	if log == nil {
		log = corelog.Nop()
	}
	if retention.MaxSnapshots <= 0 {
		retention.MaxSnapshots = 48
	}
	if retention.RetentionDays <= 0 {
		retention.RetentionDays = 2
	}
	return &Manager{dataRoot: dataRoot, retention: retention, compress: true, log: log}
}

// SetCompress toggles per-section zstd compression for future writes.
// Enabled by default.
func (m *Manager) SetCompress(v bool) { m.compress = v }

// ArchivePath returns the current archive's path for name.
func (m *Manager) ArchivePath(name string) string {
	return filepath.Join(m.dataRoot, "collections", name+".vecdb")
}

// SnapshotDir returns where name's snapshots live.
func (m *Manager) SnapshotDir(name string) string {
	return filepath.Join(m.dataRoot, "snapshots", name)
}

// PersistFunc returns a collection.PersistFunc that writes name's current
// archive. Suitable for wiring into pkg/store via SetPersistFactory.
func (m *Manager) PersistFunc(name string) collection.PersistFunc {
	return func(ctx context.Context, c *collection.Collection) error {
		return WriteArchive(m.ArchivePath(name), c, WriteOptions{Compress: m.compress})
	}
}

// RemoveArchive deletes name's current archive file, for wiring into
// pkg/store via SetArchiveRemover. Snapshots are left untouched: removing
// a collection's live archive is not the same as discarding its history.
func (m *Manager) RemoveArchive(name string) error {
	err := os.Remove(m.ArchivePath(name))
	if err != nil && !os.IsNotExist(err) {
		return vzerr.Wrap("archive.remove", vzerr.KindIoFailure, err)
	}
	return nil
}

// Load reads name's current archive, if any.
func (m *Manager) Load(name string) (*Snapshot, error) {
	return ReadArchive(m.ArchivePath(name))
}

// SnapshotInfo is one entry in a ListSnapshots result.
type SnapshotInfo struct {
	ID   string // the YYYYMMDD_HHMMSS timestamp (spec.md §4.6 filename)
	Path string
	Size int64
}

const snapshotTimeLayout = "20060102_150405"

// CreateSnapshot writes a timestamped copy of c's current state under
// SnapshotDir(name), then enforces retention. Two snapshots requested
// within the same second get a short uuid suffix so neither is silently
// overwritten.
func (m *Manager) CreateSnapshot(name string, c *collection.Collection) (SnapshotInfo, error) {
	dir := m.SnapshotDir(name)
	id := snapshotNow().UTC().Format(snapshotTimeLayout)
	path := filepath.Join(dir, id+".vecdb")
	if _, err := os.Stat(path); err == nil {
		id = id + "-" + uuid.New().String()[:8]
		path = filepath.Join(dir, id+".vecdb")
	}

	if err := WriteArchive(path, c, WriteOptions{Compress: m.compress}); err != nil {
		return SnapshotInfo{}, err
	}
	if err := m.enforceRetention(name); err != nil {
		m.log.Warn("archive: snapshot retention enforcement failed", "collection", name, "error", err.Error())
	}

	info, err := os.Stat(path)
	if err != nil {
		return SnapshotInfo{}, vzerr.Wrap("archive.snapshot", vzerr.KindIoFailure, err)
	}
	return SnapshotInfo{ID: id, Path: path, Size: info.Size()}, nil
}

// snapshotNow is split out so tests can control snapshot ordering without
// sleeping across real clock ticks.
var snapshotNow = time.Now

// ListSnapshots returns name's snapshots newest-first (spec.md §8 scenario
// 6: "snapshot list returns exactly three entries in descending timestamp
// order").
func (m *Manager) ListSnapshots(name string) ([]SnapshotInfo, error) {
	dir := m.SnapshotDir(name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vzerr.Wrap("archive.list_snapshots", vzerr.KindIoFailure, err)
	}
	var out []SnapshotInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".vecdb" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		id := e.Name()[:len(e.Name())-len(".vecdb")]
		out = append(out, SnapshotInfo{ID: id, Path: filepath.Join(dir, e.Name()), Size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// RestoreSnapshot reads a specific snapshot by its id (the timestamp
// portion of its filename).
func (m *Manager) RestoreSnapshot(name, id string) (*Snapshot, error) {
	path := filepath.Join(m.SnapshotDir(name), id+".vecdb")
	return ReadArchive(path)
}

// enforceRetention drops snapshots beyond MaxSnapshots or older than
// RetentionDays, oldest-first (spec.md §4.6 and §8 P7).
func (m *Manager) enforceRetention(name string) error {
	snaps, err := m.ListSnapshots(name)
	if err != nil {
		return err
	}
	cutoff := snapshotNow().UTC().Add(-time.Duration(m.retention.RetentionDays) * 24 * time.Hour)
	cutoffID := cutoff.Format(snapshotTimeLayout)

	var toRemove []SnapshotInfo
	for i, s := range snaps {
		if i >= m.retention.MaxSnapshots || s.ID < cutoffID {
			toRemove = append(toRemove, s)
		}
	}
	for _, s := range toRemove {
		if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
			return vzerr.Wrap("archive.retention", vzerr.KindIoFailure, err)
		}
	}
	return nil
}
