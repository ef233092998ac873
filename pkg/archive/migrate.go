package archive

import (
	"context"

	"github.com/liliang-cn/vectorizer/pkg/archive/legacy"
	"github.com/liliang-cn/vectorizer/pkg/collection"
	"github.com/liliang-cn/vectorizer/pkg/corelog"
	"github.com/liliang-cn/vectorizer/pkg/hnsw"
	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

// MigrateLegacy converts every collection found in the legacy SQLite store
// at dbPath into a compact archive under m's data root (spec.md §4.6:
// "migrate by loading all legacy files, writing a compact archive
// atomically, and only then deleting legacy files. Failure at any step
// leaves legacy files intact."). removeLegacy is invoked only once every
// discovered collection has a durable archive written; a nil removeLegacy
// leaves the legacy store in place for the caller to remove separately.
func (m *Manager) MigrateLegacy(ctx context.Context, dbPath string, removeLegacy func() error) ([]string, error) {
	if !legacy.Detect(dbPath) {
		return nil, vzerr.New("archive.migrate", vzerr.KindNotFound)
	}
	sources, err := legacy.Load(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	migrated := make([]string, 0, len(sources))
	for _, src := range sources {
		c, err := rebuildFromLegacy(ctx, src, m.log)
		if err != nil {
			return migrated, err
		}
		if err := WriteArchive(m.ArchivePath(src.Name), c, WriteOptions{Compress: m.compress}); err != nil {
			return migrated, err
		}
		migrated = append(migrated, src.Name)
	}

	if removeLegacy != nil {
		if err := removeLegacy(); err != nil {
			return migrated, vzerr.Wrap("archive.migrate", vzerr.KindIoFailure, err)
		}
	}
	return migrated, nil
}

// rebuildFromLegacy re-inserts every row through Collection.Insert so a
// fresh HNSW graph is built: the legacy layout predates this archive's
// graph format and carries no serialized index to reuse.
func rebuildFromLegacy(ctx context.Context, src legacy.Source, log corelog.Logger) (*collection.Collection, error) {
	cfg := collection.Config{
		Name:      src.Name,
		Dimension: src.Dimension,
		Metric:    hnsw.Cosine,
		HNSW:      hnsw.DefaultConfig(hnsw.Cosine),
	}
	c := collection.New(cfg, nil, nil, log)
	for _, row := range src.Rows {
		if err := c.Insert(ctx, row.ID, row.Vector, collection.InsertOptions{Payload: row.Payload, Upsert: true}); err != nil {
			return nil, vzerr.Wrap("archive.migrate", vzerr.KindIoFailure, err)
		}
	}
	c.ClearDirty()
	return c, nil
}
