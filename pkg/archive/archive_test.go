package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/vectorizer/pkg/collection"
	"github.com/liliang-cn/vectorizer/pkg/hnsw"
	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

func newTestCollection(t *testing.T) *collection.Collection {
	t.Helper()
	cfg := collection.Config{
		Name:      "docs",
		Dimension: 4,
		Metric:    hnsw.Cosine,
		HNSW:      hnsw.DefaultConfig(hnsw.Cosine),
	}
	c := collection.New(cfg, nil, nil, nil)
	ctx := context.Background()
	require.NoError(t, c.Insert(ctx, "a", []float32{1, 0, 0, 0}, collection.InsertOptions{Payload: map[string]any{"k": "v"}}))
	require.NoError(t, c.Insert(ctx, "b", []float32{0, 1, 0, 0}, collection.InsertOptions{}))
	return c
}

func TestWriteReadArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.vecdb")
	c := newTestCollection(t)

	require.NoError(t, WriteArchive(path, c, WriteOptions{Compress: true}))

	snap, err := ReadArchive(path)
	require.NoError(t, err)
	assert.Equal(t, "docs", snap.Header.Config.Name)
	assert.Len(t, snap.Rows, 2)
	assert.NotEmpty(t, snap.HNSW)

	restored, err := Restore(snap, nil, nil)
	require.NoError(t, err)
	assert.True(t, restored.HNSW().Exists("a"))
	assert.True(t, restored.HNSW().Exists("b"))
}

func TestWriteArchiveUncompressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.vecdb")
	c := newTestCollection(t)

	require.NoError(t, WriteArchive(path, c, WriteOptions{Compress: false}))

	snap, err := ReadArchive(path)
	require.NoError(t, err)
	assert.Len(t, snap.Rows, 2)
}

func TestReadArchiveMissing(t *testing.T) {
	_, err := ReadArchive(filepath.Join(t.TempDir(), "nope.vecdb"))
	require.Error(t, err)
	assert.True(t, vzerr.Is(err, vzerr.KindNotFound))
}

func TestReadArchiveCorruptChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.vecdb")
	c := newTestCollection(t)
	require.NoError(t, WriteArchive(path, c, WriteOptions{Compress: true}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = ReadArchive(path)
	require.Error(t, err)
	assert.True(t, vzerr.Is(err, vzerr.KindCorruptArchive))
}

func TestReadArchiveBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.vecdb")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))

	_, err := ReadArchive(path)
	require.Error(t, err)
	assert.True(t, vzerr.Is(err, vzerr.KindCorruptArchive))
}

func TestReadHeaderSkipsSectionDecode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.vecdb")
	c := newTestCollection(t)
	require.NoError(t, WriteArchive(path, c, WriteOptions{Compress: true}))

	hdr, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, "docs", hdr.Config.Name)
	assert.Len(t, hdr.Catalog, 5)
}

func TestWriteArchiveDoesNotLeaveTmpOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.vecdb")
	c := newTestCollection(t)
	require.NoError(t, WriteArchive(path, c, WriteOptions{Compress: true}))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestManagerSnapshotRetention(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, RetentionPolicy{MaxSnapshots: 2, RetentionDays: 30}, nil)
	c := newTestCollection(t)

	base := time.Now().UTC()
	originalNow := snapshotNow
	defer func() { snapshotNow = originalNow }()

	var ids []string
	for i := 0; i < 4; i++ {
		day := base.AddDate(0, 0, i)
		snapshotNow = func() time.Time { return day }
		info, err := m.CreateSnapshot("docs", c)
		require.NoError(t, err)
		ids = append(ids, info.ID)
	}

	snaps, err := m.ListSnapshots("docs")
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
	assert.Equal(t, ids[3], snaps[0].ID)
	assert.Equal(t, ids[2], snaps[1].ID)
}

func TestManagerPersistFuncAndRemoveArchive(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, DefaultRetentionPolicy(), nil)
	c := newTestCollection(t)

	persist := m.PersistFunc("docs")
	require.NoError(t, persist(context.Background(), c))

	_, err := os.Stat(m.ArchivePath("docs"))
	require.NoError(t, err)

	require.NoError(t, m.RemoveArchive("docs"))
	_, err = os.Stat(m.ArchivePath("docs"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, m.RemoveArchive("docs"))
}

func TestManagerVerifyAndRepair(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, DefaultRetentionPolicy(), nil)
	c := newTestCollection(t)

	_, err := m.CreateSnapshot("docs", c)
	require.NoError(t, err)
	require.NoError(t, WriteArchive(m.ArchivePath("docs"), c, WriteOptions{Compress: true}))
	require.NoError(t, m.Verify("docs"))

	data, err := os.ReadFile(m.ArchivePath("docs"))
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(m.ArchivePath("docs"), data, 0o644))

	err = m.Verify("docs")
	require.Error(t, err)
	assert.True(t, vzerr.Is(err, vzerr.KindCorruptArchive))

	snapID, err := m.Repair("docs")
	require.NoError(t, err)
	assert.NotEmpty(t, snapID)
	require.NoError(t, m.Verify("docs"))
}

func TestManagerRepairNoSnapshots(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, DefaultRetentionPolicy(), nil)

	_, err := m.Repair("docs")
	require.Error(t, err)
	assert.True(t, vzerr.Is(err, vzerr.KindNotFound))
}
