package legacy

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeVector(t *testing.T, vector []float32) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, binary.Write(buf, binary.LittleEndian, int32(len(vector))))
	for _, v := range vector {
		require.NoError(t, binary.Write(buf, binary.LittleEndian, v))
	}
	return buf.Bytes()
}

func seedLegacyDB(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE collections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		dimensions INTEGER NOT NULL DEFAULT 0
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE embeddings (
		id TEXT PRIMARY KEY,
		collection_id INTEGER DEFAULT 1,
		vector BLOB NOT NULL,
		metadata TEXT
	)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO collections (id, name, dimensions) VALUES (1, 'docs', 3)`)
	require.NoError(t, err)

	meta, err := json.Marshal(map[string]string{"source": "readme"})
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO embeddings (id, collection_id, vector, metadata) VALUES (?, 1, ?, ?)`,
		"row-1", encodeVector(t, []float32{1, 2, 3}), string(meta))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO embeddings (id, collection_id, vector, metadata) VALUES (?, 1, ?, NULL)`,
		"row-2", encodeVector(t, []float32{4, 5, 6}))
	require.NoError(t, err)
}

func TestDetectLegacyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	seedLegacyDB(t, path)
	assert.True(t, Detect(path))
}

func TestDetectNonLegacyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	db.Close()
	assert.False(t, Detect(path))
}

func TestLoadLegacyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	seedLegacyDB(t, path)

	sources, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, sources, 1)

	src := sources[0]
	assert.Equal(t, "docs", src.Name)
	assert.Equal(t, 3, src.Dimension)
	require.Len(t, src.Rows, 2)

	byID := make(map[string][]float32, len(src.Rows))
	payloads := make(map[string]map[string]any, len(src.Rows))
	for _, row := range src.Rows {
		byID[row.ID] = row.Vector
		payloads[row.ID] = row.Payload
	}
	assert.Equal(t, []float32{1, 2, 3}, byID["row-1"])
	assert.Equal(t, []float32{4, 5, 6}, byID["row-2"])
	assert.Equal(t, "readme", payloads["row-1"]["source"])
	assert.Nil(t, payloads["row-2"])
}

func TestDecodeVectorRejectsTruncated(t *testing.T) {
	_, err := decodeVector([]byte{3, 0, 0, 0})
	require.Error(t, err)
}
