// Package legacy reads the pre-compact-archive, SQLite-backed multi-file
// layout so pkg/archive can migrate it forward (spec.md §4.6 "migration:
// if a legacy multi-file layout is detected on startup..."). It is a read
// path only; nothing here ever writes to a legacy store.
package legacy

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/liliang-cn/vectorizer/pkg/collection"
	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

// Source is one collection's worth of rows read out of a legacy store.
type Source struct {
	Name      string
	Dimension int
	Rows      []collection.Row
}

// Detect reports whether dbPath looks like a legacy SQLite-backed store,
// i.e. it has a `collections` table.
func Detect(dbPath string) bool {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return false
	}
	defer db.Close()
	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='collections'`).Scan(&name)
	return err == nil
}

// Load reads every collection and its embeddings out of the legacy store
// at dbPath, grounded on the teacher's `collections`/`embeddings` schema
// (pkg/core/store_init.go) and its length-prefixed little-endian float32
// vector BLOB encoding (internal/encoding/utils.go EncodeVector).
func Load(ctx context.Context, dbPath string) ([]Source, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, vzerr.Wrap("legacy.load", vzerr.KindIoFailure, err)
	}
	defer db.Close()

	collRows, err := db.QueryContext(ctx, `SELECT id, name, dimensions FROM collections`)
	if err != nil {
		return nil, vzerr.Wrap("legacy.load", vzerr.KindIoFailure, err)
	}

	type collRow struct {
		id   int64
		name string
		dim  int
	}
	var colls []collRow
	for collRows.Next() {
		var c collRow
		if err := collRows.Scan(&c.id, &c.name, &c.dim); err != nil {
			collRows.Close()
			return nil, vzerr.Wrap("legacy.load", vzerr.KindCorruptArchive, err)
		}
		colls = append(colls, c)
	}
	collRows.Close()
	if err := collRows.Err(); err != nil {
		return nil, vzerr.Wrap("legacy.load", vzerr.KindIoFailure, err)
	}

	sources := make([]Source, 0, len(colls))
	for _, c := range colls {
		rows, err := loadEmbeddings(ctx, db, c.id)
		if err != nil {
			return nil, err
		}
		sources = append(sources, Source{Name: c.name, Dimension: c.dim, Rows: rows})
	}
	return sources, nil
}

func loadEmbeddings(ctx context.Context, db *sql.DB, collectionID int64) ([]collection.Row, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, vector, metadata FROM embeddings WHERE collection_id = ?`, collectionID)
	if err != nil {
		return nil, vzerr.Wrap("legacy.load_embeddings", vzerr.KindIoFailure, err)
	}
	defer rows.Close()

	var out []collection.Row
	for rows.Next() {
		var id string
		var vecBytes []byte
		var metaJSON sql.NullString
		if err := rows.Scan(&id, &vecBytes, &metaJSON); err != nil {
			return nil, vzerr.Wrap("legacy.load_embeddings", vzerr.KindCorruptArchive, err)
		}
		vector, err := decodeVector(vecBytes)
		if err != nil {
			return nil, vzerr.Wrap("legacy.load_embeddings", vzerr.KindCorruptArchive, err)
		}
		out = append(out, collection.Row{ID: id, Vector: vector, Payload: decodeMetadata(metaJSON)})
	}
	return out, rows.Err()
}

// decodeVector mirrors the teacher's EncodeVector: a little-endian int32
// element count followed by that many little-endian float32 values.
func decodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("legacy: vector blob too short")
	}
	buf := bytes.NewReader(data)
	var length int32
	if err := binary.Read(buf, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length < 0 || buf.Len() < int(length)*4 {
		return nil, fmt.Errorf("legacy: vector blob truncated")
	}
	vector := make([]float32, length)
	for i := range vector {
		if err := binary.Read(buf, binary.LittleEndian, &vector[i]); err != nil {
			return nil, err
		}
	}
	return vector, nil
}

func decodeMetadata(raw sql.NullString) map[string]any {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil
	}
	payload := make(map[string]any, len(m))
	for k, v := range m {
		payload[k] = v
	}
	return payload
}
