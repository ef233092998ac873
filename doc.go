// Package vectorizer is a high-throughput vector database and semantic
// search engine: HNSW indexing, scalar/product/binary quantization, a text
// normalization and embedding pipeline, and a durable compact-archive
// persistence layer.
//
// # Key Features
//
//   - HNSW approximate nearest-neighbor indexing, tuned per collection.
//   - Scalar, product, and binary quantization to trade recall for memory.
//   - A normalization and embedding pipeline (insert_text/search_text) that
//     sits in front of raw vector operations.
//   - A single self-describing compact archive format per collection, with
//     atomic rename-based writes and retained snapshots for recovery.
//   - Legacy SQLite-backed stores migrate in place into compact archives.
//
// The public surface lives under pkg/: pkg/store is the process-wide
// collection registry, pkg/collection is a single collection's operations,
// pkg/archive is the on-disk format and snapshot manager, and cmd/vectorizer
// is the operator-facing CLI built on top of them.
//
//	import (
//	    "context"
//
//	    "github.com/liliang-cn/vectorizer/pkg/collection"
//	    "github.com/liliang-cn/vectorizer/pkg/hnsw"
//	    "github.com/liliang-cn/vectorizer/pkg/store"
//	)
//
//	func main() {
//	    s := store.New(store.Config{DataRoot: "./data"}, nil)
//	    c, _ := s.CreateCollection(context.Background(), "docs", collection.Config{
//	        Dimension: 384,
//	        Metric:    hnsw.Cosine,
//	        HNSW:      hnsw.DefaultConfig(hnsw.Cosine),
//	    }, store.CollectionDeps{})
//
//	    _ = c.Insert(context.Background(), "doc-1", someVector, collection.InsertOptions{})
//	}
package vectorizer
