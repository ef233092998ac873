package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/liliang-cn/vectorizer/pkg/archive"
	"github.com/liliang-cn/vectorizer/pkg/collection"
	"github.com/liliang-cn/vectorizer/pkg/corelog"
	"github.com/liliang-cn/vectorizer/pkg/hnsw"
	"github.com/liliang-cn/vectorizer/pkg/store"
	"github.com/liliang-cn/vectorizer/pkg/vzerr"
)

var (
	dataRoot       string
	collectionName string
	log            corelog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vectorizer",
	Short: "Operate on a Vectorizer data directory",
	Long:  `A command-line interface for inspecting and maintaining Vectorizer collection archives.`,
}

func exitCodeFor(err error) int {
	switch vzerr.KindOf(err) {
	case vzerr.KindCorruptArchive:
		return 2
	case vzerr.KindIoFailure:
		return 3
	case vzerr.KindInvalidConfig, vzerr.KindNotFound:
		return 1
	default:
		return 1
	}
}

func requireCollection() error {
	if collectionName == "" {
		return vzerr.New("cli", vzerr.KindInvalidConfig)
	}
	return nil
}

func newManager() *archive.Manager {
	policy := archive.DefaultRetentionPolicy()
	if v := os.Getenv("VZR_MAX_SNAPSHOTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			policy.MaxSnapshots = n
		}
	}
	if v := os.Getenv("VZR_SNAPSHOT_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			policy.RetentionDays = n
		}
	}
	return archive.NewManager(dataRoot, policy, log)
}

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect and maintain the on-disk archive layout",
}

var storageInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print archive statistics for a collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCollection(); err != nil {
			return err
		}
		detailed, _ := cmd.Flags().GetBool("detailed")
		m := newManager()
		hdr, err := archive.ReadHeader(m.ArchivePath(collectionName))
		if err != nil {
			return err
		}
		fmt.Printf("Collection: %s\n", hdr.Config.Name)
		fmt.Printf("  Dimension: %d\n", hdr.Config.Dimension)
		fmt.Printf("  Metric: %v\n", hdr.Config.Metric)
		fmt.Printf("  Created: %s\n", hdr.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("  Saved: %s\n", hdr.SavedAt.Format("2006-01-02 15:04:05"))
		if detailed {
			fmt.Println("  Sections:")
			for _, s := range hdr.Catalog {
				fmt.Printf("    %-10s offset=%-10d length=%-10d compressed=%v\n", s.Name, s.Offset, s.Length, s.Compressed)
			}
		}
		return nil
	},
}

var storageVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate a collection's archive checksum",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCollection(); err != nil {
			return err
		}
		fix, _ := cmd.Flags().GetBool("fix")
		m := newManager()
		err := m.Verify(collectionName)
		if err == nil {
			fmt.Printf("Archive '%s' is valid\n", collectionName)
			return nil
		}
		if !fix {
			return err
		}
		fmt.Printf("Archive '%s' failed verification: %v\n", collectionName, err)
		snapID, rerr := m.Repair(collectionName)
		if rerr != nil {
			return rerr
		}
		fmt.Printf("Repaired from snapshot %s\n", snapID)
		return nil
	},
}

var storageMigrateCmd = &cobra.Command{
	Use:   "migrate <legacy-db-path>",
	Short: "Migrate a legacy SQLite-backed store into compact archives",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := args[0]
		remove, _ := cmd.Flags().GetBool("remove-legacy")
		m := newManager()

		var removeLegacy func() error
		if remove {
			removeLegacy = func() error { return os.Remove(dbPath) }
		}

		migrated, err := m.MigrateLegacy(context.Background(), dbPath, removeLegacy)
		if err != nil {
			return err
		}
		fmt.Printf("Migrated %d collection(s): %s\n", len(migrated), strings.Join(migrated, ", "))
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage a collection's snapshot history",
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a collection's snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCollection(); err != nil {
			return err
		}
		m := newManager()
		snaps, err := m.ListSnapshots(collectionName)
		if err != nil {
			return err
		}
		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			data, _ := json.MarshalIndent(snaps, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("Snapshots for '%s' (%d):\n", collectionName, len(snaps))
		for _, s := range snaps {
			fmt.Printf("  %s  (%d bytes)\n", s.ID, s.Size)
		}
		return nil
	},
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a new snapshot of a collection's current archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCollection(); err != nil {
			return err
		}
		m := newManager()
		snap, err := m.Load(collectionName)
		if err != nil {
			return err
		}
		c, err := archive.Restore(snap, nil, log)
		if err != nil {
			return err
		}
		info, err := m.CreateSnapshot(collectionName, c)
		if err != nil {
			return err
		}
		fmt.Printf("Snapshot %s created (%d bytes)\n", info.ID, info.Size)
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a collection's current archive from a named snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCollection(); err != nil {
			return err
		}
		id, _ := cmd.Flags().GetString("id")
		force, _ := cmd.Flags().GetBool("force")
		if id == "" {
			return vzerr.New("cli.snapshot_restore", vzerr.KindInvalidConfig)
		}
		m := newManager()

		if !force {
			if _, err := os.Stat(m.ArchivePath(collectionName)); err == nil {
				fmt.Printf("This overwrites the current archive for '%s'. Re-run with --force to proceed.\n", collectionName)
				return nil
			}
		}

		snap, err := m.RestoreSnapshot(collectionName, id)
		if err != nil {
			return err
		}
		c, err := archive.Restore(snap, nil, log)
		if err != nil {
			return err
		}
		if err := archive.WriteArchive(m.ArchivePath(collectionName), c, archive.WriteOptions{Compress: true}); err != nil {
			return err
		}
		fmt.Printf("Restored '%s' from snapshot %s\n", collectionName, id)
		return nil
	},
}

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Load every collection under the data root and serve Prometheus metrics",
	Long: `Starts the Vector Store's auto-save loop over every archive found under
<data-root>/collections and exposes a /metrics endpoint. This is an ambient
observability surface, not a query front-end: the REST/gRPC/MCP layers that
actually serve search traffic are separate collaborators.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		m := newManager()

		cfg := store.Config{DataRoot: dataRoot}
		if v := os.Getenv("VZR_AUTO_SAVE_INTERVAL"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				cfg.AutoSaveInterval = time.Duration(secs) * time.Second
			}
		}
		s := store.New(cfg, log)
		s.SetPersistFactory(m.PersistFunc)
		s.SetArchiveRemover(m.RemoveArchive)

		names, err := listArchives(m)
		if err != nil {
			return err
		}
		for _, name := range names {
			snap, err := m.Load(name)
			if err != nil {
				log.Warn("serve-metrics: failed to load archive, skipping", "collection", name, "error", err.Error())
				continue
			}
			c, err := archive.Restore(snap, nil, log.With("collection", name))
			if err != nil {
				log.Warn("serve-metrics: failed to restore collection, skipping", "collection", name, "error", err.Error())
				continue
			}
			if err := s.RegisterCollection(name, c); err != nil {
				log.Warn("serve-metrics: failed to register collection, skipping", "collection", name, "error", err.Error())
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s.StartAutoSave(ctx)
		defer s.Stop()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Info("serve-metrics: listening", "addr", addr, "collections", len(names))
		return http.ListenAndServe(addr, mux)
	},
}

// listArchives enumerates collection names under <data-root>/collections by
// listing the directory a dummy ArchivePath resolves into, so this stays in
// sync with Manager's own layout instead of hand-duplicating it.
func listArchives(m *archive.Manager) ([]string, error) {
	dir := filepath.Dir(m.ArchivePath("_"))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vzerr.Wrap("cli.list_archives", vzerr.KindIoFailure, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".vecdb") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".vecdb"))
	}
	return names, nil
}

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Manage vectors in a collection's archive",
}

var embedAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Insert or update a vector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCollection(); err != nil {
			return err
		}
		id := args[0]
		vectorStr, _ := cmd.Flags().GetString("vector")
		metadataStr, _ := cmd.Flags().GetString("metadata")
		if vectorStr == "" {
			return vzerr.New("cli.embed_add", vzerr.KindInvalidConfig)
		}

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}
		payload := make(map[string]any)
		if metadataStr != "" {
			if err := json.Unmarshal([]byte(metadataStr), &payload); err != nil {
				return vzerr.Wrap("cli.embed_add", vzerr.KindInvalidConfig, err)
			}
		}

		m := newManager()
		c, err := loadCollectionOrCreate(m, vector)
		if err != nil {
			return err
		}
		if err := c.Insert(context.Background(), id, vector, collection.InsertOptions{Payload: payload, Upsert: true}); err != nil {
			return err
		}
		if err := archive.WriteArchive(m.ArchivePath(collectionName), c, archive.WriteOptions{Compress: true}); err != nil {
			return err
		}
		fmt.Printf("Vector '%s' added to '%s'\n", id, collectionName)
		return nil
	},
}

var embedGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Look up a vector by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCollection(); err != nil {
			return err
		}
		id := args[0]
		m := newManager()
		snap, err := m.Load(collectionName)
		if err != nil {
			return err
		}
		c, err := archive.Restore(snap, nil, log)
		if err != nil {
			return err
		}
		vector, payload, err := c.Get(id)
		if err != nil {
			return err
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			data, _ := json.MarshalIndent(map[string]any{"id": id, "vector": vector, "payload": payload}, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("ID: %s\n", id)
		fmt.Printf("Vector: %v\n", vector)
		fmt.Printf("Payload: %v\n", payload)
		return nil
	},
}

// loadCollectionOrCreate restores the named collection's current archive,
// or starts a fresh one sized to vector's dimension if no archive exists
// yet: the CLI's embed add is the only entry point that can bootstrap a
// collection without going through store.CreateCollection.
func loadCollectionOrCreate(m *archive.Manager, vector []float32) (*collection.Collection, error) {
	snap, err := m.Load(collectionName)
	if err == nil {
		return archive.Restore(snap, nil, log)
	}
	if !vzerr.Is(err, vzerr.KindNotFound) {
		return nil, err
	}
	cfg := collection.Config{
		Name:      collectionName,
		Dimension: len(vector),
		Metric:    hnsw.Cosine,
		HNSW:      hnsw.DefaultConfig(hnsw.Cosine),
	}
	return collection.New(cfg, nil, nil, log), nil
}

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	vector := make([]float32, 0, len(parts))
	for _, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, vzerr.Wrap("cli.parse_vector", vzerr.KindInvalidConfig, err)
		}
		vector = append(vector, float32(val))
	}
	return vector, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataRoot, "data", envOr("VZR_DATA_ROOT", "./data"), "Data root directory")
	rootCmd.PersistentFlags().StringVarP(&collectionName, "collection", "c", "", "Collection name")

	storageInfoCmd.Flags().Bool("detailed", false, "Print per-section catalog detail")
	storageVerifyCmd.Flags().Bool("fix", false, "Repair from the newest valid snapshot on failure")
	storageMigrateCmd.Flags().Bool("remove-legacy", false, "Remove the legacy database once every collection migrates cleanly")
	storageCmd.AddCommand(storageInfoCmd, storageVerifyCmd, storageMigrateCmd)

	snapshotListCmd.Flags().Bool("json", false, "Output as JSON")
	snapshotRestoreCmd.Flags().String("id", "", "Snapshot id (the YYYYMMDD_HHMMSS timestamp)")
	snapshotRestoreCmd.Flags().Bool("force", false, "Overwrite the current archive without confirmation")
	snapshotCmd.AddCommand(snapshotListCmd, snapshotCreateCmd, snapshotRestoreCmd)

	embedAddCmd.Flags().String("vector", "", "Vector values (comma-separated)")
	embedAddCmd.Flags().String("metadata", "", "Payload as JSON")
	embedAddCmd.MarkFlagRequired("vector")
	embedGetCmd.Flags().Bool("json", false, "Output as JSON")
	embedCmd.AddCommand(embedAddCmd, embedGetCmd)

	serveMetricsCmd.Flags().String("addr", ":9090", "Address to serve /metrics on")
	rootCmd.AddCommand(storageCmd, snapshotCmd, embedCmd, serveMetricsCmd)
}

func main() {
	log = corelog.NewFromEnv()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCodeFor(err))
	}
}
