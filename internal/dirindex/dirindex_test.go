package dirindex_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"gallerina/internal/cachekey"
	"gallerina/internal/dirindex"
	"gallerina/internal/logging"
	"gallerina/internal/sources"
	"gallerina/internal/testsupport"
)

func TestReplaceFlipsBatchesAtomically(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	index, err := dirindex.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { index.Close() })

	ctx := context.Background()
	firstBatch, err := index.Replace(ctx, []dirindex.Entry{
		{SourceKey: "main", DirectoryPath: "old", FileCount: 1},
	})
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	secondBatch, err := index.Replace(ctx, []dirindex.Entry{
		{SourceKey: "main", DirectoryPath: "new-a", FileCount: 2},
		{SourceKey: "main", DirectoryPath: "new-b", FileCount: 3},
	})
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if secondBatch == firstBatch {
		t.Fatal("expected a fresh batch id")
	}

	active, err := index.Active(ctx, "")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected only the new batch, got %#v", active)
	}
	for _, entry := range active {
		if entry.BatchID != secondBatch {
			t.Fatalf("stale batch visible: %#v", entry)
		}
	}
}

func TestSupersededBatchRetainedUntilPruned(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	index, err := dirindex.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { index.Close() })

	ctx := context.Background()
	var batches []string
	for _, dir := range []string{"gen-1", "gen-2", "gen-3"} {
		batchID, err := index.Replace(ctx, []dirindex.Entry{
			{SourceKey: "main", DirectoryPath: dir, FileCount: 1},
		})
		if err != nil {
			t.Fatalf("Replace failed: %v", err)
		}
		batches = append(batches, batchID)
	}

	// Replace never deletes; both superseded batches are still present as
	// inactive rows until the prune pass runs.
	counts := batchCounts(t, index)
	if counts[batches[0]] != 1 || counts[batches[1]] != 1 || counts[batches[2]] != 1 {
		t.Fatalf("expected all batches retained, got %#v", counts)
	}

	pruned, err := index.PruneInactive(ctx)
	if err != nil {
		t.Fatalf("PruneInactive failed: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 row pruned, got %d", pruned)
	}

	// The oldest batch is gone, the immediately superseded one survives.
	counts = batchCounts(t, index)
	if counts[batches[0]] != 0 {
		t.Fatalf("expected oldest batch pruned, got %#v", counts)
	}
	if counts[batches[1]] != 1 || counts[batches[2]] != 1 {
		t.Fatalf("expected newest two batches retained, got %#v", counts)
	}

	active, err := index.Active(ctx, "")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(active) != 1 || active[0].BatchID != batches[2] {
		t.Fatalf("expected only the latest batch active, got %#v", active)
	}
}

func batchCounts(t *testing.T, index *dirindex.Index) map[string]int {
	t.Helper()
	db, err := sql.Open("sqlite", index.Path())
	if err != nil {
		t.Fatalf("open index db: %v", err)
	}
	defer db.Close()
	rows, err := db.Query(`SELECT batch_id, COUNT(*) FROM dir_index GROUP BY batch_id`)
	if err != nil {
		t.Fatalf("query batches: %v", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var batchID string
		var count int
		if err := rows.Scan(&batchID, &count); err != nil {
			t.Fatalf("scan batch count: %v", err)
		}
		counts[batchID] = count
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate batches: %v", err)
	}
	return counts
}

func TestScannerIndexesFoldersWithMetadata(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteJPEG(t, filepath.Join(root, "album", "b.jpg"), 32, 32)
	testsupport.WriteJPEG(t, filepath.Join(root, "album", "a.jpg"), 32, 32)
	testsupport.WriteFile(t, filepath.Join(root, "album", "notes.txt"), 10)
	testsupport.WriteFile(t, filepath.Join(root, "private", "secret.jpg"), 10)
	if err := os.WriteFile(filepath.Join(root, "private", cfg.Sources.ProtectedMarker), nil, 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	validator := sources.NewValidator(cfg)
	paths := cachekey.NewResolver(cfg.Paths.CacheRoot)
	// Pre-generate the thumbnail for the folder cover image.
	artifact := paths.Resolve("main/album/a.jpg", cfg.Thumbnails.StandardTier, cachekey.VariantStandard)
	testsupport.WriteFile(t, artifact, 100)

	scanner := dirindex.NewScanner(cfg, validator, paths)
	entries, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	byPath := make(map[string]dirindex.Entry, len(entries))
	for _, entry := range entries {
		byPath[entry.DirectoryPath] = entry
	}

	album, ok := byPath["album"]
	if !ok {
		t.Fatalf("album not indexed: %#v", entries)
	}
	if album.FileCount != 3 {
		t.Fatalf("expected 3 files, got %d", album.FileCount)
	}
	if album.FirstImagePath != "album/a.jpg" {
		t.Fatalf("unexpected cover image: %q", album.FirstImagePath)
	}
	if !album.HasThumbnail {
		t.Fatal("expected cover thumbnail detected")
	}
	if album.LastModified.IsZero() {
		t.Fatal("expected last modified recorded")
	}

	private, ok := byPath["private"]
	if !ok || !private.IsProtected {
		t.Fatalf("expected protected folder flagged: %#v", private)
	}

	if _, ok := byPath[""]; !ok {
		t.Fatal("expected source root indexed")
	}
}

func TestRebuilderEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteJPEG(t, filepath.Join(root, "album", "a.jpg"), 32, 32)

	index, err := dirindex.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { index.Close() })

	validator := sources.NewValidator(cfg)
	paths := cachekey.NewResolver(cfg.Paths.CacheRoot)
	rebuilder := dirindex.NewRebuilder(dirindex.NewScanner(cfg, validator, paths), index, logging.NewNop())

	batchID, count, err := rebuilder.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if batchID == "" || count == 0 {
		t.Fatalf("unexpected rebuild result: %q %d", batchID, count)
	}

	active, err := index.Active(context.Background(), "main")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(active) != count {
		t.Fatalf("expected %d active entries, got %d", count, len(active))
	}
}
