package worker_test

import (
	"archive/zip"
	"context"
	"path/filepath"
	"testing"

	"gallerina/internal/cachekey"
	"gallerina/internal/fileutil"
	"gallerina/internal/jobs"
	"gallerina/internal/sources"
	"gallerina/internal/testsupport"
	"gallerina/internal/transform"
	"gallerina/internal/worker"
)

func noProgress(int, string) {}

func TestThumbnailHandlerGeneratesArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteJPEG(t, filepath.Join(root, "album", "photo.jpg"), 400, 300)

	validator := sources.NewValidator(cfg)
	paths := cachekey.NewResolver(cfg.Paths.CacheRoot)
	handler := worker.NewThumbnailHandler(validator, paths, transform.NewThumbnailer(cfg))

	job := &jobs.Job{Kind: jobs.KindThumbnail, Target: "main/album/photo.jpg", SizeTier: 150}
	result, err := handler.Execute(context.Background(), job, noProgress)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !fileutil.FileExistsNonEmpty(result.Artifact) {
		t.Fatalf("expected artifact at %s", result.Artifact)
	}
	want := paths.Resolve("main/album/photo.jpg", 150, cachekey.VariantStandard)
	if result.Artifact != want {
		t.Fatalf("artifact path mismatch: %q vs %q", result.Artifact, want)
	}

	// A second run is a cache hit, not a regeneration.
	again, err := handler.Execute(context.Background(), job, noProgress)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if again.Artifact != want || again.Message != "already generated" {
		t.Fatalf("expected cache hit, got %#v", again)
	}
}

func TestThumbnailHandlerFolderJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteJPEG(t, filepath.Join(root, "album", "a.jpg"), 200, 200)
	testsupport.WriteJPEG(t, filepath.Join(root, "album", "b.jpg"), 200, 200)
	testsupport.WriteFile(t, filepath.Join(root, "album", "notes.txt"), 10)

	validator := sources.NewValidator(cfg)
	paths := cachekey.NewResolver(cfg.Paths.CacheRoot)
	handler := worker.NewThumbnailHandler(validator, paths, transform.NewThumbnailer(cfg))

	// One member is already cached and should be skipped, not regenerated.
	cachedArtifact := paths.Resolve("main/album/a.jpg", 150, cachekey.VariantStandard)
	testsupport.WriteFile(t, cachedArtifact, 100)

	var lastDone int
	var lastUnit string
	job := &jobs.Job{Kind: jobs.KindThumbnail, Target: "main/album", SizeTier: 150, TotalUnits: 2}
	result, err := handler.Execute(context.Background(), job, func(done int, current string) {
		lastDone, lastUnit = done, current
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if lastDone != 2 || lastUnit != "b.jpg" {
		t.Fatalf("unexpected progress: %d %q", lastDone, lastUnit)
	}
	if result.Message != "generated 1 thumbnails (1 already cached)" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
	generated := paths.Resolve("main/album/b.jpg", 150, cachekey.VariantStandard)
	if !fileutil.FileExistsNonEmpty(generated) {
		t.Fatalf("expected artifact at %s", generated)
	}
}

func TestRawPreviewHandlerUsesRawVariant(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedDecoder(testsupport.TIFFBytes(t, 600, 400)))
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteFile(t, filepath.Join(root, "shot.nef"), 4096)

	validator := sources.NewValidator(cfg)
	paths := cachekey.NewResolver(cfg.Paths.CacheRoot)
	handler := worker.NewRawPreviewHandler(validator, paths, transform.NewRawDecoder(cfg))

	job := &jobs.Job{Kind: jobs.KindRawPreview, Target: "main/shot.nef", SizeTier: 750}
	result, err := handler.Execute(context.Background(), job, noProgress)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	want := paths.Resolve("main/shot.nef", 750, cachekey.VariantRaw)
	if result.Artifact != want {
		t.Fatalf("expected raw variant path %q, got %q", want, result.Artifact)
	}
	if !fileutil.FileExistsNonEmpty(result.Artifact) {
		t.Fatal("expected preview artifact written")
	}
}

func TestZipHandlerFolderJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteJPEG(t, filepath.Join(root, "album", "a.jpg"), 32, 32)
	testsupport.WriteJPEG(t, filepath.Join(root, "album", "b.jpg"), 32, 32)

	validator := sources.NewValidator(cfg)
	handler := worker.NewZipHandler(cfg, validator, transform.NewArchiver())

	var lastUnit string
	var lastDone int
	job := &jobs.Job{Kind: jobs.KindZip, Target: "main/album", TotalUnits: 2, Token: "tok-folder"}
	result, err := handler.Execute(context.Background(), job, func(done int, current string) {
		lastDone, lastUnit = done, current
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if lastDone != 2 || lastUnit != "album/b.jpg" {
		t.Fatalf("unexpected progress: %d %q", lastDone, lastUnit)
	}

	reader, err := zip.OpenReader(result.Artifact)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer reader.Close()
	if len(reader.File) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(reader.File))
	}
	if reader.File[0].Name != "album/a.jpg" {
		t.Fatalf("unexpected entry: %q", reader.File[0].Name)
	}
}

func TestZipHandlerExplicitListJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteJPEG(t, filepath.Join(root, "x", "a.jpg"), 32, 32)
	testsupport.WriteJPEG(t, filepath.Join(root, "y", "b.jpg"), 32, 32)

	validator := sources.NewValidator(cfg)
	handler := worker.NewZipHandler(cfg, validator, transform.NewArchiver())

	job := &jobs.Job{
		Kind:       jobs.KindZip,
		Target:     jobs.ExplicitListTarget,
		TotalUnits: 2,
		Token:      "tok-list",
		Members:    []string{"main/x/a.jpg", "main/y/b.jpg"},
	}
	result, err := handler.Execute(context.Background(), job, noProgress)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	reader, err := zip.OpenReader(result.Artifact)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer reader.Close()
	if len(reader.File) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(reader.File))
	}
	if reader.File[0].Name != "x/a.jpg" || reader.File[1].Name != "y/b.jpg" {
		t.Fatalf("unexpected entries: %q %q", reader.File[0].Name, reader.File[1].Name)
	}
}
