package admission_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gallerina/internal/admission"
	"gallerina/internal/cachekey"
	"gallerina/internal/config"
	"gallerina/internal/jobs"
	"gallerina/internal/logging"
	"gallerina/internal/services"
	"gallerina/internal/sources"
	"gallerina/internal/testsupport"
)

func newGate(t *testing.T) (*admission.Gate, *jobs.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	gate := admission.NewGate(
		store,
		sources.NewValidator(cfg),
		cachekey.NewResolver(cfg.Paths.CacheRoot),
		cfg,
		logging.NewNop(),
	)
	return gate, store, cfg
}

func TestEnqueueThumbnailQueuesAndDedups(t *testing.T) {
	gate, _, cfg := newGate(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteJPEG(t, filepath.Join(root, "album", "photo.jpg"), 64, 48)

	ctx := context.Background()
	first, err := gate.EnqueueThumbnail(ctx, "main/album/photo.jpg", cfg.Thumbnails.StandardTier)
	if err != nil {
		t.Fatalf("EnqueueThumbnail failed: %v", err)
	}
	if first.Outcome != admission.OutcomeQueued || first.Job == nil {
		t.Fatalf("unexpected decision: %#v", first)
	}
	if first.Job.Kind != jobs.KindThumbnail {
		t.Fatalf("expected thumbnail kind, got %s", first.Job.Kind)
	}

	second, err := gate.EnqueueThumbnail(ctx, "main/album/photo.jpg", cfg.Thumbnails.StandardTier)
	if err != nil {
		t.Fatalf("EnqueueThumbnail failed: %v", err)
	}
	if second.Outcome != admission.OutcomeAlreadyQueued {
		t.Fatalf("expected already_queued, got %s", second.Outcome)
	}
	if second.Job.ID != first.Job.ID {
		t.Fatalf("expected existing job returned, got %d vs %d", second.Job.ID, first.Job.ID)
	}

	// Another tier is a distinct dedup slot.
	large, err := gate.EnqueueThumbnail(ctx, "main/album/photo.jpg", cfg.Thumbnails.LargeTier)
	if err != nil {
		t.Fatalf("EnqueueThumbnail failed: %v", err)
	}
	if large.Outcome != admission.OutcomeQueued {
		t.Fatalf("expected queued for large tier, got %s", large.Outcome)
	}
}

func TestEnqueueThumbnailShortCircuitsOnCacheHit(t *testing.T) {
	gate, _, cfg := newGate(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteJPEG(t, filepath.Join(root, "pic.jpg"), 32, 32)

	paths := cachekey.NewResolver(cfg.Paths.CacheRoot)
	artifact := paths.Resolve("main/pic.jpg", cfg.Thumbnails.StandardTier, cachekey.VariantStandard)
	testsupport.WriteFile(t, artifact, 100)

	decision, err := gate.EnqueueThumbnail(context.Background(), "main/pic.jpg", cfg.Thumbnails.StandardTier)
	if err != nil {
		t.Fatalf("EnqueueThumbnail failed: %v", err)
	}
	if decision.Outcome != admission.OutcomeAlreadyCached {
		t.Fatalf("expected already_cached, got %s", decision.Outcome)
	}
	if decision.Artifact != artifact {
		t.Fatalf("unexpected artifact path: %q", decision.Artifact)
	}
}

func TestEnqueueThumbnailRoutesRawFiles(t *testing.T) {
	gate, _, cfg := newGate(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteFile(t, filepath.Join(root, "shot.nef"), 2048)

	decision, err := gate.EnqueueThumbnail(context.Background(), "main/shot.nef", cfg.Thumbnails.LargeTier)
	if err != nil {
		t.Fatalf("EnqueueThumbnail failed: %v", err)
	}
	if decision.Job.Kind != jobs.KindRawPreview {
		t.Fatalf("expected raw preview kind, got %s", decision.Job.Kind)
	}
}

func TestEnqueueThumbnailRejectsBadRequests(t *testing.T) {
	gate, _, cfg := newGate(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteJPEG(t, filepath.Join(root, "pic.jpg"), 32, 32)

	ctx := context.Background()
	cases := []struct {
		name string
		key  string
		tier int
	}{
		{"unknown source", "nowhere/pic.jpg", cfg.Thumbnails.StandardTier},
		{"traversal", "main/../../etc/passwd", cfg.Thumbnails.StandardTier},
		{"missing file", "main/gone.jpg", cfg.Thumbnails.StandardTier},
		{"bad tier", "main/pic.jpg", 333},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := gate.EnqueueThumbnail(ctx, tc.key, tc.tier)
			if err == nil {
				t.Fatal("expected rejection")
			}
			if !services.IsRejection(err) {
				t.Fatalf("expected rejection classification, got %v", err)
			}
		})
	}
}

func TestEnqueueFolderThumbnailsQueuesMultiUnitJob(t *testing.T) {
	gate, _, cfg := newGate(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteJPEG(t, filepath.Join(root, "album", "a.jpg"), 32, 32)
	testsupport.WriteJPEG(t, filepath.Join(root, "album", "b.jpg"), 32, 32)
	testsupport.WriteFile(t, filepath.Join(root, "album", "notes.txt"), 10)

	ctx := context.Background()
	result, err := gate.EnqueueFolderThumbnails(ctx, "main/album", cfg.Thumbnails.StandardTier)
	if err != nil {
		t.Fatalf("EnqueueFolderThumbnails failed: %v", err)
	}
	if result.Outcome != admission.OutcomeQueued || result.Job == nil {
		t.Fatalf("unexpected decision: %#v", result)
	}
	if result.Job.Kind != jobs.KindThumbnail {
		t.Fatalf("expected thumbnail kind, got %s", result.Job.Kind)
	}
	if result.Job.Target != "main/album" {
		t.Fatalf("expected folder target, got %q", result.Job.Target)
	}
	if result.Job.TotalUnits != 2 {
		t.Fatalf("expected one unit per image, got %d", result.Job.TotalUnits)
	}

	// A second request for the same folder and tier finds the live job.
	again, err := gate.EnqueueFolderThumbnails(ctx, "main/album", cfg.Thumbnails.StandardTier)
	if err != nil {
		t.Fatalf("EnqueueFolderThumbnails failed: %v", err)
	}
	if again.Outcome != admission.OutcomeAlreadyQueued || again.Job.ID != result.Job.ID {
		t.Fatalf("expected dedup hit, got %#v", again)
	}
}

func TestEnqueueFolderThumbnailsRoutesRawFilesToPreviewQueue(t *testing.T) {
	gate, store, cfg := newGate(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteJPEG(t, filepath.Join(root, "shoot", "a.jpg"), 32, 32)
	testsupport.WriteFile(t, filepath.Join(root, "shoot", "b.nef"), 2048)

	ctx := context.Background()
	result, err := gate.EnqueueFolderThumbnails(ctx, "main/shoot", cfg.Thumbnails.StandardTier)
	if err != nil {
		t.Fatalf("EnqueueFolderThumbnails failed: %v", err)
	}
	if result.Job == nil || result.Job.TotalUnits != 1 {
		t.Fatalf("expected the folder job to cover only decodable images, got %#v", result.Job)
	}
	if len(result.RawPreviews) != 1 || result.RawPreviews[0].Outcome != admission.OutcomeQueued {
		t.Fatalf("expected one queued raw preview, got %#v", result.RawPreviews)
	}

	preview, err := store.FindActive(ctx, jobs.KindRawPreview, "main/shoot/b.nef", cfg.Thumbnails.StandardTier)
	if err != nil || preview == nil {
		t.Fatalf("expected raw preview job on its own queue: %v %#v", err, preview)
	}
}

func TestEnqueueFolderThumbnailsShortCircuitsWhenAllCached(t *testing.T) {
	gate, _, cfg := newGate(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteJPEG(t, filepath.Join(root, "album", "a.jpg"), 32, 32)

	paths := cachekey.NewResolver(cfg.Paths.CacheRoot)
	artifact := paths.Resolve("main/album/a.jpg", cfg.Thumbnails.StandardTier, cachekey.VariantStandard)
	testsupport.WriteFile(t, artifact, 100)

	result, err := gate.EnqueueFolderThumbnails(context.Background(), "main/album", cfg.Thumbnails.StandardTier)
	if err != nil {
		t.Fatalf("EnqueueFolderThumbnails failed: %v", err)
	}
	if result.Outcome != admission.OutcomeAlreadyCached || result.Job != nil {
		t.Fatalf("expected already_cached with no job, got %#v", result)
	}
}

func TestEnqueueFolderThumbnailsRejectsEmptyFolder(t *testing.T) {
	gate, _, cfg := newGate(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteFile(t, filepath.Join(root, "docs", "readme.txt"), 10)

	_, err := gate.EnqueueFolderThumbnails(context.Background(), "main/docs", cfg.Thumbnails.StandardTier)
	if err == nil || !services.IsRejection(err) {
		t.Fatalf("expected rejection for imageless folder, got %v", err)
	}
}

func TestEnqueueZipFolderMintsTokenAndCountsMembers(t *testing.T) {
	gate, _, cfg := newGate(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteJPEG(t, filepath.Join(root, "album", "a.jpg"), 32, 32)
	testsupport.WriteJPEG(t, filepath.Join(root, "album", "b.jpg"), 32, 32)

	decision, err := gate.EnqueueZipFolder(context.Background(), "main/album", "session-7")
	if err != nil {
		t.Fatalf("EnqueueZipFolder failed: %v", err)
	}
	if decision.Outcome != admission.OutcomeQueued {
		t.Fatalf("expected queued, got %s", decision.Outcome)
	}
	job := decision.Job
	if job.Kind != jobs.KindZip || job.Token == "" {
		t.Fatalf("unexpected job: %#v", job)
	}
	if job.TotalUnits != 2 {
		t.Fatalf("expected 2 units, got %d", job.TotalUnits)
	}
	if job.SessionID != "session-7" {
		t.Fatalf("unexpected session: %q", job.SessionID)
	}

	// Second request for the same folder finds the live job.
	again, err := gate.EnqueueZipFolder(context.Background(), "main/album", "session-8")
	if err != nil {
		t.Fatalf("EnqueueZipFolder failed: %v", err)
	}
	if again.Outcome != admission.OutcomeAlreadyQueued || again.Job.ID != job.ID {
		t.Fatalf("expected dedup hit, got %#v", again)
	}
}

func TestEnqueueZipFolderRejectsProtected(t *testing.T) {
	gate, _, cfg := newGate(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteJPEG(t, filepath.Join(root, "private", "a.jpg"), 32, 32)
	if err := os.WriteFile(filepath.Join(root, "private", cfg.Sources.ProtectedMarker), nil, 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	_, err := gate.EnqueueZipFolder(context.Background(), "main/private", "")
	if err == nil || !services.IsRejection(err) {
		t.Fatalf("expected protected rejection, got %v", err)
	}
}

func TestEnqueueZipListValidatesEveryMember(t *testing.T) {
	gate, store, cfg := newGate(t)
	root := testsupport.SourceRoot(cfg, "main")
	testsupport.WriteJPEG(t, filepath.Join(root, "a.jpg"), 32, 32)
	testsupport.WriteJPEG(t, filepath.Join(root, "b.jpg"), 32, 32)

	ctx := context.Background()
	decision, err := gate.EnqueueZipList(ctx, []string{"main/a.jpg", "main/b.jpg"}, "")
	if err != nil {
		t.Fatalf("EnqueueZipList failed: %v", err)
	}
	job := decision.Job
	if job.Target != jobs.ExplicitListTarget {
		t.Fatalf("expected explicit list target, got %q", job.Target)
	}
	if len(job.Members) != 2 {
		t.Fatalf("expected members persisted, got %#v", job.Members)
	}

	fetched, err := store.GetByToken(ctx, job.Token)
	if err != nil || fetched == nil {
		t.Fatalf("expected token lookup to work: %v %#v", err, fetched)
	}

	// One bad member rejects the whole list, no row written.
	if _, err := gate.EnqueueZipList(ctx, []string{"main/a.jpg", "main/gone.jpg"}, ""); err == nil || !services.IsRejection(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
}
