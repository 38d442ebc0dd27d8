package jobs

import (
	"context"
	"testing"
	"time"

	"gallerina/internal/config"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.CacheRoot = t.TempDir()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.ZipDir = t.TempDir()
	store, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func backdateCreated(t *testing.T, store *Store, kind Kind, id int64, age time.Duration) {
	t.Helper()
	table, err := tableForKind(kind)
	if err != nil {
		t.Fatalf("tableForKind: %v", err)
	}
	past := time.Now().UTC().Add(-age).Format(time.RFC3339Nano)
	if _, err := store.db.Exec(`UPDATE `+table+` SET created_at = ? WHERE id = ?`, past, id); err != nil {
		t.Fatalf("backdate created_at: %v", err)
	}
}

func backdateHeartbeat(t *testing.T, store *Store, kind Kind, id int64, age time.Duration) {
	t.Helper()
	table, err := tableForKind(kind)
	if err != nil {
		t.Fatalf("tableForKind: %v", err)
	}
	past := time.Now().UTC().Add(-age).Format(time.RFC3339Nano)
	if _, err := store.db.Exec(`UPDATE `+table+` SET last_heartbeat = ? WHERE id = ?`, past, id); err != nil {
		t.Fatalf("backdate last_heartbeat: %v", err)
	}
}

func TestCancelRecentSkipsOldJobs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	recent, err := store.Insert(ctx, &Job{Kind: KindThumbnail, Target: "main/new.jpg", SizeTier: 150})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	old, err := store.Insert(ctx, &Job{Kind: KindThumbnail, Target: "main/old.jpg", SizeTier: 150})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	backdateCreated(t, store, KindThumbnail, old.ID, 2*time.Hour)

	cancelled, err := store.CancelRecent(ctx, KindThumbnail, 30*time.Minute)
	if err != nil {
		t.Fatalf("CancelRecent failed: %v", err)
	}
	if cancelled != 1 {
		t.Fatalf("expected 1 cancellation, got %d", cancelled)
	}

	got, _ := store.GetByID(ctx, KindThumbnail, recent.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("expected recent job cancelled, got %s", got.Status)
	}
	got, _ = store.GetByID(ctx, KindThumbnail, old.ID)
	if got.Status != StatusPending {
		t.Fatalf("expected old job untouched, got %s", got.Status)
	}
}

func TestCancelRespectsWindowPerJob(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.Insert(ctx, &Job{Kind: KindZip, Target: "main/album", Token: "token-old"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	backdateCreated(t, store, KindZip, job.ID, 2*time.Hour)

	cancelled, err := store.Cancel(ctx, KindZip, job.ID, 30*time.Minute)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled {
		t.Fatal("expected cancel to skip job outside the window")
	}
	got, _ := store.GetByID(ctx, KindZip, job.ID)
	if got.Status != StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
}

func TestStalledJobsUsesHeartbeatRecency(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Insert(ctx, &Job{Kind: KindRawPreview, Target: "main/shot.nef", SizeTier: 750}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	job, err := store.ClaimNext(ctx, KindRawPreview, "worker-a")
	if err != nil || job == nil {
		t.Fatalf("ClaimNext failed: %v %#v", err, job)
	}

	stalled, err := store.StalledJobs(ctx, KindRawPreview, time.Minute)
	if err != nil {
		t.Fatalf("StalledJobs failed: %v", err)
	}
	if len(stalled) != 0 {
		t.Fatalf("expected fresh heartbeat to pass, got %#v", stalled)
	}

	backdateHeartbeat(t, store, KindRawPreview, job.ID, 5*time.Minute)
	stalled, err = store.StalledJobs(ctx, KindRawPreview, time.Minute)
	if err != nil {
		t.Fatalf("StalledJobs failed: %v", err)
	}
	if len(stalled) != 1 || stalled[0].ID != job.ID {
		t.Fatalf("expected stalled job surfaced, got %#v", stalled)
	}

	// Stalls are reported, never requeued.
	got, _ := store.GetByID(ctx, KindRawPreview, job.ID)
	if got.Status != StatusProcessing {
		t.Fatalf("expected stalled job to stay processing, got %s", got.Status)
	}
}
