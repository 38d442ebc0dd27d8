package jobs_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gallerina/internal/jobs"
	"gallerina/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Insert(ctx, &jobs.Job{
		Kind:     jobs.KindThumbnail,
		Target:   "main/2024/photo.jpg",
		SizeTier: 150,
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != jobs.StatusPending {
		t.Fatalf("expected pending status, got %s", job.Status)
	}
	if job.TotalUnits != 1 {
		t.Fatalf("expected total units defaulted to 1, got %d", job.TotalUnits)
	}
	if job.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be stamped")
	}

	fetched, err := store.GetByID(ctx, jobs.KindThumbnail, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.Target != "main/2024/photo.jpg" || fetched.SizeTier != 150 {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
}

func TestInsertZipJobRoundTripsMembersAndToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	members := []string{"main/2024/a.jpg", "main/2024/b.jpg"}
	job, err := store.Insert(ctx, &jobs.Job{
		Kind:       jobs.KindZip,
		Target:     jobs.ExplicitListTarget,
		TotalUnits: len(members),
		Token:      "token-abc",
		SessionID:  "session-1",
		Members:    members,
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if len(job.Members) != 2 || job.Members[0] != "main/2024/a.jpg" {
		t.Fatalf("unexpected members: %#v", job.Members)
	}

	byToken, err := store.GetByToken(ctx, "token-abc")
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if byToken == nil || byToken.ID != job.ID {
		t.Fatalf("expected token lookup to find job, got %#v", byToken)
	}
	if byToken.SessionID != "session-1" {
		t.Fatalf("unexpected session: %q", byToken.SessionID)
	}
}

func TestFindActiveOnlyMatchesLiveJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewThumbnailJob(t, store, "main/pic.jpg", 150)

	active, err := store.FindActive(ctx, jobs.KindThumbnail, "main/pic.jpg", 150)
	if err != nil {
		t.Fatalf("FindActive failed: %v", err)
	}
	if active == nil || active.ID != job.ID {
		t.Fatalf("expected pending job to occupy the slot, got %#v", active)
	}

	// A different tier does not collide.
	other, err := store.FindActive(ctx, jobs.KindThumbnail, "main/pic.jpg", 750)
	if err != nil {
		t.Fatalf("FindActive failed: %v", err)
	}
	if other != nil {
		t.Fatalf("expected no active job for other tier, got %#v", other)
	}

	claimed, err := store.ClaimNext(ctx, jobs.KindThumbnail, "worker-1")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected a claimable job")
	}
	active, err = store.FindActive(ctx, jobs.KindThumbnail, "main/pic.jpg", 150)
	if err != nil {
		t.Fatalf("FindActive failed: %v", err)
	}
	if active == nil {
		t.Fatal("expected processing job to still occupy the slot")
	}

	if _, err := store.MarkCompleted(ctx, jobs.KindThumbnail, job.ID, "", "/cache/150/x.jpg"); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	active, err = store.FindActive(ctx, jobs.KindThumbnail, "main/pic.jpg", 150)
	if err != nil {
		t.Fatalf("FindActive failed: %v", err)
	}
	if active != nil {
		t.Fatalf("expected completed job to free the slot, got %#v", active)
	}
}

func TestClaimNextIsOldestFirstAndExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		job := testsupport.NewThumbnailJob(t, store, fmt.Sprintf("main/%d.jpg", i), 150)
		ids = append(ids, job.ID)
	}

	first, err := store.ClaimNext(ctx, jobs.KindThumbnail, "worker-a")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if first == nil || first.ID != ids[0] {
		t.Fatalf("expected oldest job first, got %#v", first)
	}
	if first.Status != jobs.StatusProcessing || first.WorkerID != "worker-a" {
		t.Fatalf("claim did not transition job: %#v", first)
	}
	if first.ClaimedAt == nil || first.LastHeartbeat == nil {
		t.Fatal("expected claim to stamp claimed_at and heartbeat")
	}

	second, err := store.ClaimNext(ctx, jobs.KindThumbnail, "worker-b")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if second == nil || second.ID != ids[1] {
		t.Fatalf("expected next pending job, got %#v", second)
	}

	third, err := store.ClaimNext(ctx, jobs.KindThumbnail, "worker-a")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if third == nil || third.ID != ids[2] {
		t.Fatalf("expected last pending job, got %#v", third)
	}

	empty, err := store.ClaimNext(ctx, jobs.KindThumbnail, "worker-a")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if empty != nil {
		t.Fatalf("expected empty queue, got %#v", empty)
	}
}

func TestSetProgressIsMonotonicAndBounded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.Insert(ctx, &jobs.Job{
		Kind:       jobs.KindZip,
		Target:     "main/album",
		TotalUnits: 5,
		Token:      "token-progress",
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	job, err := store.ClaimNext(ctx, jobs.KindZip, "worker-a")
	if err != nil || job == nil {
		t.Fatalf("ClaimNext failed: %v %#v", err, job)
	}

	if err := store.SetProgress(ctx, jobs.KindZip, job.ID, 3, "b.jpg"); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}
	fetched, _ := store.GetByID(ctx, jobs.KindZip, job.ID)
	if fetched.ProcessedUnits != 3 || fetched.CurrentUnit != "b.jpg" {
		t.Fatalf("unexpected progress: %#v", fetched)
	}

	// Progress never moves backwards.
	if err := store.SetProgress(ctx, jobs.KindZip, job.ID, 1, "a.jpg"); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}
	fetched, _ = store.GetByID(ctx, jobs.KindZip, job.ID)
	if fetched.ProcessedUnits != 3 {
		t.Fatalf("expected progress to hold at 3, got %d", fetched.ProcessedUnits)
	}

	// And never reaches the total while the job is still processing; only
	// completion snaps it there.
	if err := store.SetProgress(ctx, jobs.KindZip, job.ID, 99, "z.jpg"); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}
	fetched, _ = store.GetByID(ctx, jobs.KindZip, job.ID)
	if fetched.ProcessedUnits != 4 {
		t.Fatalf("expected progress capped below total, got %d", fetched.ProcessedUnits)
	}
}

func TestFailedJobNeverReportsFullProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.Insert(ctx, &jobs.Job{
		Kind:       jobs.KindZip,
		Target:     "main/album",
		TotalUnits: 3,
		Token:      "token-fail-progress",
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	job, err := store.ClaimNext(ctx, jobs.KindZip, "worker-a")
	if err != nil || job == nil {
		t.Fatalf("ClaimNext failed: %v %#v", err, job)
	}

	// The last member is written but the archive finalization fails, so the
	// worker marks the job failed after reporting the final unit.
	if err := store.SetProgress(ctx, jobs.KindZip, job.ID, 3, "c.jpg"); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}
	failed, err := store.MarkFailed(ctx, jobs.KindZip, job.ID, "finalize archive: disk full")
	if err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if failed.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	if failed.ProcessedUnits >= failed.TotalUnits {
		t.Fatalf("failed job reports full progress: %d/%d", failed.ProcessedUnits, failed.TotalUnits)
	}
}

func TestMarkCompletedRecordsArtifactAndSnapsProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.Insert(ctx, &jobs.Job{
		Kind:       jobs.KindThumbnail,
		Target:     "main/photo.jpg",
		SizeTier:   750,
		TotalUnits: 1,
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	job, err := store.ClaimNext(ctx, jobs.KindThumbnail, "worker-a")
	if err != nil || job == nil {
		t.Fatalf("ClaimNext failed: %v %#v", err, job)
	}

	done, err := store.MarkCompleted(ctx, jobs.KindThumbnail, job.ID, "generated", "/cache/750/abc_750.jpg")
	if err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	if done.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.ResultArtifact != "/cache/750/abc_750.jpg" {
		t.Fatalf("unexpected artifact: %q", done.ResultArtifact)
	}
	if done.ProcessedUnits != done.TotalUnits {
		t.Fatalf("expected progress snapped to total, got %d/%d", done.ProcessedUnits, done.TotalUnits)
	}
	if done.CompletedAt == nil {
		t.Fatal("expected completed_at to be stamped")
	}
}

func TestCancellationWinsOverLateCompletion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewThumbnailJob(t, store, "main/slow.jpg", 150)
	job, err := store.ClaimNext(ctx, jobs.KindThumbnail, "worker-a")
	if err != nil || job == nil {
		t.Fatalf("ClaimNext failed: %v %#v", err, job)
	}

	cancelled, err := store.Cancel(ctx, jobs.KindThumbnail, job.ID, time.Hour)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !cancelled {
		t.Fatal("expected cancel to transition the job")
	}

	// The worker finishes late; the cancellation must stick.
	after, err := store.MarkCompleted(ctx, jobs.KindThumbnail, job.ID, "late", "/cache/150/x.jpg")
	if err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	if after.Status != jobs.StatusCancelled {
		t.Fatalf("expected cancellation to win, got %s", after.Status)
	}
}

func TestMarkDownloadedIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.Insert(ctx, &jobs.Job{
		Kind:   jobs.KindZip,
		Target: "main/album",
		Token:  "token-dl",
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	job, err := store.ClaimNext(ctx, jobs.KindZip, "worker-a")
	if err != nil || job == nil {
		t.Fatalf("ClaimNext failed: %v %#v", err, job)
	}
	if _, err := store.MarkCompleted(ctx, jobs.KindZip, job.ID, "", "/zips/a.zip"); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.MarkDownloaded(ctx, job.ID); err != nil {
			t.Fatalf("MarkDownloaded failed: %v", err)
		}
		fetched, _ := store.GetByID(ctx, jobs.KindZip, job.ID)
		if fetched.Status != jobs.StatusDownloaded {
			t.Fatalf("expected downloaded, got %s", fetched.Status)
		}
	}
}

func TestMarkDownloadedIgnoresActiveJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Insert(ctx, &jobs.Job{
		Kind:   jobs.KindZip,
		Target: "main/album",
		Token:  "token-active",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.MarkDownloaded(ctx, job.ID); err != nil {
		t.Fatalf("MarkDownloaded failed: %v", err)
	}
	fetched, _ := store.GetByID(ctx, jobs.KindZip, job.ID)
	if fetched.Status != jobs.StatusPending {
		t.Fatalf("expected pending to survive, got %s", fetched.Status)
	}
}

func TestRetryFailedResetsJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewThumbnailJob(t, store, "main/broken.jpg", 150)
	job, err := store.ClaimNext(ctx, jobs.KindThumbnail, "worker-a")
	if err != nil || job == nil {
		t.Fatalf("ClaimNext failed: %v %#v", err, job)
	}
	if err := store.SetProgress(ctx, jobs.KindThumbnail, job.ID, 1, "broken.jpg"); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}
	if _, err := store.MarkFailed(ctx, jobs.KindThumbnail, job.ID, "decode error"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	retried, err := store.RetryFailed(ctx, jobs.KindThumbnail, job.ID)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if retried == nil || retried.Status != jobs.StatusPending {
		t.Fatalf("expected pending after retry, got %#v", retried)
	}
	if retried.ProcessedUnits != 0 || retried.WorkerID != "" || retried.ResultMessage != "" {
		t.Fatalf("expected reset fields, got %#v", retried)
	}
	if retried.ClaimedAt != nil || retried.CompletedAt != nil || retried.LastHeartbeat != nil {
		t.Fatalf("expected cleared timestamps, got %#v", retried)
	}

	// Only failed jobs are retryable.
	again, err := store.RetryFailed(ctx, jobs.KindThumbnail, job.ID)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if again != nil {
		t.Fatalf("expected no-op retry on pending job, got %#v", again)
	}
}

func TestStatsAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewThumbnailJob(t, store, "main/a.jpg", 150)
	testsupport.NewThumbnailJob(t, store, "main/b.jpg", 150)
	job, err := store.ClaimNext(ctx, jobs.KindThumbnail, "worker-a")
	if err != nil || job == nil {
		t.Fatalf("ClaimNext failed: %v %#v", err, job)
	}
	if _, err := store.MarkCompleted(ctx, jobs.KindThumbnail, job.ID, "", "/cache/150/a.jpg"); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	var thumbStats *jobs.KindStats
	for i := range stats {
		if stats[i].Kind == jobs.KindThumbnail {
			thumbStats = &stats[i]
		}
	}
	if thumbStats == nil || thumbStats.Total != 2 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
	if thumbStats.Counts[jobs.StatusPending] != 1 || thumbStats.Counts[jobs.StatusCompleted] != 1 {
		t.Fatalf("unexpected counts: %#v", thumbStats.Counts)
	}

	removed, err := store.ClearCompleted(ctx, jobs.KindThumbnail)
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	remaining, err := store.ListByStatus(ctx, jobs.KindThumbnail)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Status != jobs.StatusPending {
		t.Fatalf("expected pending job to survive, got %#v", remaining)
	}
}

func TestListByTargetsFiltersSet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewThumbnailJob(t, store, "main/a.jpg", 150)
	testsupport.NewThumbnailJob(t, store, "main/b.jpg", 150)
	testsupport.NewThumbnailJob(t, store, "main/c.jpg", 150)

	since := time.Now().Add(-time.Minute)
	listed, err := store.ListByTargets(ctx, jobs.KindThumbnail, []string{"main/a.jpg", "main/c.jpg"}, since)
	if err != nil {
		t.Fatalf("ListByTargets failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(listed))
	}
	if listed[0].Target != "main/a.jpg" || listed[1].Target != "main/c.jpg" {
		t.Fatalf("unexpected order: %#v", listed)
	}

	none, err := store.ListByTargets(ctx, jobs.KindThumbnail, []string{"main/a.jpg"}, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ListByTargets failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected since bound to exclude jobs, got %#v", none)
	}
}
