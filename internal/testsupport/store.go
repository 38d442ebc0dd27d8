package testsupport

import (
	"context"
	"testing"

	"gallerina/internal/config"
	"gallerina/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewThumbnailJob inserts a pending thumbnail job for tests.
func NewThumbnailJob(t testing.TB, store *jobs.Store, target string, sizeTier int) *jobs.Job {
	t.Helper()

	job, err := store.Insert(context.Background(), &jobs.Job{
		Kind:     jobs.KindThumbnail,
		Target:   target,
		SizeTier: sizeTier,
	})
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return job
}
