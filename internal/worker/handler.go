package worker

import (
	"context"

	"gallerina/internal/jobs"
)

// Progress reports per-unit progress for a running job.
type Progress func(processed int, currentUnit string)

// Result is what a handler produces for a successful job.
type Result struct {
	// Artifact is the absolute path of the generated file.
	Artifact string
	// Message is a short human-readable completion note.
	Message string
}

// Handler executes one kind of job. Implementations must be safe to call
// from a single lane goroutine and should honor context cancellation at
// natural boundaries.
type Handler interface {
	Kind() jobs.Kind
	Execute(ctx context.Context, job *jobs.Job, progress Progress) (Result, error)
}
