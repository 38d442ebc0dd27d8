package jobs

import (
	"context"
	"fmt"
	"time"
)

// SetProgress advances a processing job's progress counters and refreshes the
// heartbeat. Progress never moves backwards and stays below the total while
// the job is still processing; only MarkCompleted snaps it to the total, so a
// failed or cancelled job can never report full progress.
func (s *Store) SetProgress(ctx context.Context, kind Kind, id int64, processed int, currentUnit string) error {
	table, err := tableForKind(kind)
	if err != nil {
		return err
	}
	if processed < 0 {
		return fmt.Errorf("processed units %d is negative", processed)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.execWithRetry(
		ctx,
		`UPDATE `+table+`
         SET processed_units = MAX(processed_units, MIN(?, total_units - 1)),
             current_unit = ?,
             last_heartbeat = ?
         WHERE id = ? AND status = ?`,
		processed,
		nullableString(currentUnit),
		now,
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("set %s job progress: %w", kind, err)
	}
	return nil
}

// Heartbeat refreshes a processing job's liveness timestamp.
func (s *Store) Heartbeat(ctx context.Context, kind Kind, id int64) error {
	table, err := tableForKind(kind)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(
		ctx,
		`UPDATE `+table+` SET last_heartbeat = ? WHERE id = ? AND status = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("heartbeat %s job: %w", kind, err)
	}
	return nil
}

// MarkCompleted finishes a processing job, recording the artifact path and
// snapping progress to the total. The update is conditional on the job still
// processing so a concurrent cancellation wins.
func (s *Store) MarkCompleted(ctx context.Context, kind Kind, id int64, message, artifact string) (*Job, error) {
	return s.finish(ctx, kind, id, StatusCompleted, message, artifact)
}

// MarkFailed finishes a processing job with a failure message. Partial output
// cleanup is the caller's responsibility.
func (s *Store) MarkFailed(ctx context.Context, kind Kind, id int64, message string) (*Job, error) {
	return s.finish(ctx, kind, id, StatusFailed, message, "")
}

func (s *Store) finish(ctx context.Context, kind Kind, id int64, status Status, message, artifact string) (*Job, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `UPDATE ` + table + `
        SET status = ?, completed_at = ?, result_message = ?, current_unit = NULL`
	args := []any{status, now, nullableString(message)}
	if status == StatusCompleted {
		query += `, result_artifact = ?, processed_units = total_units`
		args = append(args, nullableString(artifact))
	}
	query += ` WHERE id = ? AND status = ?`
	args = append(args, id, StatusProcessing)

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mark %s job %s: %w", kind, status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("finish rows affected: %w", err)
	}
	job, getErr := s.GetByID(ctx, kind, id)
	if getErr != nil {
		return nil, getErr
	}
	if affected == 0 && job != nil && job.Status == StatusCancelled {
		// Cancelled while the worker was still running; keep the
		// cancellation and let the caller discard its output.
		return job, nil
	}
	return job, nil
}

// MarkDownloaded transitions a completed zip job to downloaded. Repeat calls
// and calls against an already downloaded job are no-ops.
func (s *Store) MarkDownloaded(ctx context.Context, id int64) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE zip_jobs SET status = ? WHERE id = ? AND status = ?`,
		StatusDownloaded,
		id,
		StatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("mark zip job downloaded: %w", err)
	}
	return nil
}

// Cancel cancels a single job if it is pending or processing and was created
// within the recency window. Returns true when a row transitioned.
func (s *Store) Cancel(ctx context.Context, kind Kind, id int64, window time.Duration) (bool, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE `+table+`
         SET status = ?, completed_at = ?, current_unit = NULL
         WHERE id = ? AND status IN (?, ?) AND created_at >= ?`,
		StatusCancelled,
		now.Format(time.RFC3339Nano),
		id,
		StatusPending,
		StatusProcessing,
		now.Add(-window).Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("cancel %s job: %w", kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel rows affected: %w", err)
	}
	return affected == 1, nil
}

// CancelRecent cancels every pending or processing job of a kind created
// within the recency window. Older active jobs are left untouched. Returns
// the number of jobs cancelled.
func (s *Store) CancelRecent(ctx context.Context, kind Kind, window time.Duration) (int64, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE `+table+`
         SET status = ?, completed_at = ?, current_unit = NULL
         WHERE status IN (?, ?) AND created_at >= ?`,
		StatusCancelled,
		now.Format(time.RFC3339Nano),
		StatusPending,
		StatusProcessing,
		now.Add(-window).Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("cancel recent %s jobs: %w", kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel recent rows affected: %w", err)
	}
	return affected, nil
}

// RetryFailed resets a failed job to pending so a worker can claim it again.
func (s *Store) RetryFailed(ctx context.Context, kind Kind, id int64) (*Job, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return nil, err
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE `+table+`
         SET status = ?, processed_units = 0, current_unit = NULL,
             claimed_at = NULL, completed_at = NULL, last_heartbeat = NULL,
             worker_id = NULL, result_message = NULL, result_artifact = NULL
         WHERE id = ? AND status = ?`,
		StatusPending,
		id,
		StatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("retry %s job: %w", kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("retry rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, kind, id)
}
