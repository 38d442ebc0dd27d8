package jobs

import (
	"context"
	"fmt"
	"time"
)

// KindStats holds per-status counts for a single kind table.
type KindStats struct {
	Kind   Kind
	Total  int
	Counts map[Status]int
}

// Stats returns per-status counts for every kind table.
func (s *Store) Stats(ctx context.Context) ([]KindStats, error) {
	out := make([]KindStats, 0, len(AllKinds()))
	for _, kind := range AllKinds() {
		table, err := tableForKind(kind)
		if err != nil {
			return nil, err
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT status, COUNT(*) FROM `+table+` GROUP BY status`)
		if err != nil {
			return nil, fmt.Errorf("stats for %s jobs: %w", kind, err)
		}

		stats := KindStats{Kind: kind, Counts: make(map[Status]int)}
		for rows.Next() {
			var statusStr string
			var count int
			if err := rows.Scan(&statusStr, &count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan stats row: %w", err)
			}
			stats.Counts[Status(statusStr)] = count
			stats.Total += count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
		out = append(out, stats)
	}
	return out, nil
}

// StalledJobs returns processing jobs whose heartbeat predates the liveness
// window. Stalled jobs are reported, never requeued automatically.
func (s *Store) StalledJobs(ctx context.Context, kind Kind, window time.Duration) ([]*Job, error) {
	processing, err := s.ListByStatus(ctx, kind, StatusProcessing)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var stalled []*Job
	for _, job := range processing {
		if !job.ActivelyProgressing(now, window) {
			stalled = append(stalled, job)
		}
	}
	return stalled, nil
}

// ClearCompleted removes completed and downloaded rows from a kind table.
func (s *Store) ClearCompleted(ctx context.Context, kind Kind) (int64, error) {
	return s.clear(ctx, kind, StatusCompleted, StatusDownloaded)
}

// ClearFailed removes failed rows from a kind table.
func (s *Store) ClearFailed(ctx context.Context, kind Kind) (int64, error) {
	return s.clear(ctx, kind, StatusFailed)
}

// ClearTerminal removes every terminal row from a kind table. Active jobs
// always survive maintenance.
func (s *Store) ClearTerminal(ctx context.Context, kind Kind) (int64, error) {
	return s.clear(ctx, kind, StatusCompleted, StatusDownloaded, StatusFailed, StatusCancelled)
}

func (s *Store) clear(ctx context.Context, kind Kind, statuses ...Status) (int64, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return 0, err
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM `+table+` WHERE status IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("clear %s jobs: %w", kind, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear rows affected: %w", err)
	}
	return removed, nil
}

// CheckHealth verifies the database answers a trivial query.
func (s *Store) CheckHealth(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("job store health check: %w", err)
	}
	return nil
}
