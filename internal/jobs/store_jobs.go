package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Insert persists a new job row. Status defaults to pending and created_at is
// stamped by the store. The stored row is returned with its identity assigned.
func (s *Store) Insert(ctx context.Context, job *Job) (*Job, error) {
	if job == nil {
		return nil, errors.New("job is nil")
	}
	table, err := tableForKind(job.Kind)
	if err != nil {
		return nil, err
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.TotalUnits <= 0 {
		job.TotalUnits = 1
	}
	if job.ProcessedUnits > job.TotalUnits {
		return nil, fmt.Errorf("processed units %d exceeds total %d", job.ProcessedUnits, job.TotalUnits)
	}

	members, err := marshalMembers(job.Members)
	if err != nil {
		return nil, err
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO `+table+` (
            target, size_tier, status, total_units, processed_units, current_unit,
            created_at, session_id, token, member_list
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.Target,
		nullableInt(job.SizeTier),
		job.Status,
		job.TotalUnits,
		job.ProcessedUnits,
		nullableString(job.CurrentUnit),
		timestamp,
		nullableString(job.SessionID),
		nullableString(job.Token),
		members,
	)
	if err != nil {
		return nil, fmt.Errorf("insert %s job: %w", job.Kind, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, job.Kind, id)
}

// GetByID fetches a job by kind and identifier.
func (s *Store) GetByID(ctx context.Context, kind Kind, id int64) (*Job, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM `+table+` WHERE id = ?`, id)
	job, err := scanJob(kind, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s job: %w", kind, err)
	}
	return job, nil
}

// GetByToken fetches a zip job by its opaque download token.
func (s *Store) GetByToken(ctx context.Context, token string) (*Job, error) {
	if token == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM zip_jobs WHERE token = ?`, token)
	job, err := scanJob(KindZip, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by token: %w", err)
	}
	return job, nil
}

// FindActive returns the pending or processing job for a dedup tuple, if any.
// This is the read half of the check-then-insert admission gate.
func (s *Store) FindActive(ctx context.Context, kind Kind, target string, sizeTier int) (*Job, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + jobColumns + ` FROM ` + table +
		` WHERE target = ? AND status IN (?, ?)`
	args := []any{target, StatusPending, StatusProcessing}
	if sizeTier > 0 {
		query += ` AND size_tier = ?`
		args = append(args, sizeTier)
	}
	query += ` ORDER BY id LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(kind, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active %s job: %w", kind, err)
	}
	return job, nil
}

// ClaimNext atomically claims the oldest pending job of a kind for a worker.
// The conditional update only succeeds for the first claimant; losing a race
// just means trying the next candidate. Returns nil when nothing is pending.
func (s *Store) ClaimNext(ctx context.Context, kind Kind, workerID string) (*Job, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 3; attempt++ {
		var id int64
		row := s.db.QueryRowContext(ctx,
			`SELECT id FROM `+table+` WHERE status = ? ORDER BY created_at, id LIMIT 1`,
			StatusPending,
		)
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("select pending %s job: %w", kind, err)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := s.execWithRetry(
			ctx,
			`UPDATE `+table+`
             SET status = ?, worker_id = ?, claimed_at = ?, last_heartbeat = ?
             WHERE id = ? AND status = ?`,
			StatusProcessing,
			workerID,
			now,
			now,
			id,
			StatusPending,
		)
		if err != nil {
			return nil, fmt.Errorf("claim %s job: %w", kind, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 1 {
			return s.GetByID(ctx, kind, id)
		}
		// Lost the race to another worker; pick the next candidate.
	}
	return nil, nil
}

// ListByStatus returns jobs of a kind matching a status set, oldest first.
// An empty status set returns all jobs of the kind.
func (s *Store) ListByStatus(ctx context.Context, kind Kind, statuses ...Status) ([]*Job, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return nil, err
	}

	baseQuery := `SELECT ` + jobColumns + ` FROM ` + table
	orderClause := ` ORDER BY created_at, id`

	var rows *sql.Rows
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s jobs: %w", kind, err)
	}
	defer rows.Close()

	return collectJobs(kind, rows)
}

// ListSince returns jobs of a kind created at or after the lower bound.
func (s *Store) ListSince(ctx context.Context, kind Kind, since time.Time) ([]*Job, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM `+table+` WHERE created_at >= ? ORDER BY created_at, id`,
		since.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("list %s jobs since: %w", kind, err)
	}
	defer rows.Close()

	return collectJobs(kind, rows)
}

// ListByTargets returns jobs of a kind whose target is in the provided set,
// created at or after the lower bound. Used by file-set status polling.
func (s *Store) ListByTargets(ctx context.Context, kind Kind, targets []string, since time.Time) ([]*Job, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	table, err := tableForKind(kind)
	if err != nil {
		return nil, err
	}
	placeholders := makePlaceholders(len(targets))
	args := make([]any, 0, len(targets)+1)
	for _, target := range targets {
		args = append(args, target)
	}
	args = append(args, since.UTC().Format(time.RFC3339Nano))

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM `+table+
			` WHERE target IN (`+placeholders+`) AND created_at >= ? ORDER BY created_at, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s jobs by targets: %w", kind, err)
	}
	defer rows.Close()

	return collectJobs(kind, rows)
}

func collectJobs(kind Kind, rows *sql.Rows) ([]*Job, error) {
	var out []*Job
	for rows.Next() {
		job, err := scanJob(kind, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}
