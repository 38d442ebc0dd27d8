package dirindex

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gallerina/internal/config"
)

// Entry is one indexed gallery folder.
type Entry struct {
	SourceKey      string
	DirectoryPath  string
	FileCount      int
	FirstImagePath string
	LastModified   time.Time
	IsProtected    bool
	HasThumbnail   bool
	BatchID        string
}

// Index persists folder entries in its own SQLite database, separate from
// the job store so rebuild churn never contends with queue traffic.
type Index struct {
	db   *sql.DB
	path string
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS dir_index (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_key TEXT NOT NULL,
    directory_path TEXT NOT NULL,
    file_count INTEGER NOT NULL DEFAULT 0,
    first_image_path TEXT,
    last_modified TEXT,
    is_protected INTEGER NOT NULL DEFAULT 0,
    has_thumbnail INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 0,
    batch_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dir_index_active ON dir_index(is_active, source_key);
CREATE INDEX IF NOT EXISTS idx_dir_index_batch ON dir_index(batch_id);
`

// Open initializes or connects to the index database in the data directory.
func Open(cfg *config.Config) (*Index, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "index.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(indexSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}
	return &Index{db: db, path: dbPath}, nil
}

// Path returns the database file location.
func (ix *Index) Path() string {
	if ix == nil {
		return ""
	}
	return ix.path
}

// Close closes the underlying database connection.
func (ix *Index) Close() error {
	if ix == nil || ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

// Replace writes a full new batch of entries and flips it active in one
// transaction. Readers querying during the rebuild see the previous batch;
// after commit they see only the new one. Superseded batches stay in the
// table marked inactive; PruneInactive trims them later.
func (ix *Index) Replace(ctx context.Context, entries []Entry) (string, error) {
	batchID := uuid.NewString()

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin index rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO dir_index (
            source_key, directory_path, file_count, first_image_path,
            last_modified, is_protected, has_thumbnail, is_active, batch_id
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare index insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		var modified any
		if !entry.LastModified.IsZero() {
			modified = entry.LastModified.UTC().Format(time.RFC3339Nano)
		}
		if _, err := stmt.ExecContext(ctx,
			entry.SourceKey,
			entry.DirectoryPath,
			entry.FileCount,
			nullable(entry.FirstImagePath),
			modified,
			boolInt(entry.IsProtected),
			boolInt(entry.HasThumbnail),
			batchID,
		); err != nil {
			return "", fmt.Errorf("insert index entry %s: %w", entry.DirectoryPath, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE dir_index SET is_active = 0 WHERE is_active = 1`); err != nil {
		return "", fmt.Errorf("deactivate previous batch: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE dir_index SET is_active = 1 WHERE batch_id = ?`, batchID); err != nil {
		return "", fmt.Errorf("activate batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit index rebuild: %w", err)
	}
	return batchID, nil
}

// PruneInactive deletes rows from superseded batches, keeping the most
// recently written inactive batch so the previous listing survives one
// rebuild cycle. Returns the number of rows removed.
func (ix *Index) PruneInactive(ctx context.Context) (int64, error) {
	res, err := ix.db.ExecContext(ctx, `
        DELETE FROM dir_index
        WHERE is_active = 0
          AND batch_id != COALESCE(
              (SELECT batch_id FROM dir_index WHERE is_active = 0 ORDER BY id DESC LIMIT 1),
              '')`)
	if err != nil {
		return 0, fmt.Errorf("prune inactive batches: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return removed, nil
}

// Active returns the active batch, optionally filtered to one source key,
// ordered by directory path.
func (ix *Index) Active(ctx context.Context, sourceKey string) ([]Entry, error) {
	query := `SELECT source_key, directory_path, file_count, first_image_path,
        last_modified, is_protected, has_thumbnail, batch_id
        FROM dir_index WHERE is_active = 1`
	args := []any{}
	if sourceKey != "" {
		query += ` AND source_key = ?`
		args = append(args, sourceKey)
	}
	query += ` ORDER BY source_key, directory_path`

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query active index: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			firstPath sql.NullString
			modified  sql.NullString
			protected int
			hasThumb  int
		)
		if err := rows.Scan(
			&entry.SourceKey,
			&entry.DirectoryPath,
			&entry.FileCount,
			&firstPath,
			&modified,
			&protected,
			&hasThumb,
			&entry.BatchID,
		); err != nil {
			return nil, fmt.Errorf("scan index entry: %w", err)
		}
		entry.FirstImagePath = firstPath.String
		if modified.Valid {
			if t, parseErr := time.Parse(time.RFC3339Nano, modified.String); parseErr == nil {
				entry.LastModified = t
			}
		}
		entry.IsProtected = protected != 0
		entry.HasThumbnail = hasThumb != 0
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
