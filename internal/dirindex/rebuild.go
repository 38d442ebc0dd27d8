package dirindex

import (
	"context"
	"log/slog"
	"time"

	"gallerina/internal/logging"
)

// Rebuilder ties the scanner to the index. Rebuilds run out of band, from
// the daemon ticker or an explicit CLI trigger, never on a request path.
type Rebuilder struct {
	scanner *Scanner
	index   *Index
	logger  *slog.Logger
}

// NewRebuilder constructs a rebuilder.
func NewRebuilder(scanner *Scanner, index *Index, logger *slog.Logger) *Rebuilder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Rebuilder{
		scanner: scanner,
		index:   index,
		logger:  logging.NewComponentLogger(logger, "dirindex"),
	}
}

// Rebuild scans all source roots and replaces the active batch. Returns the
// new batch id and entry count.
func (r *Rebuilder) Rebuild(ctx context.Context) (string, int, error) {
	started := time.Now()
	entries, err := r.scanner.Scan(ctx)
	if err != nil {
		return "", 0, err
	}
	batchID, err := r.index.Replace(ctx, entries)
	if err != nil {
		return "", 0, err
	}
	pruned, err := r.index.PruneInactive(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "pruning superseded batches failed", logging.Error(err))
	}
	r.logger.InfoContext(ctx, "index rebuilt",
		logging.String("batch_id", batchID),
		logging.Int("entries", len(entries)),
		logging.Int64("pruned", pruned),
		logging.Duration("elapsed", time.Since(started)))
	return batchID, len(entries), nil
}

// RunLoop rebuilds on a fixed interval until the context is cancelled. An
// initial rebuild runs immediately so a fresh daemon serves listings.
func (r *Rebuilder) RunLoop(ctx context.Context, interval time.Duration) {
	if _, _, err := r.Rebuild(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("initial index rebuild failed", logging.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := r.Rebuild(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("index rebuild failed", logging.Error(err))
			}
		}
	}
}
