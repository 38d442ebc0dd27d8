package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"gallerina/internal/admission"
	"gallerina/internal/cachekey"
	"gallerina/internal/config"
	"gallerina/internal/dirindex"
	"gallerina/internal/fallback"
	"gallerina/internal/jobs"
	"gallerina/internal/logging"
	"gallerina/internal/sources"
	"gallerina/internal/status"
	"gallerina/internal/transform"
	"gallerina/internal/worker"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *jobs.Store
	index     *dirindex.Index
	manager   *worker.Manager
	rebuilder *dirindex.Rebuilder
	gate      *admission.Gate
	reporter  *status.Reporter
	fallback  *fallback.Generator
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon and wires every subsystem to the shared store.
func New(cfg *config.Config, store *jobs.Store, index *dirindex.Index, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	validator := sources.NewValidator(cfg)
	paths := cachekey.NewResolver(cfg.Paths.CacheRoot)
	thumbs := transform.NewThumbnailer(cfg)
	gate := admission.NewGate(store, validator, paths, cfg, logger)

	manager := worker.NewManager(cfg, store, logger)
	manager.Register(worker.NewThumbnailHandler(validator, paths, thumbs))
	manager.Register(worker.NewRawPreviewHandler(validator, paths, transform.NewRawDecoder(cfg)))
	manager.Register(worker.NewZipHandler(cfg, validator, transform.NewArchiver()))

	var rebuilder *dirindex.Rebuilder
	if index != nil {
		rebuilder = dirindex.NewRebuilder(dirindex.NewScanner(cfg, validator, paths), index, logger)
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "gallerinad.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		index:     index,
		manager:   manager,
		rebuilder: rebuilder,
		gate:      gate,
		reporter:  status.NewReporter(store, cfg),
		fallback:  fallback.NewGenerator(cfg, validator, paths, thumbs, gate, logger),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the instance lock and launches workers, the index
// scheduler, and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.store.CheckHealth(ctx); err != nil {
		return fmt.Errorf("job store health: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another gallerina daemon instance is already running")
	}

	if removed := logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: d.cfg.Paths.LogDir, Pattern: "*.log"},
		logging.RetentionTarget{Dir: d.cfg.Paths.ZipDir, Pattern: "*.zip"},
	); removed > 0 {
		d.logger.Info("pruned stale log and archive files", logging.Int("removed", removed))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.manager.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start workers: %w", err)
	}

	if d.rebuilder != nil && d.cfg.Index.Enabled {
		interval := time.Duration(d.cfg.Index.RebuildInterval) * time.Second
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.rebuilder.RunLoop(runCtx, interval)
		}()
	}

	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.manager.Stop()
			d.wg.Wait()
			_ = d.lock.Unlock()
			cancel()
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("gallerina daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.manager.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("gallerina daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var firstErr error
	if d.store != nil {
		firstErr = d.store.Close()
	}
	if d.index != nil {
		if err := d.index.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Running reports whether the daemon is started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the bound API address, empty until Start.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}
