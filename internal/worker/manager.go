package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gallerina/internal/config"
	"gallerina/internal/jobs"
	"gallerina/internal/logging"
	"gallerina/internal/services"
)

// Manager coordinates queue processing with one lane goroutine per
// registered handler.
type Manager struct {
	cfg        *config.Config
	store      *jobs.Store
	logger     *slog.Logger
	handlers   map[jobs.Kind]Handler
	kindOrder  []jobs.Kind
	pollEvery  time.Duration
	errorRetry time.Duration
	heartbeat  *HeartbeatMonitor
	workerID   string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a manager. Handlers are registered before Start.
func NewManager(cfg *config.Config, store *jobs.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "gallerina"
	}
	return &Manager{
		cfg:        cfg,
		store:      store,
		logger:     logger,
		handlers:   make(map[jobs.Kind]Handler),
		pollEvery:  time.Duration(cfg.Workers.PollInterval) * time.Second,
		errorRetry: time.Duration(cfg.Workers.ErrorRetryInterval) * time.Second,
		heartbeat:  NewHeartbeatMonitor(store, logger, time.Duration(cfg.Workers.HeartbeatInterval)*time.Second),
		workerID:   fmt.Sprintf("%s-%d", hostname, os.Getpid()),
	}
}

// Register adds a handler for its kind, replacing any previous registration.
func (m *Manager) Register(handler Handler) {
	kind := handler.Kind()
	if _, exists := m.handlers[kind]; !exists {
		m.kindOrder = append(m.kindOrder, kind)
	}
	m.handlers[kind] = handler
}

// WorkerID returns the identity lanes claim jobs under.
func (m *Manager) WorkerID() string {
	return m.workerID
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workers already running")
	}
	if len(m.handlers) == 0 {
		return errors.New("no handlers registered")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(len(m.kindOrder))
	for _, kind := range m.kindOrder {
		go m.runLane(runCtx, kind, m.handlers[kind])
	}
	return nil
}

// Stop terminates background processing and waits for lanes to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runLane(ctx context.Context, kind jobs.Kind, handler Handler) {
	defer m.wg.Done()
	logger := m.logger.With(
		logging.String(logging.FieldComponent, "worker"),
		logging.String(logging.FieldJobKind, string(kind)),
	)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.ClaimNext(ctx, kind, m.workerID)
		if err != nil {
			logger.Error("failed to claim next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "claim_failed"),
				logging.String(logging.FieldErrorHint, "check job database access"))
			m.sleep(ctx, m.errorRetry)
			continue
		}
		if job == nil {
			m.sleep(ctx, m.pollEvery)
			continue
		}

		if err := m.processJob(ctx, logger, handler, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) processJob(ctx context.Context, logger *slog.Logger, handler Handler, job *jobs.Job) error {
	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithJobKind(jobCtx, string(job.Kind))
	jobLogger := logging.WithContext(jobCtx, logger)

	jobLogger.Info("job started",
		logging.String(logging.FieldTarget, job.Target),
		logging.Int(logging.FieldSizeTier, job.SizeTier),
		logging.String(logging.FieldEventType, "job_started"))

	hbCtx, stopHeartbeat := context.WithCancel(jobCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.Kind, job.ID)

	progress := func(processed int, currentUnit string) {
		if err := m.store.SetProgress(jobCtx, job.Kind, job.ID, processed, currentUnit); err != nil {
			jobLogger.Warn("progress update failed", logging.Error(err))
		}
	}

	result, execErr := handler.Execute(jobCtx, job, progress)
	stopHeartbeat()
	hbWG.Wait()

	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			return execErr
		}
		final, err := m.store.MarkFailed(jobCtx, job.Kind, job.ID, execErr.Error())
		if err != nil {
			jobLogger.Error("failed to record job failure", logging.Error(err))
			return err
		}
		if final == nil {
			// Row removed while the worker was still running, e.g. a clear
			// racing the handler. Nothing left to record.
			jobLogger.Warn("job row gone before failure was recorded",
				logging.Error(execErr),
				logging.String(logging.FieldEventType, "job_failed"))
			return nil
		}
		jobLogger.Error("job failed",
			logging.Error(execErr),
			logging.String("final_status", string(final.Status)),
			logging.String(logging.FieldEventType, "job_failed"))
		return nil
	}

	final, err := m.store.MarkCompleted(jobCtx, job.Kind, job.ID, result.Message, result.Artifact)
	if err != nil {
		jobLogger.Error("failed to record job completion", logging.Error(err))
		return err
	}
	if final == nil {
		jobLogger.Warn("job row gone before completion was recorded",
			logging.String("artifact", result.Artifact),
			logging.String(logging.FieldEventType, "job_completed"))
		return nil
	}
	if final.Status == jobs.StatusCancelled {
		jobLogger.Info("job cancelled during execution; output kept but row stays cancelled",
			logging.String(logging.FieldEventType, "job_cancelled_late"))
		return nil
	}
	jobLogger.Info("job completed",
		logging.String("artifact", result.Artifact),
		logging.String(logging.FieldEventType, "job_completed"))
	return nil
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
