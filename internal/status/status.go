package status

import (
	"context"
	"time"

	"gallerina/internal/config"
	"gallerina/internal/jobs"
	"gallerina/internal/services"
)

// JobReport is the client-facing view of one job. Liveness is derived at
// read time from heartbeat recency; the row itself never stores it.
type JobReport struct {
	ID             int64
	Kind           jobs.Kind
	Target         string
	SizeTier       int
	Status         jobs.Status
	TotalUnits     int
	ProcessedUnits int
	CurrentUnit    string
	Active         bool
	Stalled        bool
	CreatedAt      time.Time
	CompletedAt    *time.Time
	ResultMessage  string
	ResultArtifact string
	SessionID      string
	Token          string
}

// Overview aggregates queue counts across all kinds, plus how many
// processing jobs have gone quiet.
type Overview struct {
	Kinds   []jobs.KindStats
	Stalled map[jobs.Kind]int
}

// Reporter answers status queries against the job store.
type Reporter struct {
	store    *jobs.Store
	liveness time.Duration
}

// NewReporter constructs a reporter with the configured liveness window.
func NewReporter(store *jobs.Store, cfg *config.Config) *Reporter {
	return &Reporter{
		store:    store,
		liveness: time.Duration(cfg.Workers.LivenessWindow) * time.Second,
	}
}

// Overview returns per-kind counts and stall totals.
func (r *Reporter) Overview(ctx context.Context) (Overview, error) {
	stats, err := r.store.Stats(ctx)
	if err != nil {
		return Overview{}, err
	}
	stalled := make(map[jobs.Kind]int, len(jobs.AllKinds()))
	for _, kind := range jobs.AllKinds() {
		quiet, err := r.store.StalledJobs(ctx, kind, r.liveness)
		if err != nil {
			return Overview{}, err
		}
		stalled[kind] = len(quiet)
	}
	return Overview{Kinds: stats, Stalled: stalled}, nil
}

// Recent reports every job of every kind created at or after the lower
// bound, oldest first within each kind.
func (r *Reporter) Recent(ctx context.Context, since time.Time) ([]JobReport, error) {
	now := time.Now().UTC()
	var reports []JobReport
	for _, kind := range jobs.AllKinds() {
		listed, err := r.store.ListSince(ctx, kind, since)
		if err != nil {
			return nil, err
		}
		for _, job := range listed {
			reports = append(reports, r.report(job, now))
		}
	}
	return reports, nil
}

// ForTargets reports jobs of one kind whose target is in the supplied set,
// bounded below by since. Clients poll this while a gallery page is open.
func (r *Reporter) ForTargets(ctx context.Context, kind jobs.Kind, targets []string, since time.Time) ([]JobReport, error) {
	listed, err := r.store.ListByTargets(ctx, kind, targets, since)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	reports := make([]JobReport, 0, len(listed))
	for _, job := range listed {
		reports = append(reports, r.report(job, now))
	}
	return reports, nil
}

// ForSession reports jobs of every kind tagged with a session label.
func (r *Reporter) ForSession(ctx context.Context, sessionID string, since time.Time) ([]JobReport, error) {
	if sessionID == "" {
		return nil, services.Wrap(services.ErrValidation, "status", "for-session", "empty session id", nil)
	}
	now := time.Now().UTC()
	var reports []JobReport
	for _, kind := range jobs.AllKinds() {
		listed, err := r.store.ListSince(ctx, kind, since)
		if err != nil {
			return nil, err
		}
		for _, job := range listed {
			if job.SessionID != sessionID {
				continue
			}
			reports = append(reports, r.report(job, now))
		}
	}
	return reports, nil
}

// ForToken reports the zip job behind an opaque download token. A missing
// token is a not-found rejection.
func (r *Reporter) ForToken(ctx context.Context, token string) (JobReport, error) {
	job, err := r.store.GetByToken(ctx, token)
	if err != nil {
		return JobReport{}, err
	}
	if job == nil {
		return JobReport{}, services.Wrap(services.ErrNotFound, "status", "for-token", "unknown token", nil)
	}
	return r.report(job, time.Now().UTC()), nil
}

// Report builds the client view of a single job, deriving liveness from
// the current clock.
func (r *Reporter) Report(job *jobs.Job) JobReport {
	return r.report(job, time.Now().UTC())
}

func (r *Reporter) report(job *jobs.Job, now time.Time) JobReport {
	active := job.ActivelyProgressing(now, r.liveness)
	return JobReport{
		ID:             job.ID,
		Kind:           job.Kind,
		Target:         job.Target,
		SizeTier:       job.SizeTier,
		Status:         job.Status,
		TotalUnits:     job.TotalUnits,
		ProcessedUnits: job.ProcessedUnits,
		CurrentUnit:    job.CurrentUnit,
		Active:         active,
		Stalled:        job.Status == jobs.StatusProcessing && !active,
		CreatedAt:      job.CreatedAt,
		CompletedAt:    job.CompletedAt,
		ResultMessage:  job.ResultMessage,
		ResultArtifact: job.ResultArtifact,
		SessionID:      job.SessionID,
		Token:          job.Token,
	}
}
