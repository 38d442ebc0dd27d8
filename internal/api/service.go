package api

import (
	"context"
	"time"

	"gallerina/internal/jobs"
	"gallerina/internal/status"
)

// StatusReader abstracts the status queries the API exposes.
type StatusReader interface {
	Overview(ctx context.Context) (status.Overview, error)
	Recent(ctx context.Context, since time.Time) ([]status.JobReport, error)
	ForTargets(ctx context.Context, kind jobs.Kind, targets []string, since time.Time) ([]status.JobReport, error)
	ForSession(ctx context.Context, sessionID string, since time.Time) ([]status.JobReport, error)
	ForToken(ctx context.Context, token string) (status.JobReport, error)
}

// StatusService exposes read-only status operations returning API DTOs.
type StatusService struct {
	reader StatusReader
}

// NewStatusService constructs a StatusService around the provided reader.
func NewStatusService(reader StatusReader) *StatusService {
	if reader == nil {
		return nil
	}
	return &StatusService{reader: reader}
}

// Overview returns aggregate queue counts.
func (s *StatusService) Overview(ctx context.Context, running bool) (OverviewResponse, error) {
	if s == nil || s.reader == nil {
		return OverviewResponse{}, nil
	}
	overview, err := s.reader.Overview(ctx)
	if err != nil {
		return OverviewResponse{}, err
	}
	return FromOverview(overview, running), nil
}

// Recent returns all jobs created at or after since.
func (s *StatusService) Recent(ctx context.Context, since time.Time) (StatusResponse, error) {
	if s == nil || s.reader == nil {
		return StatusResponse{}, nil
	}
	reports, err := s.reader.Recent(ctx, since)
	if err != nil {
		return StatusResponse{}, err
	}
	return StatusResponse{Jobs: FromReports(reports)}, nil
}

// ForTargets returns jobs of a kind over an explicit target set.
func (s *StatusService) ForTargets(ctx context.Context, kind jobs.Kind, targets []string, since time.Time) (StatusResponse, error) {
	if s == nil || s.reader == nil {
		return StatusResponse{}, nil
	}
	reports, err := s.reader.ForTargets(ctx, kind, targets, since)
	if err != nil {
		return StatusResponse{}, err
	}
	return StatusResponse{Jobs: FromReports(reports)}, nil
}

// ForSession returns jobs tagged with a session label.
func (s *StatusService) ForSession(ctx context.Context, sessionID string, since time.Time) (StatusResponse, error) {
	if s == nil || s.reader == nil {
		return StatusResponse{}, nil
	}
	reports, err := s.reader.ForSession(ctx, sessionID, since)
	if err != nil {
		return StatusResponse{}, err
	}
	return StatusResponse{Jobs: FromReports(reports)}, nil
}

// ForToken returns the zip job behind a download token.
func (s *StatusService) ForToken(ctx context.Context, token string) (JobView, error) {
	if s == nil || s.reader == nil {
		return JobView{}, nil
	}
	report, err := s.reader.ForToken(ctx, token)
	if err != nil {
		return JobView{}, err
	}
	return FromReport(report), nil
}
