package jobs

import (
	"strings"
	"time"
)

// Kind identifies which processing table a job belongs to.
type Kind string

const (
	KindThumbnail  Kind = "thumbnail"
	KindZip        Kind = "zip"
	KindRawPreview Kind = "raw_preview"
)

// AllKinds returns the ordered list of known job kinds.
func AllKinds() []Kind {
	return []Kind{KindThumbnail, KindZip, KindRawPreview}
}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case KindThumbnail, KindZip, KindRawPreview:
		return normalized, true
	}
	return "", false
}

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusDownloaded Status = "downloaded"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
	StatusDownloaded,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further worker transition applies to a status.
// Downloaded is terminal by definition; completed is terminal until a zip
// download flips it to downloaded.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusDownloaded:
		return true
	}
	return false
}

// ExplicitListTarget is the sentinel target for zip jobs built from an
// explicit member list instead of a folder.
const ExplicitListTarget = "@filelist"

// Job is a unit of asynchronous work persisted in one of the kind tables.
type Job struct {
	ID             int64
	Kind           Kind
	Target         string
	SizeTier       int
	Status         Status
	TotalUnits     int
	ProcessedUnits int
	CurrentUnit    string
	CreatedAt      time.Time
	ClaimedAt      *time.Time
	CompletedAt    *time.Time
	LastHeartbeat  *time.Time
	WorkerID       string
	ResultMessage  string
	ResultArtifact string
	SessionID      string
	Token          string
	Members        []string
}

// IsActive reports whether the job occupies the dedup slot for its
// (kind, target, size_tier) tuple.
func (j *Job) IsActive() bool {
	return j.Status == StatusPending || j.Status == StatusProcessing
}

// ActivelyProgressing derives worker liveness from the heartbeat timestamps.
// A processing row whose last heartbeat predates the window is treated as
// stalled; stalls are surfaced to pollers, never auto-recovered.
func (j *Job) ActivelyProgressing(now time.Time, window time.Duration) bool {
	if j.Status != StatusProcessing {
		return false
	}
	last := j.LastHeartbeat
	if last == nil {
		last = j.ClaimedAt
	}
	if last == nil {
		return false
	}
	return now.Sub(*last) <= window
}
