package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobView describes a job in a transport-friendly format.
type JobView struct {
	ID             int64   `json:"id"`
	Kind           string  `json:"kind"`
	Target         string  `json:"target"`
	SizeTier       int     `json:"sizeTier,omitempty"`
	Status         string  `json:"status"`
	TotalUnits     int     `json:"totalUnits"`
	ProcessedUnits int     `json:"processedUnits"`
	Percent        float64 `json:"percent"`
	CurrentUnit    string  `json:"currentUnit,omitempty"`
	Active         bool    `json:"active"`
	Stalled        bool    `json:"stalled"`
	CreatedAt      string  `json:"createdAt,omitempty"`
	CompletedAt    string  `json:"completedAt,omitempty"`
	ResultMessage  string  `json:"resultMessage,omitempty"`
	SessionID      string  `json:"sessionId,omitempty"`
	Token          string  `json:"token,omitempty"`
}

// EnqueueResponse reports the admission outcome for an enqueue request.
type EnqueueResponse struct {
	Outcome string   `json:"outcome"`
	Job     *JobView `json:"job,omitempty"`
	Token   string   `json:"token,omitempty"`
}

// FolderEnqueueResponse reports the admission outcome for a whole-folder
// thumbnail request. Job is the folder-target job when one was queued or
// already live; RawPreviewsQueued counts the RAW files routed to their own
// preview queue.
type FolderEnqueueResponse struct {
	Outcome           string   `json:"outcome"`
	Job               *JobView `json:"job,omitempty"`
	RawPreviewsQueued int      `json:"rawPreviewsQueued,omitempty"`
}

// StatusResponse wraps a set of job views for polling clients.
type StatusResponse struct {
	Jobs []JobView `json:"jobs"`
}

// KindCounts summarizes one queue table.
type KindCounts struct {
	Kind    string         `json:"kind"`
	Total   int            `json:"total"`
	Counts  map[string]int `json:"counts"`
	Stalled int            `json:"stalled"`
}

// OverviewResponse summarizes daemon and queue state.
type OverviewResponse struct {
	Running bool         `json:"running"`
	Kinds   []KindCounts `json:"kinds"`
}

// CancelResponse reports how many jobs a bulk cancel transitioned.
type CancelResponse struct {
	Cancelled int64 `json:"cancelled"`
}

// FolderView describes an indexed gallery folder.
type FolderView struct {
	SourceKey      string `json:"sourceKey"`
	DirectoryPath  string `json:"directoryPath"`
	FileCount      int    `json:"fileCount"`
	FirstImagePath string `json:"firstImagePath,omitempty"`
	LastModified   string `json:"lastModified,omitempty"`
	Protected      bool   `json:"protected"`
	HasThumbnail   bool   `json:"hasThumbnail"`
}

// IndexResponse wraps the active directory index.
type IndexResponse struct {
	Folders []FolderView `json:"folders"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
