package daemon

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gallerina/internal/admission"
	"gallerina/internal/api"
	"gallerina/internal/fallback"
	"gallerina/internal/fileutil"
	"gallerina/internal/jobs"
	"gallerina/internal/logging"
)

// PlaceholderHeader marks a served thumbnail as a stand-in for a larger
// size still being generated.
const PlaceholderHeader = "X-Gallerina-Placeholder"

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	overview, err := s.statusSvc.Overview(r.Context(), s.daemon.Running())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, overview)
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	since, err := parseSince(query.Get("since"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if session := strings.TrimSpace(query.Get("session")); session != "" {
		resp, err := s.statusSvc.ForSession(r.Context(), session, since)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, resp)
		return
	}

	resp, err := s.statusSvc.Recent(r.Context(), since)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type targetsRequest struct {
	Kind    string   `json:"kind"`
	Targets []string `json:"targets"`
	Since   string   `json:"since,omitempty"`
}

func (s *apiServer) handleJobsByTargets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req targetsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeServiceError(w, err)
		return
	}
	kind, ok := jobs.ParseKind(req.Kind)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown job kind")
		return
	}
	since, err := parseSince(req.Since)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp, err := s.statusSvc.ForTargets(r.Context(), kind, req.Targets, since)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type cancelRequest struct {
	Kind string `json:"kind,omitempty"`
}

func (s *apiServer) handleCancelRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req cancelRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeServiceError(w, err)
		return
	}

	kinds := jobs.AllKinds()
	if req.Kind != "" {
		kind, ok := jobs.ParseKind(req.Kind)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown job kind")
			return
		}
		kinds = []jobs.Kind{kind}
	}

	window := time.Duration(s.daemon.cfg.Workers.CancelWindow) * time.Second
	var total int64
	for _, kind := range kinds {
		cancelled, err := s.daemon.store.CancelRecent(r.Context(), kind, window)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		total += cancelled
	}
	s.writeJSON(w, http.StatusOK, api.CancelResponse{Cancelled: total})
}

type thumbnailRequest struct {
	Target   string `json:"target"`
	SizeTier int    `json:"sizeTier"`
}

func (s *apiServer) handleEnqueueThumbnail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req thumbnailRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeServiceError(w, err)
		return
	}
	decision, err := s.daemon.gate.EnqueueThumbnail(r.Context(), req.Target, req.SizeTier)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, s.enqueueResponse(decision))
}

type folderRequest struct {
	Folder   string `json:"folder"`
	SizeTier int    `json:"sizeTier"`
}

func (s *apiServer) handleEnqueueFolder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req folderRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeServiceError(w, err)
		return
	}
	result, err := s.daemon.gate.EnqueueFolderThumbnails(r.Context(), req.Folder, req.SizeTier)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := api.FolderEnqueueResponse{Outcome: string(result.Outcome)}
	if result.Job != nil {
		view := api.FromReport(s.daemon.reporter.Report(result.Job))
		resp.Job = &view
	}
	for _, preview := range result.RawPreviews {
		if preview.Outcome == admission.OutcomeQueued {
			resp.RawPreviewsQueued++
		}
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *apiServer) handleServeThumbnail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	target := query.Get("target")
	sizeTier := s.daemon.cfg.Thumbnails.StandardTier
	if raw := query.Get("sizeTier"); raw != "" {
		parsed, ok := parseTier(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "invalid size tier")
			return
		}
		sizeTier = parsed
	}

	served, err := s.daemon.fallback.Thumbnail(r.Context(), target, sizeTier)
	if err != nil {
		if errors.Is(err, fallback.ErrNotReady) {
			w.Header().Set("Retry-After", "2")
			s.writeError(w, http.StatusAccepted, "generation queued; retry shortly")
			return
		}
		s.writeServiceError(w, err)
		return
	}
	if served.Placeholder {
		w.Header().Set(PlaceholderHeader, "1")
	}
	http.ServeFile(w, r, served.Path)
}

type zipRequest struct {
	Folder    string   `json:"folder,omitempty"`
	Members   []string `json:"members,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
}

func (s *apiServer) handleEnqueueZip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req zipRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeServiceError(w, err)
		return
	}
	if req.Folder != "" && len(req.Members) > 0 {
		s.writeError(w, http.StatusBadRequest, "request must name a folder or members, not both")
		return
	}

	var decision admission.Decision
	var err error
	if req.Folder != "" {
		decision, err = s.daemon.gate.EnqueueZipFolder(r.Context(), req.Folder, req.SessionID)
	} else {
		decision, err = s.daemon.gate.EnqueueZipList(r.Context(), req.Members, req.SessionID)
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, s.enqueueResponse(decision))
}

func (s *apiServer) handleZipByToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/zips/")
	token, tail, _ := strings.Cut(rest, "/")
	if token == "" {
		s.writeError(w, http.StatusNotFound, "zip job not found")
		return
	}

	switch tail {
	case "":
		view, err := s.statusSvc.ForToken(r.Context(), token)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, view)
	case "download":
		s.serveZipDownload(w, r, token)
	default:
		s.writeError(w, http.StatusNotFound, "zip job not found")
	}
}

// serveZipDownload streams a finished archive. The first successful
// download flips the job to downloaded; later downloads serve the same
// bytes without further transitions.
func (s *apiServer) serveZipDownload(w http.ResponseWriter, r *http.Request, token string) {
	job, err := s.daemon.store.GetByToken(r.Context(), token)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "zip job not found")
		return
	}
	switch job.Status {
	case jobs.StatusCompleted, jobs.StatusDownloaded:
	default:
		s.writeError(w, http.StatusConflict, "archive not ready")
		return
	}
	if !fileutil.FileExistsNonEmpty(job.ResultArtifact) {
		s.writeError(w, http.StatusGone, "archive no longer available")
		return
	}

	if err := s.daemon.store.MarkDownloaded(r.Context(), job.ID); err != nil {
		s.logger.Warn("failed to mark zip downloaded", logging.Error(err))
	}
	w.Header().Set("Content-Type", "application/zip")
	http.ServeFile(w, r, job.ResultArtifact)
}

func (s *apiServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.daemon.index == nil {
		s.writeJSON(w, http.StatusOK, api.IndexResponse{})
		return
	}
	entries, err := s.daemon.index.Active(r.Context(), strings.TrimSpace(r.URL.Query().Get("source")))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.IndexResponse{Folders: api.FromIndexEntries(entries)})
}

func (s *apiServer) handleIndexRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.daemon.rebuilder == nil {
		s.writeError(w, http.StatusConflict, "index disabled")
		return
	}
	batchID, count, err := s.daemon.rebuilder.Rebuild(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"batchId": batchID, "entries": count})
}

func (s *apiServer) enqueueResponse(decision admission.Decision) api.EnqueueResponse {
	resp := api.EnqueueResponse{Outcome: string(decision.Outcome)}
	if decision.Job != nil {
		view := api.FromReport(s.daemon.reporter.Report(decision.Job))
		resp.Job = &view
		resp.Token = decision.Job.Token
	}
	return resp
}

func parseTier(raw string) (int, bool) {
	tier := 0
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, false
		}
		tier = tier*10 + int(c-'0')
		if tier > 1<<20 {
			return 0, false
		}
	}
	return tier, tier > 0
}
