package api

import (
	"gallerina/internal/dirindex"
	"gallerina/internal/status"
)

// FromReport converts a status report to its API representation.
func FromReport(report status.JobReport) JobView {
	view := JobView{
		ID:             report.ID,
		Kind:           string(report.Kind),
		Target:         report.Target,
		SizeTier:       report.SizeTier,
		Status:         string(report.Status),
		TotalUnits:     report.TotalUnits,
		ProcessedUnits: report.ProcessedUnits,
		CurrentUnit:    report.CurrentUnit,
		Active:         report.Active,
		Stalled:        report.Stalled,
		ResultMessage:  report.ResultMessage,
		SessionID:      report.SessionID,
		Token:          report.Token,
	}
	if report.TotalUnits > 0 {
		view.Percent = float64(report.ProcessedUnits) / float64(report.TotalUnits) * 100
	}
	if !report.CreatedAt.IsZero() {
		view.CreatedAt = report.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if report.CompletedAt != nil {
		view.CompletedAt = report.CompletedAt.UTC().Format(dateTimeFormat)
	}
	return view
}

// FromReports converts a slice of status reports.
func FromReports(reports []status.JobReport) []JobView {
	views := make([]JobView, 0, len(reports))
	for _, report := range reports {
		views = append(views, FromReport(report))
	}
	return views
}

// FromOverview converts aggregate queue state.
func FromOverview(overview status.Overview, running bool) OverviewResponse {
	resp := OverviewResponse{Running: running, Kinds: make([]KindCounts, 0, len(overview.Kinds))}
	for _, stats := range overview.Kinds {
		counts := make(map[string]int, len(stats.Counts))
		for statusKey, count := range stats.Counts {
			counts[string(statusKey)] = count
		}
		resp.Kinds = append(resp.Kinds, KindCounts{
			Kind:    string(stats.Kind),
			Total:   stats.Total,
			Counts:  counts,
			Stalled: overview.Stalled[stats.Kind],
		})
	}
	return resp
}

// FromIndexEntries converts directory index entries.
func FromIndexEntries(entries []dirindex.Entry) []FolderView {
	views := make([]FolderView, 0, len(entries))
	for _, entry := range entries {
		view := FolderView{
			SourceKey:      entry.SourceKey,
			DirectoryPath:  entry.DirectoryPath,
			FileCount:      entry.FileCount,
			FirstImagePath: entry.FirstImagePath,
			Protected:      entry.IsProtected,
			HasThumbnail:   entry.HasThumbnail,
		}
		if !entry.LastModified.IsZero() {
			view.LastModified = entry.LastModified.UTC().Format(dateTimeFormat)
		}
		views = append(views, view)
	}
	return views
}
