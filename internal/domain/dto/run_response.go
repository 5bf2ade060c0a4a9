package dto

import (
	"time"

	"github.com/guttosm/firdspulse/internal/domain/models"
)

// RunResponse is the API view of a recorded run.
type RunResponse struct {
	ID              string     `json:"id"`
	RunDate         string     `json:"run_date" example:"20210117"`
	Status          string     `json:"status" example:"succeeded"`
	DownloadLink    string     `json:"download_link,omitempty"`
	ArchiveName     string     `json:"archive_name,omitempty"`
	NewCount        int        `json:"new_count"`
	TerminatedCount int        `json:"terminated_count"`
	ModifiedCount   int        `json:"modified_count"`
	ErrorCount      int        `json:"error_count"`
	Message         string     `json:"message,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// NewRunResponse maps a domain run to its response DTO.
func NewRunResponse(r models.Run) RunResponse {
	resp := RunResponse{
		ID:              r.ID.String(),
		RunDate:         r.RunDate.Format("20060102"),
		Status:          r.Status,
		DownloadLink:    r.DownloadLink,
		ArchiveName:     r.ArchiveName,
		NewCount:        r.NewCount,
		TerminatedCount: r.TerminatedCount,
		ModifiedCount:   r.ModifiedCount,
		ErrorCount:      r.ErrorCount,
		Message:         r.Message,
		StartedAt:       r.StartedAt,
	}
	if !r.FinishedAt.IsZero() {
		f := r.FinishedAt
		resp.FinishedAt = &f
	}
	return resp
}

// RunListResponse wraps a page of runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// TriggerResponse is returned by POST /api/v1/runs.
// Shared is true when the caller joined a run that was already in flight.
type TriggerResponse struct {
	Run    RunResponse `json:"run"`
	Shared bool        `json:"shared"`
}
