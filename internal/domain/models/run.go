package models

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Run summarises one fetch → flatten → export execution.
//
// Runs are recorded for auditing only; a new run never consults previous ones.
type Run struct {
	ID              uuid.UUID `json:"id"`
	RunDate         time.Time `json:"run_date"`
	FeedURL         string    `json:"feed_url"`
	DownloadLink    string    `json:"download_link,omitempty"`
	ArchiveName     string    `json:"archive_name,omitempty"`
	NewCount        int       `json:"new_count"`
	TerminatedCount int       `json:"terminated_count"`
	ModifiedCount   int       `json:"modified_count"`
	ErrorCount      int       `json:"error_count"`
	Status          string    `json:"status"`
	Message         string    `json:"message,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at,omitempty"`
}

// ApplyCounts copies the collection sizes of a flatten result into the run.
func (r *Run) ApplyCounts(res *FlattenResult) {
	r.NewCount = len(res.New)
	r.TerminatedCount = len(res.Terminated)
	r.ModifiedCount = len(res.Modified)
	r.ErrorCount = len(res.Errors)
}

// RunFilter narrows ListRuns queries.
type RunFilter struct {
	Since *time.Time
	Limit uint64
}
