package model

import "time"

// Run statuses as stored in the runs table.
const (
	RunStatusRunning          = "running"
	RunStatusCompleted        = "completed"
	RunStatusInsufficientData = "insufficient_data"
	RunStatusFailed           = "failed"
)

// Year outcome statuses.
const (
	YearStatusOK      = "ok"
	YearStatusSkipped = "skipped"
)

// YearOutcome records what happened when a single year was fetched.
type YearOutcome struct {
	Year        int    `json:"year"`
	Status      string `json:"status"`
	RecordCount int    `json:"record_count"`
	StatusCode  int    `json:"status_code,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// StageMetrics tracks timing for one pipeline stage
type StageMetrics struct {
	Stage            string     `json:"stage"`
	Status           string     `json:"status"` // "started", "completed", "failed"
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	RecordsProcessed int        `json:"records_processed"`
}

// RunSummary is returned by a completed (or cleanly aborted) run.
type RunSummary struct {
	RunID           string         `json:"run_id"`
	StartYear       int            `json:"start_year"`
	RequestedYears  []int          `json:"requested_years"`
	SuccessfulYears []int          `json:"successful_years"`
	Skipped         []YearOutcome  `json:"skipped"`
	Municipalities  int            `json:"municipalities"`
	ArtifactPath    string         `json:"artifact_path,omitempty"`
	Exports         []ExportResult `json:"exports"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
}

// RunInfo is a run as persisted in the store.
type RunInfo struct {
	ID           string    `json:"id"`
	StartYear    int       `json:"start_year"`
	Status       string    `json:"status"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RunError is a fatal error recorded against a run.
type RunError struct {
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
