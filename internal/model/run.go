package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunParams records the inputs a run was started with.
type RunParams struct {
	Limit      int      `json:"limit"`
	SampleSize int      `json:"sample_size"`
	Seed       uint64   `json:"seed"`
	Sources    []string `json:"sources"`
}

// RunSummary is the diagnostic outcome of a run.
type RunSummary struct {
	Properties  int                       `json:"properties"`
	Candidates  int                       `json:"candidates"`
	Units       int                       `json:"units"`
	Message     string                    `json:"message,omitempty"`
	Sources     map[string]SourceStats    `json:"sources,omitempty"`
	Rejections  map[string]int            `json:"rejections,omitempty"`
	Breakers    map[string]string         `json:"breakers,omitempty"`
	Enrichment  map[string]EnrichmentStat `json:"enrichment,omitempty"`
	DurationMs  int64                     `json:"duration_ms"`
	Recommended int                       `json:"recommended"`
}

// SourceStats counts per-source outcomes in one run.
type SourceStats struct {
	Calls     int    `json:"calls"`
	Records   int    `json:"records"`
	Accepted  int    `json:"accepted"`
	Errors    int    `json:"errors"`
	Skipped   int    `json:"skipped"`
	LastError string `json:"last_error,omitempty"`
}

// EnrichmentStat counts outcomes for one enrichment stage.
type EnrichmentStat struct {
	Attempted int `json:"attempted"`
	Enriched  int `json:"enriched"`
	Failed    int `json:"failed"`
}

// Run is a persisted pipeline run.
type Run struct {
	ID        string      `json:"id"`
	Status    RunStatus   `json:"status"`
	Params    RunParams   `json:"params"`
	Summary   *RunSummary `json:"summary,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
