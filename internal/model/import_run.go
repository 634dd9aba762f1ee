package model

import (
	"time"

	"github.com/google/uuid"
)

// Import run states as reported by the run registry.
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ImportRun is the pollable state of one pipeline invocation.
type ImportRun struct {
	ID            uuid.UUID     `json:"id"`
	Status        string        `json:"status"`
	ProcessedRows int           `json:"processed_rows"`
	TotalRows     int           `json:"total_rows"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	Error         string        `json:"error,omitempty"`
	Report        *ImportReport `json:"report,omitempty"`
}

// EntityResult holds per-entity import counters.
type EntityResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

// ImportSummary aggregates the per-entity counters.
type ImportSummary struct {
	TotalProcessed int     `json:"total_processed"`
	TotalSuccess   int     `json:"total_success"`
	TotalErrors    int     `json:"total_errors"`
	SuccessRate    float64 `json:"success_rate"`
}

// ImportReport is the batch result contract returned to callers. The
// error list is capped so the response stays bounded.
type ImportReport struct {
	Summary ImportSummary           `json:"summary"`
	Details map[string]EntityResult `json:"details"`
	Errors  []string                `json:"errors"`

	ScoredEpisodes int `json:"scored_episodes,omitempty"`
}
