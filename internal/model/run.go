package model

import "time"

// RunStatus is the state of a persisted import run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusWarnings RunStatus = "complete_with_warnings"
	RunStatusFailed   RunStatus = "failed"
)

// ImportRun is the history entry for one import attempt of one record.
type ImportRun struct {
	ID          string         `json:"id"`
	RecordID    string         `json:"record_id"`
	Tracking    string         `json:"tracking"`
	Status      RunStatus      `json:"status"`
	ExternalKey string         `json:"external_key,omitempty"`
	Progress    *ProgressState `json:"progress,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// RunStatusFor derives the run status from a finished record result.
func RunStatusFor(r RecordResult) RunStatus {
	switch r.Outcome() {
	case OutcomeFailed:
		return RunStatusFailed
	case OutcomeWarnings:
		return RunStatusWarnings
	default:
		return RunStatusComplete
	}
}
