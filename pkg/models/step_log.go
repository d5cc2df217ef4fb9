package models

import "time"

// StepLogStatus represents the state recorded for one step attempt.
type StepLogStatus string

const (
	StepLogStarted   StepLogStatus = "started"
	StepLogCompleted StepLogStatus = "completed"
	StepLogFailed    StepLogStatus = "failed"
)

// StepLog is one append-only audit row for a step attempt. Every attempt
// produces a "started" row followed by a "completed" or "failed" row; rows are
// never mutated and the engine never reads them back in the hot path.
type StepLog struct {
	ID           string         `json:"id"`
	EnrollmentID string         `json:"enrollment_id"`
	StepID       string         `json:"step_id"`
	Position     int            `json:"position"`
	Kind         StepKind       `json:"kind"`
	Status       StepLogStatus  `json:"status"`
	Input        map[string]any `json:"input,omitempty"`
	Output       map[string]any `json:"output,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
	CreatedAt    time.Time      `json:"created_at"`
}
