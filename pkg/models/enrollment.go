package models

import "time"

// EnrollmentStatus represents the lifecycle state of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusFailed    EnrollmentStatus = "failed"
)

// IsTerminal reports whether the status ends an enrollment's run.
func (s EnrollmentStatus) IsTerminal() bool {
	return s == EnrollmentStatusCompleted || s == EnrollmentStatusFailed
}

// Enrollment is one contact's run through one automation. At most one active
// enrollment may exist per (automation, contact) pair; CurrentStep is the
// 1-based position of the next step to execute. The claim fields implement
// single-writer advancement: an enrollment is only advanced by the caller
// holding its claim token, and claims go stale after a timeout so a crashed
// worker cannot wedge the run.
type Enrollment struct {
	ID             string           `json:"id"`
	AutomationID   string           `json:"automation_id"`
	ContactID      string           `json:"contact_id"`
	Status         EnrollmentStatus `json:"status"`
	CurrentStep    int              `json:"current_step"`
	TriggerPayload map[string]any   `json:"trigger_payload,omitempty"`
	Context        map[string]any   `json:"context,omitempty"`
	NextActionAt   time.Time        `json:"next_action_at"`
	ClaimedBy      *string          `json:"claimed_by,omitempty"`
	ClaimedAt      *time.Time       `json:"claimed_at,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	EnrolledAt     time.Time        `json:"enrolled_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}
