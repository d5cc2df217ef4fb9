package models

import "time"

// Task is a follow-up item created for a contact by the create_task executor.
type Task struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	ContactID      string     `json:"contact_id"`
	EnrollmentID   string     `json:"enrollment_id,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       string     `json:"priority"`
	AssigneeID     string     `json:"assignee_id,omitempty"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	Completed      bool       `json:"completed"`
	CreatedAt      time.Time  `json:"created_at"`
}
