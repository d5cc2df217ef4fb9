// Package models defines the core domain models for CRM automation workflows.
package models

import "time"

// TriggerType identifies the CRM event that can enroll a contact into an automation.
type TriggerType string

const (
	TriggerContactCreated   TriggerType = "contact_created"
	TriggerContactSource    TriggerType = "contact_source"
	TriggerTagAdded         TriggerType = "tag_added"
	TriggerTagRemoved       TriggerType = "tag_removed"
	TriggerDealCreated      TriggerType = "deal_created"
	TriggerDealStageChanged TriggerType = "deal_stage_changed"
	TriggerBookingCreated   TriggerType = "booking_created"
	TriggerInvoicePaid      TriggerType = "invoice_paid"
)

// IsValid reports whether the trigger type is one of the known CRM events.
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerContactCreated, TriggerContactSource, TriggerTagAdded, TriggerTagRemoved,
		TriggerDealCreated, TriggerDealStageChanged, TriggerBookingCreated, TriggerInvoicePaid:
		return true
	default:
		return false
	}
}

// AutomationCounter names one of the aggregate counters kept on an automation.
// Counters are incremented with atomic SQL updates and are eventually consistent.
type AutomationCounter string

const (
	CounterEnrolled  AutomationCounter = "enrolled_count"
	CounterCompleted AutomationCounter = "completed_count"
	CounterFailed    AutomationCounter = "failed_count"
)

// Automation is a stored workflow definition: a trigger plus an ordered step list.
// The engine treats it as read-only apart from counter increments.
type Automation struct {
	ID                string         `json:"id"`
	OrganizationID    string         `json:"organization_id"   validate:"required"`
	Name              string         `json:"name"              validate:"required,min=3"`
	Description       string         `json:"description"`
	TriggerType       TriggerType    `json:"trigger_type"      validate:"required"`
	TriggerConditions map[string]any `json:"trigger_conditions"`
	Active            bool           `json:"active"`
	EnrolledCount     int64          `json:"enrolled_count"`
	CompletedCount    int64          `json:"completed_count"`
	FailedCount       int64          `json:"failed_count"`
	Steps             []*Step        `json:"steps"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// StepAt returns the step at the given 1-based position, or nil if the
// automation has no step there.
func (a *Automation) StepAt(position int) *Step {
	for _, step := range a.Steps {
		if step.Position == position {
			return step
		}
	}

	return nil
}
