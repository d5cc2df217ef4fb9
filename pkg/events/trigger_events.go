package events

import (
	"errors"

	"github.com/relaycrm/relay/pkg/models"
)

var (
	// ErrMissingOrganization indicates a trigger event without an organization id.
	ErrMissingOrganization = errors.New("trigger event organization_id is required")
	// ErrMissingContact indicates a trigger event without a contact id.
	ErrMissingContact = errors.New("trigger event contact_id is required")
	// ErrInvalidTriggerType indicates an unknown trigger type.
	ErrInvalidTriggerType = errors.New("trigger event type is not a known CRM event")
)

// TriggerEvent is a standardized CRM event presented to the engine. Data carries
// the trigger-type-specific payload fields (tag, stage_id, pipeline_id, source,
// deal_id, ...) that trigger conditions are matched against and that is
// snapshotted onto the enrollment.
type TriggerEvent struct {
	BaseEvent

	TriggerType    models.TriggerType `json:"trigger_type"`
	OrganizationID string             `json:"organization_id"`
	ContactID      string             `json:"contact_id"`
	Data           map[string]any     `json:"data,omitempty"`
}

func (t TriggerEvent) GetType() EventType {
	return TriggerDetectedEvent
}

// NewTriggerEvent creates a trigger event envelope for the given CRM event.
func NewTriggerEvent(triggerType models.TriggerType, organizationID, contactID string, data map[string]any) *TriggerEvent {
	return &TriggerEvent{
		BaseEvent:      NewBaseEvent(TriggerDetectedEvent),
		TriggerType:    triggerType,
		OrganizationID: organizationID,
		ContactID:      contactID,
		Data:           data,
	}
}

// Validate checks the caller contract. A violation here is reported softly by
// the engine (zero enrollments), never as a panic or transport error.
func (t *TriggerEvent) Validate() error {
	if t.OrganizationID == "" {
		return ErrMissingOrganization
	}

	if t.ContactID == "" {
		return ErrMissingContact
	}

	if !t.TriggerType.IsValid() {
		return ErrInvalidTriggerType
	}

	return nil
}
