// Package events defines the event envelopes exchanged between CRM intake and
// the automation engine.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const TriggerEventsTopic = "relay.trigger-events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// TriggerDetectedEvent is published when the CRM emits an event that may
	// enroll contacts into automations.
	TriggerDetectedEvent EventType = "trigger.detected"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}
