// Package eventbus carries trigger events from CRM intake to the automation
// workers.
package eventbus

import (
	"context"

	"github.com/relaycrm/relay/pkg/events"
)

// Event is anything publishable on the bus. In practice this is the CRM
// trigger event; the type tag travels as message metadata so subscribers can
// decode without sniffing payloads.
type Event interface {
	GetType() events.EventType
}

// EventPublisher emits trigger events. The key partitions messages, so
// events for the same contact stay ordered.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber routes decoded trigger events to registered handlers.
// Handlers must be registered before Subscribe starts consuming.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
