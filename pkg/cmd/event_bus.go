package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/relaycrm/relay/pkg/channels/gochannel"
	"github.com/relaycrm/relay/pkg/channels/kafka"
	"github.com/relaycrm/relay/pkg/eventbus"
)

// NewEventBus builds the trigger event bus for the given provider. Kafka is
// the production transport; "gochannel" keeps everything in-process for
// single-binary local runs.
func NewEventBus(provider string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "relay")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-process pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
