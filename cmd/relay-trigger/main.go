// Command relay-trigger publishes a single CRM trigger event onto the event
// bus, mainly for smoke testing a running worker.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/relaycrm/relay/pkg/cmd"
	"github.com/relaycrm/relay/pkg/events"
	"github.com/relaycrm/relay/pkg/log"
	"github.com/relaycrm/relay/pkg/models"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("relay-trigger")

	command := &cli.Command{
		Name:                  "relay-trigger",
		Usage:                 "Publish a CRM trigger event to the event bus",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "type",
				Aliases:  []string{"t"},
				Usage:    "Trigger type (contact_created, tag_added, deal_stage_changed, ...)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "contact-id",
				Usage:    "Contact the event is about",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "organization-id",
				Usage:    "Organization the event belongs to",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "Event payload as a JSON object",
				Value: "{}",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			var data map[string]any

			err := json.Unmarshal([]byte(command.String("data")), &data)
			if err != nil {
				return fmt.Errorf("invalid data payload: %w", err)
			}

			event := events.NewTriggerEvent(
				models.TriggerType(command.String("type")),
				command.String("organization-id"),
				command.String("contact-id"),
				data,
			)

			err = event.Validate()
			if err != nil {
				return err
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				closeErr := eventBus.Close()
				if closeErr != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", closeErr)
				}
			}()

			err = eventBus.Publish(ctx, event.ContactID, event)
			if err != nil {
				return fmt.Errorf("failed to publish trigger event: %w", err)
			}

			logger.InfoContext(ctx, "Trigger event published",
				"trigger_type", event.TriggerType,
				"contact_id", event.ContactID,
				"organization_id", event.OrganizationID,
			)

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
