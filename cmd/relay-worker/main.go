package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/relaycrm/relay/pkg/cmd"
	"github.com/relaycrm/relay/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "relay-worker",
		EnableShellCompletion: true,
		Usage:                 "Consume trigger events and run automation enrollments",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron expression for the due-enrollment sweep",
				Value:   "@every 1m",
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "queue-addr",
				Usage:   "Redis address for the trigger intake queue (disabled when empty)",
				Value:   "",
				Sources: cli.EnvVars("QUEUE_ADDR"),
			},
			&cli.StringFlag{
				Name:    "queue-name",
				Usage:   "Redis list the trigger intake queue reads from",
				Value:   "relay:triggers",
				Sources: cli.EnvVars("QUEUE_NAME"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("relay-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Relay Worker")

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			worker := NewWorkerManager(
				workerID,
				persistence,
				eventBus,
				logger,
				WorkerConfig{
					SweepSchedule: command.String("sweep-schedule"),
					QueueAddr:     command.String("queue-addr"),
					QueueName:     command.String("queue-name"),
				},
			)

			err := worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
