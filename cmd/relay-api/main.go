package main

import (
	"context"
	"os"

	"github.com/relaycrm/relay/pkg/cmd"
	"github.com/relaycrm/relay/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "relay-api",
		Usage:                 "Manage automations and receive CRM trigger events",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
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

			logger.InfoContext(ctx, "Initializing Relay API")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			api := NewAPI(logger, persistence)

			err := api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
