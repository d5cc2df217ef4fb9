package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/relaycrm/relay/pkg/persistence"
	"github.com/relaycrm/relay/pkg/persistence/memory"
	"github.com/relaycrm/relay/pkg/persistence/postgresql"
)

// NewPersistence builds the persistence layer from a database URL. Postgres
// URLs get the real store; the "memory://" scheme is for local development
// and tests only, nothing written to it survives a restart.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "memory":
		return memory.NewPersistence()
	default:
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL persistence: %w", err))
		}

		return store
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "postgres"
	}

	return provider
}
