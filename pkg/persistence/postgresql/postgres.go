// Package postgresql provides PostgreSQL persistence implementation for the
// automation engine and the CRM records it touches.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/relaycrm/relay/pkg/persistence"
	"github.com/relaycrm/relay/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	automations *AutomationRepository
	contacts    *ContactRepository
	enrollments *EnrollmentRepository
	stepLogs    *StepLogRepository
	deals       *DealRepository
	tasks       *TaskRepository
	templates   *TemplateRepository
	messageLogs *MessageLogRepository
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence creates a new PostgreSQL persistence layer and runs migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:          database,
		logger:      logger,
		automations: NewAutomationRepository(database, logger),
		contacts:    NewContactRepository(database, logger),
		enrollments: NewEnrollmentRepository(database, logger),
		stepLogs:    NewStepLogRepository(database, logger),
		deals:       NewDealRepository(database, logger),
		tasks:       NewTaskRepository(database, logger),
		templates:   NewTemplateRepository(database, logger),
		messageLogs: NewMessageLogRepository(database, logger),
	}, nil
}

func (p *Persistence) Automations() persistence.AutomationRepository { return p.automations }
func (p *Persistence) Contacts() persistence.ContactRepository       { return p.contacts }
func (p *Persistence) Enrollments() persistence.EnrollmentRepository { return p.enrollments }
func (p *Persistence) StepLogs() persistence.StepLogRepository       { return p.stepLogs }
func (p *Persistence) Deals() persistence.DealRepository             { return p.deals }
func (p *Persistence) Tasks() persistence.TaskRepository             { return p.tasks }
func (p *Persistence) Templates() persistence.TemplateRepository     { return p.templates }
func (p *Persistence) MessageLogs() persistence.MessageLogRepository { return p.messageLogs }

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
