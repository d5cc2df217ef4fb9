package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

// TemplateRepository resolves organization-scoped message templates.
type TemplateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sql.DB, logger *slog.Logger) *TemplateRepository {
	return &TemplateRepository{db: db, logger: logger}
}

// GetByID returns a template scoped to the organization and channel.
func (r *TemplateRepository) GetByID(ctx context.Context, organizationID, id string, channel models.MessageChannel) (*models.MessageTemplate, error) {
	query := `
		SELECT id, organization_id, channel, name, subject, body, created_at
		FROM message_templates
		WHERE id = $1 AND organization_id = $2 AND channel = $3
	`

	var template models.MessageTemplate

	err := r.db.QueryRowContext(ctx, query, id, organizationID, channel).Scan(
		&template.ID,
		&template.OrganizationID,
		&template.Channel,
		&template.Name,
		&template.Subject,
		&template.Body,
		&template.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTemplateNotFound
		}

		return nil, fmt.Errorf("failed to scan message template: %w", err)
	}

	return &template, nil
}

// Save upserts a template.
func (r *TemplateRepository) Save(ctx context.Context, template *models.MessageTemplate) error {
	if template.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate template ID: %w", err)
		}

		template.ID = id.String()
	}

	if template.CreatedAt.IsZero() {
		template.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO message_templates (id, organization_id, channel, name, subject, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			subject = EXCLUDED.subject,
			body = EXCLUDED.body
	`

	_, err := r.db.ExecContext(ctx, query,
		template.ID,
		template.OrganizationID,
		template.Channel,
		template.Name,
		template.Subject,
		template.Body,
		template.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save message template: %w", err)
	}

	return nil
}
