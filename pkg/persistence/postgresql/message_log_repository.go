package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relaycrm/relay/pkg/models"
)

// MessageLogRepository records outbound email and SMS messages.
type MessageLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewMessageLogRepository creates a new message log repository.
func NewMessageLogRepository(db *sql.DB, logger *slog.Logger) *MessageLogRepository {
	return &MessageLogRepository{db: db, logger: logger}
}

// Append inserts one message log row.
func (r *MessageLogRepository) Append(ctx context.Context, entry *models.MessageLog) error {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate message log ID: %w", err)
		}

		entry.ID = id.String()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO message_logs (id, organization_id, contact_id, enrollment_id, channel,
			recipient, subject, body, segments, encoding, provider_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.OrganizationID,
		entry.ContactID,
		entry.EnrollmentID,
		entry.Channel,
		entry.Recipient,
		entry.Subject,
		entry.Body,
		entry.Segments,
		entry.Encoding,
		entry.ProviderID,
		entry.Status,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append message log: %w", err)
	}

	return nil
}

// ListByEnrollment returns the messages an enrollment produced, in send order.
func (r *MessageLogRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]*models.MessageLog, error) {
	query := `
		SELECT id, organization_id, contact_id, enrollment_id, channel,
			   recipient, subject, body, segments, encoding, provider_id, status, created_at
		FROM message_logs
		WHERE enrollment_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query message logs: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	logs := make([]*models.MessageLog, 0)

	for rows.Next() {
		var entry models.MessageLog

		err := rows.Scan(
			&entry.ID,
			&entry.OrganizationID,
			&entry.ContactID,
			&entry.EnrollmentID,
			&entry.Channel,
			&entry.Recipient,
			&entry.Subject,
			&entry.Body,
			&entry.Segments,
			&entry.Encoding,
			&entry.ProviderID,
			&entry.Status,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message log: %w", err)
		}

		logs = append(logs, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message logs: %w", err)
	}

	return logs, nil
}
