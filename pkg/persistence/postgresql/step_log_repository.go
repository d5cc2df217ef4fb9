package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/relaycrm/relay/pkg/models"
)

// StepLogRepository handles the append-only step audit trail.
type StepLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStepLogRepository creates a new step log repository.
func NewStepLogRepository(db *sql.DB, logger *slog.Logger) *StepLogRepository {
	return &StepLogRepository{db: db, logger: logger}
}

// Append inserts one audit row. Rows are never updated or deleted.
func (r *StepLogRepository) Append(ctx context.Context, entry *models.StepLog) error {
	inputJSON, err := json.Marshal(entry.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal step log input: %w", err)
	}

	outputJSON, err := json.Marshal(entry.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal step log output: %w", err)
	}

	query := `
		INSERT INTO step_logs (id, enrollment_id, step_id, position, kind, status,
			input, output, error_message, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.EnrollmentID,
		entry.StepID,
		entry.Position,
		entry.Kind,
		entry.Status,
		inputJSON,
		outputJSON,
		entry.ErrorMessage,
		entry.DurationMs,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append step log: %w", err)
	}

	return nil
}

// ListByEnrollment returns the audit trail for an enrollment in write order.
func (r *StepLogRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]*models.StepLog, error) {
	query := `
		SELECT id, enrollment_id, step_id, position, kind, status,
			   input, output, error_message, duration_ms, created_at
		FROM step_logs
		WHERE enrollment_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query step logs: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	logs := make([]*models.StepLog, 0)

	for rows.Next() {
		var (
			entry                 models.StepLog
			inputJSON, outputJSON []byte
			errorMessage          sql.NullString
		)

		err := rows.Scan(
			&entry.ID,
			&entry.EnrollmentID,
			&entry.StepID,
			&entry.Position,
			&entry.Kind,
			&entry.Status,
			&inputJSON,
			&outputJSON,
			&errorMessage,
			&entry.DurationMs,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step log: %w", err)
		}

		entry.ErrorMessage = errorMessage.String

		if inputJSON != nil {
			if err := json.Unmarshal(inputJSON, &entry.Input); err != nil {
				return nil, fmt.Errorf("failed to unmarshal step log input: %w", err)
			}
		}

		if outputJSON != nil {
			if err := json.Unmarshal(outputJSON, &entry.Output); err != nil {
				return nil, fmt.Errorf("failed to unmarshal step log output: %w", err)
			}
		}

		logs = append(logs, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating step logs: %w", err)
	}

	return logs, nil
}
