package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

// claimStaleAfter is how long a claim may be held before another caller is
// allowed to steal it. Protects against workers that died mid-advancement.
const claimStaleAfter = 5 * time.Minute

// EnrollmentRepository handles enrollment-related database operations. All
// status transitions are single conditional statements; there is no
// read-modify-write on enrollment rows.
type EnrollmentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEnrollmentRepository creates a new enrollment repository.
func NewEnrollmentRepository(db *sql.DB, logger *slog.Logger) *EnrollmentRepository {
	return &EnrollmentRepository{db: db, logger: logger}
}

const enrollmentColumns = `
	id
  , automation_id
  , contact_id
  , status
  , current_step
  , trigger_payload
  , context
  , next_action_at
  , claimed_by
  , claimed_at
  , error_message
  , enrolled_at
  , completed_at
`

// GetByID returns an enrollment by its ID.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`

	enrollment, err := r.scanEnrollment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrEnrollmentNotFound
		}

		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	return enrollment, nil
}

// FindByPair returns the enrollment for the (automation, contact) pair, or nil.
func (r *EnrollmentRepository) FindByPair(ctx context.Context, automationID, contactID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE automation_id = $1 AND contact_id = $2`

	enrollment, err := r.scanEnrollment(r.db.QueryRowContext(ctx, query, automationID, contactID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	return enrollment, nil
}

// Create inserts a new enrollment row. The unique (automation_id, contact_id)
// constraint backs the at-most-one-enrollment-per-pair invariant; a conflict
// surfaces as ErrDuplicateActiveEnrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	payloadJSON, err := json.Marshal(enrollment.TriggerPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger payload: %w", err)
	}

	contextJSON, err := json.Marshal(enrollment.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	query := `
		INSERT INTO enrollments (id, automation_id, contact_id, status, current_step,
			trigger_payload, context, next_action_at, error_message, enrolled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		enrollment.ID,
		enrollment.AutomationID,
		enrollment.ContactID,
		enrollment.Status,
		enrollment.CurrentStep,
		payloadJSON,
		contextJSON,
		enrollment.NextActionAt,
		enrollment.ErrorMessage,
		enrollment.EnrolledAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.ErrDuplicateActiveEnrollment
		}

		return fmt.Errorf("failed to create enrollment: %w", err)
	}

	return nil
}

// Reset re-arms a terminal enrollment in place. Guarded on terminal status so
// a concurrent active run cannot be clobbered.
func (r *EnrollmentRepository) Reset(ctx context.Context, id string, triggerPayload map[string]any, now time.Time) error {
	payloadJSON, err := json.Marshal(triggerPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger payload: %w", err)
	}

	query := `
		UPDATE enrollments
		SET status = 'active',
			current_step = 1,
			trigger_payload = $2,
			context = '{}'::jsonb,
			next_action_at = $3,
			claimed_by = NULL,
			claimed_at = NULL,
			error_message = NULL,
			enrolled_at = $3,
			completed_at = NULL
		WHERE id = $1 AND status IN ('completed', 'failed')
	`

	result, err := r.db.ExecContext(ctx, query, id, payloadJSON, now)
	if err != nil {
		return fmt.Errorf("failed to reset enrollment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrDuplicateActiveEnrollment
	}

	return nil
}

// Claim atomically takes the advancement claim for an active enrollment.
func (r *EnrollmentRepository) Claim(ctx context.Context, id, token string, now time.Time) (bool, error) {
	query := `
		UPDATE enrollments
		SET claimed_by = $2, claimed_at = $3
		WHERE id = $1
		  AND status = 'active'
		  AND (claimed_by IS NULL OR claimed_at < $4)
	`

	result, err := r.db.ExecContext(ctx, query, id, token, now, now.Add(-claimStaleAfter))
	if err != nil {
		return false, fmt.Errorf("failed to claim enrollment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// Release clears the claim if the token still holds it.
func (r *EnrollmentRepository) Release(ctx context.Context, id, token string) error {
	query := `UPDATE enrollments SET claimed_by = NULL, claimed_at = NULL WHERE id = $1 AND claimed_by = $2`

	_, err := r.db.ExecContext(ctx, query, id, token)
	if err != nil {
		return fmt.Errorf("failed to release enrollment claim: %w", err)
	}

	return nil
}

// UpdateProgress persists the new cursor, context and wake time.
func (r *EnrollmentRepository) UpdateProgress(ctx context.Context, id string, cursor int, context map[string]any, nextActionAt time.Time) error {
	contextJSON, err := json.Marshal(context)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	query := `
		UPDATE enrollments
		SET current_step = $2, context = $3, next_action_at = $4
		WHERE id = $1 AND status = 'active'
	`

	_, err = r.db.ExecContext(ctx, query, id, cursor, contextJSON, nextActionAt)
	if err != nil {
		return fmt.Errorf("failed to update enrollment progress: %w", err)
	}

	return nil
}

// MarkCompleted transitions to completed and clears any claim.
func (r *EnrollmentRepository) MarkCompleted(ctx context.Context, id string, completedAt time.Time) error {
	query := `
		UPDATE enrollments
		SET status = 'completed', completed_at = $2, claimed_by = NULL, claimed_at = NULL
		WHERE id = $1 AND status = 'active'
	`

	_, err := r.db.ExecContext(ctx, query, id, completedAt)
	if err != nil {
		return fmt.Errorf("failed to mark enrollment completed: %w", err)
	}

	return nil
}

// MarkFailed transitions to failed with the error message and clears any claim.
func (r *EnrollmentRepository) MarkFailed(ctx context.Context, id, errorMessage string, failedAt time.Time) error {
	query := `
		UPDATE enrollments
		SET status = 'failed', error_message = $2, completed_at = $3, claimed_by = NULL, claimed_at = NULL
		WHERE id = $1 AND status = 'active'
	`

	_, err := r.db.ExecContext(ctx, query, id, errorMessage, failedAt)
	if err != nil {
		return fmt.Errorf("failed to mark enrollment failed: %w", err)
	}

	return nil
}

// DuePending lists active enrollments whose wake time has elapsed and whose
// claim is absent or stale, oldest wake time first.
func (r *EnrollmentRepository) DuePending(ctx context.Context, now time.Time, limit int) ([]*models.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE status = 'active'
		  AND next_action_at <= $1
		  AND (claimed_by IS NULL OR claimed_at < $2)
		ORDER BY next_action_at ASC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, now, now.Add(-claimStaleAfter), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due enrollments: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	enrollments := make([]*models.Enrollment, 0)

	for rows.Next() {
		enrollment, err := r.scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}

		enrollments = append(enrollments, enrollment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enrollments: %w", err)
	}

	return enrollments, nil
}

func (r *EnrollmentRepository) scanEnrollment(scanner interface {
	Scan(dest ...any) error
}) (*models.Enrollment, error) {
	var (
		enrollment               models.Enrollment
		payloadJSON, contextJSON []byte
		errorMessage             sql.NullString
	)

	err := scanner.Scan(
		&enrollment.ID,
		&enrollment.AutomationID,
		&enrollment.ContactID,
		&enrollment.Status,
		&enrollment.CurrentStep,
		&payloadJSON,
		&contextJSON,
		&enrollment.NextActionAt,
		&enrollment.ClaimedBy,
		&enrollment.ClaimedAt,
		&errorMessage,
		&enrollment.EnrolledAt,
		&enrollment.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	enrollment.ErrorMessage = errorMessage.String

	if payloadJSON != nil {
		err := json.Unmarshal(payloadJSON, &enrollment.TriggerPayload)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger payload: %w", err)
		}
	}

	if contextJSON != nil {
		err := json.Unmarshal(contextJSON, &enrollment.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal context: %w", err)
		}
	}

	return &enrollment, nil
}

func isUniqueViolation(err error) bool {
	// lib/pq unique_violation
	var pqErr interface{ SQLState() string }
	if errors.As(err, &pqErr) {
		return pqErr.SQLState() == "23505"
	}

	return false
}
