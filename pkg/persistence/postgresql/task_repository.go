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

// TaskRepository handles task-related database operations.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *sql.DB, logger *slog.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

// Create inserts a task row.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate task ID: %w", err)
		}

		task.ID = id.String()
	}

	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO tasks (id, organization_id, contact_id, enrollment_id, title,
			description, priority, assignee_id, due_at, completed, created_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, NULLIF($8, '')::uuid, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.OrganizationID,
		task.ContactID,
		task.EnrollmentID,
		task.Title,
		task.Description,
		task.Priority,
		task.AssigneeID,
		task.DueAt,
		task.Completed,
		task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// ListByContact returns the contact's tasks, newest first.
func (r *TaskRepository) ListByContact(ctx context.Context, contactID string) ([]*models.Task, error) {
	query := `
		SELECT id, organization_id, contact_id, COALESCE(enrollment_id::text, ''), title,
			   description, priority, COALESCE(assignee_id::text, ''), due_at, completed, created_at
		FROM tasks
		WHERE contact_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	tasks := make([]*models.Task, 0)

	for rows.Next() {
		var task models.Task

		err := rows.Scan(
			&task.ID,
			&task.OrganizationID,
			&task.ContactID,
			&task.EnrollmentID,
			&task.Title,
			&task.Description,
			&task.Priority,
			&task.AssigneeID,
			&task.DueAt,
			&task.Completed,
			&task.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, &task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}
