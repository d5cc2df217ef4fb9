package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

// AutomationRepository handles automation-related database operations.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAutomationRepository creates a new automation repository.
func NewAutomationRepository(db *sql.DB, logger *slog.Logger) *AutomationRepository {
	return &AutomationRepository{db: db, logger: logger}
}

const automationColumns = `
	id
  , organization_id
  , name
  , description
  , trigger_type
  , trigger_conditions
  , active
  , enrolled_count
  , completed_count
  , failed_count
  , created_at
  , updated_at
`

// GetByID returns an automation with its steps loaded.
func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	automation, err := r.scanAutomation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrAutomationNotFound
		}

		return nil, fmt.Errorf("failed to scan automation: %w", err)
	}

	err = r.loadSteps(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to load automation steps: %w", err)
	}

	return automation, nil
}

// List returns all automations for an organization, steps loaded, newest first.
func (r *AutomationRepository) List(ctx context.Context, organizationID string) ([]*models.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE organization_id = $1 ORDER BY created_at DESC`

	return r.queryAutomations(ctx, query, organizationID)
}

// ActiveByTrigger returns active automations matching the trigger type.
func (r *AutomationRepository) ActiveByTrigger(ctx context.Context, organizationID string, triggerType models.TriggerType) ([]*models.Automation, error) {
	query := `
		SELECT ` + automationColumns + `
		FROM automations
		WHERE organization_id = $1 AND trigger_type = $2 AND active
		ORDER BY created_at
	`

	return r.queryAutomations(ctx, query, organizationID, triggerType)
}

func (r *AutomationRepository) queryAutomations(ctx context.Context, query string, args ...any) ([]*models.Automation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	automations := make([]*models.Automation, 0)

	for rows.Next() {
		automation, err := r.scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, automation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	for _, automation := range automations {
		err = r.loadSteps(ctx, automation)
		if err != nil {
			return nil, fmt.Errorf("failed to load automation steps: %w", err)
		}
	}

	return automations, nil
}

// Save upserts an automation and replaces its step list in one transaction.
func (r *AutomationRepository) Save(ctx context.Context, automation *models.Automation) error {
	now := time.Now().UTC()

	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	if automation.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate automation ID: %w", err)
		}

		automation.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	conditionsJSON, err := json.Marshal(automation.TriggerConditions)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger conditions: %w", err)
	}

	automationQuery := `
		INSERT INTO automations (id, organization_id, name, description, trigger_type,
			trigger_conditions, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			trigger_type = EXCLUDED.trigger_type,
			trigger_conditions = EXCLUDED.trigger_conditions,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, automationQuery,
		automation.ID,
		automation.OrganizationID,
		automation.Name,
		automation.Description,
		automation.TriggerType,
		conditionsJSON,
		automation.Active,
		automation.CreatedAt,
		automation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save automation base: %w", err)
	}

	// Replace steps (for updates)
	_, err = tx.ExecContext(ctx, "DELETE FROM automation_steps WHERE automation_id = $1", automation.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing steps: %w", err)
	}

	for _, step := range automation.Steps {
		if step.ID == "" {
			stepID, idErr := uuid.NewV7()
			if idErr != nil {
				err = fmt.Errorf("failed to generate step ID: %w", idErr)

				return err
			}

			step.ID = stepID.String()
		}

		step.AutomationID = automation.ID

		configJSON, marshalErr := json.Marshal(step.Config)
		if marshalErr != nil {
			err = fmt.Errorf("failed to marshal step config: %w", marshalErr)

			return err
		}

		stepQuery := `
			INSERT INTO automation_steps (id, automation_id, position, kind, config, true_branch, false_branch)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`

		_, err = tx.ExecContext(ctx, stepQuery,
			step.ID,
			step.AutomationID,
			step.Position,
			step.Kind,
			configJSON,
			step.TrueBranch,
			step.FalseBranch,
		)
		if err != nil {
			return fmt.Errorf("failed to save step: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SetActive toggles the active flag.
func (r *AutomationRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE automations SET active = $2, updated_at = NOW() WHERE id = $1", id, active)
	if err != nil {
		return fmt.Errorf("failed to update automation active flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrAutomationNotFound
	}

	return nil
}

// IncrementCounter atomically bumps one of the aggregate counters. The counter
// name comes from a closed enum, never from user input.
func (r *AutomationRepository) IncrementCounter(ctx context.Context, id string, counter models.AutomationCounter) error {
	query := fmt.Sprintf("UPDATE automations SET %s = %s + 1 WHERE id = $1", counter, counter)

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", counter, err)
	}

	return nil
}

func (r *AutomationRepository) loadSteps(ctx context.Context, automation *models.Automation) error {
	query := `
		SELECT id, automation_id, position, kind, config, true_branch, false_branch
		FROM automation_steps
		WHERE automation_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, automation.ID)
	if err != nil {
		return fmt.Errorf("failed to query automation steps: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	var steps []*models.Step

	for rows.Next() {
		var (
			step       models.Step
			configJSON []byte
		)

		err := rows.Scan(
			&step.ID,
			&step.AutomationID,
			&step.Position,
			&step.Kind,
			&configJSON,
			&step.TrueBranch,
			&step.FalseBranch,
		)
		if err != nil {
			return fmt.Errorf("failed to scan step: %w", err)
		}

		if configJSON != nil {
			err := json.Unmarshal(configJSON, &step.Config)
			if err != nil {
				return fmt.Errorf("failed to unmarshal step config: %w", err)
			}
		}

		steps = append(steps, &step)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating steps: %w", err)
	}

	automation.Steps = steps

	return nil
}

func (r *AutomationRepository) scanAutomation(scanner interface {
	Scan(dest ...any) error
}) (*models.Automation, error) {
	var (
		automation     models.Automation
		conditionsJSON []byte
	)

	err := scanner.Scan(
		&automation.ID,
		&automation.OrganizationID,
		&automation.Name,
		&automation.Description,
		&automation.TriggerType,
		&conditionsJSON,
		&automation.Active,
		&automation.EnrolledCount,
		&automation.CompletedCount,
		&automation.FailedCount,
		&automation.CreatedAt,
		&automation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if conditionsJSON != nil {
		err := json.Unmarshal(conditionsJSON, &automation.TriggerConditions)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger conditions: %w", err)
		}
	}

	return &automation, nil
}
