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

// DealRepository handles deal-related database operations.
type DealRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDealRepository creates a new deal repository.
func NewDealRepository(db *sql.DB, logger *slog.Logger) *DealRepository {
	return &DealRepository{db: db, logger: logger}
}

const dealColumns = `
	id
  , organization_id
  , contact_id
  , pipeline_id
  , stage_id
  , title
  , value
  , status
  , created_at
  , updated_at
`

// GetByID returns a deal by its ID.
func (r *DealRepository) GetByID(ctx context.Context, id string) (*models.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`

	deal, err := r.scanDeal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrDealNotFound
		}

		return nil, fmt.Errorf("failed to scan deal: %w", err)
	}

	return deal, nil
}

// Save upserts a deal.
func (r *DealRepository) Save(ctx context.Context, deal *models.Deal) error {
	now := time.Now().UTC()

	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = now
	}

	deal.UpdatedAt = now

	if deal.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate deal ID: %w", err)
		}

		deal.ID = id.String()
	}

	if deal.Status == "" {
		deal.Status = models.DealStatusOpen
	}

	query := `
		INSERT INTO deals (id, organization_id, contact_id, pipeline_id, stage_id,
			title, value, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			pipeline_id = EXCLUDED.pipeline_id,
			stage_id = EXCLUDED.stage_id,
			title = EXCLUDED.title,
			value = EXCLUDED.value,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		deal.ID,
		deal.OrganizationID,
		deal.ContactID,
		deal.PipelineID,
		deal.StageID,
		deal.Title,
		deal.Value,
		deal.Status,
		deal.CreatedAt,
		deal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save deal: %w", err)
	}

	return nil
}

// LatestOpenByContact returns the contact's most recently created open deal, or nil.
func (r *DealRepository) LatestOpenByContact(ctx context.Context, contactID string) (*models.Deal, error) {
	query := `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE contact_id = $1 AND status = 'open'
		ORDER BY created_at DESC
		LIMIT 1
	`

	deal, err := r.scanDeal(r.db.QueryRowContext(ctx, query, contactID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan deal: %w", err)
	}

	return deal, nil
}

// MoveStage moves the deal to the given pipeline stage. Empty pipelineID keeps
// the current pipeline.
func (r *DealRepository) MoveStage(ctx context.Context, id, pipelineID, stageID string) error {
	query := `
		UPDATE deals
		SET stage_id = $2,
			pipeline_id = COALESCE(NULLIF($3, '')::uuid, pipeline_id),
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, stageID, pipelineID)
	if err != nil {
		return fmt.Errorf("failed to move deal stage: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrDealNotFound
	}

	return nil
}

func (r *DealRepository) scanDeal(scanner interface {
	Scan(dest ...any) error
}) (*models.Deal, error) {
	var deal models.Deal

	err := scanner.Scan(
		&deal.ID,
		&deal.OrganizationID,
		&deal.ContactID,
		&deal.PipelineID,
		&deal.StageID,
		&deal.Title,
		&deal.Value,
		&deal.Status,
		&deal.CreatedAt,
		&deal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &deal, nil
}
