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
	"github.com/lib/pq"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

// ContactRepository handles contact-related database operations. Tag and
// custom-field mutations are single atomic statements so concurrent executors
// cannot lose each other's updates.
type ContactRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewContactRepository creates a new contact repository.
func NewContactRepository(db *sql.DB, logger *slog.Logger) *ContactRepository {
	return &ContactRepository{db: db, logger: logger}
}

// GetByID returns a contact by its ID.
func (r *ContactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	query := `
		SELECT id, organization_id, email, phone, first_name, last_name,
			   status, source, tags, custom_fields, created_at, updated_at
		FROM contacts
		WHERE id = $1
	`

	var (
		contact          models.Contact
		customFieldsJSON []byte
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&contact.ID,
		&contact.OrganizationID,
		&contact.Email,
		&contact.Phone,
		&contact.FirstName,
		&contact.LastName,
		&contact.Status,
		&contact.Source,
		pq.Array(&contact.Tags),
		&customFieldsJSON,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrContactNotFound
		}

		return nil, fmt.Errorf("failed to scan contact: %w", err)
	}

	if customFieldsJSON != nil {
		err := json.Unmarshal(customFieldsJSON, &contact.CustomFields)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal custom fields: %w", err)
		}
	}

	return &contact, nil
}

// Save upserts a contact.
func (r *ContactRepository) Save(ctx context.Context, contact *models.Contact) error {
	now := time.Now().UTC()

	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}

	contact.UpdatedAt = now

	if contact.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate contact ID: %w", err)
		}

		contact.ID = id.String()
	}

	customFieldsJSON, err := json.Marshal(contact.CustomFields)
	if err != nil {
		return fmt.Errorf("failed to marshal custom fields: %w", err)
	}

	query := `
		INSERT INTO contacts (id, organization_id, email, phone, first_name, last_name,
			status, source, tags, custom_fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			status = EXCLUDED.status,
			source = EXCLUDED.source,
			tags = EXCLUDED.tags,
			custom_fields = EXCLUDED.custom_fields,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		contact.ID,
		contact.OrganizationID,
		contact.Email,
		contact.Phone,
		contact.FirstName,
		contact.LastName,
		contact.Status,
		contact.Source,
		pq.Array(contact.Tags),
		customFieldsJSON,
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}

	return nil
}

// AddTag appends the tag unless the contact already carries it.
func (r *ContactRepository) AddTag(ctx context.Context, id, tag string) (bool, error) {
	query := `
		UPDATE contacts
		SET tags = array_append(tags, $2), updated_at = NOW()
		WHERE id = $1 AND NOT (tags @> ARRAY[$2]::text[])
	`

	result, err := r.db.ExecContext(ctx, query, id, tag)
	if err != nil {
		return false, fmt.Errorf("failed to add tag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// RemoveTag removes the tag; removing an absent tag is a no-op.
func (r *ContactRepository) RemoveTag(ctx context.Context, id, tag string) (bool, error) {
	query := `
		UPDATE contacts
		SET tags = array_remove(tags, $2), updated_at = NOW()
		WHERE id = $1 AND tags @> ARRAY[$2]::text[]
	`

	result, err := r.db.ExecContext(ctx, query, id, tag)
	if err != nil {
		return false, fmt.Errorf("failed to remove tag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// MergeCustomFields shallow-merges fields into the contact's custom field map.
func (r *ContactRepository) MergeCustomFields(ctx context.Context, id string, fields map[string]any) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal custom fields: %w", err)
	}

	query := `
		UPDATE contacts
		SET custom_fields = COALESCE(custom_fields, '{}'::jsonb) || $2::jsonb, updated_at = NOW()
		WHERE id = $1
	`

	_, err = r.db.ExecContext(ctx, query, id, fieldsJSON)
	if err != nil {
		return fmt.Errorf("failed to merge custom fields: %w", err)
	}

	return nil
}

// UpdateStatus overwrites the contact's status.
func (r *ContactRepository) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE contacts SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return fmt.Errorf("failed to update contact status: %w", err)
	}

	return nil
}
