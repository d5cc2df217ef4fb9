// Package persistence provides the data storage abstraction for automations,
// enrollments and the CRM records the engine touches.
package persistence

import (
	"context"
	"time"

	"github.com/relaycrm/relay/pkg/models"
)

// Persistence is the storage surface consumed by the automation engine.
// PostgreSQL backs production; an in-memory implementation backs tests and
// local development.
type Persistence interface {
	Automations() AutomationRepository
	Contacts() ContactRepository
	Enrollments() EnrollmentRepository
	StepLogs() StepLogRepository
	Deals() DealRepository
	Tasks() TaskRepository
	Templates() TemplateRepository
	MessageLogs() MessageLogRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// AutomationRepository stores workflow definitions. The engine reads them and
// bumps counters; writes come from the (external) builder through Save.
type AutomationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Automation, error)
	List(ctx context.Context, organizationID string) ([]*models.Automation, error)
	// ActiveByTrigger returns active automations for the organization whose
	// trigger type matches, steps loaded.
	ActiveByTrigger(ctx context.Context, organizationID string, triggerType models.TriggerType) ([]*models.Automation, error)
	Save(ctx context.Context, automation *models.Automation) error
	SetActive(ctx context.Context, id string, active bool) error
	// IncrementCounter atomically bumps one of the aggregate counters.
	IncrementCounter(ctx context.Context, id string, counter models.AutomationCounter) error
}

// ContactRepository reads contacts and applies the engine's declared mutations.
type ContactRepository interface {
	GetByID(ctx context.Context, id string) (*models.Contact, error)
	Save(ctx context.Context, contact *models.Contact) error
	// AddTag appends the tag unless already present; it reports whether the
	// contact changed.
	AddTag(ctx context.Context, id, tag string) (bool, error)
	RemoveTag(ctx context.Context, id, tag string) (bool, error)
	// MergeCustomFields shallow-merges fields into the contact's custom field map.
	MergeCustomFields(ctx context.Context, id string, fields map[string]any) error
	UpdateStatus(ctx context.Context, id, status string) error
}

// EnrollmentRepository owns enrollment rows exclusively.
type EnrollmentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Enrollment, error)
	// FindByPair returns the enrollment for the (automation, contact) pair
	// regardless of status, or nil when none exists.
	FindByPair(ctx context.Context, automationID, contactID string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	// Reset re-arms a terminal enrollment in place: status active, cursor 1,
	// payload replaced, context/error/completed_at cleared, wake time now.
	Reset(ctx context.Context, id string, triggerPayload map[string]any, now time.Time) error
	// Claim transitions an unclaimed (or stale-claimed) active enrollment to
	// claimed in a single conditional update. It reports false when another
	// caller holds the claim or the enrollment is not active.
	Claim(ctx context.Context, id, token string, now time.Time) (bool, error)
	// Release clears the claim if the token still holds it.
	Release(ctx context.Context, id, token string) error
	// UpdateProgress persists the new cursor, merged context and wake time.
	UpdateProgress(ctx context.Context, id string, cursor int, context map[string]any, nextActionAt time.Time) error
	// MarkCompleted transitions to completed and clears any claim.
	MarkCompleted(ctx context.Context, id string, completedAt time.Time) error
	// MarkFailed transitions to failed with the error message and clears any claim.
	MarkFailed(ctx context.Context, id, errorMessage string, failedAt time.Time) error
	// DuePending lists up to limit active enrollments whose wake time has
	// elapsed and whose claim is absent or stale, oldest wake time first.
	DuePending(ctx context.Context, now time.Time, limit int) ([]*models.Enrollment, error)
}

// StepLogRepository is the append-only audit sink for step attempts.
type StepLogRepository interface {
	Append(ctx context.Context, entry *models.StepLog) error
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]*models.StepLog, error)
}

// DealRepository reads deals and applies stage moves.
type DealRepository interface {
	GetByID(ctx context.Context, id string) (*models.Deal, error)
	Save(ctx context.Context, deal *models.Deal) error
	// LatestOpenByContact returns the contact's most recently created open
	// deal, or nil when the contact has none.
	LatestOpenByContact(ctx context.Context, contactID string) (*models.Deal, error)
	MoveStage(ctx context.Context, id, pipelineID, stageID string) error
}

// TaskRepository inserts follow-up tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	ListByContact(ctx context.Context, contactID string) ([]*models.Task, error)
}

// TemplateRepository resolves organization-scoped message templates.
type TemplateRepository interface {
	GetByID(ctx context.Context, organizationID, id string, channel models.MessageChannel) (*models.MessageTemplate, error)
	Save(ctx context.Context, template *models.MessageTemplate) error
}

// MessageLogRepository records outbound messages.
type MessageLogRepository interface {
	Append(ctx context.Context, entry *models.MessageLog) error
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]*models.MessageLog, error)
}
