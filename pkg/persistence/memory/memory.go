// Package memory provides an in-memory persistence implementation for tests
// and local development. All operations are safe for concurrent use; the
// claim/release semantics match the PostgreSQL implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

const claimStaleAfter = 5 * time.Minute

// newID produces time-ordered row IDs, matching the PostgreSQL store.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Persistence is an in-memory implementation of persistence.Persistence.
type Persistence struct {
	mu sync.Mutex

	automations map[string]*models.Automation
	contacts    map[string]*models.Contact
	enrollments map[string]*models.Enrollment
	stepLogs    []*models.StepLog
	deals       map[string]*models.Deal
	tasks       []*models.Task
	templates   map[string]*models.MessageTemplate
	messageLogs []*models.MessageLog
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{
		automations: make(map[string]*models.Automation),
		contacts:    make(map[string]*models.Contact),
		enrollments: make(map[string]*models.Enrollment),
		deals:       make(map[string]*models.Deal),
		templates:   make(map[string]*models.MessageTemplate),
	}
}

func (p *Persistence) Automations() persistence.AutomationRepository { return &automationRepo{p} }
func (p *Persistence) Contacts() persistence.ContactRepository       { return &contactRepo{p} }
func (p *Persistence) Enrollments() persistence.EnrollmentRepository { return &enrollmentRepo{p} }
func (p *Persistence) StepLogs() persistence.StepLogRepository       { return &stepLogRepo{p} }
func (p *Persistence) Deals() persistence.DealRepository             { return &dealRepo{p} }
func (p *Persistence) Tasks() persistence.TaskRepository             { return &taskRepo{p} }
func (p *Persistence) Templates() persistence.TemplateRepository     { return &templateRepo{p} }
func (p *Persistence) MessageLogs() persistence.MessageLogRepository { return &messageLogRepo{p} }

func (p *Persistence) HealthCheck(_ context.Context) error { return nil }
func (p *Persistence) Close(_ context.Context) error       { return nil }

type automationRepo struct{ p *Persistence }

func (r *automationRepo) GetByID(_ context.Context, id string) (*models.Automation, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	automation, ok := r.p.automations[id]
	if !ok {
		return nil, persistence.ErrAutomationNotFound
	}

	return cloneAutomation(automation), nil
}

func (r *automationRepo) List(_ context.Context, organizationID string) ([]*models.Automation, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	result := make([]*models.Automation, 0)

	for _, automation := range r.p.automations {
		if automation.OrganizationID == organizationID {
			result = append(result, cloneAutomation(automation))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *automationRepo) ActiveByTrigger(_ context.Context, organizationID string, triggerType models.TriggerType) ([]*models.Automation, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	result := make([]*models.Automation, 0)

	for _, automation := range r.p.automations {
		if automation.OrganizationID == organizationID && automation.TriggerType == triggerType && automation.Active {
			result = append(result, cloneAutomation(automation))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *automationRepo) Save(_ context.Context, automation *models.Automation) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	now := time.Now().UTC()

	if automation.ID == "" {
		automation.ID = newID()
	}

	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	for _, step := range automation.Steps {
		if step.ID == "" {
			step.ID = newID()
		}

		step.AutomationID = automation.ID
	}

	r.p.automations[automation.ID] = cloneAutomation(automation)

	return nil
}

func (r *automationRepo) SetActive(_ context.Context, id string, active bool) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	automation, ok := r.p.automations[id]
	if !ok {
		return persistence.ErrAutomationNotFound
	}

	automation.Active = active

	return nil
}

func (r *automationRepo) IncrementCounter(_ context.Context, id string, counter models.AutomationCounter) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	automation, ok := r.p.automations[id]
	if !ok {
		return persistence.ErrAutomationNotFound
	}

	switch counter {
	case models.CounterEnrolled:
		automation.EnrolledCount++
	case models.CounterCompleted:
		automation.CompletedCount++
	case models.CounterFailed:
		automation.FailedCount++
	}

	return nil
}

type contactRepo struct{ p *Persistence }

func (r *contactRepo) GetByID(_ context.Context, id string) (*models.Contact, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	contact, ok := r.p.contacts[id]
	if !ok {
		return nil, persistence.ErrContactNotFound
	}

	return cloneContact(contact), nil
}

func (r *contactRepo) Save(_ context.Context, contact *models.Contact) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	now := time.Now().UTC()

	if contact.ID == "" {
		contact.ID = newID()
	}

	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}

	contact.UpdatedAt = now
	r.p.contacts[contact.ID] = cloneContact(contact)

	return nil
}

func (r *contactRepo) AddTag(_ context.Context, id, tag string) (bool, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	contact, ok := r.p.contacts[id]
	if !ok {
		return false, persistence.ErrContactNotFound
	}

	for _, t := range contact.Tags {
		if t == tag {
			return false, nil
		}
	}

	contact.Tags = append(contact.Tags, tag)

	return true, nil
}

func (r *contactRepo) RemoveTag(_ context.Context, id, tag string) (bool, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	contact, ok := r.p.contacts[id]
	if !ok {
		return false, persistence.ErrContactNotFound
	}

	for i, t := range contact.Tags {
		if t == tag {
			contact.Tags = append(contact.Tags[:i], contact.Tags[i+1:]...)

			return true, nil
		}
	}

	return false, nil
}

func (r *contactRepo) MergeCustomFields(_ context.Context, id string, fields map[string]any) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	contact, ok := r.p.contacts[id]
	if !ok {
		return persistence.ErrContactNotFound
	}

	if contact.CustomFields == nil {
		contact.CustomFields = make(map[string]any)
	}

	for k, v := range fields {
		contact.CustomFields[k] = v
	}

	return nil
}

func (r *contactRepo) UpdateStatus(_ context.Context, id, status string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	contact, ok := r.p.contacts[id]
	if !ok {
		return persistence.ErrContactNotFound
	}

	contact.Status = status

	return nil
}

type enrollmentRepo struct{ p *Persistence }

func (r *enrollmentRepo) GetByID(_ context.Context, id string) (*models.Enrollment, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	enrollment, ok := r.p.enrollments[id]
	if !ok {
		return nil, persistence.ErrEnrollmentNotFound
	}

	return cloneEnrollment(enrollment), nil
}

func (r *enrollmentRepo) FindByPair(_ context.Context, automationID, contactID string) (*models.Enrollment, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	for _, enrollment := range r.p.enrollments {
		if enrollment.AutomationID == automationID && enrollment.ContactID == contactID {
			return cloneEnrollment(enrollment), nil
		}
	}

	return nil, nil
}

func (r *enrollmentRepo) Create(_ context.Context, enrollment *models.Enrollment) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	for _, existing := range r.p.enrollments {
		if existing.AutomationID == enrollment.AutomationID && existing.ContactID == enrollment.ContactID {
			return persistence.ErrDuplicateActiveEnrollment
		}
	}

	r.p.enrollments[enrollment.ID] = cloneEnrollment(enrollment)

	return nil
}

func (r *enrollmentRepo) Reset(_ context.Context, id string, triggerPayload map[string]any, now time.Time) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	enrollment, ok := r.p.enrollments[id]
	if !ok {
		return persistence.ErrEnrollmentNotFound
	}

	if !enrollment.Status.IsTerminal() {
		return persistence.ErrDuplicateActiveEnrollment
	}

	enrollment.Status = models.EnrollmentStatusActive
	enrollment.CurrentStep = 1
	enrollment.TriggerPayload = cloneMap(triggerPayload)
	enrollment.Context = nil
	enrollment.NextActionAt = now
	enrollment.ClaimedBy = nil
	enrollment.ClaimedAt = nil
	enrollment.ErrorMessage = ""
	enrollment.EnrolledAt = now
	enrollment.CompletedAt = nil

	return nil
}

func (r *enrollmentRepo) Claim(_ context.Context, id, token string, now time.Time) (bool, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	enrollment, ok := r.p.enrollments[id]
	if !ok {
		return false, nil
	}

	if enrollment.Status != models.EnrollmentStatusActive {
		return false, nil
	}

	if enrollment.ClaimedBy != nil && enrollment.ClaimedAt != nil && enrollment.ClaimedAt.After(now.Add(-claimStaleAfter)) {
		return false, nil
	}

	enrollment.ClaimedBy = &token
	enrollment.ClaimedAt = &now

	return true, nil
}

func (r *enrollmentRepo) Release(_ context.Context, id, token string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	enrollment, ok := r.p.enrollments[id]
	if !ok {
		return nil
	}

	if enrollment.ClaimedBy != nil && *enrollment.ClaimedBy == token {
		enrollment.ClaimedBy = nil
		enrollment.ClaimedAt = nil
	}

	return nil
}

func (r *enrollmentRepo) UpdateProgress(_ context.Context, id string, cursor int, context map[string]any, nextActionAt time.Time) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	enrollment, ok := r.p.enrollments[id]
	if !ok {
		return persistence.ErrEnrollmentNotFound
	}

	if enrollment.Status != models.EnrollmentStatusActive {
		return nil
	}

	enrollment.CurrentStep = cursor
	enrollment.Context = cloneMap(context)
	enrollment.NextActionAt = nextActionAt

	return nil
}

func (r *enrollmentRepo) MarkCompleted(_ context.Context, id string, completedAt time.Time) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	enrollment, ok := r.p.enrollments[id]
	if !ok {
		return persistence.ErrEnrollmentNotFound
	}

	if enrollment.Status != models.EnrollmentStatusActive {
		return nil
	}

	enrollment.Status = models.EnrollmentStatusCompleted
	enrollment.CompletedAt = &completedAt
	enrollment.ClaimedBy = nil
	enrollment.ClaimedAt = nil

	return nil
}

func (r *enrollmentRepo) MarkFailed(_ context.Context, id, errorMessage string, failedAt time.Time) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	enrollment, ok := r.p.enrollments[id]
	if !ok {
		return persistence.ErrEnrollmentNotFound
	}

	if enrollment.Status != models.EnrollmentStatusActive {
		return nil
	}

	enrollment.Status = models.EnrollmentStatusFailed
	enrollment.ErrorMessage = errorMessage
	enrollment.CompletedAt = &failedAt
	enrollment.ClaimedBy = nil
	enrollment.ClaimedAt = nil

	return nil
}

func (r *enrollmentRepo) DuePending(_ context.Context, now time.Time, limit int) ([]*models.Enrollment, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	due := make([]*models.Enrollment, 0)

	for _, enrollment := range r.p.enrollments {
		if enrollment.Status != models.EnrollmentStatusActive {
			continue
		}

		if enrollment.NextActionAt.After(now) {
			continue
		}

		if enrollment.ClaimedBy != nil && enrollment.ClaimedAt != nil && enrollment.ClaimedAt.After(now.Add(-claimStaleAfter)) {
			continue
		}

		due = append(due, cloneEnrollment(enrollment))
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextActionAt.Before(due[j].NextActionAt)
	})

	if len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

type stepLogRepo struct{ p *Persistence }

func (r *stepLogRepo) Append(_ context.Context, entry *models.StepLog) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if entry.ID == "" {
		entry.ID = newID()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	clone := *entry
	r.p.stepLogs = append(r.p.stepLogs, &clone)

	return nil
}

func (r *stepLogRepo) ListByEnrollment(_ context.Context, enrollmentID string) ([]*models.StepLog, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	result := make([]*models.StepLog, 0)

	for _, entry := range r.p.stepLogs {
		if entry.EnrollmentID == enrollmentID {
			clone := *entry
			result = append(result, &clone)
		}
	}

	return result, nil
}

type dealRepo struct{ p *Persistence }

func (r *dealRepo) GetByID(_ context.Context, id string) (*models.Deal, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	deal, ok := r.p.deals[id]
	if !ok {
		return nil, persistence.ErrDealNotFound
	}

	clone := *deal

	return &clone, nil
}

func (r *dealRepo) Save(_ context.Context, deal *models.Deal) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	now := time.Now().UTC()

	if deal.ID == "" {
		deal.ID = newID()
	}

	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = now
	}

	if deal.Status == "" {
		deal.Status = models.DealStatusOpen
	}

	deal.UpdatedAt = now
	clone := *deal
	r.p.deals[deal.ID] = &clone

	return nil
}

func (r *dealRepo) LatestOpenByContact(_ context.Context, contactID string) (*models.Deal, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	var latest *models.Deal

	for _, deal := range r.p.deals {
		if deal.ContactID != contactID || deal.Status != models.DealStatusOpen {
			continue
		}

		if latest == nil || deal.CreatedAt.After(latest.CreatedAt) {
			latest = deal
		}
	}

	if latest == nil {
		return nil, nil
	}

	clone := *latest

	return &clone, nil
}

func (r *dealRepo) MoveStage(_ context.Context, id, pipelineID, stageID string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	deal, ok := r.p.deals[id]
	if !ok {
		return persistence.ErrDealNotFound
	}

	deal.StageID = stageID

	if pipelineID != "" {
		deal.PipelineID = pipelineID
	}

	deal.UpdatedAt = time.Now().UTC()

	return nil
}

type taskRepo struct{ p *Persistence }

func (r *taskRepo) Create(_ context.Context, task *models.Task) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if task.ID == "" {
		task.ID = newID()
	}

	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	clone := *task
	r.p.tasks = append(r.p.tasks, &clone)

	return nil
}

func (r *taskRepo) ListByContact(_ context.Context, contactID string) ([]*models.Task, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	result := make([]*models.Task, 0)

	for _, task := range r.p.tasks {
		if task.ContactID == contactID {
			clone := *task
			result = append(result, &clone)
		}
	}

	return result, nil
}

type templateRepo struct{ p *Persistence }

func (r *templateRepo) GetByID(_ context.Context, organizationID, id string, channel models.MessageChannel) (*models.MessageTemplate, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	template, ok := r.p.templates[id]
	if !ok || template.OrganizationID != organizationID || template.Channel != channel {
		return nil, persistence.ErrTemplateNotFound
	}

	clone := *template

	return &clone, nil
}

func (r *templateRepo) Save(_ context.Context, template *models.MessageTemplate) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if template.ID == "" {
		template.ID = newID()
	}

	if template.CreatedAt.IsZero() {
		template.CreatedAt = time.Now().UTC()
	}

	clone := *template
	r.p.templates[template.ID] = &clone

	return nil
}

type messageLogRepo struct{ p *Persistence }

func (r *messageLogRepo) Append(_ context.Context, entry *models.MessageLog) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if entry.ID == "" {
		entry.ID = newID()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	clone := *entry
	r.p.messageLogs = append(r.p.messageLogs, &clone)

	return nil
}

func (r *messageLogRepo) ListByEnrollment(_ context.Context, enrollmentID string) ([]*models.MessageLog, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	result := make([]*models.MessageLog, 0)

	for _, entry := range r.p.messageLogs {
		if entry.EnrollmentID == enrollmentID {
			clone := *entry
			result = append(result, &clone)
		}
	}

	return result, nil
}

func cloneAutomation(automation *models.Automation) *models.Automation {
	clone := *automation
	clone.TriggerConditions = cloneMap(automation.TriggerConditions)
	clone.Steps = make([]*models.Step, len(automation.Steps))

	for i, step := range automation.Steps {
		stepClone := *step
		stepClone.Config = cloneMap(step.Config)
		clone.Steps[i] = &stepClone
	}

	return &clone
}

func cloneContact(contact *models.Contact) *models.Contact {
	clone := *contact
	clone.Tags = append([]string(nil), contact.Tags...)
	clone.CustomFields = cloneMap(contact.CustomFields)

	return &clone
}

func cloneEnrollment(enrollment *models.Enrollment) *models.Enrollment {
	clone := *enrollment
	clone.TriggerPayload = cloneMap(enrollment.TriggerPayload)
	clone.Context = cloneMap(enrollment.Context)

	return &clone
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	clone := make(map[string]any, len(m))
	for k, v := range m {
		clone[k] = v
	}

	return clone
}
