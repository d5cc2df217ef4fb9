package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
	"github.com/relaycrm/relay/pkg/steps"
)

// Automation validates and persists workflow definitions. Step configs are
// checked against their kind's schema here, at save time, so the engine can
// assume well-formed configs at execution time.
type Automation struct {
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAutomation(store persistence.Persistence, validate *validator.Validate) *Automation {
	return &Automation{
		persistence: store,
		validator:   validate,
	}
}

// HealthCheck checks the persistence layer.
func (s *Automation) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (s *Automation) List(ctx context.Context, organizationID string) ([]*models.Automation, error) {
	if organizationID == "" {
		return nil, NewValidationError("list automations", "organization_id is required", ErrInvalidRequest)
	}

	return s.persistence.Automations().List(ctx, organizationID)
}

func (s *Automation) FetchByID(ctx context.Context, id string) (*models.Automation, error) {
	return s.persistence.Automations().GetByID(ctx, id)
}

// Create validates and stores a new automation. It comes back inactive;
// activation is a separate call so half-built flows never receive triggers.
func (s *Automation) Create(ctx context.Context, automation *models.Automation) (*models.Automation, error) {
	err := s.validate(automation)
	if err != nil {
		return nil, err
	}

	automation.ID = ""
	automation.Active = false

	err = s.persistence.Automations().Save(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to save automation: %w", err)
	}

	return automation, nil
}

// Update validates and replaces an existing automation definition. Counters
// carry over; the step list is replaced wholesale.
func (s *Automation) Update(ctx context.Context, id string, automation *models.Automation) (*models.Automation, error) {
	existing, err := s.persistence.Automations().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	automation.ID = existing.ID
	automation.OrganizationID = existing.OrganizationID
	automation.Active = existing.Active
	automation.CreatedAt = existing.CreatedAt

	err = s.validate(automation)
	if err != nil {
		return nil, err
	}

	err = s.persistence.Automations().Save(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to save automation: %w", err)
	}

	return automation, nil
}

func (s *Automation) SetActive(ctx context.Context, id string, active bool) error {
	return s.persistence.Automations().SetActive(ctx, id, active)
}

func (s *Automation) validate(automation *models.Automation) error {
	if automation == nil {
		return NewValidationError("validate automation", "automation body is required", ErrAutomationNil)
	}

	err := s.validator.Struct(automation)
	if err != nil {
		return NewValidationError("validate automation", err.Error(), ErrInvalidRequest)
	}

	if !automation.TriggerType.IsValid() {
		return NewValidationError("validate automation",
			fmt.Sprintf("unknown trigger type %q", automation.TriggerType), ErrInvalidTriggerType)
	}

	if len(automation.Steps) == 0 {
		return NewValidationError("validate automation", "at least one step is required", ErrStepsRequired)
	}

	return s.validateSteps(automation.Steps)
}

func (s *Automation) validateSteps(list []*models.Step) error {
	positions := make(map[int]bool, len(list))

	for _, step := range list {
		err := s.validator.Struct(step)
		if err != nil {
			return NewValidationError("validate step", err.Error(), ErrInvalidRequest)
		}

		if !step.Kind.IsValid() {
			return NewValidationError("validate step",
				fmt.Sprintf("unknown step kind %q at position %d", step.Kind, step.Position), ErrInvalidStepKind)
		}

		if positions[step.Position] {
			return NewValidationError("validate step",
				fmt.Sprintf("position %d appears more than once", step.Position), ErrDuplicateStepPosition)
		}

		positions[step.Position] = true

		err = steps.ValidateConfig(step.Kind, step.Config)
		if err != nil {
			return NewValidationError("validate step", err.Error(), ErrInvalidRequest)
		}
	}

	return s.validateBranchTargets(list, positions)
}

// validateBranchTargets checks that every condition branch names an existing
// position. Targets are optional; an unset branch falls through to the next
// position at run time.
func (s *Automation) validateBranchTargets(list []*models.Step, positions map[int]bool) error {
	sorted := make([]*models.Step, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	for _, step := range sorted {
		if step.Kind != models.StepCondition {
			continue
		}

		for _, target := range []*int{step.TrueBranch, step.FalseBranch} {
			if target != nil && !positions[*target] {
				return NewValidationError("validate step",
					fmt.Sprintf("branch target %d from position %d does not name a step", *target, step.Position),
					ErrInvalidBranchTarget)
			}
		}
	}

	return nil
}
