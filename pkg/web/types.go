// Package web provides the HTTP surface: trigger intake, sweep invocation
// and automation management.
package web

import "github.com/relaycrm/relay/pkg/models"

// TriggerRequest is the body of a trigger intake call. The trigger type
// comes from the URL path.
type TriggerRequest struct {
	ContactID      string         `json:"contact_id"      validate:"required"`
	OrganizationID string         `json:"organization_id" validate:"required"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// StepRequest is one step in an automation create or update body.
type StepRequest struct {
	Position    int             `json:"position"     validate:"required,min=1"`
	Kind        models.StepKind `json:"kind"         validate:"required"`
	Config      map[string]any  `json:"config"`
	TrueBranch  *int            `json:"true_branch,omitempty"`
	FalseBranch *int            `json:"false_branch,omitempty"`
}

// CreateAutomationRequest is the body for creating an automation. New
// automations start inactive.
type CreateAutomationRequest struct {
	Name              string         `json:"name"               validate:"required,min=3"`
	Description       string         `json:"description"`
	TriggerType       string         `json:"trigger_type"       validate:"required"`
	TriggerConditions map[string]any `json:"trigger_conditions"`
	Steps             []StepRequest  `json:"steps"              validate:"required,min=1,dive"`
}

// UpdateAutomationRequest replaces an automation's definition. Organization
// and activation state are not updatable through this body.
type UpdateAutomationRequest struct {
	Name              string         `json:"name"               validate:"required,min=3"`
	Description       string         `json:"description"`
	TriggerType       string         `json:"trigger_type"       validate:"required"`
	TriggerConditions map[string]any `json:"trigger_conditions"`
	Steps             []StepRequest  `json:"steps"              validate:"required,min=1,dive"`
}

func (r CreateAutomationRequest) toModel(organizationID string) *models.Automation {
	return &models.Automation{
		OrganizationID:    organizationID,
		Name:              r.Name,
		Description:       r.Description,
		TriggerType:       models.TriggerType(r.TriggerType),
		TriggerConditions: r.TriggerConditions,
		Steps:             toModelSteps(r.Steps),
	}
}

func (r UpdateAutomationRequest) toModel() *models.Automation {
	return &models.Automation{
		Name:              r.Name,
		Description:       r.Description,
		TriggerType:       models.TriggerType(r.TriggerType),
		TriggerConditions: r.TriggerConditions,
		Steps:             toModelSteps(r.Steps),
	}
}

func toModelSteps(list []StepRequest) []*models.Step {
	result := make([]*models.Step, 0, len(list))

	for _, s := range list {
		result = append(result, &models.Step{
			Position:    s.Position,
			Kind:        s.Kind,
			Config:      s.Config,
			TrueBranch:  s.TrueBranch,
			FalseBranch: s.FalseBranch,
		})
	}

	return result
}
