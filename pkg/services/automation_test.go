package services

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
	"github.com/relaycrm/relay/pkg/persistence/memory"
)

func intPtr(v int) *int { return &v }

func newService() (*Automation, *memory.Persistence) {
	store := memory.NewPersistence()

	return NewAutomation(store, validator.New()), store
}

func validAutomation() *models.Automation {
	return &models.Automation{
		OrganizationID: "org-1",
		Name:           "welcome flow",
		TriggerType:    models.TriggerContactCreated,
		Steps: []*models.Step{
			{Position: 1, Kind: models.StepAddTag, Config: map[string]any{"tag_name": "welcomed"}},
		},
	}
}

func TestAutomation_Create(t *testing.T) {
	service, store := newService()

	created, err := service.Create(context.Background(), validAutomation())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.Active, "new automations start inactive")

	stored, err := store.Automations().GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "welcome flow", stored.Name)
	require.Len(t, stored.Steps, 1)
}

func TestAutomation_Create_ValidationFailures(t *testing.T) {
	service, _ := newService()

	tests := []struct {
		name    string
		mutate  func(a *models.Automation)
		wantErr error
	}{
		{
			name:    "missing name",
			mutate:  func(a *models.Automation) { a.Name = "" },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "unknown trigger type",
			mutate:  func(a *models.Automation) { a.TriggerType = "meteor_strike" },
			wantErr: ErrInvalidTriggerType,
		},
		{
			name:    "no steps",
			mutate:  func(a *models.Automation) { a.Steps = nil },
			wantErr: ErrStepsRequired,
		},
		{
			name: "unknown step kind",
			mutate: func(a *models.Automation) {
				a.Steps[0].Kind = "teleport"
			},
			wantErr: ErrInvalidStepKind,
		},
		{
			name: "duplicate positions",
			mutate: func(a *models.Automation) {
				a.Steps = append(a.Steps, &models.Step{
					Position: 1, Kind: models.StepAddTag, Config: map[string]any{"tag_name": "again"},
				})
			},
			wantErr: ErrDuplicateStepPosition,
		},
		{
			name: "invalid step config",
			mutate: func(a *models.Automation) {
				a.Steps[0].Config = map[string]any{}
			},
			wantErr: ErrInvalidRequest,
		},
		{
			name: "dangling branch target",
			mutate: func(a *models.Automation) {
				a.Steps = append(a.Steps, &models.Step{
					Position:   2,
					Kind:       models.StepCondition,
					Config:     map[string]any{"field": "status", "operator": "equals", "value": "x"},
					TrueBranch: intPtr(9),
				})
			},
			wantErr: ErrInvalidBranchTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			automation := validAutomation()
			tt.mutate(automation)

			_, err := service.Create(context.Background(), automation)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestAutomation_Update_PreservesIdentity(t *testing.T) {
	service, _ := newService()

	created, err := service.Create(context.Background(), validAutomation())
	require.NoError(t, err)

	require.NoError(t, service.SetActive(context.Background(), created.ID, true))

	replacement := validAutomation()
	replacement.Name = "renamed flow"
	replacement.OrganizationID = "org-other"

	updated, err := service.Update(context.Background(), created.ID, replacement)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "org-1", updated.OrganizationID, "organization cannot be changed")
	assert.True(t, updated.Active, "activation state carries over")
	assert.Equal(t, "renamed flow", updated.Name)
}

func TestAutomation_Update_NotFound(t *testing.T) {
	service, _ := newService()

	_, err := service.Update(context.Background(), "missing", validAutomation())
	require.ErrorIs(t, err, persistence.ErrAutomationNotFound)
}
