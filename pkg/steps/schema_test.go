package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/relay/pkg/models"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		kind    models.StepKind
		config  map[string]any
		wantErr bool
	}{
		{name: "send_email valid", kind: models.StepSendEmail, config: map[string]any{"template_id": "tpl-1"}},
		{name: "send_email missing template", kind: models.StepSendEmail, config: map[string]any{}, wantErr: true},
		{name: "send_sms inline message", kind: models.StepSendSMS, config: map[string]any{"message": "hi"}},
		{name: "send_sms empty", kind: models.StepSendSMS, config: map[string]any{}, wantErr: true},
		{name: "add_tag valid", kind: models.StepAddTag, config: map[string]any{"tag_name": "vip"}},
		{name: "add_tag blank", kind: models.StepAddTag, config: map[string]any{"tag_name": ""}, wantErr: true},
		{name: "wait valid", kind: models.StepWait, config: map[string]any{"delay_days": 1}},
		{name: "wait negative", kind: models.StepWait, config: map[string]any{"delay_minutes": -5}, wantErr: true},
		{name: "wait empty", kind: models.StepWait, config: map[string]any{}},
		{name: "condition valid", kind: models.StepCondition, config: map[string]any{"field": "status", "operator": "equals", "value": "lead"}},
		{name: "condition bad operator", kind: models.StepCondition, config: map[string]any{"field": "status", "operator": "resembles"}, wantErr: true},
		{name: "webhook valid", kind: models.StepWebhook, config: map[string]any{"url": "https://example.com/hook"}},
		{name: "webhook missing url", kind: models.StepWebhook, config: map[string]any{"method": "POST"}, wantErr: true},
		{name: "move_deal valid", kind: models.StepMoveDeal, config: map[string]any{"stage_id": "stage-1"}},
		{name: "move_deal missing stage", kind: models.StepMoveDeal, config: map[string]any{"deal_id": "deal-1"}, wantErr: true},
		{name: "create_task bad priority", kind: models.StepCreateTask, config: map[string]any{"priority": "urgent"}, wantErr: true},
		{name: "nil config allowed for update_contact", kind: models.StepUpdateContact, config: nil},
		{name: "unknown kind", kind: "teleport", config: map[string]any{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.kind, tt.config)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			assert.NoError(t, err)
		})
	}
}
