package steps

import (
	"encoding/json"
	"fmt"
)

// SendEmailConfig configures a send_email step. TemplateID is required and
// resolved against the automation's organization.
type SendEmailConfig struct {
	TemplateID string `json:"template_id"`
}

// SendSMSConfig configures a send_sms step. Exactly one of TemplateID or
// Message must be set; Message supports template placeholders inline.
type SendSMSConfig struct {
	TemplateID string `json:"template_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

// TagConfig configures add_tag and remove_tag steps.
type TagConfig struct {
	TagName string `json:"tag_name"`
}

// WaitConfig configures a wait step. The fields are additive.
type WaitConfig struct {
	DelayMinutes int `json:"delay_minutes,omitempty"`
	DelayHours   int `json:"delay_hours,omitempty"`
	DelayDays    int `json:"delay_days,omitempty"`
}

// TotalMinutes returns the combined delay. Negative components count as
// given, so a malformed negative total ends up treated as no delay.
func (c WaitConfig) TotalMinutes() int {
	return c.DelayMinutes + c.DelayHours*60 + c.DelayDays*1440
}

// CreateTaskConfig configures a create_task step. Title and Description
// support template placeholders.
type CreateTaskConfig struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDays     int    `json:"due_days,omitempty"`
	Priority    string `json:"priority,omitempty"`
	AssigneeID  string `json:"assignee_id,omitempty"`
}

// UpdateContactConfig configures an update_contact step. CustomFields is
// shallow-merged into the contact's custom fields; Status overwrites.
type UpdateContactConfig struct {
	CustomFields map[string]any `json:"custom_fields,omitempty"`
	Status       string         `json:"status,omitempty"`
}

// ConditionConfig configures a condition step.
type ConditionConfig struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// WebhookConfig configures a webhook step.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Payload map[string]any    `json:"payload,omitempty"`
}

// MoveDealConfig configures a move_deal step. When DealID is empty the
// contact's most recent open deal is moved.
type MoveDealConfig struct {
	DealID     string `json:"deal_id,omitempty"`
	PipelineID string `json:"pipeline_id,omitempty"`
	StageID    string `json:"stage_id"`
}

// DecodeConfig converts a step's raw JSON config map into the typed config
// for its kind via a JSON round trip.
func DecodeConfig[T any](config map[string]any) (T, error) {
	var typed T

	raw, err := json.Marshal(config)
	if err != nil {
		return typed, fmt.Errorf("failed to encode step config: %w", err)
	}

	err = json.Unmarshal(raw, &typed)
	if err != nil {
		return typed, fmt.Errorf("failed to decode step config: %w", err)
	}

	return typed, nil
}
