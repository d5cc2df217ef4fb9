package steps

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/relaycrm/relay/pkg/models"
)

// configSchemas holds the JSON schema for each step kind's config. Configs
// are validated when an automation is saved, not at execution time.
var configSchemas = map[models.StepKind]map[string]any{
	models.StepSendEmail: {
		"type":                 "object",
		"required":             []string{"template_id"},
		"additionalProperties": false,
		"properties": map[string]any{
			"template_id": map[string]any{"type": "string", "minLength": 1},
		},
	},
	models.StepSendSMS: {
		"type":                 "object",
		"additionalProperties": false,
		"anyOf": []any{
			map[string]any{"required": []string{"template_id"}},
			map[string]any{"required": []string{"message"}},
		},
		"properties": map[string]any{
			"template_id": map[string]any{"type": "string", "minLength": 1},
			"message":     map[string]any{"type": "string", "minLength": 1},
		},
	},
	models.StepAddTag: {
		"type":                 "object",
		"required":             []string{"tag_name"},
		"additionalProperties": false,
		"properties": map[string]any{
			"tag_name": map[string]any{"type": "string", "minLength": 1},
		},
	},
	models.StepRemoveTag: {
		"type":                 "object",
		"required":             []string{"tag_name"},
		"additionalProperties": false,
		"properties": map[string]any{
			"tag_name": map[string]any{"type": "string", "minLength": 1},
		},
	},
	models.StepWait: {
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"delay_minutes": map[string]any{"type": "integer", "minimum": 0},
			"delay_hours":   map[string]any{"type": "integer", "minimum": 0},
			"delay_days":    map[string]any{"type": "integer", "minimum": 0},
		},
	},
	models.StepCreateTask: {
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"due_days":    map[string]any{"type": "integer", "minimum": 0},
			"priority":    map[string]any{"type": "string", "enum": []any{"low", "medium", "high"}},
			"assignee_id": map[string]any{"type": "string"},
		},
	},
	models.StepUpdateContact: {
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"custom_fields": map[string]any{"type": "object"},
			"status":        map[string]any{"type": "string"},
		},
	},
	models.StepCondition: {
		"type":                 "object",
		"required":             []string{"field", "operator"},
		"additionalProperties": false,
		"properties": map[string]any{
			"field": map[string]any{"type": "string", "minLength": 1},
			"operator": map[string]any{
				"type": "string",
				"enum": []any{
					"equals", "not_equals", "contains", "not_contains",
					"is_empty", "is_not_empty", "greater_than", "less_than",
				},
			},
			"value": map[string]any{},
		},
	},
	models.StepWebhook: {
		"type":                 "object",
		"required":             []string{"url"},
		"additionalProperties": false,
		"properties": map[string]any{
			"url":     map[string]any{"type": "string", "format": "uri"},
			"method":  map[string]any{"type": "string", "enum": []any{"GET", "POST", "PUT", "PATCH", "DELETE"}},
			"headers": map[string]any{"type": "object"},
			"payload": map[string]any{"type": "object"},
		},
	},
	models.StepMoveDeal: {
		"type":                 "object",
		"required":             []string{"stage_id"},
		"additionalProperties": false,
		"properties": map[string]any{
			"deal_id":     map[string]any{"type": "string"},
			"pipeline_id": map[string]any{"type": "string"},
			"stage_id":    map[string]any{"type": "string", "minLength": 1},
		},
	},
}

// ValidateConfig checks a step's raw config against the schema for its kind.
func ValidateConfig(kind models.StepKind, config map[string]any) error {
	schema, ok := configSchemas[kind]
	if !ok {
		return fmt.Errorf("unknown step kind %q", kind)
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
	if err != nil {
		return fmt.Errorf("failed to validate %s config: %w", kind, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}

		return fmt.Errorf("invalid %s config: %s", kind, strings.Join(messages, "; "))
	}

	return nil
}
