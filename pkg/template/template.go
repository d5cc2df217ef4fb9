// Package template renders message templates and templated step fields
// against enrollment data.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/relaycrm/relay/pkg/models"
)

// Render executes a text/template against the given data and returns the
// result as a string. Missing keys render as empty strings rather than
// failing the step.
func Render(input string, data map[string]any) (string, error) {
	if !strings.Contains(input, "{{") {
		return input, nil
	}

	tmpl, err := template.
		New("render").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
			"title": func(s string) string {
				if s == "" {
					return s
				}

				return strings.ToUpper(s[:1]) + s[1:]
			},
		}).Parse(input)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %q: %w", input, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template %q: %w", input, err)
	}

	// missingkey=zero prints "<no value>" for nil map values.
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}

// Data builds the variable set available to message templates and templated
// step fields: contact identity fields under .contact, the trigger payload
// under .trigger and accumulated step context under .context. Additional
// data overlays the top level.
func Data(contact *models.Contact, enrollment *models.Enrollment, additional map[string]any) map[string]any {
	data := map[string]any{
		"contact": map[string]any{
			"id":            contact.ID,
			"email":         contact.Email,
			"phone":         contact.Phone,
			"first_name":    contact.FirstName,
			"last_name":     contact.LastName,
			"full_name":     contact.FullName(),
			"status":        contact.Status,
			"source":        contact.Source,
			"tags":          contact.Tags,
			"custom_fields": contact.CustomFields,
		},
	}

	if enrollment != nil {
		data["trigger"] = enrollment.TriggerPayload
		data["context"] = enrollment.Context
	}

	for k, v := range additional {
		data[k] = v
	}

	return data
}
