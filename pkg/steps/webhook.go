package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/relaycrm/relay/pkg/models"
)

const webhookTimeout = 30 * time.Second

func executeWebhook(ctx context.Context, env *Env, automation *models.Automation, enrollment *models.Enrollment, contact *models.Contact, step *models.Step) Outcome {
	config, err := DecodeConfig[WebhookConfig](step.Config)
	if err != nil {
		return failf("invalid webhook config: %v", err)
	}

	if config.URL == "" {
		return failf("url is required")
	}

	method := strings.ToUpper(config.Method)
	if method == "" {
		method = http.MethodPost
	}

	payload := map[string]any{
		"event":         "automation.webhook",
		"timestamp":     env.now().Format(time.RFC3339),
		"automation_id": automation.ID,
		"enrollment_id": enrollment.ID,
		"contact": map[string]any{
			"id":         contact.ID,
			"email":      contact.Email,
			"first_name": contact.FirstName,
			"last_name":  contact.LastName,
		},
	}

	for k, v := range config.Payload {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failf("failed to encode webhook payload: %v", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, config.URL, bytes.NewReader(body))
	if err != nil {
		return failf("failed to create webhook request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := env.httpClient().Do(req)
	if err != nil {
		return failf("webhook request failed: %v", err)
	}

	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			env.Logger.Warn("Failed to close webhook response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failf("webhook returned status %d", resp.StatusCode)
	}

	return Outcome{
		Success: true,
		Context: map[string]any{
			fmt.Sprintf("webhook_%d_status", step.Position): resp.StatusCode,
		},
		Output: map[string]any{"status_code": resp.StatusCode, "url": config.URL},
	}
}
