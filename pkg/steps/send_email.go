package steps

import (
	"context"
	"errors"

	"github.com/relaycrm/relay/pkg/messaging"
	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
	"github.com/relaycrm/relay/pkg/template"
)

func executeSendEmail(ctx context.Context, env *Env, automation *models.Automation, enrollment *models.Enrollment, contact *models.Contact, step *models.Step) Outcome {
	config, err := DecodeConfig[SendEmailConfig](step.Config)
	if err != nil {
		return failf("invalid send_email config: %v", err)
	}

	if contact.Email == "" {
		return failf("contact has no email address")
	}

	if config.TemplateID == "" {
		return failf("template_id is required")
	}

	tmpl, err := env.Persistence.Templates().GetByID(ctx, automation.OrganizationID, config.TemplateID, models.ChannelEmail)
	if err != nil {
		if errors.Is(err, persistence.ErrTemplateNotFound) {
			return failf("email template %s not found", config.TemplateID)
		}

		return failf("failed to load email template: %v", err)
	}

	data := template.Data(contact, enrollment, nil)

	subject, err := template.Render(tmpl.Subject, data)
	if err != nil {
		return failf("failed to render email subject: %v", err)
	}

	body, err := template.Render(tmpl.Body, data)
	if err != nil {
		return failf("failed to render email body: %v", err)
	}

	result := env.Email.SendEmail(ctx, messaging.EmailMessage{
		To:      contact.Email,
		Subject: subject,
		Body:    body,
	})

	logMessage(ctx, env, &models.MessageLog{
		OrganizationID: automation.OrganizationID,
		ContactID:      contact.ID,
		EnrollmentID:   enrollment.ID,
		Channel:        models.ChannelEmail,
		Recipient:      contact.Email,
		Subject:        subject,
		Body:           body,
		ProviderID:     result.ID,
		Status:         messageLogStatus(result),
	})

	if !result.Success {
		return failf("email send failed: %s", result.Error)
	}

	return succeed(map[string]any{
		"message_id": result.ID,
		"simulated":  result.Simulated,
	})
}

func messageLogStatus(result messaging.SendResult) models.MessageLogStatus {
	switch {
	case !result.Success:
		return models.MessageLogFailed
	case result.Simulated:
		return models.MessageLogSimulated
	default:
		return models.MessageLogSent
	}
}

// logMessage appends a message-log row. Audit failures are logged and
// swallowed so they never abort a send.
func logMessage(ctx context.Context, env *Env, entry *models.MessageLog) {
	err := env.Persistence.MessageLogs().Append(ctx, entry)
	if err != nil {
		env.Logger.Warn("Failed to append message log", "enrollment_id", entry.EnrollmentID, "error", err)
	}
}
