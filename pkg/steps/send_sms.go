package steps

import (
	"context"
	"errors"

	"github.com/relaycrm/relay/pkg/messaging"
	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
	"github.com/relaycrm/relay/pkg/template"
)

func executeSendSMS(ctx context.Context, env *Env, automation *models.Automation, enrollment *models.Enrollment, contact *models.Contact, step *models.Step) Outcome {
	config, err := DecodeConfig[SendSMSConfig](step.Config)
	if err != nil {
		return failf("invalid send_sms config: %v", err)
	}

	if contact.Phone == "" {
		return failf("contact has no phone number")
	}

	if config.TemplateID == "" && config.Message == "" {
		return failf("either template_id or message is required")
	}

	body := config.Message

	if config.TemplateID != "" {
		tmpl, err := env.Persistence.Templates().GetByID(ctx, automation.OrganizationID, config.TemplateID, models.ChannelSMS)
		if err != nil {
			if errors.Is(err, persistence.ErrTemplateNotFound) {
				return failf("sms template %s not found", config.TemplateID)
			}

			return failf("failed to load sms template: %v", err)
		}

		body = tmpl.Body
	}

	rendered, err := template.Render(body, template.Data(contact, enrollment, nil))
	if err != nil {
		return failf("failed to render sms message: %v", err)
	}

	to, err := messaging.NormalizePhone(contact.Phone)
	if err != nil {
		return failf("invalid phone number %q", contact.Phone)
	}

	info := messaging.GetMessageInfo(rendered)

	result := env.SMS.SendSMS(ctx, messaging.SMSMessage{To: to, Message: rendered})

	logMessage(ctx, env, &models.MessageLog{
		OrganizationID: automation.OrganizationID,
		ContactID:      contact.ID,
		EnrollmentID:   enrollment.ID,
		Channel:        models.ChannelSMS,
		Recipient:      to,
		Body:           rendered,
		Segments:       info.Segments,
		Encoding:       info.Encoding,
		ProviderID:     result.ID,
		Status:         messageLogStatus(result),
	})

	if !result.Success {
		return failf("sms send failed: %s", result.Error)
	}

	return succeed(map[string]any{
		"message_id": result.ID,
		"simulated":  result.Simulated,
		"segments":   info.Segments,
		"encoding":   info.Encoding,
	})
}
