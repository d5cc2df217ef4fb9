package steps

import (
	"context"

	"github.com/relaycrm/relay/pkg/models"
)

func executeUpdateContact(ctx context.Context, env *Env, contact *models.Contact, step *models.Step) Outcome {
	config, err := DecodeConfig[UpdateContactConfig](step.Config)
	if err != nil {
		return failf("invalid update_contact config: %v", err)
	}

	if len(config.CustomFields) == 0 && config.Status == "" {
		return succeed(map[string]any{"updated": false})
	}

	if len(config.CustomFields) > 0 {
		err = env.Persistence.Contacts().MergeCustomFields(ctx, contact.ID, config.CustomFields)
		if err != nil {
			return failf("failed to merge custom fields: %v", err)
		}
	}

	if config.Status != "" {
		err = env.Persistence.Contacts().UpdateStatus(ctx, contact.ID, config.Status)
		if err != nil {
			return failf("failed to update contact status: %v", err)
		}
	}

	return succeed(map[string]any{"updated": true})
}
