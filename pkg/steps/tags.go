package steps

import (
	"context"

	"github.com/relaycrm/relay/pkg/models"
)

func executeAddTag(ctx context.Context, env *Env, contact *models.Contact, step *models.Step) Outcome {
	config, err := DecodeConfig[TagConfig](step.Config)
	if err != nil {
		return failf("invalid add_tag config: %v", err)
	}

	if config.TagName == "" {
		return failf("tag_name is required")
	}

	added, err := env.Persistence.Contacts().AddTag(ctx, contact.ID, config.TagName)
	if err != nil {
		return failf("failed to add tag: %v", err)
	}

	return succeed(map[string]any{"tag": config.TagName, "added": added})
}

func executeRemoveTag(ctx context.Context, env *Env, contact *models.Contact, step *models.Step) Outcome {
	config, err := DecodeConfig[TagConfig](step.Config)
	if err != nil {
		return failf("invalid remove_tag config: %v", err)
	}

	if config.TagName == "" {
		return failf("tag_name is required")
	}

	removed, err := env.Persistence.Contacts().RemoveTag(ctx, contact.ID, config.TagName)
	if err != nil {
		return failf("failed to remove tag: %v", err)
	}

	return succeed(map[string]any{"tag": config.TagName, "removed": removed})
}
