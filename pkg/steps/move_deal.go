package steps

import (
	"context"
	"errors"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

func executeMoveDeal(ctx context.Context, env *Env, contact *models.Contact, step *models.Step) Outcome {
	config, err := DecodeConfig[MoveDealConfig](step.Config)
	if err != nil {
		return failf("invalid move_deal config: %v", err)
	}

	if config.StageID == "" {
		return failf("stage_id is required")
	}

	var deal *models.Deal

	if config.DealID != "" {
		deal, err = env.Persistence.Deals().GetByID(ctx, config.DealID)
		if err != nil {
			if errors.Is(err, persistence.ErrDealNotFound) {
				return failf("deal %s not found", config.DealID)
			}

			return failf("failed to load deal: %v", err)
		}
	} else {
		deal, err = env.Persistence.Deals().LatestOpenByContact(ctx, contact.ID)
		if err != nil {
			return failf("failed to look up open deal: %v", err)
		}

		if deal == nil {
			return succeed(map[string]any{"moved": false, "reason": "contact has no open deal"})
		}
	}

	err = env.Persistence.Deals().MoveStage(ctx, deal.ID, config.PipelineID, config.StageID)
	if err != nil {
		return failf("failed to move deal: %v", err)
	}

	return succeed(map[string]any{"moved": true, "deal_id": deal.ID, "stage_id": config.StageID})
}
