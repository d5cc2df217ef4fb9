package steps

import (
	"time"

	"github.com/relaycrm/relay/pkg/models"
)

func executeWait(env *Env, step *models.Step) Outcome {
	// A malformed config decodes to zero delay rather than failing the run.
	config, _ := DecodeConfig[WaitConfig](step.Config)

	minutes := config.TotalMinutes()
	if minutes <= 0 {
		return succeed(map[string]any{"delay_minutes": 0})
	}

	waitUntil := env.now().Add(time.Duration(minutes) * time.Minute)

	return Outcome{
		Success:   true,
		WaitUntil: &waitUntil,
		Output:    map[string]any{"delay_minutes": minutes},
	}
}
