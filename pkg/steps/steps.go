// Package steps implements the executors behind each automation step kind.
// Dispatch is a closed switch over models.StepKind; every executor reports
// its result through an Outcome value and never returns an error or panics
// across the dispatch boundary.
package steps

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/relaycrm/relay/pkg/messaging"
	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

// Outcome is the result of executing one step. WaitUntil asks the
// interpreter to park the enrollment until the given instant; BranchResult
// carries a condition step's verdict; Context is merged into the
// enrollment's accumulated context.
type Outcome struct {
	Success      bool           `json:"success"`
	Error        string         `json:"error,omitempty"`
	WaitUntil    *time.Time     `json:"wait_until,omitempty"`
	BranchResult *bool          `json:"branch_result,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
	Output       map[string]any `json:"output,omitempty"`
}

// Env carries the collaborators executors need. Now is injectable for tests;
// Tracer is optional and enables per-step spans in the interpreter.
type Env struct {
	Persistence persistence.Persistence
	Email       messaging.EmailSender
	SMS         messaging.SMSSender
	HTTPClient  *http.Client
	Logger      *slog.Logger
	Tracer      trace.Tracer
	Now         func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}

	return time.Now().UTC()
}

func (e *Env) httpClient() *http.Client {
	if e.HTTPClient != nil {
		return e.HTTPClient
	}

	return http.DefaultClient
}

// Execute dispatches a step to its executor. Panics inside an executor are
// converted into a failed outcome so a broken step config can never take
// down the caller.
func Execute(ctx context.Context, env *Env, automation *models.Automation, enrollment *models.Enrollment, contact *models.Contact, step *models.Step) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			env.Logger.Error("Step executor panicked",
				"step_id", step.ID,
				"kind", step.Kind,
				"panic", r)

			outcome = failf("step executor panicked: %v", r)
		}
	}()

	switch step.Kind {
	case models.StepSendEmail:
		return executeSendEmail(ctx, env, automation, enrollment, contact, step)
	case models.StepSendSMS:
		return executeSendSMS(ctx, env, automation, enrollment, contact, step)
	case models.StepAddTag:
		return executeAddTag(ctx, env, contact, step)
	case models.StepRemoveTag:
		return executeRemoveTag(ctx, env, contact, step)
	case models.StepWait:
		return executeWait(env, step)
	case models.StepCreateTask:
		return executeCreateTask(ctx, env, automation, enrollment, contact, step)
	case models.StepUpdateContact:
		return executeUpdateContact(ctx, env, contact, step)
	case models.StepCondition:
		return executeCondition(enrollment, contact, step)
	case models.StepWebhook:
		return executeWebhook(ctx, env, automation, enrollment, contact, step)
	case models.StepMoveDeal:
		return executeMoveDeal(ctx, env, contact, step)
	default:
		return failf("unknown step kind %q", step.Kind)
	}
}

func succeed(output map[string]any) Outcome {
	return Outcome{Success: true, Output: output}
}

func failf(format string, args ...any) Outcome {
	return Outcome{Success: false, Error: fmt.Sprintf(format, args...)}
}
