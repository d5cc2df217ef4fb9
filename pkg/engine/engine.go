// Package engine implements the automation core: trigger matching,
// enrollment management, the step interpreter and the scheduler sweep.
//
// An Engine is an explicit value constructed once with its collaborators
// injected; there is no process-global instance. All entry points fail soft:
// they report errors through their result values and never panic across the
// boundary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
	"github.com/relaycrm/relay/pkg/steps"
)

const (
	// maxStepsPerCall bounds the synchronous work loop for one enrollment
	// within one external call. A zero-delay condition cycle would otherwise
	// loop forever; on overflow the enrollment is parked with an immediate
	// wake time so the next sweep resumes it.
	maxStepsPerCall = 25

	// sweepBatchSize is the sweep's only throttle.
	sweepBatchSize = 100
)

// Engine drives automations. Construct it with NewEngine and share the one
// value across call sites.
type Engine struct {
	persistence persistence.Persistence
	env         *steps.Env
	logger      *slog.Logger
	now         func() time.Time
	workerID    string
}

// NewEngine wires an engine from its collaborators. The steps environment
// carries the store and the email/SMS senders; Now inside it is also used
// for the engine's own clock when set.
func NewEngine(store persistence.Persistence, env *steps.Env, logger *slog.Logger) *Engine {
	now := env.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Engine{
		persistence: store,
		env:         env,
		logger:      logger.With("module", "engine"),
		now:         now,
		workerID:    uuid.New().String(),
	}
}

// TriggerResult reports what a trigger call did. Error is informational:
// callers cannot distinguish "nothing matched" from "bad input" without
// inspecting it.
type TriggerResult struct {
	Enrolled int    `json:"enrolled_count"`
	Error    string `json:"error,omitempty"`
}

// TriggerData is the payload accompanying a CRM event. Fields beyond
// ContactID and OrganizationID are matched against automation trigger
// conditions and stored as the enrollment's trigger payload.
type TriggerData struct {
	ContactID      string         `json:"contact_id"`
	OrganizationID string         `json:"organization_id"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// HandleTrigger enrolls the contact into every matching active automation
// and immediately drives each new enrollment one synchronous interpretation
// pass, so zero-delay automations complete without waiting for a sweep.
// It never returns an error: contract violations and internal failures are
// reported through the result.
func (e *Engine) HandleTrigger(ctx context.Context, triggerType models.TriggerType, data TriggerData) TriggerResult {
	logger := e.logger.With("trigger_type", triggerType, "organization_id", data.OrganizationID)

	if data.ContactID == "" || data.OrganizationID == "" {
		logger.Warn("Trigger dropped: missing contact or organization")

		return TriggerResult{Error: "contact_id and organization_id are required"}
	}

	if !triggerType.IsValid() {
		logger.Warn("Trigger dropped: unknown trigger type")

		return TriggerResult{Error: fmt.Sprintf("unknown trigger type %q", triggerType)}
	}

	candidates, err := e.persistence.Automations().ActiveByTrigger(ctx, data.OrganizationID, triggerType)
	if err != nil {
		logger.Error("Failed to load automations for trigger", "error", err)

		return TriggerResult{Error: fmt.Sprintf("failed to load automations: %v", err)}
	}

	enrolled := 0

	for _, automation := range candidates {
		if !matchConditions(automation.TriggerConditions, data.Payload) {
			continue
		}

		enrollment, err := e.Enroll(ctx, automation, data.ContactID, data.Payload)
		if err != nil {
			logger.Error("Enrollment failed", "automation_id", automation.ID, "contact_id", data.ContactID, "error", err)

			continue
		}

		if enrollment == nil {
			// Already actively enrolled; de-duplication no-op.
			continue
		}

		enrolled++

		e.Advance(ctx, enrollment.ID)
	}

	logger.Info("Trigger handled", "candidates", len(candidates), "enrolled", enrolled)

	return TriggerResult{Enrolled: enrolled}
}

// matchConditions applies conjunctive matching: every recognized condition
// key must match its payload counterpart. An empty condition map matches
// everything, and unrecognized keys are ignored.
func matchConditions(conditions, payload map[string]any) bool {
	for key, expected := range conditions {
		switch key {
		case "tag_name":
			if stringValue(payload["tag"]) != stringValue(expected) {
				return false
			}
		case "stage_id", "pipeline_id":
			actual, present := payload[key]
			if present && stringValue(actual) != stringValue(expected) {
				return false
			}
		case "source":
			if stringValue(payload["source"]) != stringValue(expected) {
				return false
			}
		}
	}

	return true
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}

	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", v)
}

// Enroll creates or re-arms the enrollment for (automation, contact). It
// returns nil without error when an active enrollment already exists.
func (e *Engine) Enroll(ctx context.Context, automation *models.Automation, contactID string, triggerPayload map[string]any) (*models.Enrollment, error) {
	enrollments := e.persistence.Enrollments()
	now := e.now()

	existing, err := enrollments.FindByPair(ctx, automation.ID, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up enrollment: %w", err)
	}

	switch {
	case existing == nil:
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate enrollment ID: %w", err)
		}

		enrollment := &models.Enrollment{
			ID:             id.String(),
			AutomationID:   automation.ID,
			ContactID:      contactID,
			Status:         models.EnrollmentStatusActive,
			CurrentStep:    1,
			TriggerPayload: triggerPayload,
			NextActionAt:   now,
			EnrolledAt:     now,
		}

		err = enrollments.Create(ctx, enrollment)
		if err != nil {
			if errors.Is(err, persistence.ErrDuplicateActiveEnrollment) {
				// Lost the insert race to a concurrent trigger.
				return nil, nil
			}

			return nil, fmt.Errorf("failed to create enrollment: %w", err)
		}

		e.incrementCounter(ctx, automation.ID, models.CounterEnrolled)

		return enrollment, nil

	case existing.Status.IsTerminal():
		err = enrollments.Reset(ctx, existing.ID, triggerPayload, now)
		if err != nil {
			if errors.Is(err, persistence.ErrDuplicateActiveEnrollment) {
				return nil, nil
			}

			return nil, fmt.Errorf("failed to reset enrollment: %w", err)
		}

		e.incrementCounter(ctx, automation.ID, models.CounterEnrolled)

		reset, err := enrollments.GetByID(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload enrollment: %w", err)
		}

		return reset, nil

	default:
		// Active enrollment already exists.
		return nil, nil
	}
}

// incrementCounter bumps an automation counter best-effort; drift is
// tolerated, not corrected.
func (e *Engine) incrementCounter(ctx context.Context, automationID string, counter models.AutomationCounter) {
	err := e.persistence.Automations().IncrementCounter(ctx, automationID, counter)
	if err != nil {
		e.logger.Warn("Failed to increment automation counter",
			"automation_id", automationID,
			"counter", counter,
			"error", err)
	}
}

// SweepResult reports one sweep pass.
type SweepResult struct {
	Processed int    `json:"processed"`
	Error     string `json:"error,omitempty"`
}

// ProcessPending advances every due active enrollment, oldest wake time
// first, up to the batch limit. Enrollments claimed by another worker are
// skipped inside Advance.
func (e *Engine) ProcessPending(ctx context.Context) SweepResult {
	due, err := e.persistence.Enrollments().DuePending(ctx, e.now(), sweepBatchSize)
	if err != nil {
		e.logger.Error("Sweep failed to list due enrollments", "error", err)

		return SweepResult{Error: fmt.Sprintf("failed to list due enrollments: %v", err)}
	}

	processed := 0

	for _, enrollment := range due {
		if ctx.Err() != nil {
			break
		}

		e.Advance(ctx, enrollment.ID)
		processed++
	}

	if processed > 0 {
		e.logger.Info("Sweep processed due enrollments", "processed", processed)
	}

	return SweepResult{Processed: processed}
}
