package engine

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/otelhelper"
	"github.com/relaycrm/relay/pkg/persistence"
	"github.com/relaycrm/relay/pkg/steps"
)

// Advance claims the enrollment and runs its step interpreter: an explicit
// work loop that executes steps in cursor order until the automation
// completes, a step fails, a wait parks the run, or the per-call bound is
// hit. It is safe to call for enrollments in any state; anything that
// prevents progress is logged and swallowed.
func (e *Engine) Advance(ctx context.Context, enrollmentID string) {
	logger := e.logger.With("enrollment_id", enrollmentID)

	claimed, err := e.persistence.Enrollments().Claim(ctx, enrollmentID, e.workerID, e.now())
	if err != nil {
		logger.Error("Failed to claim enrollment", "error", err)

		return
	}

	if !claimed {
		// Not active, or another worker holds the claim.
		return
	}

	defer func() {
		releaseErr := e.persistence.Enrollments().Release(ctx, enrollmentID, e.workerID)
		if releaseErr != nil {
			logger.Warn("Failed to release enrollment claim", "error", releaseErr)
		}
	}()

	for iteration := 0; iteration < maxStepsPerCall; iteration++ {
		parked, err := e.step(ctx, enrollmentID, logger)
		if err != nil {
			logger.Error("Step interpretation failed", "error", err)

			return
		}

		if parked {
			return
		}
	}

	// Work-loop bound hit: park with an immediate wake time so the next
	// sweep resumes the run instead of looping forever in this call.
	logger.Warn("Enrollment hit per-call step limit, parking", "limit", maxStepsPerCall)

	enrollment, err := e.persistence.Enrollments().GetByID(ctx, enrollmentID)
	if err != nil {
		logger.Error("Failed to reload enrollment after step limit", "error", err)

		return
	}

	err = e.persistence.Enrollments().UpdateProgress(ctx, enrollmentID, enrollment.CurrentStep, enrollment.Context, e.now())
	if err != nil {
		logger.Error("Failed to park enrollment after step limit", "error", err)
	}
}

// step executes the single step at the enrollment's cursor. It returns
// parked=true when the run should not continue in this call: the
// enrollment reached a terminal state, a wait deferred the next step, or a
// defensive check stopped progress.
func (e *Engine) step(ctx context.Context, enrollmentID string, logger *slog.Logger) (bool, error) {
	enrollment, err := e.persistence.Enrollments().GetByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, persistence.ErrEnrollmentNotFound) {
			return true, nil
		}

		return true, err
	}

	if enrollment.Status != models.EnrollmentStatusActive {
		return true, nil
	}

	automation, err := e.persistence.Automations().GetByID(ctx, enrollment.AutomationID)
	if err != nil {
		return true, err
	}

	contact, err := e.persistence.Contacts().GetByID(ctx, enrollment.ContactID)
	if err != nil {
		return true, err
	}

	step := automation.StepAt(enrollment.CurrentStep)
	if step == nil {
		// Cursor past the last step: the automation is exhausted.
		return true, e.complete(ctx, enrollment, automation, logger)
	}

	outcome := e.executeStep(ctx, automation, enrollment, contact, step, logger)

	if !outcome.Success {
		logger.Info("Step failed, enrollment terminal",
			"position", step.Position,
			"kind", step.Kind,
			"error", outcome.Error)

		err = e.persistence.Enrollments().MarkFailed(ctx, enrollment.ID, outcome.Error, e.now())
		if err != nil {
			return true, err
		}

		e.incrementCounter(ctx, automation.ID, models.CounterFailed)

		return true, nil
	}

	nextCursor := nextCursor(step, outcome)

	if automation.StepAt(nextCursor) == nil {
		return true, e.complete(ctx, enrollment, automation, logger)
	}

	mergedContext := mergeContext(enrollment.Context, outcome.Context)

	if outcome.WaitUntil != nil {
		err = e.persistence.Enrollments().UpdateProgress(ctx, enrollment.ID, nextCursor, mergedContext, *outcome.WaitUntil)
		if err != nil {
			return true, err
		}

		logger.Info("Enrollment parked", "cursor", nextCursor, "wake_at", *outcome.WaitUntil)

		return true, nil
	}

	err = e.persistence.Enrollments().UpdateProgress(ctx, enrollment.ID, nextCursor, mergedContext, e.now())
	if err != nil {
		return true, err
	}

	return false, nil
}

// executeStep runs one executor bracketed by started/completed audit rows.
// Audit failures never abort execution.
func (e *Engine) executeStep(ctx context.Context, automation *models.Automation, enrollment *models.Enrollment, contact *models.Contact, step *models.Step, logger *slog.Logger) steps.Outcome {
	var span trace.Span
	if e.env.Tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, e.env.Tracer, "execute_step",
			attribute.String(otelhelper.AutomationIDKey, automation.ID),
			attribute.String(otelhelper.EnrollmentIDKey, enrollment.ID),
			attribute.String(otelhelper.StepKindKey, string(step.Kind)),
			attribute.Int(otelhelper.StepPositionKey, step.Position),
		)
		defer span.End()
	}

	e.logStep(ctx, &models.StepLog{
		EnrollmentID: enrollment.ID,
		StepID:       step.ID,
		Position:     step.Position,
		Kind:         step.Kind,
		Status:       models.StepLogStarted,
		Input:        step.Config,
	}, logger)

	started := e.now()
	outcome := steps.Execute(ctx, e.env, automation, enrollment, contact, step)
	durationMs := e.now().Sub(started).Milliseconds()

	status := models.StepLogCompleted
	if !outcome.Success {
		status = models.StepLogFailed

		if span != nil {
			otelhelper.SetError(span, errors.New(outcome.Error),
				attribute.String(otelhelper.StepKindKey, string(step.Kind)))
		}
	}

	e.logStep(ctx, &models.StepLog{
		EnrollmentID: enrollment.ID,
		StepID:       step.ID,
		Position:     step.Position,
		Kind:         step.Kind,
		Status:       status,
		Input:        step.Config,
		Output:       outcome.Output,
		ErrorMessage: outcome.Error,
		DurationMs:   durationMs,
	}, logger)

	return outcome
}

func (e *Engine) logStep(ctx context.Context, entry *models.StepLog, logger *slog.Logger) {
	err := e.persistence.StepLogs().Append(ctx, entry)
	if err != nil {
		logger.Warn("Failed to append step log", "position", entry.Position, "error", err)
	}
}

func (e *Engine) complete(ctx context.Context, enrollment *models.Enrollment, automation *models.Automation, logger *slog.Logger) error {
	err := e.persistence.Enrollments().MarkCompleted(ctx, enrollment.ID, e.now())
	if err != nil {
		return err
	}

	e.incrementCounter(ctx, automation.ID, models.CounterCompleted)
	logger.Info("Enrollment completed", "automation_id", automation.ID)

	return nil
}

// nextCursor computes where the run goes after a successful step. Condition
// steps jump to their configured branch target; an unset target falls back
// to the next position.
func nextCursor(step *models.Step, outcome steps.Outcome) int {
	if step.Kind == models.StepCondition && outcome.BranchResult != nil {
		if *outcome.BranchResult && step.TrueBranch != nil {
			return *step.TrueBranch
		}

		if !*outcome.BranchResult && step.FalseBranch != nil {
			return *step.FalseBranch
		}
	}

	return step.Position + 1
}

func mergeContext(existing, updates map[string]any) map[string]any {
	if len(updates) == 0 {
		return existing
	}

	merged := make(map[string]any, len(existing)+len(updates))

	for k, v := range existing {
		merged[k] = v
	}

	for k, v := range updates {
		merged[k] = v
	}

	return merged
}
