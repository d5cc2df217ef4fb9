package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/relaycrm/relay/pkg/engine"
	"github.com/relaycrm/relay/pkg/eventbus"
	"github.com/relaycrm/relay/pkg/events"
	"github.com/relaycrm/relay/pkg/messaging"
	"github.com/relaycrm/relay/pkg/otelhelper"
	"github.com/relaycrm/relay/pkg/persistence"
	"github.com/relaycrm/relay/pkg/receivers/queue"
	"github.com/relaycrm/relay/pkg/steps"
)

// WorkerConfig carries the optional intake and scheduling knobs.
type WorkerConfig struct {
	SweepSchedule string
	QueueAddr     string
	QueueName     string
}

// WorkerManager consumes trigger events from the bus (and optionally a
// Redis queue), runs them through the engine, and sweeps due enrollments
// on a cron schedule.
type WorkerManager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	engine      *engine.Engine
	env         *steps.Env
	config      WorkerConfig
	tracer      trace.Tracer
	cron        *cron.Cron
	receiver    *queue.Receiver
}

func NewWorkerManager(
	id string,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	config WorkerConfig,
) *WorkerManager {
	workerLogger := logger.With("module", "relay-worker", "worker_id", id)

	env := &steps.Env{
		Persistence: store,
		Email:       messaging.NewSimulatedEmailSender(workerLogger),
		SMS:         messaging.NewSimulatedSMSSender(workerLogger),
		Logger:      workerLogger,
	}

	return &WorkerManager{
		id:          id,
		logger:      workerLogger,
		persistence: store,
		eventBus:    eventBus,
		engine:      engine.NewEngine(store, env, workerLogger),
		env:         env,
		config:      config,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	tracer, err := otelhelper.NewTracer(ctx, "relay-worker")
	if err != nil {
		w.logger.WarnContext(ctx, "Tracing disabled", "error", err)
	} else {
		w.tracer = tracer
		w.env.Tracer = tracer
	}

	err = w.eventBus.Handle(events.TriggerDetectedEvent, w.handleTriggerDetected)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	err = w.startSweep(ctx)
	if err != nil {
		return err
	}

	err = w.startQueueReceiver(ctx)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	w.cron.Stop()

	if w.receiver != nil {
		err = w.receiver.Stop(ctx)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to stop queue receiver", "error", err)
		}
	}

	return nil
}

func (w *WorkerManager) startSweep(ctx context.Context) error {
	w.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := w.cron.AddFunc(w.config.SweepSchedule, func() {
		result := w.engine.ProcessPending(ctx)
		if result.Error != "" {
			w.logger.Error("Sweep failed", "error", result.Error)
		}
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.InfoContext(ctx, "Sweep scheduled", "schedule", w.config.SweepSchedule)

	return nil
}

func (w *WorkerManager) startQueueReceiver(ctx context.Context) error {
	if w.config.QueueAddr == "" {
		return nil
	}

	receiver, err := queue.NewReceiver(queue.Config{
		Addr:  w.config.QueueAddr,
		Queue: w.config.QueueName,
	}, w.logger)
	if err != nil {
		return err
	}

	err = receiver.Start(ctx, func(ctx context.Context, event *events.TriggerEvent) error {
		return w.dispatch(ctx, event)
	})
	if err != nil {
		return err
	}

	w.receiver = receiver

	return nil
}

func (w *WorkerManager) handleTriggerDetected(ctx context.Context, event any) error {
	triggerEvent, ok := event.(*events.TriggerEvent)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for TriggerDetected")

		return nil
	}

	return w.dispatch(ctx, triggerEvent)
}

// dispatch runs one trigger event through the engine. Contract violations
// are logged and swallowed so the bus never redelivers them.
func (w *WorkerManager) dispatch(ctx context.Context, event *events.TriggerEvent) error {
	var span trace.Span
	if w.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, w.tracer, "dispatch_trigger",
			attribute.String(otelhelper.TriggerTypeKey, string(event.TriggerType)),
			attribute.String(otelhelper.ContactIDKey, event.ContactID),
			attribute.String(otelhelper.OrganizationKey, event.OrganizationID),
			attribute.String(otelhelper.WorkerIDKey, w.id),
		)
		defer span.End()
	}

	logger := w.logger.With(
		"trigger_type", event.TriggerType,
		"contact_id", event.ContactID,
		"organization_id", event.OrganizationID,
	)
	logger.InfoContext(ctx, "Processing trigger event")

	result := w.engine.HandleTrigger(ctx, event.TriggerType, engine.TriggerData{
		ContactID:      event.ContactID,
		OrganizationID: event.OrganizationID,
		Payload:        event.Data,
	})
	if result.Error != "" {
		if span != nil {
			otelhelper.SetError(span, errors.New(result.Error),
				attribute.String(otelhelper.TriggerTypeKey, string(event.TriggerType)))
		}

		logger.WarnContext(ctx, "Trigger rejected", "error", result.Error)

		return nil
	}

	logger.InfoContext(ctx, "Trigger processed", "enrolled_count", result.Enrolled)

	return nil
}
