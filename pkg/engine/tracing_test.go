package engine

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/otelhelper"
)

func newRecordingFixture(t *testing.T) (*fixture, *tracetest.SpanRecorder) {
	t.Helper()

	f := newFixture(t)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	f.engine.env.Tracer = provider.Tracer("test")

	return f, recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) string {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value.Emit()
		}
	}

	return ""
}

func TestAdvance_StepExecutionEmitsSpans(t *testing.T) {
	f, recorder := newRecordingFixture(t)
	contact := f.saveContact(t, &models.Contact{ID: "contact-1", OrganizationID: "org-1"})

	automation := f.saveAutomation(t, &models.Automation{
		OrganizationID: "org-1",
		Name:           "traced flow",
		TriggerType:    models.TriggerTagAdded,
		Steps: []*models.Step{
			tagStep(1, "first"),
			tagStep(2, "second"),
		},
	})

	f.engine.HandleTrigger(context.Background(), models.TriggerTagAdded, TriggerData{
		ContactID:      contact.ID,
		OrganizationID: "org-1",
	})

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	for i, span := range spans {
		assert.Equal(t, "execute_step", span.Name())
		assert.Equal(t, codes.Unset, span.Status().Code)
		assert.Equal(t, automation.ID, spanAttr(span, otelhelper.AutomationIDKey))
		assert.Equal(t, "add_tag", spanAttr(span, otelhelper.StepKindKey))
		assert.Equal(t, strconv.Itoa(i+1), spanAttr(span, otelhelper.StepPositionKey))
	}
}

func TestAdvance_FailedStepRecordsErrorOnSpan(t *testing.T) {
	f, recorder := newRecordingFixture(t)
	contact := f.saveContact(t, &models.Contact{ID: "contact-1", OrganizationID: "org-1", Email: "a@b.com"})

	f.saveAutomation(t, &models.Automation{
		OrganizationID: "org-1",
		Name:           "broken traced flow",
		TriggerType:    models.TriggerContactCreated,
		Steps: []*models.Step{
			{Position: 1, Kind: models.StepSendEmail, Config: map[string]any{"template_id": "does-not-exist"}},
		},
	})

	f.engine.HandleTrigger(context.Background(), models.TriggerContactCreated, TriggerData{
		ContactID:      contact.ID,
		OrganizationID: "org-1",
	})

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Contains(t, span.Status().Description, "not found")

	eventNames := make([]string, 0, len(span.Events()))
	for _, event := range span.Events() {
		eventNames = append(eventNames, event.Name)
	}

	assert.Contains(t, eventNames, "exception")
	assert.Contains(t, eventNames, "error_occurred")
}
