package otelhelper_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/relaycrm/relay/pkg/otelhelper"
)

func TestSetError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, span := otelhelper.StartSpan(context.Background(), tracer, "dispatch_trigger",
		attribute.String(otelhelper.TriggerTypeKey, "tag_added"),
	)

	otelhelper.SetError(span, errors.New("contact_id and organization_id are required"),
		attribute.String(otelhelper.ContactIDKey, "contact-1"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	recorded := spans[0]
	assert.Equal(t, codes.Error, recorded.Status().Code)
	assert.Equal(t, "contact_id and organization_id are required", recorded.Status().Description)

	names := make([]string, 0, len(recorded.Events()))
	for _, event := range recorded.Events() {
		names = append(names, event.Name)
	}

	assert.Contains(t, names, "exception")
	assert.Contains(t, names, "error_occurred")
}
