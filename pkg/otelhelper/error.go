package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span failed and records the error on it. Step execution
// and trigger dispatch spans use it so a failed step or rejected trigger is
// visible in the trace without reading logs.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(attrs...))
}
