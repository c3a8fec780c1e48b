package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestStartSpanAddsTraceID(t *testing.T) {
	if err := InitOpenTelemetry("knocktoolkit-test"); err != nil {
		t.Fatalf("InitOpenTelemetry failed: %v", err)
	}
	defer ShutdownOpenTelemetry(context.Background())

	ctx, span := StartSpan(context.Background(), "test", "tool.invoke", attribute.String("tool.method", "getUser"))
	defer span.End()

	if !span.SpanContext().IsValid() {
		t.Fatal("Expected a recording span")
	}
	if GetTraceID(ctx) != span.SpanContext().TraceID().String() {
		t.Errorf("Expected trace ID %s, got %s", span.SpanContext().TraceID(), GetTraceID(ctx))
	}
}

func TestStartSpanKeepsExistingTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-existing")

	ctx, span := StartSpan(ctx, "test", "webhook.delivery")
	defer span.End()

	if GetTraceID(ctx) != "trace-existing" {
		t.Errorf("Expected trace-existing, got %s", GetTraceID(ctx))
	}
}
