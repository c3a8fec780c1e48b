package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// ToolCallIDKey is the context key for the LLM-assigned tool call ID
	ToolCallIDKey ContextKey = "tool_call_id"
	// WorkflowRunIDKey is the context key for a Knock workflow run ID
	WorkflowRunIDKey ContextKey = "workflow_run_id"
	// DeliveryIDKey is the context key for an inbound webhook delivery
	DeliveryIDKey ContextKey = "delivery_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID       string
	ToolCallID    string
	WorkflowRunID string
	DeliveryID    string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithToolCallID adds a tool call ID to the context
func WithToolCallID(ctx context.Context, toolCallID string) context.Context {
	return context.WithValue(ctx, ToolCallIDKey, toolCallID)
}

// WithWorkflowRunID adds a workflow run ID to the context
func WithWorkflowRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, WorkflowRunIDKey, runID)
}

// WithDeliveryID adds a webhook delivery ID to the context
func WithDeliveryID(ctx context.Context, deliveryID string) context.Context {
	return context.WithValue(ctx, DeliveryIDKey, deliveryID)
}

func getString(ctx context.Context, key ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	return getString(ctx, TraceIDKey)
}

// GetToolCallID retrieves the tool call ID from the context
func GetToolCallID(ctx context.Context) string {
	return getString(ctx, ToolCallIDKey)
}

// GetWorkflowRunID retrieves the workflow run ID from the context
func GetWorkflowRunID(ctx context.Context) string {
	return getString(ctx, WorkflowRunIDKey)
}

// GetDeliveryID retrieves the webhook delivery ID from the context
func GetDeliveryID(ctx context.Context) string {
	return getString(ctx, DeliveryIDKey)
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:       GetTraceID(ctx),
		ToolCallID:    GetToolCallID(ctx),
		WorkflowRunID: GetWorkflowRunID(ctx),
		DeliveryID:    GetDeliveryID(ctx),
	}
}

// NewContext creates a new context with tracing information
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.ToolCallID != "" {
		ctx = WithToolCallID(ctx, tc.ToolCallID)
	}
	if tc.WorkflowRunID != "" {
		ctx = WithWorkflowRunID(ctx, tc.WorkflowRunID)
	}
	if tc.DeliveryID != "" {
		ctx = WithDeliveryID(ctx, tc.DeliveryID)
	}
	return ctx
}

// NewDeliveryContext starts a trace for an inbound webhook delivery
func NewDeliveryContext(ctx context.Context, deliveryID string) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	return WithDeliveryID(ctx, deliveryID)
}
