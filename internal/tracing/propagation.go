package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID == "" && tc.ToolCallID == "" && tc.WorkflowRunID == "" && tc.DeliveryID == "" {
		return logger
	}

	lc := logger.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.ToolCallID != "" {
		lc = lc.Str("tool_call_id", tc.ToolCallID)
	}
	if tc.WorkflowRunID != "" {
		lc = lc.Str("workflow_run_id", tc.WorkflowRunID)
	}
	if tc.DeliveryID != "" {
		lc = lc.Str("delivery_id", tc.DeliveryID)
	}

	return lc.Logger()
}

// LoggerFromContext creates a logger with tracing context from the given context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	return PropagateToLogger(ctx, baseLogger)
}

// MergeContext copies tracing fields from source that target does not already carry
func MergeContext(target, source context.Context) context.Context {
	tc := FromContext(source)

	if tc.TraceID != "" && GetTraceID(target) == "" {
		target = WithTraceID(target, tc.TraceID)
	}
	if tc.ToolCallID != "" && GetToolCallID(target) == "" {
		target = WithToolCallID(target, tc.ToolCallID)
	}
	if tc.WorkflowRunID != "" && GetWorkflowRunID(target) == "" {
		target = WithWorkflowRunID(target, tc.WorkflowRunID)
	}
	if tc.DeliveryID != "" && GetDeliveryID(target) == "" {
		target = WithDeliveryID(target, tc.DeliveryID)
	}

	return target
}

// Detach returns a background context carrying only the tracing fields of ctx.
// Work that must outlive a request, such as journaling, uses it.
func Detach(ctx context.Context) context.Context {
	return NewContext(context.Background(), FromContext(ctx))
}
