package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/harun/knocktoolkit/internal/tracing"
	"github.com/harun/knocktoolkit/pkg/hitl"
	"github.com/harun/knocktoolkit/pkg/webhook"
)

// Event types
const (
	TypeApproval = "approval"
)

// Event is one entry of the approval audit trail
type Event struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor,omitempty"`
	Action    string                 `json:"action"`
	Status    string                 `json:"status"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// Logger appends audit events as JSON lines
type Logger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

// New writes audit events to w
func New(w io.Writer) *Logger {
	return &Logger{
		logger: zerolog.New(w),
	}
}

// Open appends audit events to the file at path
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	l := New(file)
	l.file = file
	return l, nil
}

// Record writes event and mirrors it onto the active span
func (a *Logger) Record(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent(event.Action, trace.WithAttributes(
			attribute.String("audit.type", event.Type),
			attribute.String("audit.status", event.Status),
			attribute.String("audit.actor", event.Actor),
		))
	}
	if event.TraceID == "" {
		event.TraceID = tracing.GetTraceID(ctx)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("event_type", event.Type).
		Time("timestamp", event.Timestamp).
		Str("action", event.Action).
		Str("status", event.Status)
	if event.Actor != "" {
		entry.Str("actor", event.Actor)
	}
	if event.TraceID != "" {
		entry.Str("trace_id", event.TraceID)
	}
	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Send()
}

// RecordResumed logs a call that was approved and run, or declined
func (a *Logger) RecordResumed(ctx context.Context, interaction *hitl.InteractionResult, completed *hitl.Completed, err error) {
	status := hitl.StatusCompleted
	if err != nil {
		status = "failed"
	} else if completed != nil {
		status = completed.Status
	}

	metadata := map[string]interface{}{
		"workflow":     interaction.Workflow,
		"tool_call_id": interaction.ToolCall.Extra.ToolCallID,
		"message_id":   interaction.Context.MessageID,
		"channel_id":   interaction.Context.ChannelID,
	}
	action := "resume:"
	if completed != nil {
		metadata["decision"] = completed.Decision
		if completed.Status == hitl.StatusDeclined {
			action = "decline:"
		}
	}
	if err != nil {
		metadata["error"] = err.Error()
	}

	a.Record(ctx, Event{
		Type:     TypeApproval,
		Actor:    actorOf(interaction),
		Action:   action + interaction.ToolCall.Method,
		Status:   status,
		Metadata: metadata,
	})
}

// Sink records each resumed or declined call before handing it to next
func (a *Logger) Sink(next webhook.ResultSink) webhook.ResultSink {
	return func(ctx context.Context, interaction *hitl.InteractionResult, completed *hitl.Completed) error {
		var err error
		if next != nil {
			err = next(ctx, interaction, completed)
		}
		a.RecordResumed(ctx, interaction, completed, err)
		return err
	}
}

// Close closes the audit file
func (a *Logger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// actorOf picks who answered the approval message out of the interaction payload
func actorOf(interaction *hitl.InteractionResult) string {
	for _, key := range []string{"user_id", "actor", "recipient"} {
		if v, ok := interaction.Interaction[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
