package hitl

import (
	"context"
	"fmt"
	"sort"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harun/knocktoolkit/internal/tracing"
	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/tool"
)

const approvalNotice = "\n\nIMPORTANT: This tool requires human approval. Calling it sends an approval request and returns a pending status right away. " +
	"Do not call it again for the same request and do not treat the pending status as an error. " +
	"The result is delivered once a person responds."

const pendingMessage = "The tool call is waiting for human approval. Do not retry it; the result will arrive once a person responds."

// Triggerer starts Knock workflow runs
type Triggerer interface {
	TriggerWorkflow(ctx context.Context, workflowKey string, req knock.TriggerRequest) (*knock.TriggerResponse, error)
}

// Options describe the approval workflow a wrapped call triggers
type Options struct {
	Workflow   string                 `json:"workflow"`
	Actor      interface{}            `json:"actor,omitempty"`
	Recipients []interface{}          `json:"recipients"`
	Tenant     string                 `json:"tenant,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	// Approval reads the person's decision from the interaction; DefaultApproval when empty
	Approval Approval `json:"approval,omitempty"`
}

// WrapperOption configures a Wrapper
type WrapperOption func(*Wrapper)

// WithJournal records pending calls in a journal
func WithJournal(j Journal) WrapperOption {
	return func(w *Wrapper) {
		w.journal = j
	}
}

// WithLogger sets the wrapper logger
func WithLogger(logger zerolog.Logger) WrapperOption {
	return func(w *Wrapper) {
		w.logger = logger
	}
}

// WithIDGenerator sets how tool call ids are made when the caller supplies none
func WithIDGenerator(fn func() string) WrapperOption {
	return func(w *Wrapper) {
		w.newID = fn
	}
}

// Wrapper defers tool execution behind a Knock approval workflow.
// It remembers the original tool for every method it wraps so a
// call can be resumed after a person responds.
type Wrapper struct {
	trigger Triggerer
	opts    Options
	journal Journal
	logger  zerolog.Logger
	newID   func() string

	mu        sync.RWMutex
	originals map[string]*tool.Bound
}

// NewWrapper creates a wrapper that triggers opts.Workflow for every call
func NewWrapper(trigger Triggerer, opts Options, wopts ...WrapperOption) (*Wrapper, error) {
	if trigger == nil {
		return nil, ErrTriggererRequired
	}
	if opts.Workflow == "" {
		return nil, ErrWorkflowRequired
	}

	w := &Wrapper{
		trigger:   trigger,
		opts:      opts,
		logger:    log.Logger,
		newID:     defaultID,
		originals: make(map[string]*tool.Bound),
	}
	for _, opt := range wopts {
		opt(w)
	}

	return w, nil
}

func defaultID() string {
	id, err := gonanoid.New()
	if err != nil {
		return ""
	}
	return "call_" + id
}

// Wrap returns a tool with the same method and schema whose invocation
// triggers the approval workflow instead of running the original.
func (w *Wrapper) Wrap(original *tool.Bound) *tool.Bound {
	method := original.Method()

	w.mu.Lock()
	w.originals[method] = original
	w.mu.Unlock()

	return original.Derive(original.Description()+approvalNotice, w.deferHandler(method))
}

// WrapAll wraps every tool in order
func (w *Wrapper) WrapAll(tools []*tool.Bound) []*tool.Bound {
	out := make([]*tool.Bound, 0, len(tools))
	for _, t := range tools {
		out = append(out, w.Wrap(t))
	}
	return out
}

func (w *Wrapper) deferHandler(method string) tool.Handler {
	return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
		callID := tool.CallOptionsFrom(ctx).ToolCallID
		if callID == "" {
			callID = w.newID()
		}

		call := DeferredToolCall{
			Method: method,
			Args:   input,
			Extra:  CallExtra{ToolCallID: callID},
		}

		data := make(map[string]interface{}, len(w.opts.Metadata)+1)
		for k, v := range w.opts.Metadata {
			data[k] = v
		}
		data[DeferredToolCallKey] = call

		resp, err := w.trigger.TriggerWorkflow(ctx, w.opts.Workflow, knock.TriggerRequest{
			Recipients: w.opts.Recipients,
			Actor:      w.opts.Actor,
			Tenant:     w.opts.Tenant,
			Data:       data,
			// One approval message per tool call, even when the trigger is retried
			IdempotencyKey: callID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to request approval for %s: %w", method, err)
		}

		runID := ""
		if resp != nil {
			runID = resp.WorkflowRunID
		}

		if w.journal != nil {
			// The approval request is already out; journal it even when ctx is cancelled
			jctx := tracing.WithWorkflowRunID(tracing.Detach(ctx), runID)
			if err := w.journal.Record(jctx, call, runID); err != nil {
				w.logger.Warn().
					Err(err).
					Str("tool", method).
					Str("tool_call_id", callID).
					Msg("Failed to journal deferred call")
			}
		}

		w.logger.Info().
			Str("tool", method).
			Str("tool_call_id", callID).
			Str("workflow", w.opts.Workflow).
			Str("workflow_run_id", runID).
			Msg("Deferred tool call pending approval")

		return &Pending{
			Status:        StatusPending,
			ToolCallID:    callID,
			WorkflowRunID: runID,
			Message:       pendingMessage,
		}, nil
	}
}

// Resume runs the original tool for a deferred call
func (w *Wrapper) Resume(ctx context.Context, call DeferredToolCall) (*Completed, error) {
	w.mu.RLock()
	original, ok := w.originals[call.Method]
	w.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeferredCallNotFound, call.Method)
	}

	ctx = tool.WithCallOptions(ctx, tool.CallOptions{ToolCallID: call.Extra.ToolCallID})
	result, err := original.Invoke(ctx, call.Args)
	if err != nil {
		return nil, err
	}

	if w.journal != nil && call.Extra.ToolCallID != "" {
		if err := w.journal.Complete(ctx, call.Extra.ToolCallID); err != nil {
			w.logger.Warn().
				Err(err).
				Str("tool_call_id", call.Extra.ToolCallID).
				Msg("Failed to mark deferred call completed")
		}
	}

	w.logger.Info().
		Str("tool", call.Method).
		Str("tool_call_id", call.Extra.ToolCallID).
		Msg("Resumed deferred tool call")

	return &Completed{
		Status:     StatusCompleted,
		ToolCallID: call.Extra.ToolCallID,
		Method:     call.Method,
		Result:     result,
	}, nil
}

// ResumeInteraction runs the call carried by an approval message only when
// the person approved it. Any other decision, including none, returns a
// declined result and the tool does not run.
func (w *Wrapper) ResumeInteraction(ctx context.Context, interaction *InteractionResult) (*Completed, error) {
	call := interaction.ToolCall
	if !w.Wrapped(call.Method) {
		return nil, fmt.Errorf("%w: %s", ErrDeferredCallNotFound, call.Method)
	}

	decision, approved := w.opts.Approval.Decide(interaction.Interaction)
	if approved {
		completed, err := w.Resume(ctx, call)
		if err != nil {
			return nil, err
		}
		completed.Decision = decision
		return completed, nil
	}

	if w.journal != nil && call.Extra.ToolCallID != "" {
		if err := w.journal.Complete(ctx, call.Extra.ToolCallID); err != nil {
			w.logger.Warn().
				Err(err).
				Str("tool_call_id", call.Extra.ToolCallID).
				Msg("Failed to close declined deferred call")
		}
	}

	w.logger.Info().
		Str("tool", call.Method).
		Str("tool_call_id", call.Extra.ToolCallID).
		Str("decision", decision).
		Msg("Deferred tool call declined")

	return &Completed{
		Status:     StatusDeclined,
		ToolCallID: call.Extra.ToolCallID,
		Method:     call.Method,
		Decision:   decision,
	}, nil
}

// Wrapped reports whether a method has been wrapped
func (w *Wrapper) Wrapped(method string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.originals[method]
	return ok
}

// Methods lists the wrapped methods in sorted order
func (w *Wrapper) Methods() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.originals))
	for m := range w.originals {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
