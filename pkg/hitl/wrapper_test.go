package hitl

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/tool"
)

type triggerCall struct {
	workflow string
	req      knock.TriggerRequest
}

type fakeTriggerer struct {
	mu    sync.Mutex
	calls []triggerCall
	err   error
}

func (f *fakeTriggerer) TriggerWorkflow(ctx context.Context, workflowKey string, req knock.TriggerRequest) (*knock.TriggerResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, triggerCall{workflow: workflowKey, req: req})
	if f.err != nil {
		return nil, f.err
	}
	return &knock.TriggerResponse{WorkflowRunID: "run_1"}, nil
}

func quietLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func deleteUserTool(t *testing.T, executed *int) *tool.Bound {
	t.Helper()
	d := tool.Descriptor{
		Method:      "deleteUser",
		Name:        "Delete user",
		Description: "Delete a user permanently",
		Parameters:  []tool.Parameter{{Name: "userId", Type: "string", Description: "User id", Required: true}},
		Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
			return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
				*executed++
				return map[string]interface{}{"deleted": input["userId"]}, nil
			}
		},
	}
	b, err := d.Bind(nil, tool.Config{}, tool.WithLogger(quietLogger()))
	require.NoError(t, err)
	return b
}

func TestNewWrapper_Validation(t *testing.T) {
	_, err := NewWrapper(nil, Options{Workflow: "approve"})
	assert.ErrorIs(t, err, ErrTriggererRequired)

	_, err = NewWrapper(&fakeTriggerer{}, Options{})
	assert.ErrorIs(t, err, ErrWorkflowRequired)
}

func TestWrapper_Wrap(t *testing.T) {
	ctx := context.Background()

	t.Run("invocation defers instead of executing", func(t *testing.T) {
		executed := 0
		trigger := &fakeTriggerer{}
		w, err := NewWrapper(trigger, Options{
			Workflow:   "approve-tool-call",
			Recipients: []interface{}{"admin_1"},
			Actor:      "agent",
			Tenant:     "acme",
			Metadata:   map[string]interface{}{"reason": "cleanup"},
		}, WithLogger(quietLogger()))
		require.NoError(t, err)

		original := deleteUserTool(t, &executed)
		wrapped := w.Wrap(original)

		assert.Equal(t, original.Method(), wrapped.Method())
		assert.Equal(t, original.Schema(), wrapped.Schema())
		assert.Contains(t, wrapped.Description(), "Delete a user permanently")
		assert.Contains(t, wrapped.Description(), "Do not call it again")
		assert.NotEqual(t, original.Description(), wrapped.Description())

		ctx := tool.WithCallOptions(ctx, tool.CallOptions{ToolCallID: "call_abc"})
		result, err := wrapped.Invoke(ctx, map[string]interface{}{"userId": "u_9"})
		require.NoError(t, err)

		pending, ok := result.(*Pending)
		require.True(t, ok)
		assert.Equal(t, StatusPending, pending.Status)
		assert.Equal(t, "call_abc", pending.ToolCallID)
		assert.Equal(t, "run_1", pending.WorkflowRunID)
		assert.Equal(t, 0, executed)

		require.Len(t, trigger.calls, 1)
		call := trigger.calls[0]
		assert.Equal(t, "approve-tool-call", call.workflow)
		assert.Equal(t, []interface{}{"admin_1"}, call.req.Recipients)
		assert.Equal(t, "agent", call.req.Actor)
		assert.Equal(t, "acme", call.req.Tenant)
		assert.Equal(t, "cleanup", call.req.Data["reason"])
		assert.Equal(t, "call_abc", call.req.IdempotencyKey)
		assert.Equal(t, DeferredToolCall{
			Method: "deleteUser",
			Args:   map[string]interface{}{"userId": "u_9"},
			Extra:  CallExtra{ToolCallID: "call_abc"},
		}, call.req.Data[DeferredToolCallKey])
	})

	t.Run("missing call id is generated", func(t *testing.T) {
		executed := 0
		w, err := NewWrapper(&fakeTriggerer{}, Options{Workflow: "approve"},
			WithLogger(quietLogger()),
			WithIDGenerator(func() string { return "generated" }))
		require.NoError(t, err)

		result, err := w.Wrap(deleteUserTool(t, &executed)).Invoke(ctx, map[string]interface{}{"userId": "u_1"})
		require.NoError(t, err)
		assert.Equal(t, "generated", result.(*Pending).ToolCallID)
	})

	t.Run("metadata is not mutated", func(t *testing.T) {
		executed := 0
		meta := map[string]interface{}{"a": 1}
		w, err := NewWrapper(&fakeTriggerer{}, Options{Workflow: "approve", Metadata: meta}, WithLogger(quietLogger()))
		require.NoError(t, err)

		_, err = w.Wrap(deleteUserTool(t, &executed)).Invoke(ctx, map[string]interface{}{"userId": "u_1"})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"a": 1}, meta)
	})

	t.Run("trigger failure is reported as an error result", func(t *testing.T) {
		executed := 0
		w, err := NewWrapper(&fakeTriggerer{err: errors.New("knock down")}, Options{Workflow: "approve"}, WithLogger(quietLogger()))
		require.NoError(t, err)

		result, err := w.Wrap(deleteUserTool(t, &executed)).Invoke(ctx, map[string]interface{}{"userId": "u_1"})
		require.NoError(t, err)
		require.True(t, tool.IsErrorResult(result))
		assert.Contains(t, result.(tool.ErrorResult).Error, "knock down")
	})

	t.Run("invalid input never triggers", func(t *testing.T) {
		executed := 0
		trigger := &fakeTriggerer{}
		w, err := NewWrapper(trigger, Options{Workflow: "approve"}, WithLogger(quietLogger()))
		require.NoError(t, err)

		result, err := w.Wrap(deleteUserTool(t, &executed)).Invoke(ctx, map[string]interface{}{})
		require.NoError(t, err)
		assert.True(t, tool.IsErrorResult(result))
		assert.Empty(t, trigger.calls)
	})
}

func TestWrapper_Resume(t *testing.T) {
	ctx := context.Background()

	t.Run("runs the original tool", func(t *testing.T) {
		executed := 0
		w, err := NewWrapper(&fakeTriggerer{}, Options{Workflow: "approve"}, WithLogger(quietLogger()))
		require.NoError(t, err)
		w.Wrap(deleteUserTool(t, &executed))

		completed, err := w.Resume(ctx, DeferredToolCall{
			Method: "deleteUser",
			Args:   map[string]interface{}{"userId": "u_9"},
			Extra:  CallExtra{ToolCallID: "call_abc"},
		})
		require.NoError(t, err)

		assert.Equal(t, StatusCompleted, completed.Status)
		assert.Equal(t, "call_abc", completed.ToolCallID)
		assert.Equal(t, map[string]interface{}{"deleted": "u_9"}, completed.Result)
		assert.Equal(t, 1, executed)
	})

	t.Run("unknown method", func(t *testing.T) {
		w, err := NewWrapper(&fakeTriggerer{}, Options{Workflow: "approve"}, WithLogger(quietLogger()))
		require.NoError(t, err)

		_, err = w.Resume(ctx, DeferredToolCall{Method: "neverWrapped"})
		assert.ErrorIs(t, err, ErrDeferredCallNotFound)
	})

	t.Run("wrapping many tools", func(t *testing.T) {
		executed := 0
		w, err := NewWrapper(&fakeTriggerer{}, Options{Workflow: "approve"}, WithLogger(quietLogger()))
		require.NoError(t, err)

		wrapped := w.WrapAll([]*tool.Bound{deleteUserTool(t, &executed)})
		assert.Len(t, wrapped, 1)
		assert.True(t, w.Wrapped("deleteUser"))
		assert.Equal(t, []string{"deleteUser"}, w.Methods())
	})
}

type completedJournal struct {
	completed []string
}

func (j *completedJournal) Record(ctx context.Context, call DeferredToolCall, workflowRunID string) error {
	return nil
}

func (j *completedJournal) Complete(ctx context.Context, toolCallID string) error {
	j.completed = append(j.completed, toolCallID)
	return nil
}

func TestWrapper_ResumeInteraction(t *testing.T) {
	ctx := context.Background()
	call := DeferredToolCall{
		Method: "deleteUser",
		Args:   map[string]interface{}{"userId": "u_9"},
		Extra:  CallExtra{ToolCallID: "call_abc"},
	}

	tests := []struct {
		name         string
		approval     Approval
		interaction  map[string]interface{}
		wantStatus   string
		wantDecision string
		wantExecuted int
	}{
		{
			name:         "approve runs the tool",
			interaction:  map[string]interface{}{"action": "approve", "user_id": "admin_1"},
			wantStatus:   StatusCompleted,
			wantDecision: "approve",
			wantExecuted: 1,
		},
		{
			name:         "reject is declined",
			interaction:  map[string]interface{}{"action": "reject"},
			wantStatus:   StatusDeclined,
			wantDecision: "reject",
		},
		{
			name:        "missing decision is declined",
			interaction: map[string]interface{}{"user_id": "admin_1"},
			wantStatus:  StatusDeclined,
		},
		{
			name:        "no interaction payload is declined",
			interaction: nil,
			wantStatus:  StatusDeclined,
		},
		{
			name:         "custom approval values",
			approval:     Approval{Fields: []string{"choice"}, Values: []string{"yes"}},
			interaction:  map[string]interface{}{"choice": "YES", "action": "reject"},
			wantStatus:   StatusCompleted,
			wantDecision: "YES",
			wantExecuted: 1,
		},
		{
			name:         "custom fields ignore the default action",
			approval:     Approval{Fields: []string{"choice"}},
			interaction:  map[string]interface{}{"action": "approve"},
			wantStatus:   StatusDeclined,
			wantExecuted: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executed := 0
			journal := &completedJournal{}
			w, err := NewWrapper(&fakeTriggerer{}, Options{Workflow: "approve", Approval: tt.approval},
				WithLogger(quietLogger()),
				WithJournal(journal))
			require.NoError(t, err)
			w.Wrap(deleteUserTool(t, &executed))

			completed, err := w.ResumeInteraction(ctx, &InteractionResult{ToolCall: call, Interaction: tt.interaction})
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, completed.Status)
			assert.Equal(t, tt.wantDecision, completed.Decision)
			assert.Equal(t, "call_abc", completed.ToolCallID)
			assert.Equal(t, "deleteUser", completed.Method)
			assert.Equal(t, tt.wantExecuted, executed)
			if tt.wantStatus == StatusDeclined {
				assert.Nil(t, completed.Result)
			}
			assert.Equal(t, []string{"call_abc"}, journal.completed)
		})
	}

	t.Run("unknown method", func(t *testing.T) {
		w, err := NewWrapper(&fakeTriggerer{}, Options{Workflow: "approve"}, WithLogger(quietLogger()))
		require.NoError(t, err)

		_, err = w.ResumeInteraction(ctx, &InteractionResult{
			ToolCall:    DeferredToolCall{Method: "neverWrapped"},
			Interaction: map[string]interface{}{"action": "approve"},
		})
		assert.ErrorIs(t, err, ErrDeferredCallNotFound)
	})
}
