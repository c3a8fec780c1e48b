package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/knocktoolkit/internal/tracing"
	"github.com/harun/knocktoolkit/pkg/hitl"
)

func decodeLines(t *testing.T, data []byte) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		out = append(out, entry)
	}
	return out
}

func interaction() *hitl.InteractionResult {
	return &hitl.InteractionResult{
		Workflow:    "approve-tool-call",
		Interaction: map[string]interface{}{"action": "approve", "user_id": "admin_1"},
		ToolCall: hitl.DeferredToolCall{
			Method: "setTenant",
			Extra:  hitl.CallExtra{ToolCallID: "call_1"},
		},
		Context: hitl.InteractionContext{MessageID: "msg_1", ChannelID: "chan_1"},
	}
}

func TestRecord(t *testing.T) {
	var buf bytes.Buffer
	a := New(&buf)

	ctx := tracing.WithTraceID(context.Background(), "trace-123")
	a.Record(ctx, Event{Type: TypeApproval, Action: "resume:getUser", Status: "completed"})

	lines := decodeLines(t, buf.Bytes())
	require.Len(t, lines, 1)
	assert.Equal(t, "approval", lines[0]["event_type"])
	assert.Equal(t, "resume:getUser", lines[0]["action"])
	assert.Equal(t, "trace-123", lines[0]["trace_id"])
	assert.NotEmpty(t, lines[0]["timestamp"])
	assert.NotContains(t, lines[0], "actor")
}

func TestSink(t *testing.T) {
	t.Run("records completed call", func(t *testing.T) {
		var buf bytes.Buffer
		a := New(&buf)

		var forwarded bool
		sink := a.Sink(func(ctx context.Context, _ *hitl.InteractionResult, _ *hitl.Completed) error {
			forwarded = true
			return nil
		})

		err := sink(context.Background(), interaction(), &hitl.Completed{Status: hitl.StatusCompleted, Method: "setTenant"})
		require.NoError(t, err)
		assert.True(t, forwarded)

		lines := decodeLines(t, buf.Bytes())
		require.Len(t, lines, 1)
		assert.Equal(t, "resume:setTenant", lines[0]["action"])
		assert.Equal(t, "completed", lines[0]["status"])
		assert.Equal(t, "admin_1", lines[0]["actor"])

		metadata := lines[0]["metadata"].(map[string]interface{})
		assert.Equal(t, "call_1", metadata["tool_call_id"])
		assert.Equal(t, "msg_1", metadata["message_id"])
	})

	t.Run("records declined call", func(t *testing.T) {
		var buf bytes.Buffer
		sink := New(&buf).Sink(nil)

		err := sink(context.Background(), interaction(), &hitl.Completed{
			Status:   hitl.StatusDeclined,
			Method:   "setTenant",
			Decision: "reject",
		})
		require.NoError(t, err)

		lines := decodeLines(t, buf.Bytes())
		require.Len(t, lines, 1)
		assert.Equal(t, "decline:setTenant", lines[0]["action"])
		assert.Equal(t, "declined", lines[0]["status"])
		metadata := lines[0]["metadata"].(map[string]interface{})
		assert.Equal(t, "reject", metadata["decision"])
	})

	t.Run("records sink failure", func(t *testing.T) {
		var buf bytes.Buffer
		a := New(&buf)

		sink := a.Sink(func(ctx context.Context, _ *hitl.InteractionResult, _ *hitl.Completed) error {
			return errors.New("agent unreachable")
		})

		err := sink(context.Background(), interaction(), &hitl.Completed{Status: hitl.StatusCompleted})
		assert.EqualError(t, err, "agent unreachable")

		lines := decodeLines(t, buf.Bytes())
		require.Len(t, lines, 1)
		assert.Equal(t, "failed", lines[0]["status"])
		metadata := lines[0]["metadata"].(map[string]interface{})
		assert.Equal(t, "agent unreachable", metadata["error"])
	})

	t.Run("nil next", func(t *testing.T) {
		var buf bytes.Buffer
		sink := New(&buf).Sink(nil)
		require.NoError(t, sink(context.Background(), interaction(), &hitl.Completed{Status: hitl.StatusCompleted}))
		assert.Len(t, decodeLines(t, buf.Bytes()), 1)
	})
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "approvals.log")

	a, err := Open(path)
	require.NoError(t, err)
	a.Record(context.Background(), Event{Type: TypeApproval, Action: "resume:setTenant", Status: "completed"})
	require.NoError(t, a.Close())
	assert.NoError(t, a.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, decodeLines(t, data), 1)
}
