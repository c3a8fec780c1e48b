package anthropic

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/harun/knocktoolkit/pkg/converters/convertertest"
)

func TestParams(t *testing.T) {
	params := New(convertertest.Tools(t)).Params()
	require.Len(t, params, 2)

	greet := params[0].OfTool
	require.NotNil(t, greet)
	assert.Equal(t, "greetUser", greet.Name)
	assert.Equal(t, "Greet a user by name.", greet.Description.Value)
	assert.Equal(t, []string{"name"}, greet.InputSchema.Required)
	assert.Contains(t, greet.InputSchema.Properties, "name")

	failing := params[1].OfTool
	require.NotNil(t, failing)
	assert.Empty(t, failing.InputSchema.Required)
}

func TestHandleToolUse(t *testing.T) {
	ts := New(convertertest.Tools(t))
	ctx := context.Background()

	t.Run("result block carries the output", func(t *testing.T) {
		block, err := ts.HandleToolUse(ctx, anthropic.ToolUseBlock{
			ID:    "toolu_1",
			Name:  "greetUser",
			Input: json.RawMessage(`{"name":"Ada"}`),
		})
		require.NoError(t, err)

		raw, err := json.Marshal(block)
		require.NoError(t, err)
		assert.Equal(t, "tool_result", gjson.GetBytes(raw, "type").String())
		assert.Equal(t, "toolu_1", gjson.GetBytes(raw, "tool_use_id").String())
		assert.Contains(t, string(raw), `Hello, Ada`)
		assert.False(t, gjson.GetBytes(raw, "is_error").Bool())
	})

	t.Run("tool failure sets is_error", func(t *testing.T) {
		block, err := ts.HandleToolUse(ctx, anthropic.ToolUseBlock{
			ID:   "toolu_2",
			Name: "failingTool",
		})
		require.NoError(t, err)

		raw, err := json.Marshal(block)
		require.NoError(t, err)
		assert.True(t, gjson.GetBytes(raw, "is_error").Bool())
	})
}

func TestHandleMessage(t *testing.T) {
	ts := New(convertertest.Tools(t))
	ctx := context.Background()

	var msg anthropic.Message
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-test",
		"content": [
			{"type": "text", "text": "Let me greet them."},
			{"type": "tool_use", "id": "toolu_1", "name": "greetUser", "input": {"name": "Ada"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`), &msg))

	reply, ok, err := ts.HandleMessage(ctx, &msg)
	require.NoError(t, err)
	require.True(t, ok)

	raw, err := json.Marshal(reply)
	require.NoError(t, err)
	assert.Equal(t, "user", gjson.GetBytes(raw, "role").String())
	assert.Equal(t, "toolu_1", gjson.GetBytes(raw, "content.0.tool_use_id").String())

	var textOnly anthropic.Message
	require.NoError(t, json.Unmarshal([]byte(`{"id":"msg_2","type":"message","role":"assistant","content":[{"type":"text","text":"Done."}]}`), &textOnly))
	_, ok, err = ts.HandleMessage(ctx, &textOnly)
	require.NoError(t, err)
	assert.False(t, ok)
}
