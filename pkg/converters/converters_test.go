package converters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/harun/knocktoolkit/pkg/converters"
	"github.com/harun/knocktoolkit/pkg/converters/convertertest"
)

func TestSet(t *testing.T) {
	tools := convertertest.Tools(t)
	set := converters.NewSet(append(tools, tools[0], nil))
	require.Len(t, set.Tools(), 2)

	ctx := context.Background()

	t.Run("successful call is encoded as JSON", func(t *testing.T) {
		out, err := set.Call(ctx, "greetUser", "call_1", map[string]interface{}{"name": "Ada"})
		require.NoError(t, err)
		assert.False(t, out.IsError)
		assert.Equal(t, "Hello, Ada", gjson.Get(out.Text, "greeting").String())
		assert.Equal(t, "call_1", gjson.Get(out.Text, "call_id").String())
	})

	t.Run("failing tool is flagged", func(t *testing.T) {
		out, err := set.Call(ctx, "failingTool", "", nil)
		require.NoError(t, err)
		assert.True(t, out.IsError)
		assert.Equal(t, "boom", gjson.Get(out.Text, "error").String())
	})

	t.Run("invalid arguments are flagged", func(t *testing.T) {
		out, err := set.Call(ctx, "greetUser", "", map[string]interface{}{})
		require.NoError(t, err)
		assert.True(t, out.IsError)
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, err := set.Call(ctx, "nope", "", nil)
		assert.ErrorIs(t, err, converters.ErrUnknownTool)
	})
}

func TestDecodeArguments(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]interface{}
		wantErr bool
	}{
		{name: "empty", raw: "", want: map[string]interface{}{}},
		{name: "null", raw: "null", want: map[string]interface{}{}},
		{name: "object", raw: `{"a":1}`, want: map[string]interface{}{"a": float64(1)}},
		{name: "array", raw: `[1]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := converters.DecodeArguments([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode(t *testing.T) {
	text, err := converters.Encode("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", text)

	text, err = converters.Encode(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, text)

	_, err = converters.Encode(make(chan int))
	assert.Error(t, err)
}
