// Package convertertest provides small bound tools for converter tests.
package convertertest

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/harun/knocktoolkit/pkg/tool"
)

// Greet is a tool that echoes a greeting and the tool call id it ran under
var Greet = tool.Descriptor{
	Method:      "greetUser",
	Name:        "Greet user",
	Description: "Greet a user by name.",
	Parameters: []tool.Parameter{
		{Name: "name", Type: "string", Description: "Name to greet", Required: true},
	},
}

// Failing is a tool whose handler always fails
var Failing = tool.Descriptor{
	Method:      "failingTool",
	Description: "Always fails.",
}

// Tools binds Greet and Failing
func Tools(t testing.TB) []*tool.Bound {
	t.Helper()

	quiet := tool.WithLogger(zerolog.New(io.Discard))

	greet, err := tool.NewBound(Greet, func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
		name, _ := input["name"].(string)
		return map[string]interface{}{
			"greeting": "Hello, " + name,
			"call_id":  tool.CallOptionsFrom(ctx).ToolCallID,
		}, nil
	}, quiet)
	if err != nil {
		t.Fatalf("failed to bind %s: %v", Greet.Method, err)
	}

	failing, err := tool.NewBound(Failing, func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
		return nil, errors.New("boom")
	}, quiet)
	if err != nil {
		t.Fatalf("failed to bind %s: %v", Failing.Method, err)
	}

	return []*tool.Bound{greet, failing}
}
