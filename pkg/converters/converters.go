// Package converters holds what the framework converters share: a method
// index over bound tools and JSON encoding of tool results.
package converters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harun/knocktoolkit/pkg/tool"
)

// ErrUnknownTool is returned when a model calls a method that is not in the set
var ErrUnknownTool = errors.New("unknown tool")

// Set indexes bound tools by method
type Set struct {
	tools    []*tool.Bound
	byMethod map[string]*tool.Bound
}

// NewSet builds a set; later tools with a repeated method are ignored
func NewSet(tools []*tool.Bound) *Set {
	s := &Set{byMethod: make(map[string]*tool.Bound, len(tools))}
	for _, t := range tools {
		if t == nil {
			continue
		}
		if _, ok := s.byMethod[t.Method()]; ok {
			continue
		}
		s.byMethod[t.Method()] = t
		s.tools = append(s.tools, t)
	}
	return s
}

// Tools returns the tools in insertion order
func (s *Set) Tools() []*tool.Bound {
	return s.tools
}

// Get returns the tool for a method
func (s *Set) Get(method string) (*tool.Bound, bool) {
	t, ok := s.byMethod[method]
	return t, ok
}

// Output is the text a converter hands back to a model
type Output struct {
	Text    string
	Value   interface{}
	IsError bool
}

// Call invokes a tool and encodes the result as JSON text.
// Tool failures come back as an Output with IsError set; err is reserved
// for unknown methods and results that cannot be encoded.
func (s *Set) Call(ctx context.Context, method, callID string, args map[string]interface{}) (*Output, error) {
	t, ok := s.Get(method)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, method)
	}

	if callID != "" {
		ctx = tool.WithCallOptions(ctx, tool.CallOptions{ToolCallID: callID})
	}

	result, err := t.Invoke(ctx, args)
	if err != nil {
		return nil, err
	}

	text, err := Encode(result)
	if err != nil {
		return nil, err
	}

	return &Output{Text: text, Value: result, IsError: tool.IsErrorResult(result)}, nil
}

// Encode renders a tool result as JSON text; strings pass through unchanged
func Encode(result interface{}) (string, error) {
	if s, ok := result.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(data), nil
}

// DecodeArguments parses a JSON argument object; empty input is an empty map
func DecodeArguments(raw []byte) (map[string]interface{}, error) {
	args := map[string]interface{}{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}
