// Package openai exposes bound tools as OpenAI chat completion tools.
package openai

import (
	"context"

	"github.com/openai/openai-go"

	"github.com/harun/knocktoolkit/pkg/converters"
	"github.com/harun/knocktoolkit/pkg/tool"
)

// Toolset converts tools to function definitions and answers tool calls
type Toolset struct {
	set *converters.Set
}

// New creates a toolset
func New(tools []*tool.Bound) *Toolset {
	return &Toolset{set: converters.NewSet(tools)}
}

// Params returns the tools for ChatCompletionNewParams.Tools
func (ts *Toolset) Params() []openai.ChatCompletionToolParam {
	params := make([]openai.ChatCompletionToolParam, 0, len(ts.set.Tools()))
	for _, t := range ts.set.Tools() {
		params = append(params, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Method(),
				Description: openai.String(t.Description()),
				Parameters:  openai.FunctionParameters(t.Schema()),
			},
		})
	}
	return params
}

// HandleToolCall runs one tool call and returns the tool message to send back
func (ts *Toolset) HandleToolCall(ctx context.Context, call openai.ChatCompletionMessageToolCall) (openai.ChatCompletionMessageParamUnion, error) {
	args, err := converters.DecodeArguments([]byte(call.Function.Arguments))
	if err != nil {
		return openai.ChatCompletionMessageParamUnion{}, err
	}

	out, err := ts.set.Call(ctx, call.Function.Name, call.ID, args)
	if err != nil {
		return openai.ChatCompletionMessageParamUnion{}, err
	}

	return openai.ToolMessage(out.Text, call.ID), nil
}

// HandleToolCalls runs every tool call of an assistant message in order
func (ts *Toolset) HandleToolCalls(ctx context.Context, calls []openai.ChatCompletionMessageToolCall) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(calls))
	for _, call := range calls {
		msg, err := ts.HandleToolCall(ctx, call)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
