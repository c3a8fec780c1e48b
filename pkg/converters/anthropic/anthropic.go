// Package anthropic exposes bound tools as Anthropic Messages API tools.
package anthropic

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/harun/knocktoolkit/pkg/converters"
	"github.com/harun/knocktoolkit/pkg/tool"
)

// Toolset converts tools to tool params and answers tool_use blocks
type Toolset struct {
	set *converters.Set
}

// New creates a toolset
func New(tools []*tool.Bound) *Toolset {
	return &Toolset{set: converters.NewSet(tools)}
}

// Params returns the tools for MessageNewParams.Tools
func (ts *Toolset) Params() []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, 0, len(ts.set.Tools()))
	for _, t := range ts.set.Tools() {
		schema := t.Schema()

		toolParam := anthropic.ToolParam{
			Name:        t.Method(),
			Description: anthropic.String(t.Description()),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema["properties"],
			},
		}
		if required, ok := schema["required"].([]string); ok {
			toolParam.InputSchema.Required = required
		}

		params = append(params, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return params
}

// HandleToolUse runs one tool_use block and returns the matching tool_result block
func (ts *Toolset) HandleToolUse(ctx context.Context, block anthropic.ToolUseBlock) (anthropic.ContentBlockParamUnion, error) {
	raw, err := json.Marshal(block.Input)
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, err
	}
	args, err := converters.DecodeArguments(raw)
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, err
	}

	out, err := ts.set.Call(ctx, block.Name, block.ID, args)
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, err
	}

	return anthropic.NewToolResultBlock(block.ID, out.Text, out.IsError), nil
}

// HandleMessage runs every tool_use block of a response and returns the
// user message carrying the results. It reports false when there were none.
func (ts *Toolset) HandleMessage(ctx context.Context, msg *anthropic.Message) (anthropic.MessageParam, bool, error) {
	var results []anthropic.ContentBlockParamUnion
	for _, block := range msg.Content {
		use, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		result, err := ts.HandleToolUse(ctx, use)
		if err != nil {
			return anthropic.MessageParam{}, false, err
		}
		results = append(results, result)
	}

	if len(results) == 0 {
		return anthropic.MessageParam{}, false, nil
	}
	return anthropic.NewUserMessage(results...), true, nil
}
