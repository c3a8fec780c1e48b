// Package gemini exposes bound tools as Gemini function declarations.
package gemini

import (
	"context"

	"google.golang.org/genai"

	"github.com/harun/knocktoolkit/pkg/converters"
	"github.com/harun/knocktoolkit/pkg/tool"
)

// Toolset converts tools to function declarations and answers function calls
type Toolset struct {
	set *converters.Set
}

// New creates a toolset
func New(tools []*tool.Bound) *Toolset {
	return &Toolset{set: converters.NewSet(tools)}
}

// Declarations returns one declaration per tool
func (ts *Toolset) Declarations() []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(ts.set.Tools()))
	for _, t := range ts.set.Tools() {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Method(),
			Description:          t.Description(),
			ParametersJsonSchema: t.Schema(),
		})
	}
	return decls
}

// Tool groups every declaration for GenerateContentConfig.Tools
func (ts *Toolset) Tool() *genai.Tool {
	return &genai.Tool{FunctionDeclarations: ts.Declarations()}
}

// HandleFunctionCall runs one function call. The response carries the
// result under "output", or the failure under "error".
func (ts *Toolset) HandleFunctionCall(ctx context.Context, call *genai.FunctionCall) (*genai.FunctionResponse, error) {
	args := call.Args
	if args == nil {
		args = map[string]interface{}{}
	}

	out, err := ts.set.Call(ctx, call.Name, call.ID, args)
	if err != nil {
		return nil, err
	}

	key := "output"
	if out.IsError {
		key = "error"
	}

	return &genai.FunctionResponse{
		ID:       call.ID,
		Name:     call.Name,
		Response: map[string]interface{}{key: out.Value},
	}, nil
}

// HandleContent runs every function call in a model turn and returns the
// content carrying the responses. It reports false when there were none.
func (ts *Toolset) HandleContent(ctx context.Context, content *genai.Content) (*genai.Content, bool, error) {
	if content == nil {
		return nil, false, nil
	}

	var parts []*genai.Part
	for _, part := range content.Parts {
		if part == nil || part.FunctionCall == nil {
			continue
		}
		resp, err := ts.HandleFunctionCall(ctx, part.FunctionCall)
		if err != nil {
			return nil, false, err
		}
		parts = append(parts, &genai.Part{FunctionResponse: resp})
	}

	if len(parts) == 0 {
		return nil, false, nil
	}
	return genai.NewContentFromParts(parts, genai.RoleUser), true, nil
}
