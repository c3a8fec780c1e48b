package tool

import "context"

type callOptionsKey struct{}

// CallOptions holds per-call metadata supplied by the agent runtime
type CallOptions struct {
	ToolCallID string
}

// WithCallOptions attaches call options to the context
func WithCallOptions(ctx context.Context, opts CallOptions) context.Context {
	return context.WithValue(ctx, callOptionsKey{}, opts)
}

// CallOptionsFrom returns the call options on the context, or the zero value
func CallOptionsFrom(ctx context.Context) CallOptions {
	if ctx == nil {
		return CallOptions{}
	}
	opts, _ := ctx.Value(callOptionsKey{}).(CallOptions)
	return opts
}
