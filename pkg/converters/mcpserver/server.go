// Package mcpserver serves bound tools over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harun/knocktoolkit/pkg/converters"
	"github.com/harun/knocktoolkit/pkg/tool"
)

const (
	// DefaultName is the implementation name reported to clients
	DefaultName = "knocktoolkit"
	// DefaultVersion is the implementation version reported to clients
	DefaultVersion = "0.1.0"
)

// Option configures a Server
type Option func(*Server)

// WithImplementation overrides the name and version reported to clients
func WithImplementation(name, version string) Option {
	return func(s *Server) {
		s.name = name
		s.version = version
	}
}

// WithLogger sets the server logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server registers every bound tool with an MCP server
type Server struct {
	name    string
	version string
	logger  zerolog.Logger
	set     *converters.Set
	server  *mcp.Server
}

// NewServer builds an MCP server exposing tools
func NewServer(tools []*tool.Bound, opts ...Option) (*Server, error) {
	s := &Server{
		name:    DefaultName,
		version: DefaultVersion,
		logger:  log.Logger,
		set:     converters.NewSet(tools),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = mcp.NewServer(&mcp.Implementation{Name: s.name, Version: s.version}, nil)

	for _, t := range s.set.Tools() {
		schema, err := InputSchema(t)
		if err != nil {
			return nil, err
		}
		s.server.AddTool(&mcp.Tool{
			Name:        t.Method(),
			Title:       t.Name(),
			Description: t.Description(),
			InputSchema: schema,
		}, s.handler(t.Method()))
	}

	s.logger.Debug().
		Int("tools", len(s.set.Tools())).
		Msg("MCP server ready")

	return s, nil
}

// InputSchema converts a tool schema to a jsonschema.Schema
func InputSchema(t *tool.Bound) (*jsonschema.Schema, error) {
	data, err := json.Marshal(t.Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema for %s: %w", t.Method(), err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to convert schema for %s: %w", t.Method(), err)
	}
	return &schema, nil
}

func (s *Server) handler(method string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := converters.DecodeArguments(req.Params.Arguments)
		if err != nil {
			return errorResult(err.Error()), nil
		}

		out, err := s.set.Call(ctx, method, "", args)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("tool", method).
				Msg("MCP tool call failed")
			return errorResult(err.Error()), nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: out.Text}},
			IsError: out.IsError,
		}, nil
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

// MCP returns the underlying server for custom transports
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Tools returns the exposed tools
func (s *Server) Tools() []*tool.Bound {
	return s.set.Tools()
}

// ServeStdio serves requests on stdin and stdout until ctx is done or the client disconnects
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info().
		Str("name", s.name).
		Int("tools", len(s.set.Tools())).
		Msg("Serving MCP over stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
