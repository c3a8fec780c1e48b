package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/knocktoolkit/internal/tracing"
	"github.com/harun/knocktoolkit/pkg/knock"
)

const tracerName = "knocktoolkit/tool"

// Invocation statuses reported to an Observer
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusInvalid = "invalid"
)

// Observer receives one notification per tool invocation
type Observer interface {
	ObserveToolCall(method, status string, duration time.Duration)
}

// BindOption configures a Bound tool
type BindOption func(*Bound)

// WithObserver attaches an invocation observer
func WithObserver(o Observer) BindOption {
	return func(b *Bound) {
		b.observer = o
	}
}

// WithLogger sets the logger used for invocation logs
func WithLogger(logger zerolog.Logger) BindOption {
	return func(b *Bound) {
		b.logger = logger
	}
}

// Bound is a descriptor paired with a live handler
type Bound struct {
	desc     Descriptor
	handler  Handler
	schema   *gojsonschema.Schema
	observer Observer
	logger   zerolog.Logger
}

// Bind checks the descriptor and creates its handler for the given client and config
func (d Descriptor) Bind(c *knock.Client, cfg Config, opts ...BindOption) (*Bound, error) {
	if err := d.Check(); err != nil {
		return nil, err
	}
	return NewBound(d, d.Execute(c, cfg), opts...)
}

// NewBound pairs a descriptor with an explicit handler
func NewBound(d Descriptor, handler Handler, opts ...BindOption) (*Bound, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: handler cannot be nil for %s", ErrInvalidDescriptor, d.Method)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(d.validationSchema()))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for %s: %w", d.Method, err)
	}

	b := &Bound{
		desc:    d,
		handler: handler,
		schema:  schema,
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// Derive returns a copy of b with a new description and handler.
// The input schema, observer and logger carry over.
func (b *Bound) Derive(description string, handler Handler) *Bound {
	d := b.desc
	d.Description = description
	return &Bound{
		desc:     d,
		handler:  handler,
		schema:   b.schema,
		observer: b.observer,
		logger:   b.logger,
	}
}

// Method returns the tool's stable identifier
func (b *Bound) Method() string { return b.desc.Method }

// Name returns the human readable name
func (b *Bound) Name() string { return b.desc.DisplayName() }

// Description returns the short description
func (b *Bound) Description() string { return b.desc.Description }

// FullDescription returns the description with the parameter table
func (b *Bound) FullDescription() string { return b.desc.FullDescription() }

// Schema returns the JSON Schema of the tool input
func (b *Bound) Schema() map[string]interface{} { return b.desc.Schema() }

// Descriptor returns the underlying descriptor
func (b *Bound) Descriptor() Descriptor { return b.desc }

// Validate checks an input against the tool schema
func (b *Bound) Validate(input map[string]interface{}) error {
	if input == nil {
		input = map[string]interface{}{}
	}

	result, err := b.schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return &ValidationError{Method: b.desc.Method, Issues: []string{err.Error()}}
	}

	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			issues = append(issues, e.String())
		}
		return &ValidationError{Method: b.desc.Method, Issues: issues}
	}

	return nil
}

// Invoke validates the input and runs the handler.
// Handler failures come back as an ErrorResult value with a nil error.
func (b *Bound) Invoke(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	start := time.Now()
	method := b.desc.Method

	if id := CallOptionsFrom(ctx).ToolCallID; id != "" && tracing.GetToolCallID(ctx) == "" {
		ctx = tracing.WithToolCallID(ctx, id)
	}
	ctx, span := tracing.StartSpan(ctx, tracerName, "tool.invoke", attribute.String("tool.method", method))
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, b.logger)

	if input == nil {
		input = map[string]interface{}{}
	}

	if err := b.Validate(input); err != nil {
		logger.Warn().
			Str("tool", method).
			Err(err).
			Msg("Tool input rejected")
		span.SetStatus(codes.Error, "invalid input")
		b.observe(StatusInvalid, start)
		return ErrorResult{Message: ErrorMessage, Error: err.Error()}, nil
	}

	result, err := b.run(ctx, input)
	if err != nil {
		logger.Error().
			Str("tool", method).
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Tool execution failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.observe(StatusError, start)
		return ErrorResult{Message: ErrorMessage, Error: err.Error()}, nil
	}

	logger.Debug().
		Str("tool", method).
		Dur("duration", time.Since(start)).
		Msg("Tool executed")
	b.observe(StatusSuccess, start)

	return result, nil
}

// run calls the handler and turns a panic into an error
func (b *Bound) run(ctx context.Context, input map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", b.desc.Method, r)
		}
	}()
	return b.handler(ctx, input)
}

func (b *Bound) observe(status string, start time.Time) {
	if b.observer != nil {
		b.observer.ObserveToolCall(b.desc.Method, status, time.Since(start))
	}
}
