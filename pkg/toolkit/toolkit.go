// Package toolkit assembles bound Knock tools from permissions or patterns
// and routes human approval round trips.
package toolkit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harun/knocktoolkit/pkg/catalog"
	"github.com/harun/knocktoolkit/pkg/hitl"
	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/pattern"
	"github.com/harun/knocktoolkit/pkg/permission"
	"github.com/harun/knocktoolkit/pkg/registry"
	"github.com/harun/knocktoolkit/pkg/tool"
)

// Config selects credentials, defaults and permissions
type Config struct {
	ServiceToken string
	UserID       string
	TenantID     string
	Environment  string
	Permissions  permission.Grant
	Strict       bool
}

func (c Config) toolConfig() tool.Config {
	return tool.Config{
		UserID:       c.UserID,
		TenantID:     c.TenantID,
		Environment:  c.Environment,
		ServiceToken: c.ServiceToken,
	}
}

type options struct {
	client   *knock.Client
	registry *registry.Registry
	lister   registry.ResourceLister
	observer tool.Observer
	journal  hitl.Journal
	logger   zerolog.Logger
}

// Option configures a Toolkit
type Option func(*options)

// WithClient uses an existing Knock client instead of creating one
func WithClient(c *knock.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithRegistry replaces the catalog registry
func WithRegistry(reg *registry.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithResourceLister replaces the lister used for dynamic buckets
func WithResourceLister(l registry.ResourceLister) Option {
	return func(o *options) {
		o.lister = l
	}
}

// WithObserver attaches an observer to every bound tool
func WithObserver(obs tool.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithJournal records deferred calls made through RequireHumanInput
func WithJournal(j hitl.Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

// WithLogger sets the logger for the toolkit and the tools it binds
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Toolkit is a set of bound tools grouped by category
type Toolkit struct {
	cfg     Config
	client  *knock.Client
	journal hitl.Journal
	logger  zerolog.Logger

	mu         sync.RWMutex
	order      []string
	byCategory map[string][]string
	tools      map[string]*tool.Bound
	methods    []string
	wrappers   map[string]*hitl.Wrapper
}

// New resolves cfg.Permissions into a toolkit
func New(ctx context.Context, cfg Config, opts ...Option) (*Toolkit, error) {
	o, err := buildOptions(cfg, opts)
	if err != nil {
		return nil, err
	}

	resolver := permission.NewResolver(o.registry,
		permission.WithStrict(cfg.Strict),
		permission.WithLogger(o.logger))

	resolved, err := resolver.Resolve(ctx, cfg.Permissions, o.lister, cfg.toolConfig().EnvironmentOrDefault())
	if err != nil {
		return nil, err
	}

	tk := newToolkit(cfg, o)
	for _, category := range resolved.Categories() {
		descs, _ := resolved.Category(category)
		if err := tk.add(category, descs, o); err != nil {
			return nil, err
		}
	}

	tk.logger.Info().
		Int("tools", len(tk.methods)).
		Strs("categories", tk.order).
		Msg("Toolkit ready")

	return tk, nil
}

// FromPatterns builds a toolkit from "category.method" patterns, adding
// dedicated trigger tools for the given workflow keys.
func FromPatterns(ctx context.Context, cfg Config, patterns []string, workflows []string, opts ...Option) (*Toolkit, error) {
	o, err := buildOptions(cfg, opts)
	if err != nil {
		return nil, err
	}

	tk := newToolkit(cfg, o)

	if len(patterns) > 0 {
		descs, err := pattern.FilterAll(o.registry, patterns)
		if err != nil {
			return nil, err
		}

		// Group by owning category, keeping pattern order
		grouped := make(map[string][]tool.Descriptor)
		var order []string
		for _, d := range pattern.Dedupe(descs) {
			_, category, err := o.registry.Lookup(d.Method)
			if err != nil {
				return nil, err
			}
			if _, ok := grouped[category]; !ok {
				order = append(order, category)
			}
			grouped[category] = append(grouped[category], d)
		}
		for _, category := range order {
			if err := tk.add(category, grouped[category], o); err != nil {
				return nil, err
			}
		}
	}

	if len(workflows) > 0 {
		resolver := permission.NewResolver(o.registry, permission.WithLogger(o.logger))
		resolved, err := resolver.Resolve(ctx, permission.Grant{
			catalog.CategoryWorkflows: {catalog.BucketTrigger: permission.Keys(workflows...)},
		}, o.lister, cfg.toolConfig().EnvironmentOrDefault())
		if err != nil {
			return nil, err
		}
		descs, _ := resolved.Category(catalog.CategoryWorkflows)
		if err := tk.add(catalog.CategoryWorkflows, descs, o); err != nil {
			return nil, err
		}
	}

	if len(tk.methods) == 0 {
		return nil, pattern.ErrNoPatternProvided
	}

	return tk, nil
}

func buildOptions(cfg Config, opts []Option) (*options, error) {
	o := &options{logger: log.Logger}
	for _, opt := range opts {
		opt(o)
	}

	if o.registry == nil {
		reg, err := catalog.Registry()
		if err != nil {
			return nil, err
		}
		o.registry = reg
	}

	if o.client == nil {
		c, err := knock.NewClient(cfg.ServiceToken, knock.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		o.client = c
	}

	if o.lister == nil {
		o.lister = catalog.NewResourceLister(o.client)
	}

	return o, nil
}

func newToolkit(cfg Config, o *options) *Toolkit {
	return &Toolkit{
		cfg:        cfg,
		client:     o.client,
		journal:    o.journal,
		logger:     o.logger,
		byCategory: make(map[string][]string),
		tools:      make(map[string]*tool.Bound),
		wrappers:   make(map[string]*hitl.Wrapper),
	}
}

func (tk *Toolkit) add(category string, descs []tool.Descriptor, o *options) error {
	bindOpts := []tool.BindOption{tool.WithLogger(o.logger)}
	if o.observer != nil {
		bindOpts = append(bindOpts, tool.WithObserver(o.observer))
	}

	if _, ok := tk.byCategory[category]; !ok {
		tk.order = append(tk.order, category)
		tk.byCategory[category] = []string{}
	}

	for _, d := range descs {
		if _, exists := tk.tools[d.Method]; exists {
			continue
		}
		b, err := d.Bind(tk.client, tk.cfg.toolConfig(), bindOpts...)
		if err != nil {
			return fmt.Errorf("failed to bind %s: %w", d.Method, err)
		}
		tk.tools[d.Method] = b
		tk.methods = append(tk.methods, d.Method)
		tk.byCategory[category] = append(tk.byCategory[category], d.Method)
	}

	return nil
}

// Client returns the Knock client the tools are bound to
func (tk *Toolkit) Client() *knock.Client {
	return tk.client
}

// Categories returns the categories present in the toolkit
func (tk *Toolkit) Categories() []string {
	tk.mu.RLock()
	defer tk.mu.RUnlock()
	return append([]string(nil), tk.order...)
}

// Tools returns every tool in category order
func (tk *Toolkit) Tools() []*tool.Bound {
	tk.mu.RLock()
	defer tk.mu.RUnlock()

	out := make([]*tool.Bound, 0, len(tk.methods))
	for _, category := range tk.order {
		for _, m := range tk.byCategory[category] {
			out = append(out, tk.tools[m])
		}
	}
	return out
}

// ToolsForCategory returns the tools of one category
func (tk *Toolkit) ToolsForCategory(category string) ([]*tool.Bound, error) {
	tk.mu.RLock()
	defer tk.mu.RUnlock()

	methods, ok := tk.byCategory[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrCategoryNotFound, category)
	}
	out := make([]*tool.Bound, 0, len(methods))
	for _, m := range methods {
		out = append(out, tk.tools[m])
	}
	return out, nil
}

// Tool returns one tool by method
func (tk *Toolkit) Tool(method string) (*tool.Bound, error) {
	tk.mu.RLock()
	defer tk.mu.RUnlock()

	b, ok := tk.tools[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrToolNotFound, method)
	}
	return b, nil
}

// Execute invokes a tool by method
func (tk *Toolkit) Execute(ctx context.Context, method string, input map[string]interface{}) (interface{}, error) {
	b, err := tk.Tool(method)
	if err != nil {
		return nil, err
	}
	return b.Invoke(ctx, input)
}

// RequireHumanInput puts the given methods behind an approval workflow.
// The toolkit's tools are replaced by their deferred versions, which are also returned.
func (tk *Toolkit) RequireHumanInput(methods []string, opts hitl.Options) ([]*tool.Bound, error) {
	if len(methods) == 0 {
		return nil, errors.New("no methods to wrap")
	}

	wopts := []hitl.WrapperOption{hitl.WithLogger(tk.logger)}
	if tk.journal != nil {
		wopts = append(wopts, hitl.WithJournal(tk.journal))
	}

	if opts.Tenant == "" {
		opts.Tenant = tk.cfg.TenantID
	}

	wrapper, err := hitl.NewWrapper(tk.client.Triggerer(tk.cfg.toolConfig().EnvironmentOrDefault()), opts, wopts...)
	if err != nil {
		return nil, err
	}

	tk.mu.Lock()
	defer tk.mu.Unlock()

	// Check every method before replacing anything
	for _, m := range methods {
		if _, ok := tk.tools[m]; !ok {
			return nil, fmt.Errorf("%w: %s", registry.ErrToolNotFound, m)
		}
		if _, wrapped := tk.wrappers[m]; wrapped {
			return nil, fmt.Errorf("tool %s already requires human input", m)
		}
	}

	out := make([]*tool.Bound, 0, len(methods))
	for _, m := range methods {
		wrapped := wrapper.Wrap(tk.tools[m])
		tk.tools[m] = wrapped
		tk.wrappers[m] = wrapper
		out = append(out, wrapped)
	}

	tk.logger.Info().
		Strs("tools", methods).
		Str("workflow", opts.Workflow).
		Msg("Tools now require human input")

	return out, nil
}

// HandleMessageInteraction parses a Knock webhook body into an interaction result.
// It reports false when the event is not a response to a deferred call.
func (tk *Toolkit) HandleMessageInteraction(body []byte) (*hitl.InteractionResult, bool, error) {
	return hitl.ParseInteractionJSON(body)
}

// ResumeToolExecution runs the original tool behind a deferred call.
// It does not look at the person's decision; use ResumeInteraction for
// calls that arrive from an approval message.
func (tk *Toolkit) ResumeToolExecution(ctx context.Context, call hitl.DeferredToolCall) (*hitl.Completed, error) {
	tk.mu.RLock()
	wrapper, ok := tk.wrappers[call.Method]
	tk.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", hitl.ErrDeferredCallNotFound, call.Method)
	}
	return wrapper.Resume(ctx, call)
}

// ResumeInteraction resumes the call an approval message carries when the
// person approved it, and returns a declined result otherwise
func (tk *Toolkit) ResumeInteraction(ctx context.Context, interaction *hitl.InteractionResult) (*hitl.Completed, error) {
	tk.mu.RLock()
	wrapper, ok := tk.wrappers[interaction.ToolCall.Method]
	tk.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", hitl.ErrDeferredCallNotFound, interaction.ToolCall.Method)
	}
	return wrapper.ResumeInteraction(ctx, interaction)
}
