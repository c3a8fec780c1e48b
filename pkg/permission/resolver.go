package permission

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harun/knocktoolkit/pkg/registry"
	"github.com/harun/knocktoolkit/pkg/tool"
)

// ErrResourceListerRequired is returned when a list grant needs resources but no lister was given
var ErrResourceListerRequired = errors.New("resource lister required for list grants")

// Resolver turns permission grants into descriptor sets
type Resolver struct {
	registry *registry.Registry
	strict   bool
	logger   zerolog.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithStrict makes unknown categories and buckets an error instead of a warning
func WithStrict(strict bool) Option {
	return func(r *Resolver) {
		r.strict = strict
	}
}

// WithLogger sets the resolver logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a resolver over a registry
func NewResolver(reg *registry.Registry, opts ...Option) *Resolver {
	r := &Resolver{
		registry: reg,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolved is the outcome of resolving a grant
type Resolved struct {
	order      []string
	byCategory map[string][]tool.Descriptor
	index      map[string]tool.Descriptor
}

// Categories returns the granted categories in registry order
func (r *Resolved) Categories() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Category returns the descriptors resolved for one category
func (r *Resolved) Category(name string) ([]tool.Descriptor, bool) {
	descs, ok := r.byCategory[name]
	if !ok {
		return nil, false
	}
	return append([]tool.Descriptor(nil), descs...), true
}

// All returns every resolved descriptor in category order
func (r *Resolved) All() []tool.Descriptor {
	out := make([]tool.Descriptor, 0, len(r.index))
	for _, name := range r.order {
		out = append(out, r.byCategory[name]...)
	}
	return out
}

// Lookup finds a resolved descriptor by method
func (r *Resolved) Lookup(method string) (tool.Descriptor, bool) {
	d, ok := r.index[method]
	return d, ok
}

// Len returns the number of resolved descriptors
func (r *Resolved) Len() int {
	return len(r.index)
}

// Resolve computes the tools a grant allows.
// The lister is consulted at most once per resource kind.
func (r *Resolver) Resolve(ctx context.Context, grant Grant, lister registry.ResourceLister, environment string) (*Resolved, error) {
	resolved := &Resolved{
		byCategory: make(map[string][]tool.Descriptor),
		index:      make(map[string]tool.Descriptor),
	}

	// Report categories the registry does not know
	unknown := make([]string, 0)
	for name := range grant {
		if !r.registry.HasCategory(name) {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		if r.strict {
			return nil, fmt.Errorf("%w: %s", registry.ErrCategoryNotFound, name)
		}
		r.logger.Warn().
			Str("category", name).
			Msg("Ignoring permission grant for unknown category")
	}

	listings := make(map[string][]registry.Resource)

	for _, category := range r.registry.Categories() {
		cg, ok := grant[category]
		if !ok {
			continue
		}

		descs, err := r.resolveCategory(ctx, category, cg, lister, environment, listings)
		if err != nil {
			return nil, err
		}

		resolved.order = append(resolved.order, category)
		resolved.byCategory[category] = descs
		for _, d := range descs {
			resolved.index[d.Method] = d
		}
	}

	r.logger.Debug().
		Int("categories", len(resolved.order)).
		Int("tools", len(resolved.index)).
		Msg("Resolved permission grant")

	return resolved, nil
}

func (r *Resolver) resolveCategory(
	ctx context.Context,
	category string,
	cg CategoryGrant,
	lister registry.ResourceLister,
	environment string,
	listings map[string][]registry.Resource,
) ([]tool.Descriptor, error) {
	buckets := make([]string, 0, len(cg))
	for bucket := range cg {
		buckets = append(buckets, bucket)
	}
	sort.Strings(buckets)

	included := make(map[string]bool)
	type keyedBucket struct {
		dyn  registry.DynamicBucket
		keys []string
	}
	var keyed []keyedBucket

	for _, bucket := range buckets {
		g := cg[bucket]
		methods, isStatic := r.registry.Bucket(category, bucket)
		dyn, isDynamic := r.registry.Dynamic(category, bucket)

		if !isStatic && !isDynamic {
			if r.strict {
				return nil, fmt.Errorf("%w: unknown bucket %s.%s", ErrInvalidPermissionGrant, category, bucket)
			}
			r.logger.Warn().
				Str("category", category).
				Str("bucket", bucket).
				Msg("Ignoring permission grant for unknown bucket")
			continue
		}

		if g.IsList() {
			if !isDynamic {
				return nil, fmt.Errorf("%w: %s.%s does not accept resource keys", ErrInvalidPermissionGrant, category, bucket)
			}
			keyed = append(keyed, keyedBucket{dyn: dyn, keys: g.Keys})
			continue
		}

		if g.Allowed {
			for _, m := range methods {
				included[m] = true
			}
		}
	}

	descs, err := r.registry.DescriptorsFor(category)
	if err != nil {
		return nil, err
	}

	// Static tools first, in declaration order
	out := make([]tool.Descriptor, 0, len(included))
	seen := make(map[string]bool)
	for _, d := range descs {
		if included[d.Method] && !seen[d.Method] {
			seen[d.Method] = true
			out = append(out, d)
		}
	}

	// Then synthesized tools, in listing order
	for _, kb := range keyed {
		if len(kb.keys) == 0 {
			continue
		}

		resources, err := r.list(ctx, lister, kb.dyn.Kind, environment, listings)
		if err != nil {
			return nil, err
		}

		wanted := make(map[string]bool, len(kb.keys))
		for _, k := range kb.keys {
			wanted[k] = true
		}

		found := make(map[string]bool, len(kb.keys))
		for _, res := range resources {
			if !wanted[res.Key] {
				continue
			}
			found[res.Key] = true
			d := kb.dyn.Build(res)
			if seen[d.Method] {
				r.logger.Warn().
					Str("category", category).
					Str("kind", kb.dyn.Kind).
					Str("key", res.Key).
					Str("method", d.Method).
					Msg("Resource maps to a tool name already in use, skipping")
				continue
			}
			seen[d.Method] = true
			out = append(out, d)
		}

		for _, k := range kb.keys {
			if !found[k] {
				r.logger.Warn().
					Str("category", category).
					Str("kind", kb.dyn.Kind).
					Str("key", k).
					Str("environment", environment).
					Msg("Granted resource not found, skipping")
			}
		}
	}

	return out, nil
}

func (r *Resolver) list(ctx context.Context, lister registry.ResourceLister, kind, environment string, listings map[string][]registry.Resource) ([]registry.Resource, error) {
	if resources, ok := listings[kind]; ok {
		return resources, nil
	}
	if lister == nil {
		return nil, fmt.Errorf("%w: %s", ErrResourceListerRequired, kind)
	}

	resources, err := lister.ListResources(ctx, kind, environment)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	listings[kind] = resources
	return resources, nil
}
