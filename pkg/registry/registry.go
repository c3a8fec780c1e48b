package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/harun/knocktoolkit/pkg/tool"
)

var (
	// ErrCategoryNotFound is returned when a category name is not registered
	ErrCategoryNotFound = errors.New("category not found")

	// ErrToolNotFound is returned when a method is not registered
	ErrToolNotFound = errors.New("tool not found")

	// ErrDuplicateMethod is returned when two descriptors share a method
	ErrDuplicateMethod = errors.New("duplicate tool method")

	// ErrDuplicateCategory is returned when a category name is registered twice
	ErrDuplicateCategory = errors.New("duplicate category")

	// ErrUnknownBucketMethod is returned when a bucket lists a method its category lacks
	ErrUnknownBucketMethod = errors.New("bucket references unknown method")
)

// Resource is an account resource a dynamic bucket can synthesize a tool for
type Resource struct {
	Key         string
	Name        string
	Description string
	Attributes  map[string]interface{}
}

// ResourceLister enumerates account resources of a kind within an environment
type ResourceLister interface {
	ListResources(ctx context.Context, kind, environment string) ([]Resource, error)
}

// DynamicBucket is a permission bucket whose tools are built per resource
type DynamicBucket struct {
	Kind  string
	Build func(Resource) tool.Descriptor
}

// Category groups descriptors under a name with named permission buckets
type Category struct {
	Name        string
	Descriptors []tool.Descriptor
	Buckets     map[string][]string
	Dynamic     map[string]DynamicBucket
}

// Registry is the immutable catalog of categories.
// Methods are unique across all categories.
type Registry struct {
	order      []string
	categories map[string]*Category
	index      map[string]tool.Descriptor
	owner      map[string]string
}

// New validates and indexes the given categories in declaration order
func New(categories ...Category) (*Registry, error) {
	r := &Registry{
		categories: make(map[string]*Category, len(categories)),
		index:      make(map[string]tool.Descriptor),
		owner:      make(map[string]string),
	}

	for i := range categories {
		cat := categories[i]
		if cat.Name == "" {
			return nil, fmt.Errorf("category name cannot be empty")
		}
		if _, exists := r.categories[cat.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCategory, cat.Name)
		}

		local := make(map[string]bool, len(cat.Descriptors))
		for _, d := range cat.Descriptors {
			if err := d.Check(); err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}
			if other, exists := r.owner[d.Method]; exists {
				return nil, fmt.Errorf("%w: %s defined in %s and %s", ErrDuplicateMethod, d.Method, other, cat.Name)
			}
			r.owner[d.Method] = cat.Name
			r.index[d.Method] = d
			local[d.Method] = true
		}

		for bucket, methods := range cat.Buckets {
			for _, m := range methods {
				if !local[m] {
					return nil, fmt.Errorf("%w: %s.%s lists %s", ErrUnknownBucketMethod, cat.Name, bucket, m)
				}
			}
		}

		for bucket, dyn := range cat.Dynamic {
			if dyn.Kind == "" || dyn.Build == nil {
				return nil, fmt.Errorf("dynamic bucket %s.%s needs a kind and a builder", cat.Name, bucket)
			}
		}

		r.order = append(r.order, cat.Name)
		r.categories[cat.Name] = &cat
	}

	return r, nil
}

// Categories returns category names in declaration order
func (r *Registry) Categories() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// HasCategory reports whether name is registered
func (r *Registry) HasCategory(name string) bool {
	_, ok := r.categories[name]
	return ok
}

// DescriptorsFor returns a category's descriptors in declaration order
func (r *Registry) DescriptorsFor(name string) ([]tool.Descriptor, error) {
	cat, ok := r.categories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, name)
	}
	out := make([]tool.Descriptor, len(cat.Descriptors))
	copy(out, cat.Descriptors)
	return out, nil
}

// BucketsFor returns a copy of a category's static buckets
func (r *Registry) BucketsFor(name string) (map[string][]string, error) {
	cat, ok := r.categories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, name)
	}
	out := make(map[string][]string, len(cat.Buckets))
	for bucket, methods := range cat.Buckets {
		out[bucket] = append([]string(nil), methods...)
	}
	return out, nil
}

// Bucket returns the methods of one static bucket
func (r *Registry) Bucket(category, bucket string) ([]string, bool) {
	cat, ok := r.categories[category]
	if !ok {
		return nil, false
	}
	methods, ok := cat.Buckets[bucket]
	return methods, ok
}

// Dynamic returns the dynamic bucket of a category, if any
func (r *Registry) Dynamic(category, bucket string) (DynamicBucket, bool) {
	cat, ok := r.categories[category]
	if !ok {
		return DynamicBucket{}, false
	}
	dyn, ok := cat.Dynamic[bucket]
	return dyn, ok
}

// AllDescriptors returns every descriptor in category then declaration order
func (r *Registry) AllDescriptors() []tool.Descriptor {
	out := make([]tool.Descriptor, 0, len(r.index))
	for _, name := range r.order {
		out = append(out, r.categories[name].Descriptors...)
	}
	return out
}

// All returns every descriptor keyed by method
func (r *Registry) All() map[string]tool.Descriptor {
	out := make(map[string]tool.Descriptor, len(r.index))
	for method, d := range r.index {
		out[method] = d
	}
	return out
}

// Lookup finds a descriptor and the category that owns it
func (r *Registry) Lookup(method string) (tool.Descriptor, string, error) {
	d, ok := r.index[method]
	if !ok {
		return tool.Descriptor{}, "", fmt.Errorf("%w: %s", ErrToolNotFound, method)
	}
	return d, r.owner[method], nil
}

// Len returns the number of registered descriptors
func (r *Registry) Len() int {
	return len(r.index)
}
