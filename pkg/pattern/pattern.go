// Package pattern selects descriptors with "category.method" patterns.
//
// Supported forms:
//
//	*               every tool
//	users           every tool in a category
//	users.*         same as above
//	users.getUser   one tool
//	users.get*      tools whose method matches a glob
package pattern

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/harun/knocktoolkit/pkg/registry"
	"github.com/harun/knocktoolkit/pkg/tool"
)

// ErrNoPatternProvided is returned for an empty pattern
var ErrNoPatternProvided = errors.New("no pattern provided")

// ErrInvalidPattern is returned when a glob cannot be compiled
var ErrInvalidPattern = errors.New("invalid tool pattern")

const wildcard = "*"

// Filter returns the descriptors a single pattern selects
func Filter(reg *registry.Registry, p string) ([]tool.Descriptor, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return nil, ErrNoPatternProvided
	}

	if p == wildcard {
		return reg.AllDescriptors(), nil
	}

	category, method, hasMethod := strings.Cut(p, ".")
	if category == wildcard && (!hasMethod || method == wildcard) {
		return reg.AllDescriptors(), nil
	}

	descs, err := reg.DescriptorsFor(category)
	if err != nil {
		return nil, err
	}

	// Bare category selects the whole category
	if !hasMethod || method == wildcard || method == "" {
		return descs, nil
	}

	if strings.ContainsAny(method, "*?[{") {
		g, err := glob.Compile(method)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPattern, p, err)
		}

		var out []tool.Descriptor
		for _, d := range descs {
			if g.Match(d.Method) {
				out = append(out, d)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: %s", registry.ErrToolNotFound, p)
		}
		return out, nil
	}

	for _, d := range descs {
		if d.Method == method {
			return []tool.Descriptor{d}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", registry.ErrToolNotFound, p)
}

// FilterAll concatenates the selections of several patterns.
// Duplicates are kept; callers dedupe where it matters.
func FilterAll(reg *registry.Registry, patterns []string) ([]tool.Descriptor, error) {
	if len(patterns) == 0 {
		return nil, ErrNoPatternProvided
	}

	var out []tool.Descriptor
	for _, p := range patterns {
		descs, err := Filter(reg, p)
		if err != nil {
			return nil, err
		}
		out = append(out, descs...)
	}

	return out, nil
}

// Dedupe drops repeated methods, keeping the first occurrence
func Dedupe(descs []tool.Descriptor) []tool.Descriptor {
	seen := make(map[string]bool, len(descs))
	out := make([]tool.Descriptor, 0, len(descs))
	for _, d := range descs {
		if seen[d.Method] {
			continue
		}
		seen[d.Method] = true
		out = append(out, d)
	}
	return out
}
