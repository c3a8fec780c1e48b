// Package catalog defines the Knock tool categories and their descriptors.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/registry"
)

// Category names
const (
	CategoryUsers         = "users"
	CategoryWorkflows     = "workflows"
	CategoryTenants       = "tenants"
	CategoryMessages      = "messages"
	CategoryObjects       = "objects"
	CategoryTemplates     = "templates"
	CategoryBroadcasts    = "broadcasts"
	CategoryChannels      = "channels"
	CategoryEnvironments  = "environments"
	CategoryCommits       = "commits"
	CategoryPartials      = "partials"
	CategoryLayouts       = "layouts"
	CategoryGuides        = "guides"
	CategoryDocumentation = "documentation"
)

// Bucket names
const (
	BucketRead    = "read"
	BucketManage  = "manage"
	BucketTrigger = "trigger"
)

// KindWorkflows is the resource kind listed for workflow trigger tools
const KindWorkflows = "workflows"

// Categories returns every category in declaration order
func Categories() []registry.Category {
	return []registry.Category{
		usersCategory(),
		workflowsCategory(),
		tenantsCategory(),
		messagesCategory(),
		objectsCategory(),
		templatesCategory(),
		broadcastsCategory(),
		channelsCategory(),
		environmentsCategory(),
		commitsCategory(),
		partialsCategory(),
		layoutsCategory(),
		guidesCategory(),
		documentationCategory(),
	}
}

var (
	defaultOnce sync.Once
	defaultReg  *registry.Registry
	defaultErr  error
)

// Registry returns the shared registry of every Knock tool
func Registry() (*registry.Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = registry.New(Categories()...)
	})
	return defaultReg, defaultErr
}

// ResourceLister lists Knock account resources for dynamic buckets
type ResourceLister struct {
	client *knock.Client
}

// NewResourceLister adapts a client to registry.ResourceLister
func NewResourceLister(c *knock.Client) *ResourceLister {
	return &ResourceLister{client: c}
}

// ListResources implements registry.ResourceLister
func (l *ResourceLister) ListResources(ctx context.Context, kind, environment string) ([]registry.Resource, error) {
	switch kind {
	case KindWorkflows:
		workflows, err := l.client.ListWorkflows(ctx, environment)
		if err != nil {
			return nil, err
		}
		out := make([]registry.Resource, 0, len(workflows))
		for _, wf := range workflows {
			res := registry.Resource{
				Key:         wf.Key,
				Name:        wf.Name,
				Description: wf.Description,
				Attributes:  map[string]interface{}{},
			}
			if wf.TriggerDataJSONSchema != nil {
				res.Attributes[attrTriggerSchema] = wf.TriggerDataJSONSchema
			}
			out = append(out, res)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported resource kind %q", kind)
	}
}
