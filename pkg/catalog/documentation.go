package catalog

import (
	"context"

	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/registry"
	"github.com/harun/knocktoolkit/pkg/tool"
)

var searchDocumentation = tool.Descriptor{
	Method:      "searchDocumentation",
	Name:        "Search documentation",
	Description: "Search the Knock documentation and return matching pages.",
	Parameters: []tool.Parameter{
		{Name: "query", Type: "string", Description: "Search query", Required: true},
	},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			mc, err := management(c)
			if err != nil {
				return nil, err
			}
			return mc.SearchDocumentation(ctx, stringArg(input, "query"))
		}
	},
}

func documentationCategory() registry.Category {
	return registry.Category{
		Name:        CategoryDocumentation,
		Descriptors: []tool.Descriptor{searchDocumentation},
		Buckets:     map[string][]string{BucketRead: {"searchDocumentation"}},
	}
}
