package catalog

import (
	"context"

	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/registry"
	"github.com/harun/knocktoolkit/pkg/tool"
)

var listChannels = tool.Descriptor{
	Method:      "listChannels",
	Name:        "List channels",
	Description: "List the delivery channels configured in the account.",
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			mc, err := management(c)
			if err != nil {
				return nil, err
			}
			return mc.ListChannels(ctx)
		}
	},
}

var listEnvironments = tool.Descriptor{
	Method:      "listEnvironments",
	Name:        "List environments",
	Description: "List the environments in the account in promotion order.",
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			mc, err := management(c)
			if err != nil {
				return nil, err
			}
			return mc.ListEnvironments(ctx)
		}
	},
}

var listCommits = tool.Descriptor{
	Method:      "listCommits",
	Name:        "List commits",
	Description: "List commits in an environment, optionally only promoted or unpromoted ones.",
	Parameters: []tool.Parameter{
		environmentParam,
		{Name: "promoted", Type: "boolean", Description: "Filter by promotion state"},
	},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			mc, err := management(c)
			if err != nil {
				return nil, err
			}
			return mc.ListCommits(ctx, environmentArg(input, cfg), boolArg(input, "promoted"))
		}
	},
}

var commitAllChanges = tool.Descriptor{
	Method:      "commitAllChanges",
	Name:        "Commit all changes",
	Description: "Commit every uncommitted change in an environment.",
	Parameters: []tool.Parameter{
		environmentParam,
		{Name: "message", Type: "string", Description: "Commit message"},
	},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			mc, err := management(c)
			if err != nil {
				return nil, err
			}
			return mc.CommitAll(ctx, environmentArg(input, cfg), stringArg(input, "message"))
		}
	},
}

var promoteAllCommits = tool.Descriptor{
	Method:      "promoteAllCommits",
	Name:        "Promote all commits",
	Description: "Promote every commit into the target environment.",
	Parameters: []tool.Parameter{
		{Name: "toEnvironment", Type: "string", Description: "Environment to promote into", Required: true},
	},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			mc, err := management(c)
			if err != nil {
				return nil, err
			}
			return mc.PromoteAll(ctx, stringArg(input, "toEnvironment"))
		}
	},
}

func channelsCategory() registry.Category {
	return registry.Category{
		Name:        CategoryChannels,
		Descriptors: []tool.Descriptor{listChannels},
		Buckets:     map[string][]string{BucketRead: {"listChannels"}},
	}
}

func environmentsCategory() registry.Category {
	return registry.Category{
		Name:        CategoryEnvironments,
		Descriptors: []tool.Descriptor{listEnvironments},
		Buckets:     map[string][]string{BucketRead: {"listEnvironments"}},
	}
}

func commitsCategory() registry.Category {
	return registry.Category{
		Name:        CategoryCommits,
		Descriptors: []tool.Descriptor{listCommits, commitAllChanges, promoteAllCommits},
		Buckets: map[string][]string{
			BucketRead:   {"listCommits"},
			BucketManage: {"commitAllChanges", "promoteAllCommits"},
		},
	}
}
