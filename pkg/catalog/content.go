package catalog

import (
	"context"

	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/registry"
	"github.com/harun/knocktoolkit/pkg/tool"
)

func keyParam(what string) tool.Parameter {
	return tool.Parameter{Name: what + "Key", Type: "string", Description: "The " + what + " key", Required: true}
}

// listing builds a read-only tool around a management list call
func listing(method, name, description string, list func(*knock.Client, context.Context, string) ([]knock.Record, error)) tool.Descriptor {
	return tool.Descriptor{
		Method:      method,
		Name:        name,
		Description: description,
		Parameters:  []tool.Parameter{environmentParam},
		Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
			return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
				mc, err := management(c)
				if err != nil {
					return nil, err
				}
				return list(mc, ctx, environmentArg(input, cfg))
			}
		},
	}
}

var listMessageTypes = listing("listMessageTypes", "List message types",
	"List the message types that define in-app template schemas.", (*knock.Client).ListMessageTypes)

var getWorkflowStepTemplates = tool.Descriptor{
	Method:      "getWorkflowStepTemplates",
	Name:        "Get workflow step templates",
	Description: "Retrieve the channel templates used by each step of a workflow.",
	Parameters:  []tool.Parameter{workflowKeyParam, environmentParam},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			mc, err := management(c)
			if err != nil {
				return nil, err
			}
			wf, err := mc.GetWorkflow(ctx, environmentArg(input, cfg), stringArg(input, "workflowKey"))
			if err != nil {
				return nil, err
			}

			templates := make([]map[string]interface{}, 0, len(wf.Steps))
			for _, step := range wf.Steps {
				tmpl, ok := step["template"]
				if !ok {
					continue
				}
				templates = append(templates, map[string]interface{}{
					"ref":         step["ref"],
					"channel_key": step["channel_key"],
					"template":    tmpl,
				})
			}
			return templates, nil
		}
	},
}

var listBroadcasts = listing("listBroadcasts", "List broadcasts",
	"List broadcasts and their send status.", (*knock.Client).ListBroadcasts)

var getBroadcast = tool.Descriptor{
	Method:      "getBroadcast",
	Name:        "Get broadcast",
	Description: "Retrieve a broadcast with its audience and content.",
	Parameters:  []tool.Parameter{keyParam("broadcast"), environmentParam},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			mc, err := management(c)
			if err != nil {
				return nil, err
			}
			return mc.GetBroadcast(ctx, environmentArg(input, cfg), stringArg(input, "broadcastKey"))
		}
	},
}

var listPartials = listing("listPartials", "List partials",
	"List the reusable template partials.", (*knock.Client).ListPartials)

var getPartial = tool.Descriptor{
	Method:      "getPartial",
	Name:        "Get partial",
	Description: "Retrieve a partial and its content.",
	Parameters:  []tool.Parameter{keyParam("partial"), environmentParam},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			mc, err := management(c)
			if err != nil {
				return nil, err
			}
			return mc.GetPartial(ctx, environmentArg(input, cfg), stringArg(input, "partialKey"))
		}
	},
}

var createOrUpdatePartial = tool.Descriptor{
	Method:      "createOrUpdatePartial",
	Name:        "Create or update partial",
	Description: "Create a partial or replace its content.",
	Parameters: []tool.Parameter{
		keyParam("partial"),
		{Name: "name", Type: "string", Description: "Partial name", Required: true},
		{Name: "type", Type: "string", Description: "Content type", Required: true, Enum: []string{"html", "markdown", "text", "json"}},
		{Name: "content", Type: "string", Description: "Partial content", Required: true},
		{Name: "description", Type: "string", Description: "Partial description"},
		environmentParam,
	},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			mc, err := management(c)
			if err != nil {
				return nil, err
			}
			partial := map[string]interface{}{
				"name":    stringArg(input, "name"),
				"type":    stringArg(input, "type"),
				"content": stringArg(input, "content"),
			}
			if desc := stringArg(input, "description"); desc != "" {
				partial["description"] = desc
			}
			return mc.UpsertPartial(ctx, environmentArg(input, cfg), stringArg(input, "partialKey"), partial)
		}
	},
}

var listEmailLayouts = listing("listEmailLayouts", "List email layouts",
	"List the email layouts that wrap email templates.", (*knock.Client).ListEmailLayouts)

var createOrUpdateEmailLayout = tool.Descriptor{
	Method:      "createOrUpdateEmailLayout",
	Name:        "Create or update email layout",
	Description: "Create an email layout or replace its HTML and text bodies. The HTML must contain {{ content }}.",
	Parameters: []tool.Parameter{
		keyParam("layout"),
		{Name: "name", Type: "string", Description: "Layout name", Required: true},
		{Name: "htmlLayout", Type: "string", Description: "HTML body containing {{ content }}", Required: true},
		{Name: "textLayout", Type: "string", Description: "Plain text body containing {{ content }}", Required: true},
		environmentParam,
	},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			mc, err := management(c)
			if err != nil {
				return nil, err
			}
			layout := map[string]interface{}{
				"name":        stringArg(input, "name"),
				"html_layout": stringArg(input, "htmlLayout"),
				"text_layout": stringArg(input, "textLayout"),
			}
			return mc.UpsertEmailLayout(ctx, environmentArg(input, cfg), stringArg(input, "layoutKey"), layout)
		}
	},
}

var listGuides = listing("listGuides", "List guides",
	"List in-app guides.", (*knock.Client).ListGuides)

var getGuide = tool.Descriptor{
	Method:      "getGuide",
	Name:        "Get guide",
	Description: "Retrieve an in-app guide with its steps and targeting.",
	Parameters:  []tool.Parameter{keyParam("guide"), environmentParam},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			mc, err := management(c)
			if err != nil {
				return nil, err
			}
			return mc.GetGuide(ctx, environmentArg(input, cfg), stringArg(input, "guideKey"))
		}
	},
}

func templatesCategory() registry.Category {
	return registry.Category{
		Name:        CategoryTemplates,
		Descriptors: []tool.Descriptor{listMessageTypes, getWorkflowStepTemplates},
		Buckets:     map[string][]string{BucketRead: {"listMessageTypes", "getWorkflowStepTemplates"}},
	}
}

func broadcastsCategory() registry.Category {
	return registry.Category{
		Name:        CategoryBroadcasts,
		Descriptors: []tool.Descriptor{listBroadcasts, getBroadcast},
		Buckets:     map[string][]string{BucketRead: {"listBroadcasts", "getBroadcast"}},
	}
}

func partialsCategory() registry.Category {
	return registry.Category{
		Name:        CategoryPartials,
		Descriptors: []tool.Descriptor{listPartials, getPartial, createOrUpdatePartial},
		Buckets: map[string][]string{
			BucketRead:   {"listPartials", "getPartial"},
			BucketManage: {"createOrUpdatePartial"},
		},
	}
}

func layoutsCategory() registry.Category {
	return registry.Category{
		Name:        CategoryLayouts,
		Descriptors: []tool.Descriptor{listEmailLayouts, createOrUpdateEmailLayout},
		Buckets: map[string][]string{
			BucketRead:   {"listEmailLayouts"},
			BucketManage: {"createOrUpdateEmailLayout"},
		},
	}
}

func guidesCategory() registry.Category {
	return registry.Category{
		Name:        CategoryGuides,
		Descriptors: []tool.Descriptor{listGuides, getGuide},
		Buckets:     map[string][]string{BucketRead: {"listGuides", "getGuide"}},
	}
}
