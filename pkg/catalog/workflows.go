package catalog

import (
	"context"
	"fmt"

	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/registry"
	"github.com/harun/knocktoolkit/pkg/tool"
)

var workflowKeyParam = tool.Parameter{
	Name:        "workflowKey",
	Type:        "string",
	Description: "The workflow key",
	Required:    true,
}

var listWorkflows = tool.Descriptor{
	Method:      "listWorkflows",
	Name:        "List workflows",
	Description: "List the workflows in an environment with their steps.",
	Parameters:  []tool.Parameter{environmentParam},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			mc, err := management(c)
			if err != nil {
				return nil, err
			}
			workflows, err := mc.ListWorkflows(ctx, environmentArg(input, cfg))
			if err != nil {
				return nil, err
			}
			out := make([]WorkflowSummary, 0, len(workflows))
			for _, wf := range workflows {
				out = append(out, SerializeWorkflow(wf))
			}
			return out, nil
		}
	},
}

var getWorkflow = tool.Descriptor{
	Method:      "getWorkflow",
	Name:        "Get workflow",
	Description: "Retrieve a workflow definition including its steps and trigger data schema.",
	Parameters:  []tool.Parameter{workflowKeyParam, environmentParam},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			mc, err := management(c)
			if err != nil {
				return nil, err
			}
			return mc.GetWorkflow(ctx, environmentArg(input, cfg), stringArg(input, "workflowKey"))
		}
	},
}

var createOrUpdateWorkflow = tool.Descriptor{
	Method:      "createOrUpdateWorkflow",
	Name:        "Create or update workflow",
	Description: "Create a workflow or replace its definition. Changes stay uncommitted until committed.",
	Parameters: []tool.Parameter{
		workflowKeyParam,
		{Name: "name", Type: "string", Description: "Workflow name", Required: true},
		{Name: "steps", Type: "array", Description: "Workflow steps as Knock step objects", Required: true, Items: map[string]interface{}{"type": "object"}},
		{Name: "description", Type: "string", Description: "Workflow description"},
		{Name: "categories", Type: "array", Description: "Preference categories", Items: map[string]interface{}{"type": "string"}},
		environmentParam,
	},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			mc, err := management(c)
			if err != nil {
				return nil, err
			}

			workflow := map[string]interface{}{
				"name":  stringArg(input, "name"),
				"steps": input["steps"],
			}
			if desc := stringArg(input, "description"); desc != "" {
				workflow["description"] = desc
			}
			if cats := stringsArg(input, "categories"); cats != nil {
				workflow["categories"] = cats
			}

			wf, err := mc.UpsertWorkflow(ctx, environmentArg(input, cfg), stringArg(input, "workflowKey"), workflow)
			if err != nil {
				return nil, err
			}
			return SerializeWorkflow(*wf), nil
		}
	},
}

var triggerParams = []tool.Parameter{
	{
		Name:        "recipients",
		Type:        "array",
		Description: "User ids to notify. Defaults to the configured user.",
		Items:       map[string]interface{}{"type": "string"},
	},
	{Name: "actor", Type: "string", Description: "User id of the actor performing the action"},
	{Name: "tenant", Type: "string", Description: "Tenant id to scope the run to. Defaults to the configured tenant."},
}

var triggerWorkflow = tool.Descriptor{
	Method:      "triggerWorkflow",
	Name:        "Trigger workflow",
	Description: "Trigger any workflow by key for one or more recipients.",
	Parameters: append([]tool.Parameter{workflowKeyParam}, append(triggerParams,
		tool.Parameter{Name: "data", Type: "object", Description: "Data made available to the workflow templates"},
	)...),
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return triggerHandler(c, cfg, "", nil)
	},
}

// triggerHandler triggers a fixed workflow, or the one named in the input when key is empty
func triggerHandler(c *knock.Client, cfg tool.Config, key string, data *dataSchema) tool.Handler {
	return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
		workflowKey := key
		if workflowKey == "" {
			workflowKey = stringArg(input, "workflowKey")
		}

		payload := mapArg(input, "data")
		if data != nil {
			if err := data.validate(payload); err != nil {
				return nil, err
			}
		}

		req := knock.TriggerRequest{
			Tenant: stringArg(input, "tenant"),
			Data:   payload,
		}
		if req.Tenant == "" {
			req.Tenant = cfg.TenantID
		}
		if actor := stringArg(input, "actor"); actor != "" {
			req.Actor = actor
		}
		for _, r := range stringsArg(input, "recipients") {
			req.Recipients = append(req.Recipients, r)
		}
		if len(req.Recipients) == 0 {
			if cfg.UserID == "" {
				return nil, fmt.Errorf("%w: recipients", tool.ErrMissingArgument)
			}
			req.Recipients = []interface{}{cfg.UserID}
		}

		pub, err := public(ctx, c, cfg)
		if err != nil {
			return nil, err
		}
		return pub.TriggerWorkflow(ctx, workflowKey, req)
	}
}

// WorkflowTriggerTool builds the dedicated trigger tool for one workflow
func WorkflowTriggerTool(res registry.Resource) tool.Descriptor {
	method := TriggerMethod(res.Key)
	name := res.Name
	if name == "" {
		name = res.Key
	}

	description := fmt.Sprintf("Trigger the %q workflow.", name)
	if res.Description != "" {
		description += " " + res.Description
	}

	schemaDoc, _ := res.Attributes[attrTriggerSchema].(map[string]interface{})
	data := newDataSchema(res.Key, schemaDoc)

	dataParam := tool.Parameter{
		Name:        "data",
		Type:        "object",
		Description: "Data made available to the workflow templates",
	}
	if schemaDoc != nil {
		dataParam.Schema = schemaDoc
		dataParam.Required = requiresData(schemaDoc)
	}

	params := append(append([]tool.Parameter{}, triggerParams...), dataParam)

	return tool.Descriptor{
		Method:      method,
		Name:        "Trigger " + name,
		Description: description,
		Parameters:  params,
		Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
			return triggerHandler(c, cfg, res.Key, data)
		},
	}
}

func requiresData(schemaDoc map[string]interface{}) bool {
	switch required := schemaDoc["required"].(type) {
	case []interface{}:
		return len(required) > 0
	case []string:
		return len(required) > 0
	}
	return false
}

func workflowsCategory() registry.Category {
	return registry.Category{
		Name:        CategoryWorkflows,
		Descriptors: []tool.Descriptor{listWorkflows, getWorkflow, createOrUpdateWorkflow, triggerWorkflow},
		Buckets: map[string][]string{
			BucketRead:    {"listWorkflows", "getWorkflow"},
			BucketManage:  {"createOrUpdateWorkflow"},
			BucketTrigger: {"triggerWorkflow"},
		},
		Dynamic: map[string]registry.DynamicBucket{
			BucketTrigger: {Kind: KindWorkflows, Build: WorkflowTriggerTool},
		},
	}
}
