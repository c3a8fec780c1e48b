package catalog

import (
	"context"

	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/registry"
	"github.com/harun/knocktoolkit/pkg/tool"
)

var tenantIDParam = tool.Parameter{
	Name:        "tenantId",
	Type:        "string",
	Description: "The tenant id. Defaults to the configured tenant.",
}

var listTenants = tool.Descriptor{
	Method:      "listTenants",
	Name:        "List tenants",
	Description: "List the tenants in the environment.",
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			pub, err := public(ctx, c, cfg)
			if err != nil {
				return nil, err
			}
			return pub.ListTenants(ctx)
		}
	},
}

var getTenant = tool.Descriptor{
	Method:      "getTenant",
	Name:        "Get tenant",
	Description: "Retrieve a tenant and its settings.",
	Parameters:  []tool.Parameter{tenantIDParam},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			tenantID, err := stringArgOr(input, "tenantId", cfg.TenantID)
			if err != nil {
				return nil, err
			}
			pub, err := public(ctx, c, cfg)
			if err != nil {
				return nil, err
			}
			return pub.GetTenant(ctx, tenantID)
		}
	},
}

var setTenant = tool.Descriptor{
	Method:      "setTenant",
	Name:        "Set tenant",
	Description: "Create or update a tenant.",
	Parameters: []tool.Parameter{
		tenantIDParam,
		{Name: "name", Type: "string", Description: "Tenant display name"},
		{Name: "properties", Type: "object", Description: "Custom properties to store on the tenant"},
		{Name: "settings", Type: "object", Description: "Tenant settings such as branding and preference defaults"},
	},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			tenantID, err := stringArgOr(input, "tenantId", cfg.TenantID)
			if err != nil {
				return nil, err
			}

			props := map[string]interface{}{}
			for k, v := range mapArg(input, "properties") {
				props[k] = v
			}
			if name := stringArg(input, "name"); name != "" {
				props["name"] = name
			}
			if settings := mapArg(input, "settings"); settings != nil {
				props["settings"] = settings
			}

			pub, err := public(ctx, c, cfg)
			if err != nil {
				return nil, err
			}
			return pub.SetTenant(ctx, tenantID, props)
		}
	},
}

func tenantsCategory() registry.Category {
	return registry.Category{
		Name:        CategoryTenants,
		Descriptors: []tool.Descriptor{listTenants, getTenant, setTenant},
		Buckets: map[string][]string{
			BucketRead:   {"listTenants", "getTenant"},
			BucketManage: {"setTenant"},
		},
	}
}
