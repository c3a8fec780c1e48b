package catalog

import (
	"context"

	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/registry"
	"github.com/harun/knocktoolkit/pkg/tool"
)

var (
	collectionParam = tool.Parameter{Name: "collection", Type: "string", Description: "Object collection, for example projects", Required: true}
	objectIDParam   = tool.Parameter{Name: "objectId", Type: "string", Description: "Object id within the collection", Required: true}
	recipientsParam = tool.Parameter{
		Name:        "userIds",
		Type:        "array",
		Description: "User ids to subscribe or unsubscribe",
		Required:    true,
		Items:       map[string]interface{}{"type": "string"},
	}
)

var listObjects = tool.Descriptor{
	Method:      "listObjects",
	Name:        "List objects",
	Description: "List the objects in a collection.",
	Parameters:  []tool.Parameter{collectionParam},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			pub, err := public(ctx, c, cfg)
			if err != nil {
				return nil, err
			}
			return pub.ListObjects(ctx, stringArg(input, "collection"))
		}
	},
}

var getObject = tool.Descriptor{
	Method:      "getObject",
	Name:        "Get object",
	Description: "Retrieve an object and its properties.",
	Parameters:  []tool.Parameter{collectionParam, objectIDParam},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			pub, err := public(ctx, c, cfg)
			if err != nil {
				return nil, err
			}
			return pub.GetObject(ctx, stringArg(input, "collection"), stringArg(input, "objectId"))
		}
	},
}

var createOrUpdateObject = tool.Descriptor{
	Method:      "createOrUpdateObject",
	Name:        "Create or update object",
	Description: "Create an object or update its properties.",
	Parameters: []tool.Parameter{
		collectionParam,
		objectIDParam,
		{Name: "properties", Type: "object", Description: "Properties to store on the object", Required: true},
	},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			pub, err := public(ctx, c, cfg)
			if err != nil {
				return nil, err
			}
			return pub.SetObject(ctx, stringArg(input, "collection"), stringArg(input, "objectId"), mapArg(input, "properties"))
		}
	},
}

var subscribeUsersToObject = tool.Descriptor{
	Method:      "subscribeUsersToObject",
	Name:        "Subscribe users to object",
	Description: "Subscribe users to an object so they receive workflows triggered for it.",
	Parameters: []tool.Parameter{
		collectionParam,
		objectIDParam,
		recipientsParam,
		{Name: "properties", Type: "object", Description: "Properties stored on each subscription"},
	},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			pub, err := public(ctx, c, cfg)
			if err != nil {
				return nil, err
			}
			return pub.AddSubscriptions(ctx, stringArg(input, "collection"), stringArg(input, "objectId"),
				stringsArg(input, "userIds"), mapArg(input, "properties"))
		}
	},
}

var unsubscribeUsersFromObject = tool.Descriptor{
	Method:      "unsubscribeUsersFromObject",
	Name:        "Unsubscribe users from object",
	Description: "Remove users' subscriptions to an object.",
	Parameters:  []tool.Parameter{collectionParam, objectIDParam, recipientsParam},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			pub, err := public(ctx, c, cfg)
			if err != nil {
				return nil, err
			}
			return pub.DeleteSubscriptions(ctx, stringArg(input, "collection"), stringArg(input, "objectId"), stringsArg(input, "userIds"))
		}
	},
}

func objectsCategory() registry.Category {
	return registry.Category{
		Name: CategoryObjects,
		Descriptors: []tool.Descriptor{
			listObjects, getObject, createOrUpdateObject, subscribeUsersToObject, unsubscribeUsersFromObject,
		},
		Buckets: map[string][]string{
			BucketRead:   {"listObjects", "getObject"},
			BucketManage: {"createOrUpdateObject", "subscribeUsersToObject", "unsubscribeUsersFromObject"},
		},
	}
}
