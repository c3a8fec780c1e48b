package catalog

import (
	"context"
	"errors"

	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/registry"
	"github.com/harun/knocktoolkit/pkg/tool"
)

var errNoClient = errors.New("knock client is not configured")

// public returns the public API client for the configured environment
func public(ctx context.Context, c *knock.Client, cfg tool.Config) (*knock.PublicClient, error) {
	if c == nil {
		return nil, errNoClient
	}
	return c.Public(ctx, cfg.EnvironmentOrDefault())
}

func management(c *knock.Client) (*knock.Client, error) {
	if c == nil {
		return nil, errNoClient
	}
	return c, nil
}

var userIDParam = tool.Parameter{
	Name:        "userId",
	Type:        "string",
	Description: "The user id. Defaults to the configured user.",
}

var getUser = tool.Descriptor{
	Method:      "getUser",
	Name:        "Get user",
	Description: "Retrieve a user's profile and custom properties.",
	Parameters:  []tool.Parameter{userIDParam},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			userID, err := stringArgOr(input, "userId", cfg.UserID)
			if err != nil {
				return nil, err
			}
			pub, err := public(ctx, c, cfg)
			if err != nil {
				return nil, err
			}
			return pub.GetUser(ctx, userID)
		}
	},
}

var createOrUpdateUser = tool.Descriptor{
	Method:      "createOrUpdateUser",
	Name:        "Create or update user",
	Description: "Create a user or update their properties. Only the supplied properties change.",
	Parameters: []tool.Parameter{
		userIDParam,
		{Name: "email", Type: "string", Description: "Email address"},
		{Name: "name", Type: "string", Description: "Display name"},
		{Name: "phoneNumber", Type: "string", Description: "Phone number in E.164 format"},
		{Name: "timezone", Type: "string", Description: "IANA timezone, for example America/New_York"},
		{Name: "customProperties", Type: "object", Description: "Additional properties to store on the user"},
	},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			userID, err := stringArgOr(input, "userId", cfg.UserID)
			if err != nil {
				return nil, err
			}

			props := map[string]interface{}{}
			for k, v := range mapArg(input, "customProperties") {
				props[k] = v
			}
			for param, field := range map[string]string{
				"email": "email", "name": "name", "phoneNumber": "phone_number", "timezone": "timezone",
			} {
				if v := stringArg(input, param); v != "" {
					props[field] = v
				}
			}

			pub, err := public(ctx, c, cfg)
			if err != nil {
				return nil, err
			}
			return pub.IdentifyUser(ctx, userID, props)
		}
	},
}

var getUserPreferences = tool.Descriptor{
	Method:      "getUserPreferences",
	Name:        "Get user preferences",
	Description: "Retrieve a user's notification preferences.",
	Parameters: []tool.Parameter{
		userIDParam,
		{Name: "preferenceSetId", Type: "string", Description: "Preference set id", Default: "default"},
	},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			userID, err := stringArgOr(input, "userId", cfg.UserID)
			if err != nil {
				return nil, err
			}
			pub, err := public(ctx, c, cfg)
			if err != nil {
				return nil, err
			}
			return pub.GetUserPreferences(ctx, userID, stringArg(input, "preferenceSetId"))
		}
	},
}

var setUserPreferences = tool.Descriptor{
	Method:      "setUserPreferences",
	Name:        "Set user preferences",
	Description: "Replace a user's notification preferences. Pass workflows, categories and channel_types as Knock preference objects.",
	Parameters: []tool.Parameter{
		userIDParam,
		{Name: "preferenceSetId", Type: "string", Description: "Preference set id", Default: "default"},
		{Name: "workflows", Type: "object", Description: "Per workflow preferences keyed by workflow key"},
		{Name: "categories", Type: "object", Description: "Per category preferences keyed by category"},
		{Name: "channelTypes", Type: "object", Description: "Channel type preferences, for example {\"email\": false}"},
	},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			userID, err := stringArgOr(input, "userId", cfg.UserID)
			if err != nil {
				return nil, err
			}

			prefs := map[string]interface{}{}
			if v := mapArg(input, "workflows"); v != nil {
				prefs["workflows"] = v
			}
			if v := mapArg(input, "categories"); v != nil {
				prefs["categories"] = v
			}
			if v := mapArg(input, "channelTypes"); v != nil {
				prefs["channel_types"] = v
			}

			pub, err := public(ctx, c, cfg)
			if err != nil {
				return nil, err
			}
			return pub.SetUserPreferences(ctx, userID, stringArg(input, "preferenceSetId"), prefs)
		}
	},
}

var getUserMessages = tool.Descriptor{
	Method:      "getUserMessages",
	Name:        "Get user messages",
	Description: "List the most recent messages sent to a user, optionally filtered by workflow, status or channel.",
	Parameters: []tool.Parameter{
		userIDParam,
		{Name: "pageSize", Type: "integer", Description: "Number of messages to return", Default: 10},
		{Name: "workflowKey", Type: "string", Description: "Only messages from this workflow"},
		{Name: "status", Type: "string", Description: "Delivery status filter", Enum: []string{"queued", "sent", "delivered", "delivery_attempted", "undelivered", "not_sent", "bounced"}},
		{Name: "channelId", Type: "string", Description: "Only messages sent through this channel"},
	},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			userID, err := stringArgOr(input, "userId", cfg.UserID)
			if err != nil {
				return nil, err
			}
			pub, err := public(ctx, c, cfg)
			if err != nil {
				return nil, err
			}
			messages, err := pub.ListUserMessages(ctx, userID, knock.MessageListOptions{
				PageSize: intArg(input, "pageSize", 10),
				Workflow: stringArg(input, "workflowKey"),
				Status:   stringArg(input, "status"),
				Channel:  stringArg(input, "channelId"),
			})
			if err != nil {
				return nil, err
			}
			return SerializeMessages(messages), nil
		}
	},
}

func usersCategory() registry.Category {
	return registry.Category{
		Name: CategoryUsers,
		Descriptors: []tool.Descriptor{
			getUser, createOrUpdateUser, getUserPreferences, setUserPreferences, getUserMessages,
		},
		Buckets: map[string][]string{
			BucketRead:   {"getUser", "getUserPreferences", "getUserMessages"},
			BucketManage: {"createOrUpdateUser", "setUserPreferences"},
		},
	}
}
