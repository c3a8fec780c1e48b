package catalog

import (
	"context"

	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/registry"
	"github.com/harun/knocktoolkit/pkg/tool"
)

var messageIDParam = tool.Parameter{
	Name:        "messageId",
	Type:        "string",
	Description: "The message id",
	Required:    true,
}

var getMessage = tool.Descriptor{
	Method:      "getMessage",
	Name:        "Get message",
	Description: "Retrieve a message's delivery and engagement status.",
	Parameters:  []tool.Parameter{messageIDParam},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			pub, err := public(ctx, c, cfg)
			if err != nil {
				return nil, err
			}
			msg, err := pub.GetMessage(ctx, stringArg(input, "messageId"))
			if err != nil {
				return nil, err
			}
			return SerializeMessage(msg), nil
		}
	},
}

var getMessageContent = tool.Descriptor{
	Method:      "getMessageContent",
	Name:        "Get message content",
	Description: "Retrieve the rendered content that was sent for a message.",
	Parameters:  []tool.Parameter{messageIDParam},
	Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
		return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			pub, err := public(ctx, c, cfg)
			if err != nil {
				return nil, err
			}
			return pub.GetMessageContent(ctx, stringArg(input, "messageId"))
		}
	},
}

func messagesCategory() registry.Category {
	return registry.Category{
		Name:        CategoryMessages,
		Descriptors: []tool.Descriptor{getMessage, getMessageContent},
		Buckets: map[string][]string{
			BucketRead: {"getMessage", "getMessageContent"},
		},
	}
}
