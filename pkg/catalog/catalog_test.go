package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/knock/knocktest"
	"github.com/harun/knocktoolkit/pkg/permission"
	"github.com/harun/knocktoolkit/pkg/registry"
	"github.com/harun/knocktoolkit/pkg/tool"
)

func quiet() tool.BindOption {
	return tool.WithLogger(zerolog.New(io.Discard))
}

func TestRegistry(t *testing.T) {
	reg, err := Registry()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"users", "workflows", "tenants", "messages", "objects", "templates", "broadcasts",
		"channels", "environments", "commits", "partials", "layouts", "guides", "documentation",
	}, reg.Categories())

	for _, name := range reg.Categories() {
		buckets, err := reg.BucketsFor(name)
		require.NoError(t, err)
		assert.Contains(t, buckets, BucketRead, "category %s has no read bucket", name)
	}

	dyn, ok := reg.Dynamic(CategoryWorkflows, BucketTrigger)
	require.True(t, ok)
	assert.Equal(t, KindWorkflows, dyn.Kind)

	// Every descriptor must bind with a nil client
	for _, d := range reg.AllDescriptors() {
		_, err := d.Bind(nil, tool.Config{}, quiet())
		assert.NoError(t, err, d.Method)
	}
}

func TestTriggerMethod(t *testing.T) {
	tests := map[string]string{
		"order-shipped":         "trigger_order_shipped",
		"Welcome Email":         "trigger_welcome_email",
		"digest--weekly.v2":     "trigger_digest_weekly_v2",
		"-leading-and-trailing": "trigger_leading_and_trailing",
	}
	for key, want := range tests {
		assert.Equal(t, want, TriggerMethod(key), key)
	}
}

func TestSerializeMessage(t *testing.T) {
	summary := SerializeMessage(knock.Record{
		"id":                  "msg_1",
		"status":              "delivered",
		"engagement_statuses": []interface{}{"seen", "read"},
		"data":                map[string]interface{}{"order": "A1"},
		"metadata":            map[string]interface{}{"provider": "sendgrid"},
		"recipient":           "u_1",
		"channel_id":          "chan_1",
		"__cursor":            "abc",
	})

	raw, err := json.Marshal(summary)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"id", "status", "engagement_statuses", "data", "metadata"}, keys)
	assert.Equal(t, "delivered", summary.Status)
	assert.Equal(t, []string{"seen", "read"}, summary.EngagementStatuses)
}

func TestSerializeMessage_UnexpectedTypes(t *testing.T) {
	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = previous })

	summary := SerializeMessage(knock.Record{
		"id":       "msg_2",
		"status":   404,
		"metadata": map[string]interface{}{"provider": "sendgrid"},
	})

	assert.Equal(t, "msg_2", summary.ID)
	assert.Empty(t, summary.Status)
	assert.Equal(t, "sendgrid", summary.Metadata["provider"])

	logged := buf.String()
	assert.Contains(t, logged, `"level":"warn"`)
	assert.Contains(t, logged, `"id":"msg_2"`)
	assert.Contains(t, logged, "summary is partial")
}

func TestWorkflowTriggerTools(t *testing.T) {
	ctx := context.Background()
	srv := knocktest.NewServer(t)
	srv.JSON(http.MethodGet, "/v1/workflows", http.StatusOK, map[string]interface{}{
		"entries": []map[string]interface{}{
			{"key": "welcome", "name": "Welcome"},
			{
				"key":         "order-shipped",
				"name":        "Order shipped",
				"description": "Tell a customer their order left the warehouse.",
				"trigger_data_json_schema": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{"orderId": map[string]interface{}{"type": "string"}},
					"required":   []interface{}{"orderId"},
				},
			},
		},
	})
	srv.JSON(http.MethodPost, "/v1/workflows/order-shipped/trigger", http.StatusOK, map[string]string{"workflow_run_id": "run_42"})

	client := srv.Client(t)
	reg, err := Registry()
	require.NoError(t, err)

	resolver := permission.NewResolver(reg, permission.WithLogger(zerolog.New(io.Discard)))
	resolved, err := resolver.Resolve(ctx, permission.Grant{
		CategoryWorkflows: {BucketTrigger: permission.Keys("order-shipped")},
	}, NewResourceLister(client), "development")
	require.NoError(t, err)

	descs, ok := resolved.Category(CategoryWorkflows)
	require.True(t, ok)
	require.Len(t, descs, 1)

	d := descs[0]
	assert.Equal(t, "trigger_order_shipped", d.Method)
	assert.Contains(t, d.Description, "Order shipped")
	assert.Contains(t, d.Description, "warehouse")

	dataProp := d.Schema()["properties"].(map[string]interface{})["data"].(map[string]interface{})
	assert.Contains(t, dataProp, "properties")
	assert.Contains(t, d.Schema()["required"], "data")

	bound, err := d.Bind(client, tool.Config{UserID: "u_1", TenantID: "acme"}, quiet())
	require.NoError(t, err)

	t.Run("valid data triggers the workflow", func(t *testing.T) {
		result, err := bound.Invoke(ctx, map[string]interface{}{
			"data": map[string]interface{}{"orderId": "A1"},
		})
		require.NoError(t, err)

		resp, ok := result.(*knock.TriggerResponse)
		require.True(t, ok, "unexpected result %#v", result)
		assert.Equal(t, "run_42", resp.WorkflowRunID)

		var trigger *knocktest.Request
		reqs := srv.Requests()
		for i := range reqs {
			if reqs[i].Path == "/v1/workflows/order-shipped/trigger" {
				trigger = &reqs[i]
			}
		}
		require.NotNil(t, trigger)
		assert.Equal(t, []interface{}{"u_1"}, trigger.Body["recipients"])
		assert.Equal(t, "acme", trigger.Body["tenant"])
	})

	t.Run("data violating the workflow schema is rejected", func(t *testing.T) {
		result, err := bound.Invoke(ctx, map[string]interface{}{
			"data": map[string]interface{}{"orderId": 7},
		})
		require.NoError(t, err)
		require.True(t, tool.IsErrorResult(result))
		assert.Contains(t, result.(tool.ErrorResult).Error, "workflow schema")
	})
}

func TestResourceLister_UnsupportedKind(t *testing.T) {
	srv := knocktest.NewServer(t)
	_, err := NewResourceLister(srv.Client(t)).ListResources(context.Background(), "guides", "development")
	assert.Error(t, err)
}

func bindMethod(t *testing.T, c *knock.Client, cfg tool.Config, method string) *tool.Bound {
	t.Helper()
	reg, err := Registry()
	require.NoError(t, err)
	d, _, err := reg.Lookup(method)
	require.NoError(t, err)
	b, err := d.Bind(c, cfg, quiet())
	require.NoError(t, err)
	return b
}

func TestUserTools(t *testing.T) {
	ctx := context.Background()
	srv := knocktest.NewServer(t)
	srv.JSON(http.MethodGet, "/v1/users/u_1", http.StatusOK, map[string]interface{}{"id": "u_1", "name": "Ada"})
	srv.JSON(http.MethodPut, "/v1/users/u_2", http.StatusOK, map[string]interface{}{"id": "u_2"})
	srv.JSON(http.MethodGet, "/v1/users/u_1/messages", http.StatusOK, map[string]interface{}{
		"entries": []map[string]interface{}{{"id": "msg_1", "status": "sent", "recipient": "u_1"}},
	})
	client := srv.Client(t)

	t.Run("getUser defaults to the configured user", func(t *testing.T) {
		result, err := bindMethod(t, client, tool.Config{UserID: "u_1"}, "getUser").Invoke(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, "Ada", result.(knock.Record)["name"])
	})

	t.Run("getUser without any user id", func(t *testing.T) {
		result, err := bindMethod(t, client, tool.Config{}, "getUser").Invoke(ctx, nil)
		require.NoError(t, err)
		require.True(t, tool.IsErrorResult(result))
		assert.Contains(t, result.(tool.ErrorResult).Error, "userId")
	})

	t.Run("getUser for a missing user", func(t *testing.T) {
		result, err := bindMethod(t, client, tool.Config{}, "getUser").Invoke(ctx, map[string]interface{}{"userId": "ghost"})
		require.NoError(t, err)
		require.True(t, tool.IsErrorResult(result))
		assert.Equal(t, tool.ErrorMessage, result.(tool.ErrorResult).Message)
	})

	t.Run("createOrUpdateUser maps fields", func(t *testing.T) {
		_, err := bindMethod(t, client, tool.Config{}, "createOrUpdateUser").Invoke(ctx, map[string]interface{}{
			"userId":           "u_2",
			"phoneNumber":      "+15555550100",
			"customProperties": map[string]interface{}{"plan": "pro"},
		})
		require.NoError(t, err)

		var put *knocktest.Request
		reqs := srv.Requests()
		for i := range reqs {
			if reqs[i].Method == http.MethodPut && reqs[i].Path == "/v1/users/u_2" {
				put = &reqs[i]
			}
		}
		require.NotNil(t, put)
		assert.Equal(t, map[string]interface{}{"phone_number": "+15555550100", "plan": "pro"}, put.Body)
	})

	t.Run("getUserMessages serializes messages", func(t *testing.T) {
		result, err := bindMethod(t, client, tool.Config{UserID: "u_1"}, "getUserMessages").Invoke(ctx, map[string]interface{}{"pageSize": 5})
		require.NoError(t, err)

		messages, ok := result.([]MessageSummary)
		require.True(t, ok)
		require.Len(t, messages, 1)
		assert.Equal(t, "msg_1", messages[0].ID)
	})
}

func TestManagementTools(t *testing.T) {
	ctx := context.Background()
	srv := knocktest.NewServer(t)
	srv.JSON(http.MethodGet, "/v1/environments", http.StatusOK, map[string]interface{}{
		"entries": []map[string]interface{}{{"slug": "development", "name": "Development"}, {"slug": "production", "name": "Production"}},
	})
	srv.JSON(http.MethodGet, "/v1/workflows/order-shipped", http.StatusOK, map[string]interface{}{
		"key": "order-shipped",
		"steps": []map[string]interface{}{
			{"ref": "email_1", "type": "channel", "channel_key": "postmark", "template": map[string]interface{}{"subject": "Shipped"}},
			{"ref": "delay_1", "type": "delay"},
		},
	})
	client := srv.Client(t)

	t.Run("listEnvironments", func(t *testing.T) {
		result, err := bindMethod(t, client, tool.Config{}, "listEnvironments").Invoke(ctx, nil)
		require.NoError(t, err)
		envs, ok := result.([]knock.Environment)
		require.True(t, ok)
		assert.Len(t, envs, 2)
	})

	t.Run("getWorkflowStepTemplates keeps steps with templates", func(t *testing.T) {
		result, err := bindMethod(t, client, tool.Config{}, "getWorkflowStepTemplates").Invoke(ctx, map[string]interface{}{"workflowKey": "order-shipped"})
		require.NoError(t, err)
		templates, ok := result.([]map[string]interface{})
		require.True(t, ok)
		require.Len(t, templates, 1)
		assert.Equal(t, "email_1", templates[0]["ref"])
	})

	t.Run("nil client is reported", func(t *testing.T) {
		result, err := bindMethod(t, nil, tool.Config{}, "listChannels").Invoke(ctx, nil)
		require.NoError(t, err)
		assert.True(t, tool.IsErrorResult(result))
	})
}

func TestWorkflowTriggerTool_WithoutSchema(t *testing.T) {
	d := WorkflowTriggerTool(registry.Resource{Key: "welcome"})
	assert.Equal(t, "trigger_welcome", d.Method)
	assert.NoError(t, d.Check())
	_, hasRequired := d.Schema()["required"]
	assert.False(t, hasRequired)
}
