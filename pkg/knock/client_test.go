package knock_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/knock/knocktest"
)

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := knock.NewClient("")
	assert.ErrorIs(t, err, knock.ErrMissingServiceToken)
}

func TestClient_ListWorkflows(t *testing.T) {
	srv := knocktest.NewServer(t)

	var calls int32
	srv.Handle(http.MethodGet, "/v1/workflows", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+knocktest.ServiceToken, r.Header.Get("Authorization"))
		assert.Equal(t, "production", r.URL.Query().Get("environment"))

		if atomic.AddInt32(&calls, 1) == 1 {
			knocktest.WriteJSON(w, http.StatusOK, map[string]interface{}{
				"entries":   []map[string]interface{}{{"key": "order-shipped", "name": "Order shipped"}},
				"page_info": map[string]interface{}{"after": "cursor_1"},
			})
			return
		}
		assert.Equal(t, "cursor_1", r.URL.Query().Get("after"))
		knocktest.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"entries":   []map[string]interface{}{{"key": "welcome", "name": "Welcome"}},
			"page_info": map[string]interface{}{},
		})
	})

	c := srv.Client(t)
	workflows, err := c.ListWorkflows(context.Background(), "production")
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	assert.Equal(t, "order-shipped", workflows[0].Key)
	assert.Equal(t, "welcome", workflows[1].Key)
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("client errors are not retried", func(t *testing.T) {
		srv := knocktest.NewServer(t)
		var calls int32
		srv.Handle(http.MethodGet, "/v1/workflows/missing", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			knocktest.WriteJSON(w, http.StatusNotFound, map[string]interface{}{
				"code": "resource_missing", "message": "workflow not found", "status": 404,
			})
		})

		_, err := srv.Client(t).GetWorkflow(ctx, "development", "missing")
		require.Error(t, err)

		var apiErr *knock.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, "resource_missing", apiErr.Code)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("server errors are retried", func(t *testing.T) {
		srv := knocktest.NewServer(t)
		var calls int32
		srv.Handle(http.MethodGet, "/v1/channels", func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				knocktest.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"message": "unavailable"})
				return
			}
			knocktest.WriteJSON(w, http.StatusOK, map[string]interface{}{
				"entries": []map[string]interface{}{{"key": "email", "type": "email"}},
			})
		})

		channels, err := srv.Client(t).ListChannels(ctx)
		require.NoError(t, err)
		assert.Len(t, channels, 1)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("retries give up after the limit", func(t *testing.T) {
		srv := knocktest.NewServer(t)
		srv.JSON(http.MethodGet, "/v1/channels", http.StatusTooManyRequests, map[string]interface{}{"message": "slow down"})

		_, err := srv.Client(t).ListChannels(ctx)
		var apiErr *knock.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.True(t, apiErr.Retryable())
		assert.Len(t, srv.Requests(), 3)
	})
}

func TestClient_Public(t *testing.T) {
	srv := knocktest.NewServer(t)
	srv.Handle(http.MethodGet, "/v1/users/u_1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test_exchanged", r.Header.Get("Authorization"))
		knocktest.WriteJSON(w, http.StatusOK, map[string]interface{}{"id": "u_1", "name": "Ada"})
	})

	c := srv.Client(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pub, err := c.Public(ctx, "development")
			assert.NoError(t, err)
			assert.Equal(t, "development", pub.Environment())
		}()
	}
	wg.Wait()

	pub, err := c.Public(ctx, "")
	require.NoError(t, err)
	user, err := pub.GetUser(ctx, "u_1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user["name"])

	assert.Equal(t, 1, srv.Exchanges())

	_, err = c.Public(ctx, "production")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Exchanges())
}

func TestEnvironmentTrigger(t *testing.T) {
	srv := knocktest.NewServer(t)
	srv.JSON(http.MethodPost, "/v1/workflows/approve-tool-call/trigger", http.StatusOK, map[string]string{"workflow_run_id": "run_1"})

	trigger := srv.Client(t).Triggerer("development")
	resp, err := trigger.TriggerWorkflow(context.Background(), "approve-tool-call", knock.TriggerRequest{
		Recipients: []interface{}{"u_1"},
		Data:       map[string]interface{}{"k": "v"},
	})
	require.NoError(t, err)
	assert.Equal(t, "run_1", resp.WorkflowRunID)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []interface{}{"u_1"}, reqs[0].Body["recipients"])
	assert.Equal(t, map[string]interface{}{"k": "v"}, reqs[0].Body["data"])
}

func TestClient_PostRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("unkeyed trigger is sent once", func(t *testing.T) {
		srv := knocktest.NewServer(t)
		srv.JSON(http.MethodPost, "/v1/workflows/welcome/trigger", http.StatusBadGateway, map[string]interface{}{"message": "bad gateway"})

		_, err := srv.Client(t).Triggerer("development").TriggerWorkflow(ctx, "welcome", knock.TriggerRequest{
			Recipients: []interface{}{"u_1"},
		})
		var apiErr *knock.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)

		reqs := srv.Requests()
		require.Len(t, reqs, 1)
		assert.Empty(t, reqs[0].Header.Get("Idempotency-Key"))
	})

	t.Run("keyed trigger is retried with the same key", func(t *testing.T) {
		srv := knocktest.NewServer(t)
		var calls int32
		srv.Handle(http.MethodPost, "/v1/workflows/welcome/trigger", func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				knocktest.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"message": "unavailable"})
				return
			}
			knocktest.WriteJSON(w, http.StatusOK, map[string]string{"workflow_run_id": "run_2"})
		})

		resp, err := srv.Client(t).Triggerer("development").TriggerWorkflow(ctx, "welcome", knock.TriggerRequest{
			Recipients:     []interface{}{"u_1"},
			IdempotencyKey: "call_abc",
		})
		require.NoError(t, err)
		assert.Equal(t, "run_2", resp.WorkflowRunID)

		reqs := srv.Requests()
		require.Len(t, reqs, 2)
		for _, r := range reqs {
			assert.Equal(t, "call_abc", r.Header.Get("Idempotency-Key"))
			assert.NotContains(t, r.Body, "IdempotencyKey")
		}
	})
}
