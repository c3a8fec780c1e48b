package knock

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// PublicClient calls the Knock public API with an environment secret key
type PublicClient struct {
	environment string
	t           *transport
}

// Environment returns the environment this client is scoped to
func (p *PublicClient) Environment() string {
	return p.environment
}

// Public returns a public API client for the environment, exchanging the
// service token for an environment key on first use.
func (c *Client) Public(ctx context.Context, environment string) (*PublicClient, error) {
	if environment == "" {
		environment = DefaultEnvironment
	}

	return c.cache.GetOrCreate(cacheKey(c.serviceToken, environment), func() (*PublicClient, error) {
		key, err := c.exchangeAPIKey(ctx, environment)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain api key for %s: %w", environment, err)
		}

		c.logger.Debug().
			Str("environment", environment).
			Msg("Created public API client")

		return &PublicClient{
			environment: environment,
			t: &transport{
				baseURL:    c.apiBaseURL,
				token:      key,
				httpClient: c.httpClient,
				retry:      c.retry,
				logger:     c.logger,
			},
		}, nil
	})
}

func (c *Client) exchangeAPIKey(ctx context.Context, environment string) (string, error) {
	var out struct {
		APIKey string `json:"api_key"`
	}
	body := map[string]string{"environment": environment}
	if err := c.transport().do(ctx, http.MethodPost, "/v1/api_keys/exchange", nil, body, &out); err != nil {
		return "", err
	}
	if out.APIKey == "" {
		return "", fmt.Errorf("empty api key in exchange response")
	}
	return out.APIKey, nil
}

func (p *PublicClient) record(ctx context.Context, method, path string, query url.Values, body interface{}) (Record, error) {
	var out Record
	if err := p.t.do(ctx, method, path, query, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUser fetches a user
func (p *PublicClient) GetUser(ctx context.Context, userID string) (Record, error) {
	return p.record(ctx, http.MethodGet, escape("/v1/users/%s", userID), nil, nil)
}

// IdentifyUser creates or updates a user's properties
func (p *PublicClient) IdentifyUser(ctx context.Context, userID string, props map[string]interface{}) (Record, error) {
	return p.record(ctx, http.MethodPut, escape("/v1/users/%s", userID), nil, props)
}

// GetUserPreferences fetches a user's preference set
func (p *PublicClient) GetUserPreferences(ctx context.Context, userID, preferenceSet string) (Record, error) {
	if preferenceSet == "" {
		preferenceSet = "default"
	}
	return p.record(ctx, http.MethodGet, escape("/v1/users/%s/preferences/%s", userID, preferenceSet), nil, nil)
}

// SetUserPreferences replaces a user's preference set
func (p *PublicClient) SetUserPreferences(ctx context.Context, userID, preferenceSet string, prefs map[string]interface{}) (Record, error) {
	if preferenceSet == "" {
		preferenceSet = "default"
	}
	return p.record(ctx, http.MethodPut, escape("/v1/users/%s/preferences/%s", userID, preferenceSet), nil, prefs)
}

// ListUserMessages returns one page of a user's messages
func (p *PublicClient) ListUserMessages(ctx context.Context, userID string, opts MessageListOptions) ([]Record, error) {
	query := url.Values{}
	if opts.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	if opts.Workflow != "" {
		query.Set("source", opts.Workflow)
	}
	if opts.Status != "" {
		query.Set("status[]", opts.Status)
	}
	if opts.Channel != "" {
		query.Set("channel_id", opts.Channel)
	}

	var out page[Record]
	if err := p.t.do(ctx, http.MethodGet, escape("/v1/users/%s/messages", userID), query, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// ListTenants lists tenants
func (p *PublicClient) ListTenants(ctx context.Context) ([]Record, error) {
	return listAll[Record](ctx, p.t, "/v1/tenants", nil)
}

// GetTenant fetches a tenant
func (p *PublicClient) GetTenant(ctx context.Context, tenantID string) (Record, error) {
	return p.record(ctx, http.MethodGet, escape("/v1/tenants/%s", tenantID), nil, nil)
}

// SetTenant creates or updates a tenant
func (p *PublicClient) SetTenant(ctx context.Context, tenantID string, props map[string]interface{}) (Record, error) {
	return p.record(ctx, http.MethodPut, escape("/v1/tenants/%s", tenantID), nil, props)
}

// GetMessage fetches a message
func (p *PublicClient) GetMessage(ctx context.Context, messageID string) (Record, error) {
	return p.record(ctx, http.MethodGet, escape("/v1/messages/%s", messageID), nil, nil)
}

// GetMessageContent fetches the rendered content of a message
func (p *PublicClient) GetMessageContent(ctx context.Context, messageID string) (Record, error) {
	return p.record(ctx, http.MethodGet, escape("/v1/messages/%s/content", messageID), nil, nil)
}

// ListObjects lists the objects in a collection
func (p *PublicClient) ListObjects(ctx context.Context, collection string) ([]Record, error) {
	return listAll[Record](ctx, p.t, escape("/v1/objects/%s", collection), nil)
}

// GetObject fetches an object
func (p *PublicClient) GetObject(ctx context.Context, collection, objectID string) (Record, error) {
	return p.record(ctx, http.MethodGet, escape("/v1/objects/%s/%s", collection, objectID), nil, nil)
}

// SetObject creates or updates an object
func (p *PublicClient) SetObject(ctx context.Context, collection, objectID string, props map[string]interface{}) (Record, error) {
	return p.record(ctx, http.MethodPut, escape("/v1/objects/%s/%s", collection, objectID), nil, props)
}

// AddSubscriptions subscribes recipients to an object
func (p *PublicClient) AddSubscriptions(ctx context.Context, collection, objectID string, recipients []string, props map[string]interface{}) ([]Record, error) {
	body := map[string]interface{}{"recipients": recipients}
	if props != nil {
		body["properties"] = props
	}
	var out []Record
	if err := p.t.do(ctx, http.MethodPost, escape("/v1/objects/%s/%s/subscriptions", collection, objectID), nil, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSubscriptions unsubscribes recipients from an object
func (p *PublicClient) DeleteSubscriptions(ctx context.Context, collection, objectID string, recipients []string) ([]Record, error) {
	body := map[string]interface{}{"recipients": recipients}
	var out []Record
	if err := p.t.do(ctx, http.MethodDelete, escape("/v1/objects/%s/%s/subscriptions", collection, objectID), nil, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TriggerWorkflow starts a workflow run
func (p *PublicClient) TriggerWorkflow(ctx context.Context, workflowKey string, req TriggerRequest) (*TriggerResponse, error) {
	var opts []requestOption
	if req.IdempotencyKey != "" {
		opts = append(opts, withIdempotencyKey(req.IdempotencyKey))
	}

	var out TriggerResponse
	if err := p.t.do(ctx, http.MethodPost, escape("/v1/workflows/%s/trigger", workflowKey), nil, req, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnvironmentTrigger triggers workflows in a fixed environment
type EnvironmentTrigger struct {
	client      *Client
	environment string
}

// Triggerer returns a workflow trigger bound to an environment
func (c *Client) Triggerer(environment string) *EnvironmentTrigger {
	return &EnvironmentTrigger{client: c, environment: environment}
}

// TriggerWorkflow starts a workflow run in the bound environment
func (t *EnvironmentTrigger) TriggerWorkflow(ctx context.Context, workflowKey string, req TriggerRequest) (*TriggerResponse, error) {
	pub, err := t.client.Public(ctx, t.environment)
	if err != nil {
		return nil, err
	}
	return pub.TriggerWorkflow(ctx, workflowKey, req)
}
