package knock

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const maxPages = 50

// listAll follows page_info.after until the listing is exhausted
func listAll[T any](ctx context.Context, t *transport, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}

	var all []T
	for i := 0; i < maxPages; i++ {
		var p page[T]
		if err := t.do(ctx, http.MethodGet, path, query, nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Entries...)
		if p.PageInfo.After == "" {
			break
		}
		query.Set("after", p.PageInfo.After)
	}

	return all, nil
}

func envQuery(environment string) url.Values {
	if environment == "" {
		environment = DefaultEnvironment
	}
	return url.Values{"environment": {environment}}
}

// ListWorkflows lists every workflow in an environment
func (c *Client) ListWorkflows(ctx context.Context, environment string) ([]Workflow, error) {
	return listAll[Workflow](ctx, c.transport(), "/v1/workflows", envQuery(environment))
}

// GetWorkflow fetches one workflow by key
func (c *Client) GetWorkflow(ctx context.Context, environment, key string) (*Workflow, error) {
	var wf Workflow
	if err := c.transport().do(ctx, http.MethodGet, escape("/v1/workflows/%s", key), envQuery(environment), nil, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// UpsertWorkflow creates or replaces a workflow without committing it
func (c *Client) UpsertWorkflow(ctx context.Context, environment, key string, workflow map[string]interface{}) (*Workflow, error) {
	var resp struct {
		Workflow Workflow `json:"workflow"`
	}
	body := map[string]interface{}{"workflow": workflow}
	if err := c.transport().do(ctx, http.MethodPut, escape("/v1/workflows/%s", key), envQuery(environment), body, &resp); err != nil {
		return nil, err
	}
	return &resp.Workflow, nil
}

// ListChannels lists the account's channels
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	return listAll[Channel](ctx, c.transport(), "/v1/channels", nil)
}

// ListEnvironments lists the account's environments
func (c *Client) ListEnvironments(ctx context.Context) ([]Environment, error) {
	return listAll[Environment](ctx, c.transport(), "/v1/environments", nil)
}

// ListCommits lists commits in an environment, optionally filtered by promotion state
func (c *Client) ListCommits(ctx context.Context, environment string, promoted *bool) ([]Record, error) {
	query := envQuery(environment)
	if promoted != nil {
		query.Set("promoted", strconv.FormatBool(*promoted))
	}
	return listAll[Record](ctx, c.transport(), "/v1/commits", query)
}

// CommitAll commits every pending change in an environment
func (c *Client) CommitAll(ctx context.Context, environment, message string) (Record, error) {
	query := envQuery(environment)
	if message != "" {
		query.Set("commit_message", message)
	}
	var out Record
	if err := c.transport().do(ctx, http.MethodPut, "/v1/commits", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PromoteAll promotes every commit into the target environment
func (c *Client) PromoteAll(ctx context.Context, toEnvironment string) (Record, error) {
	if toEnvironment == "" {
		return nil, fmt.Errorf("target environment is required")
	}
	var out Record
	query := url.Values{"to_environment": {toEnvironment}}
	if err := c.transport().do(ctx, http.MethodPut, "/v1/commits/promote", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPartials lists template partials
func (c *Client) ListPartials(ctx context.Context, environment string) ([]Record, error) {
	return listAll[Record](ctx, c.transport(), "/v1/partials", envQuery(environment))
}

// GetPartial fetches one partial by key
func (c *Client) GetPartial(ctx context.Context, environment, key string) (Record, error) {
	var out Record
	if err := c.transport().do(ctx, http.MethodGet, escape("/v1/partials/%s", key), envQuery(environment), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertPartial creates or replaces a partial
func (c *Client) UpsertPartial(ctx context.Context, environment, key string, partial map[string]interface{}) (Record, error) {
	var out struct {
		Partial Record `json:"partial"`
	}
	body := map[string]interface{}{"partial": partial}
	if err := c.transport().do(ctx, http.MethodPut, escape("/v1/partials/%s", key), envQuery(environment), body, &out); err != nil {
		return nil, err
	}
	return out.Partial, nil
}

// ListEmailLayouts lists email layouts
func (c *Client) ListEmailLayouts(ctx context.Context, environment string) ([]Record, error) {
	return listAll[Record](ctx, c.transport(), "/v1/email_layouts", envQuery(environment))
}

// UpsertEmailLayout creates or replaces an email layout
func (c *Client) UpsertEmailLayout(ctx context.Context, environment, key string, layout map[string]interface{}) (Record, error) {
	var out struct {
		EmailLayout Record `json:"email_layout"`
	}
	body := map[string]interface{}{"email_layout": layout}
	if err := c.transport().do(ctx, http.MethodPut, escape("/v1/email_layouts/%s", key), envQuery(environment), body, &out); err != nil {
		return nil, err
	}
	return out.EmailLayout, nil
}

// ListGuides lists in-app guides
func (c *Client) ListGuides(ctx context.Context, environment string) ([]Record, error) {
	return listAll[Record](ctx, c.transport(), "/v1/guides", envQuery(environment))
}

// GetGuide fetches one guide by key
func (c *Client) GetGuide(ctx context.Context, environment, key string) (Record, error) {
	var out Record
	if err := c.transport().do(ctx, http.MethodGet, escape("/v1/guides/%s", key), envQuery(environment), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMessageTypes lists message types used by in-app templates
func (c *Client) ListMessageTypes(ctx context.Context, environment string) ([]Record, error) {
	return listAll[Record](ctx, c.transport(), "/v1/message_types", envQuery(environment))
}

// ListBroadcasts lists broadcasts
func (c *Client) ListBroadcasts(ctx context.Context, environment string) ([]Record, error) {
	return listAll[Record](ctx, c.transport(), "/v1/broadcasts", envQuery(environment))
}

// GetBroadcast fetches one broadcast by key
func (c *Client) GetBroadcast(ctx context.Context, environment, key string) (Record, error) {
	var out Record
	if err := c.transport().do(ctx, http.MethodGet, escape("/v1/broadcasts/%s", key), envQuery(environment), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchDocumentation queries the public documentation index
func (c *Client) SearchDocumentation(ctx context.Context, query string) ([]DocResult, error) {
	t := &transport{
		baseURL:    c.docsBaseURL,
		httpClient: c.httpClient,
		retry:      c.retry,
		logger:     c.logger,
	}
	var out struct {
		Results []DocResult `json:"results"`
	}
	if err := t.do(ctx, http.MethodGet, "/api/search", url.Values{"q": {query}}, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}
