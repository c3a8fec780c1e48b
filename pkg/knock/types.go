package knock

// Record is a Knock resource passed through without a fixed shape
type Record map[string]interface{}

// PageInfo is the cursor block of a paginated response
type PageInfo struct {
	After    string `json:"after,omitempty"`
	Before   string `json:"before,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

type page[T any] struct {
	Entries  []T      `json:"entries"`
	PageInfo PageInfo `json:"page_info"`
}

// Workflow is a workflow definition from the management API
type Workflow struct {
	Key                   string                   `json:"key"`
	Name                  string                   `json:"name"`
	Description           string                   `json:"description,omitempty"`
	Active                bool                     `json:"active"`
	Valid                 bool                     `json:"valid"`
	Categories            []string                 `json:"categories,omitempty"`
	Environment           string                   `json:"environment,omitempty"`
	Steps                 []map[string]interface{} `json:"steps,omitempty"`
	TriggerDataJSONSchema map[string]interface{}   `json:"trigger_data_json_schema,omitempty"`
	CreatedAt             string                   `json:"created_at,omitempty"`
	UpdatedAt             string                   `json:"updated_at,omitempty"`
}

// Channel is a configured delivery channel
type Channel struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Provider string `json:"provider"`
}

// Environment is a Knock account environment
type Environment struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Order int    `json:"order"`
	Owner string `json:"owner,omitempty"`
}

// TriggerRequest is the body of a workflow trigger
type TriggerRequest struct {
	Recipients      []interface{}          `json:"recipients,omitempty"`
	Actor           interface{}            `json:"actor,omitempty"`
	Tenant          string                 `json:"tenant,omitempty"`
	Data            map[string]interface{} `json:"data,omitempty"`
	CancellationKey string                 `json:"cancellation_key,omitempty"`
	// IdempotencyKey is sent as a header; Knock ignores repeated triggers with the same key
	IdempotencyKey string `json:"-"`
}

// TriggerResponse identifies the workflow run a trigger started
type TriggerResponse struct {
	WorkflowRunID string `json:"workflow_run_id"`
}

// MessageListOptions filters a user's message feed
type MessageListOptions struct {
	PageSize int
	Workflow string
	Status   string
	Channel  string
}

// DocResult is one hit from the documentation search
type DocResult struct {
	Title   string `json:"title"`
	Path    string `json:"path"`
	Excerpt string `json:"excerpt,omitempty"`
}
