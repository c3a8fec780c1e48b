package hitl

import "errors"

const (
	// DeferredToolCallKey is the trigger data key that carries the deferred call
	DeferredToolCallKey = "__deferred_tool_call"

	// MessageInteractedEvent is the Knock event type emitted when a recipient acts on a message
	MessageInteractedEvent = "message.interacted"

	// StatusPending marks a call that is waiting for a person
	StatusPending = "pending"

	// StatusCompleted marks a call that ran after approval
	StatusCompleted = "completed"

	// StatusDeclined marks a call the person did not approve. The tool never ran.
	StatusDeclined = "declined"
)

var (
	// ErrDeferredCallNotFound is returned when resuming a method that was never wrapped
	ErrDeferredCallNotFound = errors.New("deferred tool call not found")

	// ErrWorkflowRequired is returned when a wrapper has no approval workflow
	ErrWorkflowRequired = errors.New("approval workflow key is required")

	// ErrTriggererRequired is returned when a wrapper has no way to trigger workflows
	ErrTriggererRequired = errors.New("workflow triggerer is required")
)

// CallExtra carries correlation data alongside a deferred call
type CallExtra struct {
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// DeferredToolCall is the serializable record of a call awaiting approval
type DeferredToolCall struct {
	Method string                 `json:"method"`
	Args   map[string]interface{} `json:"args"`
	Extra  CallExtra              `json:"extra"`
}

// Pending is returned to the agent instead of the real result
type Pending struct {
	Status        string `json:"status"`
	ToolCallID    string `json:"tool_call_id"`
	WorkflowRunID string `json:"workflow_run_id,omitempty"`
	Message       string `json:"message"`
}

// Completed is the outcome of resuming a deferred call
type Completed struct {
	Status     string      `json:"status"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	Method     string      `json:"method"`
	Decision   string      `json:"decision,omitempty"`
	Result     interface{} `json:"result"`
}
