package webhook

import (
	"context"
	"time"

	"github.com/harun/knocktoolkit/pkg/hitl"
)

// Delivery outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeDeclined  = "declined"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Resumer turns an interaction event back into a finished or declined tool
// call. *toolkit.Toolkit satisfies it.
type Resumer interface {
	HandleMessageInteraction(body []byte) (*hitl.InteractionResult, bool, error)
	ResumeInteraction(ctx context.Context, interaction *hitl.InteractionResult) (*hitl.Completed, error)
}

// ResultSink receives every resumed or declined call, typically to feed it back to the agent
type ResultSink func(ctx context.Context, interaction *hitl.InteractionResult, completed *hitl.Completed) error

// Observer records delivery outcomes
type Observer interface {
	ObserveDelivery(outcome string, duration time.Duration)
}

// DeliveryResponse is the JSON body returned for a handled delivery
type DeliveryResponse struct {
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Method     string `json:"method,omitempty"`
	Decision   string `json:"decision,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DeliveryMetrics summarises deliveries with one outcome
type DeliveryMetrics struct {
	Outcome             string  `json:"outcome"`
	Count               int64   `json:"count"`
	AverageResponseTime float64 `json:"averageResponseTime"` // milliseconds
	LastDeliveryAt      int64   `json:"lastDeliveryAt,omitempty"`
}

// ServerOptions configures the webhook server
type ServerOptions struct {
	Port               int           // Server port (default: 3001)
	Host               string        // Server host (default: "0.0.0.0")
	Path               string        // Event path (default: "/webhooks/knock")
	Secret             string        // Signing secret; empty disables verification (callers must opt in)
	SignatureTolerance time.Duration // Accepted clock skew for signed timestamps (default: 5m)
	RateLimitPerMinute int           // Requests per minute per IP (default: 100)
	HandlerTimeout     time.Duration // Time allowed to resume one call (default: 30s)
	MaxBodyBytes       int64         // Largest accepted body (default: 1 MiB)
}
