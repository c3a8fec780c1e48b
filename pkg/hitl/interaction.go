package hitl

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// Event is a Knock outbound webhook event
type Event struct {
	ID        string                 `json:"id,omitempty"`
	Type      string                 `json:"type"`
	CreatedAt time.Time              `json:"created_at"`
	Data      json.RawMessage        `json:"data"`
	EventData map[string]interface{} `json:"event_data,omitempty"`
}

// InteractionContext locates the message a person interacted with
type InteractionContext struct {
	MessageID string    `json:"message_id"`
	ChannelID string    `json:"channel_id"`
	Timestamp time.Time `json:"timestamp"`
}

// InteractionResult is a parsed response to an approval message
type InteractionResult struct {
	Workflow    string                 `json:"workflow"`
	Interaction map[string]interface{} `json:"interaction"`
	ToolCall    DeferredToolCall       `json:"tool_call"`
	Metadata    map[string]interface{} `json:"metadata"`
	Context     InteractionContext     `json:"context"`
}

// ParseInteraction extracts a deferred call from a message.interacted event.
// It reports false for any other event or a message without a deferred call.
func ParseInteraction(event Event) (*InteractionResult, bool) {
	if event.Type != MessageInteractedEvent || len(event.Data) == 0 {
		return nil, false
	}

	message := gjson.ParseBytes(event.Data)
	if !message.IsObject() {
		return nil, false
	}

	raw := message.Get("data." + DeferredToolCallKey)
	if !raw.IsObject() {
		return nil, false
	}

	var call DeferredToolCall
	if err := json.Unmarshal([]byte(raw.Raw), &call); err != nil || call.Method == "" {
		return nil, false
	}
	if call.Args == nil {
		call.Args = map[string]interface{}{}
	}

	// Remaining trigger data is the caller's metadata
	metadata := map[string]interface{}{}
	message.Get("data").ForEach(func(key, value gjson.Result) bool {
		if key.String() != DeferredToolCallKey {
			metadata[key.String()] = value.Value()
		}
		return true
	})

	interaction := event.EventData
	if interaction == nil {
		interaction = map[string]interface{}{}
	}

	return &InteractionResult{
		Workflow:    message.Get("source.key").String(),
		Interaction: interaction,
		ToolCall:    call,
		Metadata:    metadata,
		Context: InteractionContext{
			MessageID: message.Get("id").String(),
			ChannelID: message.Get("channel_id").String(),
			Timestamp: event.CreatedAt,
		},
	}, true
}

// ParseInteractionJSON decodes a raw webhook body and parses it
func ParseInteractionJSON(body []byte) (*InteractionResult, bool, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, false, err
	}
	result, ok := ParseInteraction(event)
	return result, ok, nil
}
