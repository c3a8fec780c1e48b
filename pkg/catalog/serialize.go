package catalog

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/harun/knocktoolkit/pkg/knock"
)

// MessageSummary is the trimmed view of a message handed to agents
type MessageSummary struct {
	ID                 string                 `json:"id"`
	Status             string                 `json:"status"`
	EngagementStatuses []string               `json:"engagement_statuses"`
	Data               map[string]interface{} `json:"data"`
	Metadata           map[string]interface{} `json:"metadata"`
}

// SerializeMessage keeps only the fields an agent needs from a message.
// Fields of an unexpected type are left empty and the rest are kept.
func SerializeMessage(r knock.Record) MessageSummary {
	var m MessageSummary
	raw, err := json.Marshal(r)
	if err != nil {
		log.Warn().Err(err).Interface("id", r["id"]).Msg("Failed to encode message")
		return m
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		log.Warn().Err(err).Str("id", m.ID).Msg("Message has unexpected field types, summary is partial")
	}
	return m
}

// SerializeMessages applies SerializeMessage to each record
func SerializeMessages(records []knock.Record) []MessageSummary {
	out := make([]MessageSummary, 0, len(records))
	for _, r := range records {
		out = append(out, SerializeMessage(r))
	}
	return out
}

// WorkflowSummary is the trimmed view of a workflow
type WorkflowSummary struct {
	Key         string        `json:"key"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Active      bool          `json:"active"`
	Valid       bool          `json:"valid"`
	Categories  []string      `json:"categories,omitempty"`
	Steps       []StepSummary `json:"steps,omitempty"`
}

// StepSummary identifies one step of a workflow
type StepSummary struct {
	Ref     string `json:"ref"`
	Type    string `json:"type"`
	Channel string `json:"channel_key,omitempty"`
}

// SerializeWorkflow keeps only the fields an agent needs from a workflow
func SerializeWorkflow(wf knock.Workflow) WorkflowSummary {
	s := WorkflowSummary{
		Key:         wf.Key,
		Name:        wf.Name,
		Description: wf.Description,
		Active:      wf.Active,
		Valid:       wf.Valid,
		Categories:  wf.Categories,
	}
	for _, step := range wf.Steps {
		ref, _ := step["ref"].(string)
		typ, _ := step["type"].(string)
		channel, _ := step["channel_key"].(string)
		s.Steps = append(s.Steps, StepSummary{Ref: ref, Type: typ, Channel: channel})
	}
	return s
}
