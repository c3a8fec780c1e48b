package hitl

import (
	"fmt"
	"strings"
)

// Approval decides which responses to an approval message approve the call
type Approval struct {
	// Fields are looked up in the interaction payload in order. The first
	// one present holds the decision.
	Fields []string `json:"fields,omitempty"`
	// Values are the decisions that approve, compared case-insensitively
	Values []string `json:"values,omitempty"`
}

// DefaultApproval approves when the interaction's action or status is approve or approved
var DefaultApproval = Approval{
	Fields: []string{"action", "status"},
	Values: []string{"approve", "approved"},
}

func (a Approval) withDefaults() Approval {
	if len(a.Fields) == 0 {
		a.Fields = DefaultApproval.Fields
	}
	if len(a.Values) == 0 {
		a.Values = DefaultApproval.Values
	}
	return a
}

// Decide returns the decision found in interaction and whether it approves.
// A missing decision never approves.
func (a Approval) Decide(interaction map[string]interface{}) (string, bool) {
	a = a.withDefaults()

	for _, field := range a.Fields {
		v, ok := interaction[field]
		if !ok || v == nil {
			continue
		}

		decision := strings.TrimSpace(fmt.Sprint(v))
		for _, want := range a.Values {
			if strings.EqualFold(decision, want) {
				return decision, true
			}
		}
		return decision, false
	}

	return "", false
}
