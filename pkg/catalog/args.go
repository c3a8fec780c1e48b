package catalog

import (
	"fmt"

	"github.com/harun/knocktoolkit/pkg/tool"
)

func stringArg(input map[string]interface{}, key string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}

// stringArgOr returns the argument or a configured fallback, failing when both are empty
func stringArgOr(input map[string]interface{}, key, fallback string) (string, error) {
	if v := stringArg(input, key); v != "" {
		return v, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("%w: %s", tool.ErrMissingArgument, key)
}

func intArg(input map[string]interface{}, key string, fallback int) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return fallback
}

func boolArg(input map[string]interface{}, key string) *bool {
	if v, ok := input[key].(bool); ok {
		return &v
	}
	return nil
}

func mapArg(input map[string]interface{}, key string) map[string]interface{} {
	if v, ok := input[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

func stringsArg(input map[string]interface{}, key string) []string {
	switch v := input[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func environmentArg(input map[string]interface{}, cfg tool.Config) string {
	if env := stringArg(input, "environment"); env != "" {
		return env
	}
	return cfg.EnvironmentOrDefault()
}

var environmentParam = tool.Parameter{
	Name:        "environment",
	Type:        "string",
	Description: "Knock environment slug. Defaults to the configured environment.",
}
