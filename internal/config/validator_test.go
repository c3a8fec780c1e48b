package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/knocktoolkit/pkg/pattern"
	"github.com/harun/knocktoolkit/pkg/registry"
)

func TestValidateServiceToken(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"service token", "knock_st_0123456789", false},
		{"secret key", "sk_test_0123456789", false},
		{"empty", "", true},
		{"whitespace", "knock_st_01 23", true},
		{"public key", "pk_test_0123456789", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateServiceToken(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEnvironment(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateEnvironment(""))
	assert.NoError(t, v.ValidateEnvironment("development"))
	assert.NoError(t, v.ValidateEnvironment("staging-eu_1"))
	assert.Error(t, v.ValidateEnvironment("Production"))
	assert.Error(t, v.ValidateEnvironment("dev env"))
}

func TestValidatePatterns(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidatePatterns(nil))
	assert.NoError(t, v.ValidatePatterns([]string{"*", "users", "tenants.*", "workflows.triggerWorkflow", "users.get*"}))
	assert.ErrorIs(t, v.ValidatePatterns([]string{"nope.*"}), registry.ErrCategoryNotFound)
	assert.ErrorIs(t, v.ValidatePatterns([]string{"users.deleteEverything"}), registry.ErrToolNotFound)
	assert.ErrorIs(t, v.ValidatePatterns([]string{"users.[get"}), pattern.ErrInvalidPattern)
}

func TestValidateHITL(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateHITL(HITLConfig{}))

	valid := HITLConfig{
		Methods:       []string{"setTenant"},
		Workflow:      "approve",
		Recipients:    []string{"admin"},
		SweepSchedule: "*/15 * * * *",
	}
	assert.NoError(t, v.ValidateHITL(valid))

	noWorkflow := valid
	noWorkflow.Workflow = ""
	assert.Error(t, v.ValidateHITL(noWorkflow))

	noRecipients := valid
	noRecipients.Recipients = nil
	assert.Error(t, v.ValidateHITL(noRecipients))

	badSchedule := valid
	badSchedule.SweepSchedule = "every tuesday"
	assert.Error(t, v.ValidateHITL(badSchedule))
}

func TestValidateWebhookSecret(t *testing.T) {
	v := NewValidator()
	gated := HITLConfig{Methods: []string{"setTenant"}, Workflow: "approve", Recipients: []string{"admin"}}

	assert.NoError(t, v.ValidateWebhookSecret("", HITLConfig{}))
	assert.NoError(t, v.ValidateWebhookSecret("whsec_abc", gated))
	assert.Error(t, v.ValidateWebhookSecret("", gated))
	assert.Error(t, v.ValidateWebhookSecret("  ", gated))

	cfg := DefaultConfig()
	cfg.ServiceToken = "knock_st_0123456789"
	cfg.HITL = gated
	cfg.Webhook.Enabled = true

	errs := v.ValidateConfig(cfg)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "webhook.secret")

	cfg.Webhook.Secret = "whsec_abc"
	assert.Empty(t, v.ValidateConfig(cfg))
}

func TestValidateSchedule(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateSchedule("@hourly"))
	assert.NoError(t, v.ValidateSchedule("0 3 * * *"))
	assert.Error(t, v.ValidateSchedule("61 * * * *"))
}

func TestValidatePort(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidatePort(3001))
	assert.Error(t, v.ValidatePort(0))
	assert.Error(t, v.ValidatePort(70000))
}

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, v.ValidateLogLevel(level))
	}
	assert.Error(t, v.ValidateLogLevel("trace"))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	cfg := DefaultConfig()
	cfg.ServiceToken = "knock_st_0123456789"
	assert.Empty(t, v.ValidateConfig(cfg))

	cfg.Webhook.Enabled = true
	cfg.Webhook.Port = 0
	cfg.Webhook.Path = "hooks"
	cfg.Permissions = map[string]interface{}{"users": "all"}

	errs := v.ValidateConfig(cfg)
	assert.Len(t, errs, 3)
}
