package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/harun/knocktoolkit/pkg/catalog"
	"github.com/harun/knocktoolkit/pkg/pattern"
)

var environmentPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateServiceToken checks that a Knock service token is present and looks like one
func (v *Validator) ValidateServiceToken(token string) error {
	if token == "" {
		return fmt.Errorf("service token cannot be empty")
	}
	if strings.ContainsAny(token, " \t\n") {
		return fmt.Errorf("service token must not contain whitespace")
	}
	if strings.HasPrefix(token, "pk_") {
		return fmt.Errorf("invalid service token (public API keys start with pk_, use a service token)")
	}
	return nil
}

// ValidateEnvironment validates a Knock environment slug
func (v *Validator) ValidateEnvironment(env string) error {
	if env == "" {
		return nil // defaults to development
	}
	if !environmentPattern.MatchString(env) {
		return fmt.Errorf("invalid environment slug: %s", env)
	}
	return nil
}

// ValidatePermissions checks that every bucket grant is a bool or a list of keys
func (v *Validator) ValidatePermissions(raw map[string]interface{}) error {
	cfg := Config{Permissions: raw}
	_, err := cfg.Grant()
	return err
}

// ValidatePatterns checks every tool pattern against the built-in catalog
func (v *Validator) ValidatePatterns(patterns []string) error {
	if len(patterns) == 0 {
		return nil
	}
	reg, err := catalog.Registry()
	if err != nil {
		return err
	}
	for _, p := range patterns {
		if _, err := pattern.Filter(reg, p); err != nil {
			return err
		}
	}
	return nil
}

// ValidateHITL checks that approval-gated tools name a workflow and recipients
func (v *Validator) ValidateHITL(h HITLConfig) error {
	if len(h.Methods) == 0 {
		return nil
	}
	if h.Workflow == "" {
		return fmt.Errorf("hitl.workflow is required when hitl.methods is set")
	}
	if len(h.Recipients) == 0 {
		return fmt.Errorf("hitl.recipients must name at least one recipient")
	}
	if h.MaxAge < 0 {
		return fmt.Errorf("hitl.max_age must be >= 0")
	}
	if h.SweepSchedule != "" {
		if err := v.ValidateSchedule(h.SweepSchedule); err != nil {
			return fmt.Errorf("hitl.sweep_schedule: %w", err)
		}
	}
	return nil
}

// ValidateWebhookSecret requires a signing secret once any tool waits for
// approval, since an unsigned event can resume it
func (v *Validator) ValidateWebhookSecret(secret string, h HITLConfig) error {
	if len(h.Methods) > 0 && strings.TrimSpace(secret) == "" {
		return fmt.Errorf("webhook.secret is required when hitl.methods is set")
	}
	return nil
}

// ValidateSchedule validates a cron expression or descriptor such as @hourly
func (v *Validator) ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return nil
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateServiceToken(cfg.ServiceToken); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateEnvironment(cfg.Environment); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidatePermissions(cfg.Permissions); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidatePatterns(cfg.Tools); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateHITL(cfg.HITL); err != nil {
		errors = append(errors, err)
	}

	if cfg.Webhook.Enabled {
		if err := v.ValidatePort(cfg.Webhook.Port); err != nil {
			errors = append(errors, fmt.Errorf("webhook: %w", err))
		}
		if cfg.Webhook.RateLimitPerMinute < 0 {
			errors = append(errors, fmt.Errorf("webhook.rate_limit_per_minute must be >= 0"))
		}
		if cfg.Webhook.Path != "" && !strings.HasPrefix(cfg.Webhook.Path, "/") {
			errors = append(errors, fmt.Errorf("webhook.path must start with /"))
		}
		if err := v.ValidateWebhookSecret(cfg.Webhook.Secret, cfg.HITL); err != nil {
			errors = append(errors, err)
		}
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
