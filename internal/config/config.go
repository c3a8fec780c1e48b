package config

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/harun/knocktoolkit/pkg/hitl"
	"github.com/harun/knocktoolkit/pkg/permission"
	"github.com/harun/knocktoolkit/pkg/toolkit"
)

// Config represents the knocktoolkit configuration file
type Config struct {
	// Knock credentials and scope
	ServiceToken string `json:"service_token" mapstructure:"service_token"`
	Environment  string `json:"environment" mapstructure:"environment"`
	UserID       string `json:"user_id" mapstructure:"user_id"`
	TenantID     string `json:"tenant_id" mapstructure:"tenant_id"`
	BaseURL      string `json:"base_url" mapstructure:"base_url"`
	APIBaseURL   string `json:"api_base_url" mapstructure:"api_base_url"`

	// Permissions is the raw category -> bucket -> grant tree.
	// Use Grant to get a typed permission.Grant.
	Permissions       map[string]interface{} `json:"permissions" mapstructure:"permissions"`
	StrictPermissions bool                   `json:"strict_permissions" mapstructure:"strict_permissions"`

	// Tools and Workflows select tools by pattern instead of by grant
	Tools     []string `json:"tools" mapstructure:"tools"`
	Workflows []string `json:"workflows" mapstructure:"workflows"`

	HITL    HITLConfig    `json:"hitl" mapstructure:"hitl"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Webhook WebhookConfig `json:"webhook" mapstructure:"webhook"`
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// HITLConfig lists the tools that wait for human approval and how approval is requested
type HITLConfig struct {
	Methods       []string      `json:"methods" mapstructure:"methods"`
	Workflow      string        `json:"workflow" mapstructure:"workflow"`
	Recipients    []string      `json:"recipients" mapstructure:"recipients"`
	Actor         string        `json:"actor" mapstructure:"actor"`
	Tenant        string        `json:"tenant" mapstructure:"tenant"`
	JournalPath   string        `json:"journal_path" mapstructure:"journal_path"`
	SweepSchedule string        `json:"sweep_schedule" mapstructure:"sweep_schedule"`
	MaxAge        time.Duration `json:"max_age" mapstructure:"max_age"`
	AuditFile     string        `json:"audit_file" mapstructure:"audit_file"`

	// ApprovalFields and ApprovalValues decide which interactions approve a call
	ApprovalFields []string `json:"approval_fields" mapstructure:"approval_fields"`
	ApprovalValues []string `json:"approval_values" mapstructure:"approval_values"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// WebhookConfig holds the inbound event server configuration
type WebhookConfig struct {
	Enabled            bool   `json:"enabled" mapstructure:"enabled"`
	Port               int    `json:"port" mapstructure:"port"`
	Host               string `json:"host" mapstructure:"host"`
	Path               string `json:"path" mapstructure:"path"`
	Secret             string `json:"secret" mapstructure:"secret"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	Timeout            int    `json:"timeout" mapstructure:"timeout"` // seconds
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		HITL: HITLConfig{
			SweepSchedule: "@hourly",
			MaxAge:        24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Webhook: WebhookConfig{
			Enabled:            false,
			Port:               3001,
			Host:               "0.0.0.0",
			Path:               "/webhooks/knock",
			RateLimitPerMinute: 100,
			Timeout:            30,
		},
		Tracing: TracingConfig{
			ServiceName: "knocktoolkit",
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.ServiceToken != "" {
		masked.ServiceToken = "********"
	}
	if masked.Webhook.Secret != "" {
		masked.Webhook.Secret = "********"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Grant parses Permissions into a permission.Grant
func (c *Config) Grant() (permission.Grant, error) {
	if len(c.Permissions) == 0 {
		return permission.Grant{}, nil
	}
	return permission.ParseGrant(c.Permissions)
}

// ToolkitConfig returns the toolkit settings carried by this config
func (c *Config) ToolkitConfig() (toolkit.Config, error) {
	grant, err := c.Grant()
	if err != nil {
		return toolkit.Config{}, err
	}
	return toolkit.Config{
		ServiceToken: c.ServiceToken,
		UserID:       c.UserID,
		TenantID:     c.TenantID,
		Environment:  c.Environment,
		Permissions:  grant,
		Strict:       c.StrictPermissions,
	}, nil
}

// HITLOptions returns the approval workflow options, or false when no
// tool requires approval
func (c *Config) HITLOptions() (hitl.Options, bool) {
	if len(c.HITL.Methods) == 0 {
		return hitl.Options{}, false
	}

	recipients := make([]interface{}, 0, len(c.HITL.Recipients))
	for _, r := range c.HITL.Recipients {
		recipients = append(recipients, r)
	}

	opts := hitl.Options{
		Workflow:   c.HITL.Workflow,
		Recipients: recipients,
		Tenant:     c.HITL.Tenant,
		Approval: hitl.Approval{
			Fields: c.HITL.ApprovalFields,
			Values: c.HITL.ApprovalValues,
		},
	}
	if c.HITL.Actor != "" {
		opts.Actor = c.HITL.Actor
	}
	return opts, true
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}
