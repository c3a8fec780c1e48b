package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. KNOCKTOOLKIT_SERVICE_TOKEN
	EnvPrefix = "KNOCKTOOLKIT"

	dirName  = ".knocktoolkit"
	fileName = "config.json"
)

// envKeys are bound explicitly so they apply even when the file omits them
var envKeys = []string{
	"service_token",
	"environment",
	"user_id",
	"tenant_id",
	"base_url",
	"api_base_url",
	"strict_permissions",
	"logging.level",
	"webhook.secret",
	"webhook.port",
	"hitl.workflow",
}

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

func (l *Loader) newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the config file, applies environment overrides and fills in
// derived paths. A missing file yields the defaults plus the environment.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to get home directory")
	}

	v := l.newViper(configPath)

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(configPath)
	}
	if cfg.HITL.JournalPath == "" && len(cfg.HITL.Methods) > 0 {
		cfg.HITL.JournalPath = filepath.Join(cfg.DataDir, "pending.db")
	}
	if cfg.HITL.AuditFile == "" && len(cfg.HITL.Methods) > 0 {
		cfg.HITL.AuditFile = filepath.Join(cfg.DataDir, "approvals.log")
	}

	return cfg, nil
}

// Save writes cfg to the config file, creating its directory if needed
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to get home directory")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("service_token", cfg.ServiceToken)
	v.Set("environment", cfg.Environment)
	v.Set("user_id", cfg.UserID)
	v.Set("tenant_id", cfg.TenantID)
	v.Set("base_url", cfg.BaseURL)
	v.Set("api_base_url", cfg.APIBaseURL)
	v.Set("permissions", cfg.Permissions)
	v.Set("strict_permissions", cfg.StrictPermissions)
	v.Set("tools", cfg.Tools)
	v.Set("workflows", cfg.Workflows)
	v.Set("hitl", map[string]interface{}{
		"methods":        cfg.HITL.Methods,
		"workflow":       cfg.HITL.Workflow,
		"recipients":     cfg.HITL.Recipients,
		"actor":          cfg.HITL.Actor,
		"tenant":         cfg.HITL.Tenant,
		"journal_path":   cfg.HITL.JournalPath,
		"sweep_schedule": cfg.HITL.SweepSchedule,
		"max_age":        cfg.HITL.MaxAge.String(),
		"audit_file":     cfg.HITL.AuditFile,

		"approval_fields": cfg.HITL.ApprovalFields,
		"approval_values": cfg.HITL.ApprovalValues,
	})
	v.Set("logging", cfg.Logging)
	v.Set("webhook", cfg.Webhook)
	v.Set("tracing", cfg.Tracing)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// The file holds the service token
	if err := os.Chmod(configPath, 0600); err != nil {
		return fmt.Errorf("failed to restrict config file: %w", err)
	}

	return nil
}

// Watch calls onChange with the reloaded config every time the file changes.
// Reload errors are logged and the previous config stays in effect.
func (l *Loader) Watch(onChange func(*Config)) error {
	configPath := l.GetConfigPath()
	if _, err := os.Stat(configPath); err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	v := l.newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.Load()
		if err != nil {
			log.Warn().Err(err).Str("path", e.Name).Msg("Failed to reload config")
			return
		}
		if err := cfg.Validate(); err != nil {
			log.Warn().Err(err).Str("path", e.Name).Msg("Ignoring invalid config change")
			return
		}
		log.Info().Str("path", e.Name).Msg("Config reloaded")
		onChange(cfg)
	})
	v.WatchConfig()

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, dirName, fileName)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
