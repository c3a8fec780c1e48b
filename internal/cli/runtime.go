package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/knocktoolkit/internal/config"
	"github.com/harun/knocktoolkit/internal/logger"
	"github.com/harun/knocktoolkit/pkg/hitl"
	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/toolkit"
)

// toolkitFlags override the config file for commands that build a toolkit
type toolkitFlags struct {
	serviceToken string
	environment  string
	userID       string
	tenantID     string
	tools        []string
	workflows    []string
}

func (f *toolkitFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.serviceToken, "service-token", "", "Knock service token (or KNOCKTOOLKIT_SERVICE_TOKEN)")
	fs.StringVar(&f.environment, "environment", "", "Knock environment slug (default development)")
	fs.StringVar(&f.userID, "user-id", "", "user the tools act on behalf of")
	fs.StringVar(&f.tenantID, "tenant-id", "", "default tenant for tenant-scoped tools")
	fs.StringSliceVar(&f.tools, "tools", nil, "tool patterns such as users.* or workflows.triggerWorkflow (repeatable)")
	fs.StringSliceVar(&f.workflows, "workflows", nil, "workflow keys to expose as trigger tools (repeatable)")
}

// apply copies every flag that was set onto cfg
func (f *toolkitFlags) apply(cfg *config.Config) {
	if f.serviceToken != "" {
		cfg.ServiceToken = f.serviceToken
	}
	if f.environment != "" {
		cfg.Environment = f.environment
	}
	if f.userID != "" {
		cfg.UserID = f.userID
	}
	if f.tenantID != "" {
		cfg.TenantID = f.tenantID
	}
	if len(f.tools) > 0 {
		cfg.Tools = f.tools
	}
	if len(f.workflows) > 0 {
		cfg.Workflows = f.workflows
	}
}

// loadConfig reads the config file and applies the global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// setupLogging installs the global logger. Console output always goes to
// stderr so stdout stays free for command output and MCP traffic.
func setupLogging(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
}

func clientOptions(cfg *config.Config, log zerolog.Logger) []knock.Option {
	opts := []knock.Option{knock.WithLogger(log)}
	if cfg.BaseURL != "" {
		opts = append(opts, knock.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIBaseURL != "" {
		opts = append(opts, knock.WithAPIBaseURL(cfg.APIBaseURL))
	}
	return opts
}

// openJournal opens the pending-call journal when approval-gated tools are configured
func openJournal(cfg *config.Config) (*hitl.SQLiteJournal, error) {
	if _, gated := cfg.HITLOptions(); !gated || cfg.HITL.JournalPath == "" {
		return nil, nil
	}
	return hitl.OpenSQLiteJournal(cfg.HITL.JournalPath)
}

// buildToolkit selects tools by pattern when cfg names any, otherwise by
// the permission grant, then wraps the configured approval-gated tools
func buildToolkit(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...toolkit.Option) (*toolkit.Toolkit, error) {
	tc, err := cfg.ToolkitConfig()
	if err != nil {
		return nil, err
	}
	if tc.ServiceToken == "" {
		return nil, fmt.Errorf("%w: set --service-token, %s_SERVICE_TOKEN or service_token in the config file",
			knock.ErrMissingServiceToken, config.EnvPrefix)
	}

	client, err := knock.NewClient(tc.ServiceToken, clientOptions(cfg, log)...)
	if err != nil {
		return nil, err
	}
	opts = append([]toolkit.Option{toolkit.WithClient(client), toolkit.WithLogger(log)}, opts...)

	var tk *toolkit.Toolkit
	if len(cfg.Tools) > 0 || len(cfg.Workflows) > 0 {
		tk, err = toolkit.FromPatterns(ctx, tc, cfg.Tools, cfg.Workflows, opts...)
	} else {
		tk, err = toolkit.New(ctx, tc, opts...)
	}
	if err != nil {
		return nil, err
	}

	if hitlOpts, gated := cfg.HITLOptions(); gated {
		if _, err := tk.RequireHumanInput(cfg.HITL.Methods, hitlOpts); err != nil {
			return nil, err
		}
	}

	return tk, nil
}

func loaderPath() string {
	return config.NewLoader(cfgFile).GetConfigPath()
}
