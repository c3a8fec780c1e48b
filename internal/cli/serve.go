package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harun/knocktoolkit/pkg/converters/mcpserver"
	"github.com/harun/knocktoolkit/pkg/toolkit"
)

var serveFlags toolkitFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve Knock tools to an agent host over MCP stdio",
	Long: `Serve the selected Knock tools as a Model Context Protocol server on
stdin/stdout. Tools are selected with --tools patterns, or with the
permission grant in the config file when no pattern is given.
Logs are written to stderr.`,
	RunE: runServe,
}

func init() {
	serveFlags.register(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	serveFlags.apply(cfg)

	l, err := setupLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer l.Close()
	log := l.Component("serve")

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	journal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	var opts []toolkit.Option
	if journal != nil {
		defer journal.Close()
		opts = append(opts, toolkit.WithJournal(journal))
	}

	tk, err := buildToolkit(ctx, cfg, log, opts...)
	if err != nil {
		return err
	}

	server, err := mcpserver.NewServer(tk.Tools(),
		mcpserver.WithImplementation(mcpserver.DefaultName, version),
		mcpserver.WithLogger(log))
	if err != nil {
		return err
	}

	log.Info().
		Int("tools", len(server.Tools())).
		Str("environment", cfg.Environment).
		Msg("Serving MCP over stdio")

	if err := server.ServeStdio(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server stopped: %w", err)
	}
	return nil
}

// commandContext returns the command context, or a background context when
// the command runs outside Execute
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
