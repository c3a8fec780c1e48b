package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/knocktoolkit/internal/audit"
	"github.com/harun/knocktoolkit/internal/config"
	"github.com/harun/knocktoolkit/internal/metrics"
	"github.com/harun/knocktoolkit/internal/tracing"
	"github.com/harun/knocktoolkit/pkg/hitl"
	"github.com/harun/knocktoolkit/pkg/toolkit"
	"github.com/harun/knocktoolkit/pkg/webhook"
)

var (
	webhookFlags      toolkitFlags
	webhookPort       int
	webhookForwardURL string
	webhookWatch      bool
	webhookInsecure   bool
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Run the Knock webhook that resumes approved tool calls",
	Long: `Run an HTTP server that receives Knock message.interacted events,
resumes the deferred tool call each approval message carries, and hands
the result to --forward-url (or the log when none is set).
The server exposes /health and /metrics alongside the event path.`,
	RunE: runWebhook,
}

func init() {
	webhookFlags.register(webhookCmd)
	webhookCmd.Flags().IntVar(&webhookPort, "port", 0, "listen port (overrides webhook.port)")
	webhookCmd.Flags().StringVar(&webhookForwardURL, "forward-url", "", "URL that receives each resumed tool call as JSON")
	webhookCmd.Flags().BoolVar(&webhookWatch, "watch", true, "reload tools when the config file changes")
	webhookCmd.Flags().BoolVar(&webhookInsecure, "insecure", false, "accept unsigned events when webhook.secret is empty")
	rootCmd.AddCommand(webhookCmd)
}

// liveResumer forwards to the current toolkit so a config reload can swap it
type liveResumer struct {
	current atomic.Pointer[toolkit.Toolkit]
}

func (r *liveResumer) HandleMessageInteraction(body []byte) (*hitl.InteractionResult, bool, error) {
	return r.current.Load().HandleMessageInteraction(body)
}

func (r *liveResumer) ResumeInteraction(ctx context.Context, interaction *hitl.InteractionResult) (*hitl.Completed, error) {
	return r.current.Load().ResumeInteraction(ctx, interaction)
}

func runWebhook(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	webhookFlags.apply(cfg)
	if webhookPort != 0 {
		cfg.Webhook.Port = webhookPort
	}

	l, err := setupLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer l.Close()
	log := l.Component("webhook")

	pidFile := getPIDFilePath(cfg)
	if isRunning(pidFile) {
		return fmt.Errorf("webhook server is already running (PID file: %s)", pidFile)
	}

	if cfg.Webhook.Secret == "" {
		if !webhookInsecure {
			return fmt.Errorf("webhook.secret is not set; configure the Knock signing secret or pass --insecure to accept unsigned events")
		}
		log.Warn().Str("host", cfg.Webhook.Host).Msg("Signature verification disabled; any caller can resume deferred tool calls")
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tracing.ShutdownOpenTelemetry(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()
	opts := []toolkit.Option{toolkit.WithObserver(m)}

	journal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
		opts = append(opts, toolkit.WithJournal(journal))

		if cfg.HITL.SweepSchedule != "" && cfg.HITL.MaxAge > 0 {
			sweeper, err := hitl.NewSweeper(journal, cfg.HITL.SweepSchedule, cfg.HITL.MaxAge)
			if err != nil {
				return err
			}
			sweeper.Start()
			defer sweeper.Stop()
		}
	}

	tk, err := buildToolkit(ctx, cfg, log, opts...)
	if err != nil {
		return err
	}
	resumer := &liveResumer{}
	resumer.current.Store(tk)

	if webhookWatch {
		watchConfig(ctx, resumer, log, opts)
	}

	sink := webhook.LogSink(log)
	if webhookForwardURL != "" {
		sink = webhook.ForwardSink(webhookForwardURL, nil, 3)
	}
	if cfg.HITL.AuditFile != "" {
		auditLog, err := audit.Open(cfg.HITL.AuditFile)
		if err != nil {
			return err
		}
		defer auditLog.Close()
		sink = auditLog.Sink(sink)
	}

	server, err := webhook.NewServer(webhook.ServerOptions{
		Port:               cfg.Webhook.Port,
		Host:               cfg.Webhook.Host,
		Path:               cfg.Webhook.Path,
		Secret:             cfg.Webhook.Secret,
		RateLimitPerMinute: cfg.Webhook.RateLimitPerMinute,
		HandlerTimeout:     time.Duration(cfg.Webhook.Timeout) * time.Second,
	}, resumer, log,
		webhook.WithSink(sink),
		webhook.WithObserver(m),
		webhook.WithMetricsHandler(m.Handler()))
	if err != nil {
		return err
	}

	if err := writePIDFile(pidFile); err != nil {
		return err
	}
	defer os.Remove(pidFile)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

// watchConfig rebuilds the toolkit whenever the config file changes.
// Command-line overrides keep applying to every reload.
func watchConfig(ctx context.Context, resumer *liveResumer, log zerolog.Logger, opts []toolkit.Option) {
	loader := config.NewLoader(cfgFile)
	err := loader.Watch(func(cfg *config.Config) {
		webhookFlags.apply(cfg)
		tk, err := buildToolkit(ctx, cfg, log, opts...)
		if err != nil {
			log.Error().Err(err).Msg("Keeping previous tools after failed reload")
			return
		}
		resumer.current.Store(tk)
		log.Info().Int("tools", len(tk.Tools())).Msg("Tools reloaded")
	})
	if err != nil {
		log.Debug().Err(err).Msg("Config watch disabled")
	}
}

func getPIDFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "webhook.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0600)
}

func readPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

func isRunning(pidFile string) bool {
	pid, err := readPID(pidFile)
	if err != nil {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so check with signal 0
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
