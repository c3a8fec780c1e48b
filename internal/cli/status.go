package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and webhook server status",
	Long:  `Show the active configuration and whether the webhook server is running.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	out := cmd.OutOrStdout()

	token := "missing"
	if cfg.ServiceToken != "" {
		token = "set"
	}
	fmt.Fprintf(out, "Config: %s\n", loaderPath())
	fmt.Fprintf(out, "Environment: %s\n", cfg.Environment)
	fmt.Fprintf(out, "Service token: %s\n", token)
	if len(cfg.Tools) > 0 {
		fmt.Fprintf(out, "Tool patterns: %v\n", cfg.Tools)
	} else {
		fmt.Fprintf(out, "Permission categories: %d\n", len(cfg.Permissions))
	}
	if len(cfg.HITL.Methods) > 0 {
		fmt.Fprintf(out, "Approval required for: %v (workflow %s)\n", cfg.HITL.Methods, cfg.HITL.Workflow)
	}

	pidFile := getPIDFilePath(cfg)
	if !isRunning(pidFile) {
		fmt.Fprintln(out, "Webhook: stopped")
		return nil
	}

	pid, err := readPID(pidFile)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	fmt.Fprintln(out, "Webhook: running")
	fmt.Fprintf(out, "PID: %d\n", pid)
	if info, err := os.Stat(pidFile); err == nil {
		fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Since(info.ModTime())))
	}
	fmt.Fprintf(out, "Listening: %s:%d%s\n", cfg.Webhook.Host, cfg.Webhook.Port, cfg.Webhook.Path)

	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
