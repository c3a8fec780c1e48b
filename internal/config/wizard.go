package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Wizard prompts for the settings needed to talk to Knock
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard that reads answers from in and prompts on out
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run asks for each setting in turn, starting from base when it is non-nil
func (w *Wizard) Run(base *Config) (*Config, error) {
	cfg := base
	if cfg == nil {
		cfg = DefaultConfig()
	}
	validator := NewValidator()

	fmt.Fprintln(w.out, "=== knocktoolkit configuration ===")
	fmt.Fprintln(w.out)

	for {
		token, err := w.ask("Knock service token", mask(cfg.ServiceToken))
		if err != nil {
			return nil, err
		}
		if token == mask(cfg.ServiceToken) {
			token = cfg.ServiceToken
		}
		if err := validator.ValidateServiceToken(token); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.ServiceToken = token
		break
	}

	for {
		env, err := w.ask("Environment", cfg.Environment)
		if err != nil {
			return nil, err
		}
		if err := validator.ValidateEnvironment(env); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Environment = env
		break
	}

	userID, err := w.ask("User ID tools act on behalf of (optional)", cfg.UserID)
	if err != nil {
		return nil, err
	}
	cfg.UserID = userID

	tenantID, err := w.ask("Tenant ID (optional)", cfg.TenantID)
	if err != nil {
		return nil, err
	}
	cfg.TenantID = tenantID

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Tools are selected with patterns such as users.*, workflows.triggerWorkflow or *.")
	for {
		answer, err := w.ask("Tool patterns, comma separated", strings.Join(cfg.Tools, ","))
		if err != nil {
			return nil, err
		}
		patterns := splitList(answer)
		if err := validator.ValidatePatterns(patterns); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Tools = patterns
		break
	}

	level, err := w.ask("Log level (debug/info/warn/error)", cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateLogLevel(level); err != nil {
		fmt.Fprintf(w.out, "Warning: %v, keeping %s\n", err, cfg.Logging.Level)
	} else {
		cfg.Logging.Level = level
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

// ask prints a prompt and returns the trimmed answer, or def when the answer is empty
func (w *Wizard) ask(prompt, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", prompt, def)
	} else {
		fmt.Fprintf(w.out, "%s: ", prompt)
	}

	line, err := w.reader.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func mask(secret string) string {
	if len(secret) <= 8 {
		if secret == "" {
			return ""
		}
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
