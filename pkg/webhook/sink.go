package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/harun/knocktoolkit/pkg/hitl"
)

// ResultEnvelope is the body ForwardSink posts for each resumed call
type ResultEnvelope struct {
	Completed   *hitl.Completed         `json:"completed"`
	Interaction *hitl.InteractionResult `json:"interaction"`
}

// LogSink records each resumed call and drops it
func LogSink(logger zerolog.Logger) ResultSink {
	return func(ctx context.Context, interaction *hitl.InteractionResult, completed *hitl.Completed) error {
		logger.Info().
			Str("tool", completed.Method).
			Str("tool_call_id", completed.ToolCallID).
			Str("workflow", interaction.Workflow).
			Str("status", completed.Status).
			Str("decision", completed.Decision).
			Msg("Deferred tool call result ready")
		return nil
	}
}

// ForwardSink posts each resumed call to url as JSON, retrying 5xx responses
// and transport errors up to maxRetries times
func ForwardSink(url string, client *http.Client, maxRetries uint64) ResultSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return func(ctx context.Context, interaction *hitl.InteractionResult, completed *hitl.Completed) error {
		body, err := json.Marshal(ResultEnvelope{Completed: completed, Interaction: interaction})
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}

		op := func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return backoff.Permanent(err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(ctx.Err())
				}
				return err
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)

			switch {
			case resp.StatusCode >= 500:
				return fmt.Errorf("result forward failed with status %d", resp.StatusCode)
			case resp.StatusCode >= 300:
				return backoff.Permanent(fmt.Errorf("result forward rejected with status %d", resp.StatusCode))
			}
			return nil
		}

		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = 200 * time.Millisecond
		return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(exp, maxRetries), ctx))
	}
}
