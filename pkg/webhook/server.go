package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/knocktoolkit/internal/tracing"
	"github.com/harun/knocktoolkit/pkg/hitl"
)

const tracerName = "knocktoolkit/webhook"

// DefaultPath is where Knock delivers events
const DefaultPath = "/webhooks/knock"

// Option configures optional server collaborators
type Option func(*Server)

// WithSink delivers every resumed call to sink
func WithSink(sink ResultSink) Option {
	return func(s *Server) {
		s.sink = sink
	}
}

// WithObserver records delivery outcomes
func WithObserver(o Observer) Option {
	return func(s *Server) {
		s.observer = o
	}
}

// WithMetricsHandler serves h on /metrics
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// Server receives Knock message.interacted events and resumes the deferred tool calls they carry
type Server struct {
	options        ServerOptions
	server         *http.Server
	resumer        Resumer
	sink           ResultSink
	observer       Observer
	metricsHandler http.Handler
	rateLimiter    *RateLimiter
	metricsTracker *MetricsTracker
	logger         zerolog.Logger
	now            func() time.Time
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new webhook server
func NewServer(options ServerOptions, resumer Resumer, logger zerolog.Logger, opts ...Option) (*Server, error) {
	if options.Port == 0 {
		options.Port = 3001
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.Path == "" {
		options.Path = DefaultPath
	}
	if options.RateLimitPerMinute == 0 {
		options.RateLimitPerMinute = 100
	}
	if options.HandlerTimeout == 0 {
		options.HandlerTimeout = 30 * time.Second
	}
	if options.SignatureTolerance == 0 {
		options.SignatureTolerance = 5 * time.Minute
	}
	if options.MaxBodyBytes == 0 {
		options.MaxBodyBytes = 1 << 20
	}

	if resumer == nil {
		return nil, fmt.Errorf("resumer is required")
	}

	s := &Server{
		options:        options,
		resumer:        resumer,
		rateLimiter:    NewRateLimiter(options.RateLimitPerMinute),
		metricsTracker: NewMetricsTracker(),
		logger:         logger,
		now:            time.Now,
		startTime:      time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc(s.options.Path, s.handleEvent)
	if s.metricsHandler != nil {
		mux.Handle("/metrics", s.metricsHandler)
	}
	return mux
}

// Start starts the webhook server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Str("path", s.options.Path).
		Bool("signed", s.options.Secret != "").
		Msg("Starting webhook server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start webhook server: %w", err)
	}

	return nil
}

// Stop gracefully stops the webhook server
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down webhook server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight deliveries completed")
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	s.rateLimiter.Stop()

	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown webhook server: %w", err)
	}

	s.logger.Info().Msg("Webhook server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"uptime":     time.Since(s.startTime).Seconds(),
		"deliveries": s.metricsTracker.GetMetrics(),
		"timestamp":  time.Now().UnixMilli(),
	})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	deliveryID := uuid.NewString()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.inFlightReqs.Add(1)
	s.shutdownMu.RUnlock()
	defer s.inFlightReqs.Done()

	ip := s.getClientIP(r)
	reqCtx, span := tracing.StartSpan(tracing.NewDeliveryContext(r.Context(), deliveryID), tracerName, "webhook.delivery")
	defer span.End()
	logger := tracing.LoggerFromContext(reqCtx, s.logger).With().
		Str("ip", ip).
		Logger()

	if !s.rateLimiter.CheckLimit(ip) {
		retryAfter := s.rateLimiter.GetRetryAfter(ip)
		logger.Warn().
			Int("retryAfter", retryAfter).
			Msg("Rate limit exceeded")

		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.options.MaxBodyBytes))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read request body")
		s.finish(w, start, http.StatusBadRequest, DeliveryResponse{DeliveryID: deliveryID, Status: OutcomeRejected, Error: "unreadable body"})
		return
	}

	if s.options.Secret != "" {
		err := verifySignature(r.Header.Get(SignatureHeader), body, s.options.Secret, s.now(), s.options.SignatureTolerance)
		if err != nil {
			logger.Warn().Err(err).Msg("Rejected webhook signature")
			s.finish(w, start, http.StatusUnauthorized, DeliveryResponse{DeliveryID: deliveryID, Status: OutcomeRejected, Error: err.Error()})
			return
		}
	}

	interaction, ok, err := s.resumer.HandleMessageInteraction(body)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to parse webhook event")
		s.finish(w, start, http.StatusBadRequest, DeliveryResponse{DeliveryID: deliveryID, Status: OutcomeRejected, Error: "invalid event"})
		return
	}
	if !ok {
		logger.Debug().Msg("Ignoring event without a deferred tool call")
		s.finish(w, start, http.StatusOK, DeliveryResponse{DeliveryID: deliveryID, Status: OutcomeIgnored})
		return
	}

	call := interaction.ToolCall
	span.SetAttributes(attribute.String("tool.method", call.Method))
	logger = logger.With().
		Str("tool", call.Method).
		Str("tool_call_id", call.Extra.ToolCallID).
		Logger()

	ctx, cancel := context.WithTimeout(reqCtx, s.options.HandlerTimeout)
	defer cancel()

	completed, err := s.resumer.ResumeInteraction(ctx, interaction)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, hitl.ErrDeferredCallNotFound) {
			status = http.StatusNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Msg("Failed to resume deferred tool call")
		s.finish(w, start, status, DeliveryResponse{
			DeliveryID: deliveryID,
			Status:     OutcomeFailed,
			ToolCallID: call.Extra.ToolCallID,
			Method:     call.Method,
			Error:      err.Error(),
		})
		return
	}

	if s.sink != nil {
		if err := s.sink(ctx, interaction, completed); err != nil {
			logger.Error().Err(err).Msg("Result sink failed")
			s.finish(w, start, http.StatusInternalServerError, DeliveryResponse{
				DeliveryID: deliveryID,
				Status:     OutcomeFailed,
				ToolCallID: call.Extra.ToolCallID,
				Method:     call.Method,
				Error:      err.Error(),
			})
			return
		}
	}

	outcome := OutcomeCompleted
	if completed.Status == hitl.StatusDeclined {
		outcome = OutcomeDeclined
	}
	span.SetAttributes(attribute.String("tool.decision", completed.Decision))

	logger.Info().
		Str("outcome", outcome).
		Str("decision", completed.Decision).
		Dur("duration", time.Since(start)).
		Msg("Deferred tool call handled")

	s.finish(w, start, http.StatusOK, DeliveryResponse{
		DeliveryID: deliveryID,
		Status:     outcome,
		ToolCallID: completed.ToolCallID,
		Method:     completed.Method,
		Decision:   completed.Decision,
	})
}

// finish records the outcome and writes the response
func (s *Server) finish(w http.ResponseWriter, start time.Time, status int, resp DeliveryResponse) {
	duration := time.Since(start)
	s.metricsTracker.Track(resp.Status, float64(duration.Milliseconds()))
	if s.observer != nil {
		s.observer.ObserveDelivery(resp.Status, duration)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// getClientIP extracts the client IP from the request
func (s *Server) getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// GetMetrics returns per-outcome delivery statistics
func (s *Server) GetMetrics() []DeliveryMetrics {
	return s.metricsTracker.GetMetrics()
}
