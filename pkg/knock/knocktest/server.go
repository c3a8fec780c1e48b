// Package knocktest provides an in-process fake of the Knock APIs for tests.
package knocktest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/harun/knocktoolkit/pkg/knock"
)

// ServiceToken is the token the fake server accepts
const ServiceToken = "knock_st_test"

// Request is a recorded call against the fake
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]interface{}
}

// Server routes "METHOD /path" keys to canned handlers
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	routes    map[string]http.HandlerFunc
	requests  []Request
	exchanges int
}

// NewServer starts a fake that answers the key exchange on its own
func NewServer(t testing.TB) *Server {
	s := &Server{routes: make(map[string]http.HandlerFunc)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle registers a handler for a method and exact path
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[method+" "+path] = h
}

// JSON registers a handler that always answers with the given status and value
func (s *Server) JSON(method, path string, status int, v interface{}) {
	s.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, v)
	})
}

// Requests returns the calls recorded so far, excluding key exchanges
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Exchanges returns how many key exchanges were served
func (s *Server) Exchanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchanges
}

// Client returns a knock.Client pointed at the fake for both APIs
func (s *Server) Client(t testing.TB, opts ...knock.Option) *knock.Client {
	base := []knock.Option{
		knock.WithBaseURL(s.URL),
		knock.WithAPIBaseURL(s.URL),
		knock.WithDocsBaseURL(s.URL),
		knock.WithRetry(2, time.Millisecond),
	}
	c, err := knock.NewClient(ServiceToken, append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to create knock client: %v", err)
	}
	return c
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && r.URL.Path == "/v1/api_keys/exchange" {
		s.mu.Lock()
		s.exchanges++
		s.mu.Unlock()
		WriteJSON(w, http.StatusOK, map[string]string{"api_key": "sk_test_exchanged"})
		return
	}

	var body map[string]interface{}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Header: r.Header.Clone(), Body: body})
	h, ok := s.routes[r.Method+" "+r.URL.Path]
	s.mu.Unlock()

	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]interface{}{
			"code":    "resource_missing",
			"message": "no route for " + r.Method + " " + r.URL.Path,
			"status":  http.StatusNotFound,
		})
		return
	}
	h(w, r)
}

// WriteJSON writes v as a JSON response
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
