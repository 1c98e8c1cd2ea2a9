// Package mockprovider provides a mock OpenAI-compatible upstream server for
// testing the proxy end to end.
package mockprovider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Usage controls the token numbers reported in completion responses.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// state holds the configurable mock behavior.
type state struct {
	mu       sync.Mutex
	usage    Usage
	failNext int
	failCode int
	requests int
}

// Server is a mock OpenAI-compatible API server.
type Server struct {
	state state
	mux   chi.Router
}

// New creates a mock provider server with default usage numbers.
func New() *Server {
	s := &Server{
		state: state{
			usage:    Usage{PromptTokens: 10, CompletionTokens: 20},
			failCode: http.StatusInternalServerError,
		},
	}

	r := chi.NewRouter()
	r.Post("/v1/chat/completions", s.handleChatCompletions)
	r.Post("/v1/completions", s.handleChatCompletions)
	r.Get("/admin/state", s.handleAdminState)
	r.Post("/admin/usage", s.handleAdminSetUsage)
	r.Post("/admin/fail", s.handleAdminFail)
	s.mux = r

	return s
}

// Handler returns the HTTP handler for the mock server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// SetUsage configures the usage numbers of subsequent completions.
func (s *Server) SetUsage(u Usage) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.usage = u
}

// FailNext makes the next n completion requests fail with the given status.
func (s *Server) FailNext(n, status int) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.failNext = n
	s.state.failCode = status
}

// Requests returns the number of completion requests served so far.
func (s *Server) Requests() int {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.state.requests
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": map[string]string{"message": "missing bearer token", "type": "invalid_request_error"},
		})
		return
	}

	var req struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]string{"message": "invalid JSON", "type": "invalid_request_error"},
		})
		return
	}

	s.state.mu.Lock()
	s.state.requests++
	if s.state.failNext > 0 {
		s.state.failNext--
		code := s.state.failCode
		s.state.mu.Unlock()
		writeJSON(w, code, map[string]any{
			"error": map[string]string{"message": "injected failure", "type": "server_error"},
		})
		return
	}
	usage := s.state.usage
	s.state.mu.Unlock()

	model := req.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     "chatcmpl-" + uuid.New().String(),
		"object": "chat.completion",
		"model":  model,
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]string{
					"role":    "assistant",
					"content": fmt.Sprintf("mock completion for %s", model),
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     usage.PromptTokens,
			"completion_tokens": usage.CompletionTokens,
			"total_tokens":      usage.PromptTokens + usage.CompletionTokens,
		},
	})
}

// handleAdminState reports the mock's current configuration and counters.
func (s *Server) handleAdminState(w http.ResponseWriter, r *http.Request) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"usage":    s.state.usage,
		"failNext": s.state.failNext,
		"failCode": s.state.failCode,
		"requests": s.state.requests,
	})
}

// handleAdminSetUsage configures usage numbers via the admin API.
func (s *Server) handleAdminSetUsage(w http.ResponseWriter, r *http.Request) {
	var u Usage
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	s.SetUsage(u)
	writeJSON(w, http.StatusOK, u)
}

// handleAdminFail configures failure injection via the admin API.
func (s *Server) handleAdminFail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count  int `json:"count"`
		Status int `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Status == 0 {
		req.Status = http.StatusInternalServerError
	}
	s.FailNext(req.Count, req.Status)
	writeJSON(w, http.StatusOK, req)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Response write errors are unrecoverable
	json.NewEncoder(w).Encode(v)
}
