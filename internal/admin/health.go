package admin

import (
	"context"
	"net/http"
	"time"
)

// HandleHealth returns basic health status
// GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady checks database and state backend connectivity
// GET /ready
// Returns 200 if both are accessible, 503 otherwise
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	database := "connected"
	if h.db == nil {
		database = "not configured"
	} else if err := h.db.Ping(ctx); err != nil {
		database = "unavailable"
	}

	state := "connected"
	if h.ledger == nil {
		state = "not configured"
	} else if err := h.ledger.Ping(ctx); err != nil {
		state = "unavailable"
	}

	status := http.StatusOK
	overall := "ok"
	if database != "connected" || state != "connected" {
		status = http.StatusServiceUnavailable
		overall = "error"
	}

	writeJSON(w, status, map[string]any{
		"status":   overall,
		"database": database,
		"state":    state,
	})
}
