package proxy

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the proxying endpoint on the given router. Every method is
// accepted; the pipeline decides what the call needs.
func (h *Handler) Routes(r chi.Router) {
	r.HandleFunc("/v1/*", h.HandleProxy)
}
