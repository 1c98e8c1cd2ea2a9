package admin

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the admin API onto r. Health endpoints skip authentication;
// everything under /admin requires the AccessKey token.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReady)

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.TokenAuthMiddleware)

		r.Post("/loglevel", h.HandleSetLogLevel)

		r.Get("/dashboard", h.HandleDashboard)

		r.Get("/provider-keys", h.HandleListProviderKeys)
		r.Post("/provider-keys", h.HandleCreateProviderKey)
		r.Get("/provider-keys/{id}", h.HandleGetProviderKey)
		r.Delete("/provider-keys/{id}", h.HandleDeleteProviderKey)

		r.Get("/proxy-keys", h.HandleListProxyKeys)
		r.Post("/proxy-keys", h.HandleCreateProxyKey)
		r.Get("/proxy-keys/{id}", h.HandleGetProxyKey)
		r.Patch("/proxy-keys/{id}/status", h.HandleUpdateProxyKeyStatus)
		r.Delete("/proxy-keys/{id}", h.HandleDeleteProxyKey)
	})
}
