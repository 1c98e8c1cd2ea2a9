package admin

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenAuthMiddleware validates the AccessKey header against the configured
// admin token. Comparison is constant time.
func (h *Handler) TokenAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("AccessKey"))
		if token == "" {
			WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "missing API key")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			h.logger.Warn("invalid admin token attempt", "remote_addr", r.RemoteAddr)
			WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
