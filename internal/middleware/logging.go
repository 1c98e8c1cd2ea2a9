package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/costwatch/keyvault-proxy/internal/logging"
)

// HTTPLogging creates a middleware that logs HTTP requests and responses at
// DEBUG level. Headers are masked before logging and bodies are never logged,
// only their sizes; proxied payloads and admin requests can carry provider
// secrets.
func HTTPLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !logger.Enabled(r.Context(), slog.LevelDebug) {
				next.ServeHTTP(w, r)
				return
			}

			logger.Debug("HTTP Request",
				"request_id", GetRequestID(r.Context()),
				"method", r.Method,
				"url", r.URL.Path,
				"query_params", r.URL.RawQuery,
				"headers", maskHeaders(r.Header),
				"body_bytes", r.ContentLength,
			)

			rec := &loggingRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			start := time.Now()
			next.ServeHTTP(rec, r)
			duration := time.Since(start)

			logger.Debug("HTTP Response",
				"request_id", GetRequestID(r.Context()),
				"method", r.Method,
				"url", r.URL.Path,
				"status_code", rec.statusCode,
				"headers", maskHeaders(rec.Header()),
				"body_bytes", rec.written,
				"duration_ms", duration.Milliseconds(),
			)
		})
	}
}

// maskHeaders masks sensitive header values
func maskHeaders(headers http.Header) map[string]string {
	result := make(map[string]string)
	for k, v := range headers {
		if len(v) > 0 {
			result[k] = logging.MaskHeader(k, v[0])
		}
	}
	return result
}

// loggingRecorder captures response details for logging.
type loggingRecorder struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (r *loggingRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *loggingRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.written += int64(n)
	return n, err
}
