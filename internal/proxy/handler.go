package proxy

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/costwatch/keyvault-proxy/internal/guard"
	"github.com/costwatch/keyvault-proxy/internal/ledger"
	"github.com/costwatch/keyvault-proxy/internal/metrics"
	"github.com/costwatch/keyvault-proxy/internal/middleware"
	"github.com/costwatch/keyvault-proxy/internal/provider"
	"github.com/costwatch/keyvault-proxy/internal/ratelimit"
	"github.com/costwatch/keyvault-proxy/internal/storage"
	"github.com/costwatch/keyvault-proxy/internal/vault"
)

// maxRequestBody bounds provider-native request bodies.
const maxRequestBody = 5 << 20 // 5 MiB

// Handler serves the proxying endpoint.
type Handler struct {
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewHandler creates a proxy handler.
// If logger is nil, slog.Default() will be used.
func NewHandler(pipeline *Pipeline, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pipeline: pipeline, logger: logger}
}

// HandleProxy forwards one provider-native call.
// ANY /v1/* with Authorization: Bearer <keyId>.
func (h *Handler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	rawKeyID := extractBearerToken(r)
	if rawKeyID == "" {
		writeError(w, http.StatusUnauthorized, "missing API key")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/")
	call := &Call{
		RawKeyID: rawKeyID,
		SourceIP: sourceIP(r),
		Origin:   r.Header.Get("Origin"),
		Request:  provider.ParseRequest(r.Method, path, body),
	}

	result, err := h.pipeline.Execute(r.Context(), call)
	if err != nil {
		h.writePipelineError(w, r, err)
		return
	}

	metrics.RecordProxiedRequest(string(result.Provider), "ok")
	metrics.RecordProxiedCost(string(result.Provider), result.Cost.InexactFloat64())

	requestID := middleware.GetRequestID(r.Context())
	w.Header().Set("X-Proxy-Cost", result.Cost.String())
	if requestID != "" {
		w.Header().Set("X-Proxy-Request-Id", requestID)
	}

	responseBody := augmentResponse(result, requestID)
	contentType := result.Response.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(result.Response.StatusCode)
	//nolint:errcheck
	w.Write(responseBody)
}

// writePipelineError maps pipeline rejections to the structured error
// responses of the proxying endpoint.
func (h *Handler) writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		forbidden  *guard.ForbiddenError
		exceeded   *ledger.BudgetExceededError
		limited    *ratelimit.RateLimitedError
		upstream   *provider.UpstreamError
		validation *vault.ValidationError
	)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		metrics.RecordProxyRejection("not_found")
		writeError(w, http.StatusUnauthorized, "invalid API key")
	case errors.As(err, &forbidden):
		metrics.RecordProxyRejection(string(forbidden.Reason))
		writeErrorCode(w, http.StatusForbidden, string(forbidden.Reason), forbidden.Detail)
	case errors.As(err, &limited):
		metrics.RecordProxyRejection("rate_limited")
		w.Header().Set("Retry-After", strconv.FormatInt(int64(limited.RetryAfter.Seconds())+1, 10))
		writeErrorCode(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	case errors.As(err, &exceeded):
		metrics.RecordProxyRejection("budget_exceeded")
		writeErrorCode(w, http.StatusPaymentRequired, "budget_exceeded",
			string(exceeded.Kind)+" budget limit reached")
	case errors.Is(err, storage.ErrDecryption):
		// Key-material corruption: alert operators, never retry silently.
		h.logger.Error("proxy call failed on credential decryption", "error", err)
		metrics.RecordProxyRejection("encryption_error")
		writeError(w, http.StatusInternalServerError, "internal error")
	case errors.As(err, &upstream):
		metrics.RecordProxiedRequest(upstream.Provider, "upstream_error")
		h.writeUpstreamError(w, upstream)
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, r.Context().Err()) && r.Context().Err() != nil:
		// Client went away; the refund already ran. Nothing to write.
		h.logger.Debug("proxy call aborted by client", "error", err)
	default:
		h.logger.Error("proxy call failed", "error", err)
		metrics.RecordProxyRejection("internal_error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeUpstreamError passes through the upstream status and JSON body where
// safe, falling back to a generic 502.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, upstream *provider.UpstreamError) {
	status := upstream.Status
	if status < 400 || status > 599 {
		status = http.StatusBadGateway
	}
	if json.Valid(upstream.Body) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		//nolint:errcheck
		w.Write(upstream.Body)
		return
	}
	writeError(w, status, "upstream provider error")
}

// augmentResponse injects cost metadata into JSON response bodies. Non-JSON
// bodies pass through untouched; the headers still carry the metadata.
func augmentResponse(result *Result, requestID string) []byte {
	body := result.Response.Body
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return body
	}
	meta := map[string]any{
		"cost":              result.Cost.String(),
		"provider":          string(result.Provider),
		"prompt_tokens":     result.Response.Usage.PromptTokens,
		"completion_tokens": result.Response.Usage.CompletionTokens,
	}
	if requestID != "" {
		meta["request_id"] = requestID
	}
	decoded["proxy"] = meta
	augmented, err := json.Marshal(decoded)
	if err != nil {
		return body
	}
	return augmented
}

// extractBearerToken gets token from "Authorization: Bearer <token>" header
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// sourceIP resolves the caller's IP, preferring the first X-Forwarded-For
// entry set by the load balancer.
func sourceIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeErrorCode writes a JSON error response with a machine-readable code.
func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
