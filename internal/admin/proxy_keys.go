package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/costwatch/keyvault-proxy/internal/storage"
	"github.com/costwatch/keyvault-proxy/internal/vault"
)

// UsageResponse carries a proxy key's spend counters.
type UsageResponse struct {
	TotalCost   string `json:"totalCost"`
	DailyCost   string `json:"dailyCost"`
	MonthlyCost string `json:"monthlyCost"`
}

// ProxyKeyResponse represents a proxy key in API responses. KeyPrefix is the
// only fragment of the bearer keyId ever shown after creation.
type ProxyKeyResponse struct {
	ID                 string         `json:"id"`
	KeyPrefix          string         `json:"keyPrefix"`
	Name               string         `json:"name"`
	ProviderKeyID      string         `json:"providerKeyId"`
	Description        string         `json:"description,omitempty"`
	Permissions        []string       `json:"permissions"`
	BudgetLimit        *string        `json:"budgetLimit,omitempty"`
	DailyBudgetLimit   *string        `json:"dailyBudgetLimit,omitempty"`
	MonthlyBudgetLimit *string        `json:"monthlyBudgetLimit,omitempty"`
	RateLimit          *int           `json:"rateLimit,omitempty"`
	AllowedIPs         []string       `json:"allowedIps,omitempty"`
	AllowedDomains     []string       `json:"allowedDomains,omitempty"`
	IsActive           bool           `json:"isActive"`
	CreatedAt          string         `json:"createdAt"`
	UpdatedAt          *string        `json:"updatedAt,omitempty"`
	LastUsed           *string        `json:"lastUsed,omitempty"`
	ExpiresAt          *string        `json:"expiresAt,omitempty"`
	TotalRequests      uint64         `json:"totalRequests"`
	Usage              *UsageResponse `json:"usage,omitempty"`
}

func proxyKeyResponse(k *storage.ProxyKey) ProxyKeyResponse {
	return ProxyKeyResponse{
		ID:                 k.ID,
		KeyPrefix:          k.KeyPrefix,
		Name:               k.Name,
		ProviderKeyID:      k.ProviderKeyID,
		Description:        k.Description,
		Permissions:        k.Permissions,
		BudgetLimit:        decimalPtr(k.BudgetLimit),
		DailyBudgetLimit:   decimalPtr(k.DailyBudgetLimit),
		MonthlyBudgetLimit: decimalPtr(k.MonthlyBudgetLimit),
		RateLimit:          k.RateLimit,
		AllowedIPs:         k.AllowedIPs,
		AllowedDomains:     k.AllowedDomains,
		IsActive:           k.IsActive,
		CreatedAt:          k.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          timePtr(k.UpdatedAt),
		LastUsed:           timePtr(k.LastUsed),
		ExpiresAt:          timePtr(k.ExpiresAt),
		TotalRequests:      k.TotalRequests,
	}
}

func decimalPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

// CreateProxyKeyRequest is the request body for POST /admin/proxy-keys.
type CreateProxyKeyRequest struct {
	Name               string           `json:"name"`
	ProviderKeyID      string           `json:"providerKeyId"`
	Description        string           `json:"description"`
	Permissions        []string         `json:"permissions"`
	BudgetLimit        *decimal.Decimal `json:"budgetLimit"`
	DailyBudgetLimit   *decimal.Decimal `json:"dailyBudgetLimit"`
	MonthlyBudgetLimit *decimal.Decimal `json:"monthlyBudgetLimit"`
	RateLimit          *int             `json:"rateLimit"`
	AllowedIPs         []string         `json:"allowedIps"`
	AllowedDomains     []string         `json:"allowedDomains"`
	ExpiresAt          *time.Time       `json:"expiresAt"`
}

// CreateProxyKeyResponse includes the raw keyId, shown only once.
type CreateProxyKeyResponse struct {
	ProxyKey ProxyKeyResponse `json:"proxyKey"`
	KeyID    string           `json:"keyId"`
}

// HandleCreateProxyKey issues a new proxy key
// POST /admin/proxy-keys
func (h *Handler) HandleCreateProxyKey(w http.ResponseWriter, r *http.Request) {
	var req CreateProxyKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON")
		return
	}

	policy := &vault.Policy{
		Name:               req.Name,
		ProviderKeyID:      req.ProviderKeyID,
		Description:        req.Description,
		Permissions:        req.Permissions,
		BudgetLimit:        req.BudgetLimit,
		DailyBudgetLimit:   req.DailyBudgetLimit,
		MonthlyBudgetLimit: req.MonthlyBudgetLimit,
		RateLimit:          req.RateLimit,
		AllowedIPs:         req.AllowedIPs,
		AllowedDomains:     req.AllowedDomains,
		ExpiresAt:          req.ExpiresAt,
	}

	key, rawKeyID, err := h.registry.Create(r.Context(), policy)
	if err != nil {
		h.writeServiceError(w, err, "failed to create proxy key")
		return
	}

	writeJSON(w, http.StatusCreated, CreateProxyKeyResponse{
		ProxyKey: proxyKeyResponse(key),
		KeyID:    rawKeyID,
	})
}

// HandleListProxyKeys returns all proxy keys with usage merged in
// GET /admin/proxy-keys
func (h *Handler) HandleListProxyKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.registry.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list proxy keys")
		return
	}

	response := make([]ProxyKeyResponse, len(keys))
	for i, k := range keys {
		response[i] = proxyKeyResponse(k)
		response[i].Usage = h.usageFor(r, k.ID)
	}
	writeJSON(w, http.StatusOK, response)
}

// HandleGetProxyKey returns one proxy key with usage
// GET /admin/proxy-keys/{id}
func (h *Handler) HandleGetProxyKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "failed to get proxy key")
		return
	}
	resp := proxyKeyResponse(key)
	resp.Usage = h.usageFor(r, key.ID)
	writeJSON(w, http.StatusOK, resp)
}

// UpdateProxyKeyStatusRequest is the request body for PATCH /admin/proxy-keys/{id}/status.
type UpdateProxyKeyStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

// HandleUpdateProxyKeyStatus activates or deactivates a proxy key
// PATCH /admin/proxy-keys/{id}/status
func (h *Handler) HandleUpdateProxyKeyStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateProxyKeyStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON")
		return
	}
	if req.IsActive == nil {
		WriteError(w, http.StatusBadRequest, ErrCodeValidation, "isActive is required")
		return
	}

	key, err := h.registry.UpdateStatus(r.Context(), chi.URLParam(r, "id"), *req.IsActive)
	if err != nil {
		h.writeServiceError(w, err, "failed to update proxy key status")
		return
	}
	writeJSON(w, http.StatusOK, proxyKeyResponse(key))
}

// HandleDeleteProxyKey deletes a proxy key
// DELETE /admin/proxy-keys/{id}
func (h *Handler) HandleDeleteProxyKey(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "failed to delete proxy key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DashboardResponse aggregates vault state for the admin dashboard.
type DashboardResponse struct {
	ProviderKeys []ProviderKeyResponse `json:"providerKeys"`
	ProxyKeys    []ProxyKeyResponse    `json:"proxyKeys"`
	Analytics    DashboardAnalytics    `json:"analytics"`
}

// DashboardAnalytics carries aggregate counters across all proxy keys.
type DashboardAnalytics struct {
	TotalCost     string `json:"totalCost"`
	DailyCost     string `json:"dailyCost"`
	MonthlyCost   string `json:"monthlyCost"`
	TotalRequests uint64 `json:"totalRequests"`
	ActiveKeys    int    `json:"activeKeys"`
}

// HandleDashboard returns provider keys, proxy keys and aggregate usage
// GET /admin/dashboard
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	providerKeys, err := h.credentials.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list provider keys")
		return
	}
	proxyKeys, err := h.registry.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list proxy keys")
		return
	}

	resp := DashboardResponse{
		ProviderKeys: make([]ProviderKeyResponse, len(providerKeys)),
		ProxyKeys:    make([]ProxyKeyResponse, len(proxyKeys)),
	}
	for i, k := range providerKeys {
		resp.ProviderKeys[i] = providerKeyResponse(k)
	}

	total, daily, monthly := decimal.Zero, decimal.Zero, decimal.Zero
	for i, k := range proxyKeys {
		resp.ProxyKeys[i] = proxyKeyResponse(k)
		usage := h.usageFor(r, k.ID)
		resp.ProxyKeys[i].Usage = usage
		resp.Analytics.TotalRequests += k.TotalRequests
		if k.IsActive {
			resp.Analytics.ActiveKeys++
		}
		if usage == nil {
			continue
		}
		total = total.Add(decimal.RequireFromString(usage.TotalCost))
		daily = daily.Add(decimal.RequireFromString(usage.DailyCost))
		monthly = monthly.Add(decimal.RequireFromString(usage.MonthlyCost))
	}
	resp.Analytics.TotalCost = total.StringFixed(2)
	resp.Analytics.DailyCost = daily.StringFixed(2)
	resp.Analytics.MonthlyCost = monthly.StringFixed(2)

	writeJSON(w, http.StatusOK, resp)
}

// usageFor fetches spend counters for one key. Counter unavailability must
// not take down list views, so failures degrade to a missing usage block.
func (h *Handler) usageFor(r *http.Request, keyID string) *UsageResponse {
	snap, err := h.ledger.Snapshot(r.Context(), keyID)
	if err != nil {
		h.logger.Warn("failed to fetch usage snapshot", "key_id", keyID, "error", err)
		return nil
	}
	return &UsageResponse{
		TotalCost:   snap.TotalCost.StringFixed(2),
		DailyCost:   snap.DailyCost.StringFixed(2),
		MonthlyCost: snap.MonthlyCost.StringFixed(2),
	}
}

// SetLogLevelRequest is the request body for POST /admin/loglevel.
type SetLogLevelRequest struct {
	Level string `json:"level"`
}

// HandleSetLogLevel changes the runtime log level
// POST /admin/loglevel
func (h *Handler) HandleSetLogLevel(w http.ResponseWriter, r *http.Request) {
	var req SetLogLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON")
		return
	}

	var level slog.Level
	switch req.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		WriteError(w, http.StatusBadRequest, ErrCodeValidation, "level must be one of: debug, info, warn, error")
		return
	}

	h.logLevel.Set(level)
	h.logger.Info("log level changed", "new_level", req.Level)
	writeJSON(w, http.StatusOK, map[string]string{"level": req.Level})
}
