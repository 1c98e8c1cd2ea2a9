package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/costwatch/keyvault-proxy/internal/storage"
	"github.com/costwatch/keyvault-proxy/internal/vault"
)

// ProviderKeyResponse represents a provider credential in API responses.
// The secret is never included; only the masked form is exposed.
type ProviderKeyResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	MaskedKey   string  `json:"maskedKey"`
	Description string  `json:"description,omitempty"`
	IsActive    bool    `json:"isActive"`
	CreatedAt   string  `json:"createdAt"`
	LastUsed    *string `json:"lastUsed,omitempty"`
}

func providerKeyResponse(k *storage.ProviderKey) ProviderKeyResponse {
	return ProviderKeyResponse{
		ID:          k.ID,
		Name:        k.Name,
		Provider:    string(k.Provider),
		MaskedKey:   k.MaskedKey,
		Description: k.Description,
		IsActive:    k.IsActive,
		CreatedAt:   k.CreatedAt.UTC().Format(time.RFC3339),
		LastUsed:    timePtr(k.LastUsed),
	}
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// CreateProviderKeyRequest is the request body for POST /admin/provider-keys.
type CreateProviderKeyRequest struct {
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	APIKey      string `json:"apiKey"`
	Description string `json:"description"`
}

// HandleCreateProviderKey stores a new provider credential
// POST /admin/provider-keys
func (h *Handler) HandleCreateProviderKey(w http.ResponseWriter, r *http.Request) {
	var req CreateProviderKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON")
		return
	}

	key, err := h.credentials.Store(r.Context(), req.Name, storage.Provider(req.Provider), req.APIKey, req.Description)
	if err != nil {
		h.writeServiceError(w, err, "failed to store provider key")
		return
	}

	writeJSON(w, http.StatusCreated, providerKeyResponse(key))
}

// HandleListProviderKeys returns all provider credentials (masked)
// GET /admin/provider-keys
func (h *Handler) HandleListProviderKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.credentials.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list provider keys")
		return
	}

	response := make([]ProviderKeyResponse, len(keys))
	for i, k := range keys {
		response[i] = providerKeyResponse(k)
	}
	writeJSON(w, http.StatusOK, response)
}

// HandleGetProviderKey returns one provider credential (masked)
// GET /admin/provider-keys/{id}
func (h *Handler) HandleGetProviderKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.credentials.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "failed to get provider key")
		return
	}
	writeJSON(w, http.StatusOK, providerKeyResponse(key))
}

// HandleDeleteProviderKey deletes a provider credential and deactivates the
// proxy keys derived from it
// DELETE /admin/provider-keys/{id}
func (h *Handler) HandleDeleteProviderKey(w http.ResponseWriter, r *http.Request) {
	if err := h.credentials.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "failed to delete provider key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps vault and storage errors onto API error responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	var vErr *vault.ValidationError
	switch {
	case errors.As(err, &vErr):
		WriteError(w, http.StatusBadRequest, ErrCodeValidation, vErr.Error())
	case errors.Is(err, storage.ErrNotFound):
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "not found")
	case errors.Is(err, storage.ErrDuplicate):
		WriteError(w, http.StatusConflict, ErrCodeDuplicate, "a record with that name already exists")
	default:
		h.logger.Error(logMsg, "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	}
}
