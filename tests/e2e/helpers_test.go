//go:build e2e

package e2e

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/costwatch/keyvault-proxy/internal/admin"
	"github.com/costwatch/keyvault-proxy/internal/ledger"
	"github.com/costwatch/keyvault-proxy/internal/middleware"
	"github.com/costwatch/keyvault-proxy/internal/provider"
	"github.com/costwatch/keyvault-proxy/internal/proxy"
	"github.com/costwatch/keyvault-proxy/internal/ratelimit"
	"github.com/costwatch/keyvault-proxy/internal/storage"
	"github.com/costwatch/keyvault-proxy/internal/testutil/mockprovider"
	"github.com/costwatch/keyvault-proxy/internal/vault"
)

const adminToken = "e2e-admin-token"

// env is a fully wired gateway running in-process: sqlite storage, memory
// counters, and a mock upstream standing in for every provider.
type env struct {
	Server   *httptest.Server
	Upstream *mockprovider.Server
	Ledger   *ledger.Ledger
}

// setup boots the whole stack the way cmd/keyvault-proxy does, minus the
// process plumbing.
func setup(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.InitSchema(db))
	store := storage.NewSQLiteStorage(db)

	masterKey, err := storage.DeriveMasterKey("e2e master passphrase")
	require.NoError(t, err)

	credentials, err := vault.NewCredentialStore(store, masterKey, logger)
	require.NoError(t, err)
	registry := vault.NewProxyKeyRegistry(store, logger)

	led := ledger.NewLedger(ledger.NewMemoryBackend(), nil, logger)
	t.Cleanup(func() { led.Close() })
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryBackend())

	mock := mockprovider.New()
	upstream := httptest.NewServer(mock.Handler())
	t.Cleanup(upstream.Close)

	adapters, err := provider.NewRegistry(provider.Options{
		BaseURL:    upstream.URL + "/v1",
		HTTPClient: upstream.Client(),
	})
	require.NoError(t, err)

	pipeline := proxy.NewPipeline(registry, credentials, limiter, led, adapters, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	admin.NewHandler(credentials, registry, led, store, adminToken, nil, logger).Routes(router)
	proxy.NewHandler(pipeline, logger).Routes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &env{Server: server, Upstream: mock, Ledger: led}
}

// adminRequest makes an authenticated admin API call.
func (e *env) adminRequest(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.Server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("AccessKey", adminToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// proxyChat makes a proxied chat completion call with the given bearer keyId.
func (e *env) proxyChat(t *testing.T, keyID string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.Server.URL+"/v1/chat/completions",
		strings.NewReader(`{"model":"gpt-4o","max_tokens":50,"messages":[{"role":"user","content":"ping"}]}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+keyID)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// createProviderKey stores a provider credential and returns its id.
func (e *env) createProviderKey(t *testing.T, name string) string {
	t.Helper()
	resp := e.adminRequest(t, http.MethodPost, "/admin/provider-keys",
		`{"name":"`+name+`","provider":"openai","apiKey":"sk-real-upstream-secret"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	decodeJSON(t, resp, &created)
	require.NotEmpty(t, created.ID)
	return created.ID
}

// createProxyKey issues a proxy key and returns (id, raw keyId).
func (e *env) createProxyKey(t *testing.T, providerKeyID, extra string) (string, string) {
	t.Helper()
	body := `{"name":"e2e key","providerKeyId":"` + providerKeyID + `"` + extra + `}`
	resp := e.adminRequest(t, http.MethodPost, "/admin/proxy-keys", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		KeyID    string `json:"keyId"`
		ProxyKey struct {
			ID string `json:"id"`
		} `json:"proxyKey"`
	}
	decodeJSON(t, resp, &created)
	require.NotEmpty(t, created.KeyID)
	return created.ProxyKey.ID, created.KeyID
}
