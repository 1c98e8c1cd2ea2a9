package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/costwatch/keyvault-proxy/internal/ledger"
)

func createProxyKey(t *testing.T, f *adminFixture, providerKeyID, name string) CreateProxyKeyResponse {
	t.Helper()
	body := `{"name":"` + name + `","providerKeyId":"` + providerKeyID + `","budgetLimit":"100","dailyBudgetLimit":"10","rateLimit":60}`
	rec := f.do(http.MethodPost, "/admin/proxy-keys", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create proxy key: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp CreateProxyKeyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestCreateProxyKey(t *testing.T) {
	f := newAdminFixture(t)
	providerKey := createProviderKey(t, f, "openai production")

	resp := createProxyKey(t, f, providerKey.ID, "frontend")
	if !strings.HasPrefix(resp.KeyID, "pk-") {
		t.Errorf("keyId = %q, want pk- prefix", resp.KeyID)
	}
	if len(resp.KeyID) != 35 {
		t.Errorf("len(keyId) = %d, want 35", len(resp.KeyID))
	}
	if !strings.HasPrefix(resp.KeyID, resp.ProxyKey.KeyPrefix) {
		t.Errorf("keyPrefix %q is not a prefix of keyId %q", resp.ProxyKey.KeyPrefix, resp.KeyID)
	}
	if got := resp.ProxyKey.Permissions; len(got) != 1 || got[0] != "read" {
		t.Errorf("permissions = %v, want default [read]", got)
	}
	if resp.ProxyKey.BudgetLimit == nil || *resp.ProxyKey.BudgetLimit != "100.00" {
		t.Errorf("budgetLimit = %v, want 100.00", resp.ProxyKey.BudgetLimit)
	}
	if !resp.ProxyKey.IsActive {
		t.Error("new proxy key should be active")
	}
}

// The raw keyId is returned exactly once, on creation. Every later read
// exposes only the display prefix.
func TestProxyKeyIDShownOnlyOnce(t *testing.T) {
	f := newAdminFixture(t)
	providerKey := createProviderKey(t, f, "openai production")
	created := createProxyKey(t, f, providerKey.ID, "frontend")

	for _, path := range []string{"/admin/proxy-keys", "/admin/proxy-keys/" + created.ProxyKey.ID, "/admin/dashboard"} {
		rec := f.do(http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", path, rec.Code)
		}
		if strings.Contains(rec.Body.String(), created.KeyID) {
			t.Errorf("GET %s exposes the full keyId", path)
		}
		if !strings.Contains(rec.Body.String(), created.ProxyKey.KeyPrefix) {
			t.Errorf("GET %s is missing the key prefix", path)
		}
	}
}

func TestCreateProxyKeyValidation(t *testing.T) {
	f := newAdminFixture(t)
	providerKey := createProviderKey(t, f, "openai production")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"invalid JSON", `{`, http.StatusBadRequest},
		{"blank name", `{"name":"","providerKeyId":"` + providerKey.ID + `"}`, http.StatusBadRequest},
		{"unknown permission", `{"name":"k","providerKeyId":"` + providerKey.ID + `","permissions":["admin2"]}`, http.StatusBadRequest},
		{"negative budget", `{"name":"k","providerKeyId":"` + providerKey.ID + `","budgetLimit":"-5"}`, http.StatusBadRequest},
		{"rate limit too high", `{"name":"k","providerKeyId":"` + providerKey.ID + `","rateLimit":10001}`, http.StatusBadRequest},
		{"missing provider key", `{"name":"k","providerKeyId":"no-such-id"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/admin/proxy-keys", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestUpdateProxyKeyStatus(t *testing.T) {
	f := newAdminFixture(t)
	providerKey := createProviderKey(t, f, "openai production")
	created := createProxyKey(t, f, providerKey.ID, "frontend")

	rec := f.do(http.MethodPatch, "/admin/proxy-keys/"+created.ProxyKey.ID+"/status", `{"isActive":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp ProxyKeyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.IsActive {
		t.Error("isActive = true after deactivation")
	}

	rec = f.do(http.MethodPatch, "/admin/proxy-keys/"+created.ProxyKey.ID+"/status", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing isActive: status = %d, want 400", rec.Code)
	}

	rec = f.do(http.MethodPatch, "/admin/proxy-keys/no-such-id/status", `{"isActive":true}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", rec.Code)
	}
}

func TestGetProxyKeyIncludesUsage(t *testing.T) {
	f := newAdminFixture(t)
	providerKey := createProviderKey(t, f, "openai production")
	created := createProxyKey(t, f, providerKey.ID, "frontend")

	spend := decimal.RequireFromString("1.50")
	if _, err := f.ledger.TryDebit(context.Background(), created.ProxyKey.ID, ledger.Limits{}, spend); err != nil {
		t.Fatalf("TryDebit: %v", err)
	}

	rec := f.do(http.MethodGet, "/admin/proxy-keys/"+created.ProxyKey.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp ProxyKeyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Usage == nil {
		t.Fatal("usage block missing")
	}
	if resp.Usage.TotalCost != "1.50" || resp.Usage.DailyCost != "1.50" {
		t.Errorf("usage = %+v, want 1.50 total and daily", resp.Usage)
	}
}

func TestDeleteProxyKey(t *testing.T) {
	f := newAdminFixture(t)
	providerKey := createProviderKey(t, f, "openai production")
	created := createProxyKey(t, f, providerKey.ID, "frontend")

	rec := f.do(http.MethodDelete, "/admin/proxy-keys/"+created.ProxyKey.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	rec = f.do(http.MethodGet, "/admin/proxy-keys/"+created.ProxyKey.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", rec.Code)
	}
}

func TestHandleDashboard(t *testing.T) {
	f := newAdminFixture(t)
	providerKey := createProviderKey(t, f, "openai production")
	active := createProxyKey(t, f, providerKey.ID, "frontend")
	inactive := createProxyKey(t, f, providerKey.ID, "batch jobs")
	f.do(http.MethodPatch, "/admin/proxy-keys/"+inactive.ProxyKey.ID+"/status", `{"isActive":false}`)

	for keyID, amount := range map[string]string{
		active.ProxyKey.ID:   "2.25",
		inactive.ProxyKey.ID: "0.75",
	} {
		spend := decimal.RequireFromString(amount)
		if _, err := f.ledger.TryDebit(context.Background(), keyID, ledger.Limits{}, spend); err != nil {
			t.Fatalf("TryDebit: %v", err)
		}
	}

	rec := f.do(http.MethodGet, "/admin/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp DashboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.ProviderKeys) != 1 || len(resp.ProxyKeys) != 2 {
		t.Fatalf("keys = %d/%d, want 1 provider and 2 proxy", len(resp.ProviderKeys), len(resp.ProxyKeys))
	}
	if resp.Analytics.ActiveKeys != 1 {
		t.Errorf("activeKeys = %d, want 1", resp.Analytics.ActiveKeys)
	}
	if resp.Analytics.TotalCost != "3.00" {
		t.Errorf("totalCost = %s, want 3.00", resp.Analytics.TotalCost)
	}
	if resp.Analytics.DailyCost != "3.00" {
		t.Errorf("dailyCost = %s, want 3.00", resp.Analytics.DailyCost)
	}
}
