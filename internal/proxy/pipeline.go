// Package proxy implements the proxying orchestrator: the pipeline that
// takes a bearer keyId plus a provider-native request, runs it through the
// access guard, rate limiter, and budget ledger, and forwards it upstream
// with the decrypted master credential.
package proxy

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/costwatch/keyvault-proxy/internal/guard"
	"github.com/costwatch/keyvault-proxy/internal/ledger"
	"github.com/costwatch/keyvault-proxy/internal/provider"
	"github.com/costwatch/keyvault-proxy/internal/ratelimit"
	"github.com/costwatch/keyvault-proxy/internal/storage"
	"github.com/costwatch/keyvault-proxy/internal/vault"
)

// Call is one proxied request moving through the pipeline. It is the
// request-scoped context threaded explicitly through every stage; no stage
// reads ambient shared state.
type Call struct {
	RawKeyID string
	SourceIP string
	Origin   string
	Request  *provider.Request
}

// Result is the outcome of a successfully proxied call.
type Result struct {
	Response   *provider.Response
	Cost       decimal.Decimal
	ProxyKeyID string
	Provider   storage.Provider
}

// Pipeline wires the enforcement components in their fixed order.
type Pipeline struct {
	registry    *vault.ProxyKeyRegistry
	credentials *vault.CredentialStore
	limiter     *ratelimit.Limiter
	ledger      *ledger.Ledger
	adapters    *provider.Registry
	breakers    *breakerRegistry
	retry       RetryConfig
	logger      *slog.Logger
}

// NewPipeline assembles the pipeline.
// If logger is nil, slog.Default() will be used.
func NewPipeline(
	registry *vault.ProxyKeyRegistry,
	credentials *vault.CredentialStore,
	limiter *ratelimit.Limiter,
	budgetLedger *ledger.Ledger,
	adapters *provider.Registry,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		registry:    registry,
		credentials: credentials,
		limiter:     limiter,
		ledger:      budgetLedger,
		adapters:    adapters,
		breakers:    newBreakerRegistry(DefaultBreakerConfig, logger),
		retry:       DefaultRetryConfig,
		logger:      logger,
	}
}

// Execute runs one proxied call through guard → rate limiter → ledger →
// decrypt → upstream → reconcile. Each rejection short-circuits before any
// later stage runs; nothing here holds a lock across the upstream call.
func (p *Pipeline) Execute(ctx context.Context, call *Call) (*Result, error) {
	key, err := p.registry.Authenticate(ctx, call.RawKeyID)
	if err != nil {
		return nil, err
	}

	if err := guard.Check(key, call.SourceIP, call.Origin, requiredPermission(call.Request), time.Now()); err != nil {
		return nil, err
	}

	if err := p.limiter.TryConsume(ctx, key.ID, key.RateLimit); err != nil {
		return nil, err
	}

	providerKey, err := p.credentials.Get(ctx, key.ProviderKeyID)
	if err != nil {
		return nil, err
	}

	estimate := provider.EstimateCost(providerKey.Provider, call.Request)
	token, err := p.ledger.TryDebit(ctx, key.ID, ledger.Limits{
		Total:   key.BudgetLimit,
		Daily:   key.DailyBudgetLimit,
		Monthly: key.MonthlyBudgetLimit,
	}, estimate)
	if err != nil {
		return nil, err
	}

	// From here on every failure path must release the provisional debit.
	secret, err := p.credentials.Reveal(ctx, key.ProviderKeyID)
	if err != nil {
		p.refund(key.ID, token)
		return nil, err
	}

	response, err := p.forward(ctx, providerKey.Provider, secret, call.Request)
	if err != nil {
		p.refund(key.ID, token)
		return nil, err
	}

	actual := provider.ActualCost(providerKey.Provider, call.Request.Model, response.Usage)
	if err := p.ledger.Reconcile(ctx, token, actual); err != nil {
		// The call succeeded and is billable; log the drift rather than
		// failing the response.
		p.logger.Error("ledger reconcile failed", "key_id", key.ID, "error", err)
	}

	p.recordUse(key.ID, key.ProviderKeyID)

	return &Result{
		Response:   response,
		Cost:       actual,
		ProxyKeyID: key.ID,
		Provider:   providerKey.Provider,
	}, nil
}

// forward sends the request upstream through the provider's circuit
// breaker, retrying only idempotent calls.
func (p *Pipeline) forward(ctx context.Context, providerName storage.Provider, secret string, req *provider.Request) (*provider.Response, error) {
	adapter, err := p.adapters.For(providerName)
	if err != nil {
		return nil, err
	}

	breaker := p.breakers.get(adapter.Name())
	attempt := func() (*provider.Response, error) {
		response, err := breaker.Execute(func() (*provider.Response, error) {
			return adapter.Forward(ctx, secret, req)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &provider.UpstreamError{
				Provider: adapter.Name(),
				Status:   http.StatusServiceUnavailable,
				Body:     []byte(`{"error":"provider temporarily unavailable"}`),
			}
		}
		return response, err
	}

	if req.Idempotent() {
		return withRetry(ctx, p.retry, attempt)
	}
	return attempt()
}

// refund releases a provisional debit on a failure path. Uses a detached
// context so a client disconnect cannot strand the reservation.
func (p *Pipeline) refund(keyID string, token *ledger.DebitToken) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.ledger.Refund(ctx, token); err != nil {
		p.logger.Error("ledger refund failed", "key_id", keyID, "error", err)
	}
}

// recordUse updates lastUsed/totalRequests bookkeeping off the hot path.
func (p *Pipeline) recordUse(keyID, providerKeyID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.registry.RecordUse(ctx, keyID); err != nil {
			p.logger.Warn("record proxy key use failed", "key_id", keyID, "error", err)
		}
		if err := p.credentials.Touch(ctx, providerKeyID); err != nil {
			p.logger.Warn("record provider key use failed", "provider_key_id", providerKeyID, "error", err)
		}
	}()
}

// requiredPermission maps a provider-native call to the scope it needs.
// Inference and read-only calls need "read"; provider-side mutations
// (fine-tune deletes and the like) need "write".
func requiredPermission(req *provider.Request) string {
	switch req.Method {
	case http.MethodGet, http.MethodPost:
		return vault.PermissionRead
	default:
		return vault.PermissionWrite
	}
}
