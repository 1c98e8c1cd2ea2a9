package proxy

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/costwatch/keyvault-proxy/internal/provider"
)

// BreakerConfig holds circuit breaker settings for upstream providers.
type BreakerConfig struct {
	MaxRequests uint32        // max requests allowed in half-open state
	Interval    time.Duration // cyclic period of the closed state to clear counts
	Timeout     time.Duration // period of the open state before transitioning to half-open
}

// DefaultBreakerConfig is tuned for slow AI upstreams: short trip window,
// quick half-open probing.
var DefaultBreakerConfig = BreakerConfig{
	MaxRequests: 5,
	Interval:    1 * time.Minute,
	Timeout:     30 * time.Second,
}

// breakerRegistry manages one circuit breaker per upstream provider so a
// failing provider does not burn budget reservations on doomed calls.
type breakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[*provider.Response]
	config   BreakerConfig
	logger   *slog.Logger
}

func newBreakerRegistry(config BreakerConfig, logger *slog.Logger) *breakerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &breakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[*provider.Response]),
		config:   config,
		logger:   logger,
	}
}

func (r *breakerRegistry) get(name string) *gobreaker.CircuitBreaker[*provider.Response] {
	r.mu.RLock()
	cb, exists := r.breakers[name]
	r.mu.RUnlock()
	if exists {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: r.config.MaxRequests,
		Interval:    r.config.Interval,
		Timeout:     r.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change",
				"provider", name,
				"from", from.String(),
				"to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// 4xx responses are the caller's problem, not provider health
			if upstream, ok := err.(*provider.UpstreamError); ok && upstream.Status < 500 {
				return true
			}
			return err == nil
		},
	}
	cb = gobreaker.NewCircuitBreaker[*provider.Response](settings)
	r.breakers[name] = cb
	return cb
}
