// Package guard enforces origin and permission policy for proxy keys.
// Checks are pure and fail-closed, evaluated in a fixed order with no side
// effects; neither the rate limiter nor the ledger is touched on rejection.
package guard

import (
	"fmt"
	"strings"
	"time"

	"github.com/costwatch/keyvault-proxy/internal/storage"
)

// Reason classifies a rejection.
type Reason string

const (
	// KeyInactive covers disabled keys and keys past their expiry.
	KeyInactive Reason = "key_inactive"
	// OriginNotAllowed covers IP and domain allowlist failures.
	OriginNotAllowed Reason = "origin_not_allowed"
	// InsufficientScope means the key lacks the required permission.
	InsufficientScope Reason = "insufficient_scope"
)

// ForbiddenError is returned when a proxy key fails an access check.
type ForbiddenError struct {
	Reason Reason
	Detail string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden (%s): %s", e.Reason, e.Detail)
}

// Check evaluates the ordered access rules for one proxied request:
// active → expiry → IP allowlist (exact match) → domain allowlist (suffix
// match) → permission scope. First failure wins.
func Check(key *storage.ProxyKey, sourceIP, originHeader, requiredPermission string, now time.Time) error {
	if !key.IsActive {
		return &ForbiddenError{Reason: KeyInactive, Detail: "key is inactive"}
	}
	if key.ExpiresAt != nil && now.After(*key.ExpiresAt) {
		return &ForbiddenError{Reason: KeyInactive, Detail: "key has expired"}
	}

	if len(key.AllowedIPs) > 0 && !containsExact(key.AllowedIPs, sourceIP) {
		return &ForbiddenError{Reason: OriginNotAllowed, Detail: fmt.Sprintf("source IP %s not in allowlist", sourceIP)}
	}

	if len(key.AllowedDomains) > 0 && !matchesDomainSuffix(key.AllowedDomains, originHeader) {
		return &ForbiddenError{Reason: OriginNotAllowed, Detail: "origin domain not in allowlist"}
	}

	if !containsExact(key.Permissions, requiredPermission) {
		return &ForbiddenError{Reason: InsufficientScope, Detail: fmt.Sprintf("missing %q permission", requiredPermission)}
	}

	return nil
}

func containsExact(set []string, value string) bool {
	for _, entry := range set {
		if entry == value {
			return true
		}
	}
	return false
}

// matchesDomainSuffix reports whether origin ends with any allowed domain.
// Scheme and port are stripped before comparison so "https://app.example.com"
// matches an allowlist entry of "example.com".
func matchesDomainSuffix(allowed []string, origin string) bool {
	host := origin
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	if host == "" {
		return false
	}
	for _, domain := range allowed {
		if strings.HasSuffix(host, domain) {
			return true
		}
	}
	return false
}
