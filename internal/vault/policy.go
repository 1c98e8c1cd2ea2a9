package vault

import (
	"time"

	"github.com/shopspring/decimal"
)

// Permission scopes a proxy key's allowed operations.
const (
	PermissionRead  = "read"
	PermissionWrite = "write"
	PermissionAdmin = "admin"
)

const (
	rateLimitMin = 1
	rateLimitMax = 10000
)

// Policy is the complete enforcement policy of a proxy key, validated once
// at construction and never mutated piecemeal. Nil limit fields mean
// "unlimited" for that dimension.
type Policy struct {
	Name               string
	ProviderKeyID      string
	Description        string
	Permissions        []string
	BudgetLimit        *decimal.Decimal
	DailyBudgetLimit   *decimal.Decimal
	MonthlyBudgetLimit *decimal.Decimal
	RateLimit          *int
	AllowedIPs         []string
	AllowedDomains     []string
	ExpiresAt          *time.Time
}

// Validate checks every policy invariant that does not require storage
// access. The provider key reference is verified separately by the registry.
// On success it returns the normalized permission set (defaulted to read).
func (p *Policy) Validate() ([]string, error) {
	if p.Name == "" {
		return nil, validationErr("name", "must not be blank")
	}
	if p.ProviderKeyID == "" {
		return nil, validationErr("providerKeyId", "must reference a provider key")
	}

	perms := p.Permissions
	if len(perms) == 0 {
		perms = []string{PermissionRead}
	}
	seen := make(map[string]bool, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, perm := range perms {
		switch perm {
		case PermissionRead, PermissionWrite, PermissionAdmin:
		default:
			return nil, validationErr("permissions", "unknown permission %q", perm)
		}
		if !seen[perm] {
			seen[perm] = true
			normalized = append(normalized, perm)
		}
	}

	for field, limit := range map[string]*decimal.Decimal{
		"budgetLimit":        p.BudgetLimit,
		"dailyBudgetLimit":   p.DailyBudgetLimit,
		"monthlyBudgetLimit": p.MonthlyBudgetLimit,
	} {
		if limit != nil && !limit.IsPositive() {
			return nil, validationErr(field, "must be greater than zero")
		}
	}

	if p.RateLimit != nil && (*p.RateLimit < rateLimitMin || *p.RateLimit > rateLimitMax) {
		return nil, validationErr("rateLimit", "must be between %d and %d requests/minute", rateLimitMin, rateLimitMax)
	}

	for _, ip := range p.AllowedIPs {
		if ip == "" {
			return nil, validationErr("allowedIPs", "entries must not be empty")
		}
	}
	for _, domain := range p.AllowedDomains {
		if domain == "" {
			return nil, validationErr("allowedDomains", "entries must not be empty")
		}
	}

	return normalized, nil
}
