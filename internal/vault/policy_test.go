package vault

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(v int) *int { return &v }

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name      string
		policy    Policy
		wantPerms []string
		wantField string
	}{
		{
			name:      "minimal valid policy defaults to read",
			policy:    Policy{Name: "team", ProviderKeyID: "prov-1"},
			wantPerms: []string{"read"},
		},
		{
			name: "explicit permissions deduplicated in order",
			policy: Policy{
				Name:          "team",
				ProviderKeyID: "prov-1",
				Permissions:   []string{"write", "read", "write"},
			},
			wantPerms: []string{"write", "read"},
		},
		{
			name: "full policy",
			policy: Policy{
				Name:               "team",
				ProviderKeyID:      "prov-1",
				Permissions:        []string{"read", "write", "admin"},
				BudgetLimit:        decPtr("100"),
				DailyBudgetLimit:   decPtr("10"),
				MonthlyBudgetLimit: decPtr("50"),
				RateLimit:          intPtr(60),
				AllowedIPs:         []string{"10.0.0.1"},
				AllowedDomains:     []string{"example.com"},
			},
			wantPerms: []string{"read", "write", "admin"},
		},
		{
			name:      "blank name",
			policy:    Policy{ProviderKeyID: "prov-1"},
			wantField: "name",
		},
		{
			name:      "missing provider key reference",
			policy:    Policy{Name: "team"},
			wantField: "providerKeyId",
		},
		{
			name: "unknown permission",
			policy: Policy{
				Name:          "team",
				ProviderKeyID: "prov-1",
				Permissions:   []string{"superuser"},
			},
			wantField: "permissions",
		},
		{
			name: "zero budget limit",
			policy: Policy{
				Name:          "team",
				ProviderKeyID: "prov-1",
				BudgetLimit:   decPtr("0"),
			},
			wantField: "budgetLimit",
		},
		{
			name: "negative daily limit",
			policy: Policy{
				Name:             "team",
				ProviderKeyID:    "prov-1",
				DailyBudgetLimit: decPtr("-5"),
			},
			wantField: "dailyBudgetLimit",
		},
		{
			name: "rate limit below minimum",
			policy: Policy{
				Name:          "team",
				ProviderKeyID: "prov-1",
				RateLimit:     intPtr(0),
			},
			wantField: "rateLimit",
		},
		{
			name: "rate limit above maximum",
			policy: Policy{
				Name:          "team",
				ProviderKeyID: "prov-1",
				RateLimit:     intPtr(10001),
			},
			wantField: "rateLimit",
		},
		{
			name: "empty IP allowlist entry",
			policy: Policy{
				Name:          "team",
				ProviderKeyID: "prov-1",
				AllowedIPs:    []string{"10.0.0.1", ""},
			},
			wantField: "allowedIPs",
		},
		{
			name: "empty domain allowlist entry",
			policy: Policy{
				Name:           "team",
				ProviderKeyID:  "prov-1",
				AllowedDomains: []string{""},
			},
			wantField: "allowedDomains",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perms, err := tt.policy.Validate()
			if tt.wantField != "" {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("Validate() error = %v, want *ValidationError", err)
				}
				if vErr.Field != tt.wantField {
					t.Fatalf("Validate() failed on field %q, want %q", vErr.Field, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if !reflect.DeepEqual(perms, tt.wantPerms) {
				t.Fatalf("Validate() permissions = %v, want %v", perms, tt.wantPerms)
			}
		})
	}
}
