package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider identifies an upstream AI provider.
type Provider string

// The closed set of supported upstream providers.
const (
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderGoogle     Provider = "google"
	ProviderCohere     Provider = "cohere"
	ProviderAWSBedrock Provider = "aws-bedrock"
	ProviderDeepSeek   Provider = "deepseek"
	ProviderGroq       Provider = "groq"
)

// Providers lists all supported providers.
var Providers = []Provider{
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderGoogle,
	ProviderCohere,
	ProviderAWSBedrock,
	ProviderDeepSeek,
	ProviderGroq,
}

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// ProviderKey is a master provider credential. The raw secret is encrypted
// before it reaches this struct; only MaskedKey is ever exposed externally.
type ProviderKey struct {
	ID              string
	Name            string
	Provider        Provider
	EncryptedSecret []byte
	MaskedKey       string
	Description     string
	IsActive        bool
	CreatedAt       time.Time
	LastUsed        *time.Time
}

// ProxyKey is a derived, policy-scoped credential issued to a downstream
// caller in place of a ProviderKey. The raw bearer keyId is stored only as
// KeyHash; KeyPrefix is kept for list views.
type ProxyKey struct {
	ID                 string
	KeyHash            string
	KeyPrefix          string
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
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          *time.Time
	LastUsed           *time.Time
	ExpiresAt          *time.Time
	TotalRequests      uint64
}
