package provider

import (
	"github.com/shopspring/decimal"

	"github.com/costwatch/keyvault-proxy/internal/storage"
)

// ModelRate is the USD price per 1K prompt/completion tokens.
type ModelRate struct {
	In  decimal.Decimal
	Out decimal.Decimal
}

func rate(in, out string) ModelRate {
	return ModelRate{In: decimal.RequireFromString(in), Out: decimal.RequireFromString(out)}
}

// modelRates holds per-model prices. Models not listed fall back to their
// provider's default, which is chosen conservatively high so estimation
// errs toward reserving too much budget rather than too little.
var modelRates = map[string]ModelRate{
	// OpenAI
	"gpt-4o":        rate("0.0025", "0.01"),
	"gpt-4o-mini":   rate("0.00015", "0.0006"),
	"gpt-4-turbo":   rate("0.01", "0.03"),
	"gpt-3.5-turbo": rate("0.0005", "0.0015"),

	// Anthropic
	"claude-3-5-sonnet-20241022": rate("0.003", "0.015"),
	"claude-3-5-haiku-20241022":  rate("0.0008", "0.004"),
	"claude-3-opus-20240229":     rate("0.015", "0.075"),

	// Google
	"gemini-1.5-pro":   rate("0.00125", "0.005"),
	"gemini-1.5-flash": rate("0.000075", "0.0003"),

	// Cohere
	"command-r":      rate("0.00015", "0.0006"),
	"command-r-plus": rate("0.0025", "0.01"),

	// AWS Bedrock (Anthropic models)
	"anthropic.claude-3-5-sonnet-20241022-v2:0": rate("0.003", "0.015"),
	"anthropic.claude-3-haiku-20240307-v1:0":    rate("0.00025", "0.00125"),

	// DeepSeek
	"deepseek-chat":     rate("0.00014", "0.00028"),
	"deepseek-reasoner": rate("0.00055", "0.00219"),

	// Groq
	"llama-3.3-70b-versatile": rate("0.00059", "0.00079"),
	"llama-3.1-8b-instant":    rate("0.00005", "0.00008"),
}

var defaultRates = map[storage.Provider]ModelRate{
	storage.ProviderOpenAI:     rate("0.01", "0.03"),
	storage.ProviderAnthropic:  rate("0.015", "0.075"),
	storage.ProviderGoogle:     rate("0.00125", "0.005"),
	storage.ProviderCohere:     rate("0.0025", "0.01"),
	storage.ProviderAWSBedrock: rate("0.015", "0.075"),
	storage.ProviderDeepSeek:   rate("0.00055", "0.00219"),
	storage.ProviderGroq:       rate("0.00059", "0.00079"),
}

const (
	// Rough chars-per-token ratio for prompt estimation
	charsPerToken = 4
	// Completion allowance when the request does not declare max_tokens
	defaultMaxTokens = 1024
)

var perThousand = decimal.NewFromInt(1000)

// RateFor resolves the pricing rate for a model under a provider.
func RateFor(p storage.Provider, model string) ModelRate {
	if r, ok := modelRates[model]; ok {
		return r
	}
	return defaultRates[p]
}

// EstimateCost computes the pre-call budget reservation for a request:
// prompt size over the chars-per-token ratio plus the declared (or default)
// completion allowance, priced at the model's rates.
func EstimateCost(p storage.Provider, req *Request) decimal.Decimal {
	r := RateFor(p, req.Model)
	promptTokens := decimal.NewFromInt(int64(req.PromptChars / charsPerToken))
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	completionTokens := decimal.NewFromInt(int64(maxTokens))
	return promptTokens.Mul(r.In).Add(completionTokens.Mul(r.Out)).Div(perThousand)
}

// ActualCost prices the token usage reported by the provider response.
func ActualCost(p storage.Provider, model string, usage Usage) decimal.Decimal {
	r := RateFor(p, model)
	in := decimal.NewFromInt(int64(usage.PromptTokens)).Mul(r.In)
	out := decimal.NewFromInt(int64(usage.CompletionTokens)).Mul(r.Out)
	return in.Add(out).Div(perThousand)
}
