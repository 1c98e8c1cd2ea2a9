package provider

import (
	"context"
	"encoding/json"
	"net/http"
)

const anthropicVersion = "2023-06-01"

// Anthropic forwards to the Anthropic Messages API.
type Anthropic struct {
	baseURL string
	client  *http.Client
}

// NewAnthropic creates the Anthropic adapter.
func NewAnthropic(baseURL string, client *http.Client) *Anthropic {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	if client == nil {
		client = defaultHTTPClient()
	}
	return &Anthropic{baseURL: baseURL, client: client}
}

// Name implements Adapter.
func (a *Anthropic) Name() string { return "anthropic" }

// Forward implements Adapter.
func (a *Anthropic) Forward(ctx context.Context, secret string, req *Request) (*Response, error) {
	return forwardHTTP(ctx, a.client, "anthropic", a.baseURL, req,
		func(r *http.Request) {
			r.Header.Set("x-api-key", secret)
			r.Header.Set("anthropic-version", anthropicVersion)
		},
		parseAnthropicUsage,
	)
}

func parseAnthropicUsage(body []byte) Usage {
	var resp struct {
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}
}

var _ Adapter = (*Anthropic)(nil)
