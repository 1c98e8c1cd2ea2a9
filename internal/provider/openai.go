package provider

import (
	"context"
	"encoding/json"
	"net/http"
)

// OpenAICompatible forwards to any provider speaking the OpenAI HTTP API:
// OpenAI itself, plus DeepSeek and Groq, which differ only in base URL.
type OpenAICompatible struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewOpenAICompatible creates an adapter for an OpenAI-style API.
func NewOpenAICompatible(name, baseURL string, client *http.Client) *OpenAICompatible {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &OpenAICompatible{name: name, baseURL: baseURL, client: client}
}

// Name implements Adapter.
func (a *OpenAICompatible) Name() string { return a.name }

// Forward implements Adapter.
func (a *OpenAICompatible) Forward(ctx context.Context, secret string, req *Request) (*Response, error) {
	return forwardHTTP(ctx, a.client, a.name, a.baseURL, req,
		func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+secret)
		},
		parseOpenAIUsage,
	)
}

func parseOpenAIUsage(body []byte) Usage {
	var resp struct {
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	// Responses without a usage object (e.g. model listings) report zero
	if err := json.Unmarshal(body, &resp); err != nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
}

var _ Adapter = (*OpenAICompatible)(nil)
