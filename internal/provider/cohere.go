package provider

import (
	"context"
	"encoding/json"
	"net/http"
)

// Cohere forwards to the Cohere chat API.
type Cohere struct {
	baseURL string
	client  *http.Client
}

// NewCohere creates the Cohere adapter.
func NewCohere(baseURL string, client *http.Client) *Cohere {
	if baseURL == "" {
		baseURL = "https://api.cohere.com/v2"
	}
	if client == nil {
		client = defaultHTTPClient()
	}
	return &Cohere{baseURL: baseURL, client: client}
}

// Name implements Adapter.
func (c *Cohere) Name() string { return "cohere" }

// Forward implements Adapter.
func (c *Cohere) Forward(ctx context.Context, secret string, req *Request) (*Response, error) {
	return forwardHTTP(ctx, c.client, "cohere", c.baseURL, req,
		func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+secret)
		},
		parseCohereUsage,
	)
}

func parseCohereUsage(body []byte) Usage {
	var resp struct {
		Usage struct {
			BilledUnits struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"billed_units"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     resp.Usage.BilledUnits.InputTokens,
		CompletionTokens: resp.Usage.BilledUnits.OutputTokens,
	}
}

var _ Adapter = (*Cohere)(nil)
