package provider

import (
	"context"
	"encoding/json"
	"net/http"
)

// Google forwards to the Gemini generateContent API.
type Google struct {
	baseURL string
	client  *http.Client
}

// NewGoogle creates the Google adapter.
func NewGoogle(baseURL string, client *http.Client) *Google {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if client == nil {
		client = defaultHTTPClient()
	}
	return &Google{baseURL: baseURL, client: client}
}

// Name implements Adapter.
func (g *Google) Name() string { return "google" }

// Forward implements Adapter.
func (g *Google) Forward(ctx context.Context, secret string, req *Request) (*Response, error) {
	return forwardHTTP(ctx, g.client, "google", g.baseURL, req,
		func(r *http.Request) {
			r.Header.Set("x-goog-api-key", secret)
		},
		parseGoogleUsage,
	)
}

func parseGoogleUsage(body []byte) Usage {
	var resp struct {
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     resp.UsageMetadata.PromptTokenCount,
		CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
	}
}

var _ Adapter = (*Google)(nil)
