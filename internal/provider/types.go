// Package provider contains one adapter per upstream AI provider. Adapters
// forward provider-native request bodies using the decrypted master secret
// and extract token usage from the response. The request proxy selects an
// adapter through the factory; nothing else dispatches on provider type.
package provider

import (
	"context"
	"encoding/json"
	"net/http"
)

// Request is one provider-native call to be forwarded upstream.
type Request struct {
	// Path is the provider-native path tail, e.g. "chat/completions".
	Path string
	// Method is the HTTP method of the original call.
	Method string
	// Body is the raw provider-native JSON body.
	Body []byte
	// Model as declared in the body, when present. Drives pricing.
	Model string
	// MaxTokens as declared in the body; 0 when absent.
	MaxTokens int
	// PromptChars is the total character count of prompt content, used for
	// pre-call cost estimation.
	PromptChars int
}

// Idempotent reports whether the call is safe to retry automatically.
// Only read-only calls qualify; inference calls are never auto-retried.
func (r *Request) Idempotent() bool {
	return r.Method == http.MethodGet
}

// Usage is the token accounting reported by a provider response.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response is the upstream result of a forwarded call.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Usage       Usage
}

// Adapter forwards requests to one upstream provider.
type Adapter interface {
	// Name returns the provider identifier, e.g. "openai".
	Name() string
	// Forward sends the request upstream using the decrypted secret.
	// Non-2xx upstream statuses are returned as *UpstreamError.
	Forward(ctx context.Context, secret string, req *Request) (*Response, error)
}

// ParseRequest builds a Request from a provider-native call, extracting the
// fields cost estimation needs. Unknown body shapes still forward; they just
// estimate from size alone.
func ParseRequest(method, path string, body []byte) *Request {
	req := &Request{Path: path, Method: method, Body: body}

	var probe struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
		Prompt   string `json:"prompt"`
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		req.PromptChars = len(body)
		return req
	}

	req.Model = probe.Model
	req.MaxTokens = probe.MaxTokens
	for _, msg := range probe.Messages {
		req.PromptChars += len(msg.Content)
	}
	req.PromptChars += len(probe.Prompt)
	for _, content := range probe.Contents {
		for _, part := range content.Parts {
			req.PromptChars += len(part.Text)
		}
	}
	if req.PromptChars == 0 {
		req.PromptChars = len(body)
	}
	return req
}
