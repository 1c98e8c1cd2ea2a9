package provider

import (
	"net/http"
	"testing"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantModel     string
		wantMaxTokens int
		wantChars     bool // PromptChars > 0
	}{
		{
			name:          "openai chat body",
			body:          `{"model":"gpt-4o","max_tokens":256,"messages":[{"role":"user","content":"hello world"}]}`,
			wantModel:     "gpt-4o",
			wantMaxTokens: 256,
			wantChars:     true,
		},
		{
			name:      "completion prompt body",
			body:      `{"model":"gpt-3.5-turbo","prompt":"summarize this"}`,
			wantModel: "gpt-3.5-turbo",
			wantChars: true,
		},
		{
			name:      "gemini contents body",
			body:      `{"contents":[{"parts":[{"text":"what is the weather"}]}]}`,
			wantChars: true,
		},
		{
			name:      "invalid JSON falls back to body size",
			body:      `not json at all`,
			wantChars: true,
		},
		{
			name:      "empty object falls back to body size",
			body:      `{}`,
			wantChars: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ParseRequest(http.MethodPost, "chat/completions", []byte(tt.body))
			if req.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", req.Model, tt.wantModel)
			}
			if req.MaxTokens != tt.wantMaxTokens {
				t.Errorf("MaxTokens = %d, want %d", req.MaxTokens, tt.wantMaxTokens)
			}
			if tt.wantChars && req.PromptChars == 0 {
				t.Error("PromptChars = 0, want positive")
			}
			if req.Path != "chat/completions" {
				t.Errorf("Path = %q", req.Path)
			}
		})
	}
}

func TestRequestIdempotent(t *testing.T) {
	if (&Request{Method: http.MethodPost}).Idempotent() {
		t.Error("POST reported idempotent")
	}
	if !(&Request{Method: http.MethodGet}).Idempotent() {
		t.Error("GET reported non-idempotent")
	}
}
