package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMaskHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"authorization", "Authorization", "Bearer pk-abcdef1234", "****1234"},
		{"accesskey", "AccessKey", "admin-token-99", "****n-99"},
		{"goog api key", "X-Goog-Api-Key", "AIzaSy00", "****Sy00"},
		{"short token", "Authorization", "ab", "****"},
		{"password header", "X-Password", "hunter2", "[REDACTED]"},
		{"secret header", "X-Client-Secret", "topsecret", "[REDACTED]"},
		{"api-key header", "Openai-Api-Key", "sk-123", "[REDACTED]"},
		{"plain header", "Content-Type", "application/json", "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskHeader(tt.header, tt.value); got != tt.want {
				t.Errorf("MaskHeader(%q, %q) = %q, want %q", tt.header, tt.value, got, tt.want)
			}
		})
	}
}

func TestMaskKeyID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pk-aB3dE5fG7hJ9kL1mN2pQ4rS6tU8vW0xY", "pk-aB3dE5fG****"},
		{"pk-short", "****"},
		{"", "****"},
	}
	for _, tt := range tests {
		if got := MaskKeyID(tt.in); got != tt.want {
			t.Errorf("MaskKeyID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
