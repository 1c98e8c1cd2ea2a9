// Package logging provides utilities for secure logging with data masking.
// Master provider secrets and bearer keyIds must never reach a log line in
// full; everything that logs credential-adjacent values goes through here.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a level name onto a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup configures the default slog logger with the given level and JSON
// output. The returned LevelVar allows runtime level changes.
func Setup(level string) (*slog.Logger, *slog.LevelVar) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(ParseLevel(level))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)
	return logger, levelVar
}

// MaskHeader redacts sensitive header values based on header name.
// Returns the redacted value suitable for logging.
//
// Rules:
// - Password/secret headers: "[REDACTED]" (no partial reveal)
// - Token/API key headers: "****" + last4chars (e.g., "****ab3f")
// - Other headers: returned unchanged
func MaskHeader(name, value string) string {
	lowerName := strings.ToLower(name)

	if strings.Contains(lowerName, "password") ||
		strings.Contains(lowerName, "secret") ||
		strings.Contains(lowerName, "api-key") {
		return "[REDACTED]"
	}

	if lowerName == "authorization" ||
		lowerName == "accesskey" ||
		lowerName == "x-goog-api-key" ||
		lowerName == "x-access-key" {
		if len(value) < 4 {
			return "****"
		}
		return "****" + value[len(value)-4:]
	}

	return value
}

// MaskKeyID redacts a raw bearer keyId for logging, keeping only the short
// display prefix.
func MaskKeyID(rawKeyID string) string {
	const visible = 11 // "pk-" + 8 chars
	if len(rawKeyID) <= visible {
		return "****"
	}
	return rawKeyID[:visible] + "****"
}
