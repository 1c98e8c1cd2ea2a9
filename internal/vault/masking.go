package vault

import "strings"

const (
	maskPrefixLen = 6
	maskSuffixLen = 4
)

// MaskSecret renders a display-safe version of a raw secret: a fixed-length
// prefix and suffix around a mask, regardless of secret length. Secrets too
// short for the window are fully masked so nothing leaks.
func MaskSecret(rawSecret string) string {
	if len(rawSecret) <= maskPrefixLen+maskSuffixLen {
		return "***"
	}
	var b strings.Builder
	b.WriteString(rawSecret[:maskPrefixLen])
	b.WriteString("...")
	b.WriteString(rawSecret[len(rawSecret)-maskSuffixLen:])
	return b.String()
}
