package provider

import (
	"errors"
	"fmt"
)

// ErrUnknownProvider is returned by the factory for providers outside the
// supported set.
var ErrUnknownProvider = errors.New("unknown provider")

// UpstreamError carries a non-2xx upstream status and body (where safe to
// pass through) back to the caller.
type UpstreamError struct {
	Provider string
	Status   int
	Body     []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.Provider, e.Status)
}
