package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBody bounds how much of an upstream response is read.
const maxResponseBody = 10 << 20 // 10 MiB

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
}

// forwardHTTP performs the shared request/response handling for the
// HTTP-based adapters. setAuth injects the provider's credential header;
// parseUsage extracts token accounting from a successful response body.
func forwardHTTP(ctx context.Context, client *http.Client, name, baseURL string, req *Request,
	setAuth func(*http.Request), parseUsage func([]byte) Usage) (*Response, error) {

	url := strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(req.Path, "/")
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	setAuth(httpReq)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Provider: name, Status: resp.StatusCode, Body: body}
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Usage:       parseUsage(body),
	}, nil
}
