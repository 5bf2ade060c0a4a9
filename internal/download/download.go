// Package download wraps the HTTP GET-to-file plumbing shared by the feed and archive steps.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const errorBodyLimit = 512

// DefaultTimeout bounds a single download when the caller passes no client.
const DefaultTimeout = 120 * time.Second

// Client performs GET requests with a fixed User-Agent.
type Client struct {
	http      *http.Client
	userAgent string
}

// New creates a Client. A nil httpClient gets DefaultTimeout.
func New(httpClient *http.Client, userAgent string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{http: httpClient, userAgent: userAgent}
}

// StatusError is returned for any non-200 response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string // first bytes of the response body
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status %q fetching %s: %s", e.Status, e.URL, e.Body)
}

// ToFile downloads url into dest, replacing any existing file, and returns the number of bytes written.
//
// Behavior:
//   - Non-200 responses return *StatusError with up to 512 bytes of the body.
//   - The body is streamed to a temporary file in dest's directory and renamed on success,
//     so a failed download never leaves a truncated dest behind.
func (c *Client) ToFile(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request for %s: %w", url, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http get %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return 0, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file for %s: %w", dest, err)
	}
	tmpName := tmp.Name()

	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		if copyErr != nil {
			return n, fmt.Errorf("read body from %s: %w", url, copyErr)
		}
		return n, fmt.Errorf("close %s: %w", tmpName, closeErr)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return n, fmt.Errorf("rename %s -> %s: %w", tmpName, dest, err)
	}
	return n, nil
}
