package util

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// NewHTTPClient returns a retrying client with a per-attempt timeout. Retry
// diagnostics go to logger when it is non-nil.
func NewHTTPClient(timeout time.Duration, retryMax int, logger *slog.Logger) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.HTTPClient.Timeout = timeout
	c.RetryMax = retryMax
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.Logger = nil
	if logger != nil {
		c.Logger = logger
	}
	return c
}

// GetNoCache fetches rawURL while bypassing intermediate caches: it sends
// no-cache headers and appends a unique query parameter. Any status outside
// 2xx is an error. The caller must close the returned body.
func GetNoCache(ctx context.Context, c *retryablehttp.Client, rawURL string) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, CacheBust(rawURL, time.Now()), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

// CacheBust adds a "_" query parameter derived from t. Unparseable URLs are
// returned unchanged.
func CacheBust(rawURL string, t time.Time) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("_", strconv.FormatInt(t.UnixNano(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}
