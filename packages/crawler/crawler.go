package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"sitesignal/packages/domain"
)

type Crawler struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

// New returns a Crawler whose client follows redirects with the default policy.
// A zero maxBodyBytes reads the whole body.
func New(timeout time.Duration, userAgent string, maxBodyBytes int64) *Crawler {
	return &Crawler{
		client:       &http.Client{Timeout: timeout},
		userAgent:    userAgent,
		maxBodyBytes: maxBodyBytes,
	}
}

// Fetch issues a single GET. Non-2xx responses are returned as pages, not errors.
func (c *Crawler) Fetch(ctx context.Context, rawURL string) (*domain.FetchedPage, error) {
	slog.Debug("Fetching website", "url", rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if c.maxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, c.maxBodyBytes)
	}
	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Debug("Website returned non-2xx status", "url", rawURL, "status_code", resp.StatusCode)
	}

	return &domain.FetchedPage{
		RequestedURL: rawURL,
		FinalURL:     resp.Request.URL.String(),
		StatusCode:   resp.StatusCode,
		Header:       resp.Header,
		HTML:         string(bodyBytes),
	}, nil
}
