// Package crawler drives the two-phase discovery-then-detail crawl for
// each market and feeds canonical records into the pipeline.
//
// The orchestration model is a bounded fan-out: per-entity detail fetches
// run concurrently up to a configured limit, with a minimum inter-request
// delay enforced per remote host. All emitted records funnel through one
// collector goroutine, so the state store and the snapshot writer have a
// single writer without locking.
package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cnpulse/internal/parse"
)

const (
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// maxBodySize bounds detail payloads; listing payloads are larger but
	// still far below this.
	maxBodySize = 32 << 20
)

// Client is a rate-limited HTTP client for the portal XHR endpoints.
// One limiter per host enforces the minimum inter-request delay; a cookie
// jar carries session cookies for portals that require a bootstrap visit.
type Client struct {
	http     *http.Client
	logger   *slog.Logger
	minDelay time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient builds a client with the given per-host minimum delay.
func NewClient(minDelay time.Duration, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		logger:   logger,
		minDelay: minDelay,
		limiters: make(map[string]*rate.Limiter),
	}
}

// GetJSON fetches url and decodes the body as JSON or JSONP. referer is
// sent when non-empty; the portals reject XHR calls without one.
func (c *Client) GetJSON(ctx context.Context, url, referer string) (map[string]any, error) {
	body, err := c.get(ctx, url, referer, "application/json, text/javascript, */*; q=0.01")
	if err != nil {
		return nil, err
	}
	return parse.Decode(body), nil
}

// Bootstrap performs a plain GET against a portal landing page so the
// cookie jar picks up session cookies before the XHR calls start.
func (c *Client) Bootstrap(ctx context.Context, url string) error {
	_, err := c.get(ctx, url, "", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	return err
}

func (c *Client) get(ctx context.Context, url, referer, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if err := c.limiter(req.URL.Host).Wait(ctx); err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// limiter returns the per-host limiter, creating it on first use. Burst
// is 1 so requests to one host are spaced by at least minDelay.
func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	lim, ok := c.limiters[host]
	if !ok {
		if c.minDelay > 0 {
			lim = rate.NewLimiter(rate.Every(c.minDelay), 1)
		} else {
			lim = rate.NewLimiter(rate.Inf, 1)
		}
		c.limiters[host] = lim
	}
	return lim
}
