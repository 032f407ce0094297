// Package fetch is thin HTTP client used to talk to font provider APIs and
// to download font files.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fontpipe/misc"
)

const (
	defaultTimeout = 30 * time.Second
	// font files are small, anything bigger is suspicious
	maxBodySize = 32 << 20
)

// Client performs rate limited GET requests.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	log       *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit limits number of requests per second, zero disables
// limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func New(log *zap.Logger, options ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		http:      &http.Client{Timeout: defaultTimeout},
		limiter:   rate.NewLimiter(rate.Limit(10), 5),
		userAgent: misc.GetUserAgent(),
		log:       log.Named("fetch"),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Request describes single GET request.
type Request struct {
	BaseURL string
	Path    string
	Query   url.Values
	Header  http.Header
}

// URL builds full address of the request.
func (r Request) URL() string {
	u := r.Path
	if r.BaseURL != "" {
		u = strings.TrimSuffix(r.BaseURL, "/") + "/" + strings.TrimPrefix(r.Path, "/")
	}
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + r.Query.Encode()
	}
	return u
}

// Bytes performs request and returns response body.
func (c *Client) Bytes(ctx context.Context, r Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	target := r.URL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create request for '%s': %w", target, err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to '%s' failed: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request to '%s' failed: %s", target, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("unable to read response from '%s': %w", target, err)
	}
	c.log.Debug("Fetched", zap.String("url", target), zap.Int("bytes", len(data)), zap.Duration("elapsed", time.Since(start)))
	return data, nil
}

// Text performs request and returns response body as string.
func (c *Client) Text(ctx context.Context, r Request) (string, error) {
	data, err := c.Bytes(ctx, r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// JSON performs request and decodes response into v.
func (c *Client) JSON(ctx context.Context, r Request, v any) error {
	data, err := c.Bytes(ctx, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unable to decode response from '%s': %w", r.URL(), err)
	}
	return nil
}
