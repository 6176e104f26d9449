// Package remote is the HTTP client for the board-game API the offline
// engine reconciles against.
//
// Every call reads the bearer token from an injected CredentialSource at
// request time, so login and logout take effect without rebuilding the
// client. A missing token fails fast with ErrNoCredential and never reaches
// the network.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// CredentialSource supplies the current bearer token; "" means logged out.
type CredentialSource interface {
	Token() string
}

// Config holds client settings.
type Config struct {
	// BaseURL is the service root, e.g. "http://localhost:3000".
	BaseURL string

	// Timeout bounds each request including reading the body.
	// Default: 10s
	Timeout time.Duration

	// RateLimit is the sustained request rate (requests/second).
	// Zero disables pacing.
	RateLimit float64

	// RateBurst is the token bucket size. Default: 1
	RateBurst int

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// HTTPClient replaces the default transport (tests).
	HTTPClient *http.Client
}

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "offsync/0.1"
	collectionPath   = "/api/boardgames"
)

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:3000",
		Timeout:   defaultTimeout,
		RateLimit: 10,
		RateBurst: 5,
		UserAgent: defaultUserAgent,
	}
}

// Client talks to the board-game API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	creds     CredentialSource
	limiter   *rate.Limiter
	userAgent string
}

// New builds a Client. creds may be nil, in which case every call fails with
// ErrNoCredential.
func New(cfg Config, creds CredentialSource) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Client{
		baseURL:   base,
		http:      hc,
		creds:     creds,
		limiter:   limiter,
		userAgent: ua,
	}, nil
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) token() string {
	if c.creds == nil {
		return ""
	}
	return strings.TrimSpace(c.creds.Token())
}

// do performs one JSON request. body and dest may be nil.
func (c *Client) do(ctx context.Context, op, method, path string, body, dest any) error {
	token := c.token()
	if token == "" {
		return &APIError{Op: op, Err: ErrNoCredential}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &APIError{Op: op, Err: ErrNetworkFailure, cause: err}
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Op: op, Err: ErrNetworkFailure, cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if class := classifyStatus(resp.StatusCode); class != nil {
		// Drain a bounded amount so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &APIError{Op: op, Status: resp.StatusCode, Err: class}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if ctx.Err() != nil {
			return &APIError{Op: op, Status: resp.StatusCode, Err: ErrNetworkFailure, cause: err}
		}
		return &APIError{Op: op, Status: resp.StatusCode, Err: ErrDecode, cause: err}
	}
	return nil
}
