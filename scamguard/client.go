package scamguard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/unkn0wn-root/bouncer"
)

const (
	APIKeyHeader   = "x-api-key"
	DefaultTimeout = 2 * time.Second

	maxBody = 64 << 10
)

type ClientConfig struct {
	BaseURL    string // required, e.g. "https://data-api.example.com"
	APIKey     string // required
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     bouncer.Logger
}

// Client is a Guard over the data API: GET {base}/domain?domain=<host>.
type Client struct {
	http    *http.Client
	base    string
	key     string
	timeout time.Duration
	log     bouncer.Logger
}

var _ Guard = (*Client)(nil)

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("scamguard: base url is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("scamguard: api key is required")
	}
	c := &Client{
		http:    cfg.HTTPClient,
		base:    cfg.BaseURL,
		key:     cfg.APIKey,
		timeout: cfg.Timeout,
		log:     cfg.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.log == nil {
		c.log = bouncer.NopLogger{}
	}
	return c, nil
}

// IsScam looks up the host of origin. An origin that is not a URL with a
// host, and a host the API does not know (404), are both Unknown.
func (c *Client) IsScam(ctx context.Context, origin string) (Verdict, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		c.log.Warn("origin is not a valid URL; skipping scam check", bouncer.Fields{"origin": origin})
		return Unknown, nil
	}
	return c.Lookup(ctx, u.Hostname())
}

// Lookup queries the API for a bare host.
func (c *Client) Lookup(ctx context.Context, host string) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/domain?domain="+url.QueryEscape(host), nil)
	if err != nil {
		return Unknown, fmt.Errorf("scamguard: build request: %w", err)
	}
	req.Header.Set(APIKeyHeader, c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return Unknown, fmt.Errorf("scamguard: data API request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Unknown, nil
	case resp.StatusCode/100 != 2:
		return Unknown, fmt.Errorf("scamguard: data API status %d", resp.StatusCode)
	}

	var body struct {
		IsScam bool `json:"is_scam"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&body); err != nil {
		return Unknown, fmt.Errorf("scamguard: decode response: %w", err)
	}
	if body.IsScam {
		return Yes, nil
	}
	return No, nil
}
