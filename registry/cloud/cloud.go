// Package cloud is a registry.Registry over the project registry HTTP API.
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/unkn0wn-root/bouncer/registry"
)

const (
	DefaultTimeout = 2 * time.Second

	projectPath = "/internal/project/key/"
	maxBody     = 1 << 20
)

type Config struct {
	BaseURL    string // required
	AuthToken  string // required; sent as a bearer token
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	http    *http.Client
	base    string
	token   string
	timeout time.Duration
}

var _ registry.Registry = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("registry: base url is required")
	}
	if cfg.AuthToken == "" {
		return nil, errors.New("registry: auth token is required")
	}
	c := &Client{http: cfg.HTTPClient, base: cfg.BaseURL, token: cfg.AuthToken, timeout: cfg.Timeout}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c, nil
}

// ProjectData fetches one project. 404 means the project does not exist.
func (c *Client) ProjectData(ctx context.Context, id registry.ProjectID) (registry.ProjectData, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+projectPath+url.PathEscape(string(id)), nil)
	if err != nil {
		return registry.ProjectData{}, false, fmt.Errorf("registry: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return registry.ProjectData{}, false, fmt.Errorf("registry: request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return registry.ProjectData{}, false, nil
	case resp.StatusCode/100 != 2:
		return registry.ProjectData{}, false, fmt.Errorf("registry: status %d for project %s", resp.StatusCode, id)
	}

	var d registry.ProjectData
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&d); err != nil {
		return registry.ProjectData{}, false, fmt.Errorf("registry: decode project %s: %w", id, err)
	}
	return d, true, nil
}
