// Package cfkv is a kv.Backend over the Cloudflare Workers KV HTTP API.
// It is the target of the attestation store migration.
//
// Writes go through the bulk endpoint (one pair per request) so that TTL and
// base64 payloads are expressed in the JSON body. Reads use values/{key};
// 404 is a miss, any other non-2xx is an error.
package cfkv

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/unkn0wn-root/bouncer/kv"
)

const (
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"
	DefaultTimeout = time.Second

	// MinTTL is the shortest expiration_ttl Cloudflare accepts.
	MinTTL = 60 * time.Second

	maxErrBody = 4 << 10
)

type Config struct {
	AccountID   string
	NamespaceID string
	BearerToken string

	DB         string        // logical name for counters; default "cf_kv"
	BaseURL    string        // default DefaultBaseURL
	Timeout    time.Duration // per request; default DefaultTimeout
	HTTPClient *http.Client  // default: a dedicated client (no shared pool)
	Observer   kv.Observer
}

type Backend struct {
	http    *http.Client
	base    string
	token   string
	db      string
	timeout time.Duration
	o       kv.Observer
}

var _ kv.Backend = (*Backend)(nil)

func New(cfg Config) (*Backend, error) {
	if cfg.AccountID == "" || cfg.NamespaceID == "" {
		return nil, errors.New("cfkv: account id and namespace id are required")
	}
	if cfg.BearerToken == "" {
		return nil, errors.New("cfkv: bearer token is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	db := cfg.DB
	if db == "" {
		db = "cf_kv"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Backend{
		http: hc,
		base: fmt.Sprintf("%s/accounts/%s/storage/kv/namespaces/%s",
			base, url.PathEscape(cfg.AccountID), url.PathEscape(cfg.NamespaceID)),
		token:   cfg.BearerToken,
		db:      db,
		timeout: timeout,
		o:       kv.ObserverOrNop(cfg.Observer),
	}, nil
}

type bulkPair struct {
	Key           string `json:"key"`
	Value         string `json:"value"`
	ExpirationTTL int64  `json:"expiration_ttl,omitempty"`
	Base64        bool   `json:"base64,omitempty"`
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	pair := bulkPair{Key: key}
	if utf8.Valid(value) {
		pair.Value = string(value)
	} else {
		pair.Value = base64.StdEncoding.EncodeToString(value)
		pair.Base64 = true
	}
	if ttl > 0 {
		if ttl < MinTTL {
			ttl = MinTTL
		}
		pair.ExpirationTTL = int64(ttl / time.Second)
	}
	body, err := json.Marshal([]bulkPair{pair})
	if err != nil {
		return kv.Observe(b.o, b.db, kv.OpSetEx, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.base+"/bulk", bytes.NewReader(body))
	if err != nil {
		return kv.Observe(b.o, b.db, kv.OpSetEx, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.do(req)
	if err != nil {
		return kv.Observe(b.o, b.db, kv.OpSetEx, err)
	}
	defer drain(resp)
	if resp.StatusCode/100 != 2 {
		return kv.Observe(b.o, b.db, kv.OpSetEx, statusError(resp))
	}
	return kv.Observe(b.o, b.db, kv.OpSetEx, nil)
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.base+"/values/"+url.PathEscape(key), nil)
	if err != nil {
		return nil, false, kv.Observe(b.o, b.db, kv.OpGet, err)
	}

	resp, err := b.do(req)
	if err != nil {
		return nil, false, kv.Observe(b.o, b.db, kv.OpGet, err)
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		b.o.BackendCall(b.db, kv.OpGet, nil)
		return nil, false, nil
	case resp.StatusCode/100 != 2:
		return nil, false, kv.Observe(b.o, b.db, kv.OpGet, statusError(resp))
	}
	v, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, kv.Observe(b.o, b.db, kv.OpGet, err)
	}
	b.o.BackendCall(b.db, kv.OpGet, nil)
	return v, true, nil
}

func (b *Backend) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+b.token)
	return b.http.Do(req)
}

// Close releases idle connections of the backend's client.
func (b *Backend) Close(context.Context) error {
	b.http.CloseIdleConnections()
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	return fmt.Errorf("cfkv: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrBody))
	_ = resp.Body.Close()
}
