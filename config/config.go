// Package config loads the bouncer's settings from BOUNCER_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/bouncer/attestation"
	"github.com/unkn0wn-root/bouncer/codec"
)

const Prefix = "BOUNCER_"

// Cache backends accepted by CacheBackend.
const (
	CacheRedis     = "redis"
	CacheRistretto = "ristretto"
	CacheBigcache  = "bigcache"
)

// Log backends accepted by LogBackend.
const (
	LogZap    = "zap"
	LogLogrus = "logrus"
	LogSlog   = "slog"
)

type Config struct {
	Port       int    `env:"PORT" envDefault:"3008"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"warn"`
	LogPretty  bool   `env:"LOG_PRETTY"`
	LogBackend string `env:"LOG_BACKEND" envDefault:"zap"`

	CSRFSecret string `env:"CSRF_SECRET,required,unset"`

	Attestation Attestation `envPrefix:"ATTESTATION_"`
	CFKV        CFKV        `envPrefix:"CF_KV_"`
	Registry    Registry    `envPrefix:"PROJECT_REGISTRY_"`
	ScamGuard   ScamGuard   `envPrefix:"SCAM_GUARD_"`

	// CacheBackend stores the registry and scam-guard caches.
	CacheBackend string `env:"CACHE_BACKEND" envDefault:"redis"`
	CacheCodec   string `env:"CACHE_CODEC" envDefault:"msgpack"` // msgpack | json | cbor | protobuf

	// DomainWhitelist is added to every verify-enabled project. Dev only.
	DomainWhitelist []string `env:"DOMAIN_WHITELIST" envSeparator:","`

	BackendTimeout   time.Duration `env:"BACKEND_TIMEOUT" envDefault:"1s"`
	WriteBackWorkers int           `env:"WRITE_BACK_WORKERS" envDefault:"4"`
	WriteBackQueue   int           `env:"WRITE_BACK_QUEUE" envDefault:"1024"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type Attestation struct {
	CacheURL    string                  `env:"CACHE_URL,required"`
	WritePolicy attestation.WritePolicy `env:"WRITE_POLICY" envDefault:"best_effort"`
}

// CFKV enables the Cloudflare KV migration target when AccountID is set.
type CFKV struct {
	AccountID   string `env:"ACCOUNT_ID"`
	NamespaceID string `env:"NAMESPACE_ID"`
	BearerToken string `env:"BEARER_TOKEN,unset"`
	BaseURL     string `env:"BASE_URL"`
}

func (c CFKV) Enabled() bool { return c.AccountID != "" }

type Registry struct {
	URL       string `env:"URL,required"`
	AuthToken string `env:"AUTH_TOKEN,required,unset"`
	CacheURL  string `env:"CACHE_URL"`
}

// ScamGuard enables verdicts on attestation reads when URL is set.
type ScamGuard struct {
	URL    string `env:"URL"`
	APIKey string `env:"API_KEY,unset"`
}

func (s ScamGuard) Enabled() bool { return s.URL != "" }

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses vars (keys include the BOUNCER_ prefix) instead of the
// process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: invalid port %d", c.Port))
	}
	switch c.LogBackend {
	case LogZap, LogLogrus, LogSlog:
	default:
		errs = append(errs, fmt.Errorf("config: unknown log backend %q", c.LogBackend))
	}
	switch c.CacheBackend {
	case CacheRedis:
		if c.Registry.CacheURL == "" {
			errs = append(errs, errors.New("config: BOUNCER_PROJECT_REGISTRY_CACHE_URL is required for the redis cache backend"))
		} else if sameRedisDB(c.Attestation.CacheURL, c.Registry.CacheURL) {
			errs = append(errs, errors.New("config: attestation store and lookup cache must use different redis databases"))
		}
	case CacheRistretto, CacheBigcache:
	default:
		errs = append(errs, fmt.Errorf("config: unknown cache backend %q", c.CacheBackend))
	}
	if c.CacheCodec != codec.NameProtobuf {
		if _, err := codec.ByName[struct{}](c.CacheCodec); err != nil {
			errs = append(errs, fmt.Errorf("config: %w", err))
		}
	}
	if c.CFKV.Enabled() && (c.CFKV.NamespaceID == "" || c.CFKV.BearerToken == "") {
		errs = append(errs, errors.New("config: cf kv needs namespace id and bearer token"))
	}
	if !c.CFKV.Enabled() && c.Attestation.WritePolicy == attestation.Strict {
		errs = append(errs, errors.New("config: strict write policy needs a cf kv target"))
	}
	if c.ScamGuard.Enabled() && c.ScamGuard.APIKey == "" {
		errs = append(errs, errors.New("config: scam guard needs an api key"))
	}
	if c.BackendTimeout <= 0 {
		errs = append(errs, errors.New("config: backend timeout must be positive"))
	}
	return errors.Join(errs...)
}

// sameRedisDB reports whether two redis URLs name the same address and
// database. URLs that do not parse are compared as strings.
func sameRedisDB(a, b string) bool {
	oa, errA := goredis.ParseURL(a)
	ob, errB := goredis.ParseURL(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return oa.Addr == ob.Addr && oa.DB == ob.DB
}
