// Package redis is the primary kv.Backend: a pooled go-redis client tagged
// with a logical database name.
//
// Every command runs under a fixed timeout, is reported to the Observer and
// has its error wrapped in *kv.OpError. go-redis checks connections out of
// its own pool per command, so a pool or dial failure surfaces as a command
// failure. Retries, if any, are the client's business (Options.MaxRetries).
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/bouncer/kv"
)

var ErrNilClient = errors.New("redis backend: nil client")

// DefaultTimeout bounds a single command.
const DefaultTimeout = time.Second

type Redis struct {
	rdb         goredis.UniversalClient
	db          string
	timeout     time.Duration
	o           kv.Observer
	closeClient bool
}

var _ kv.Backend = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	DB          string        // logical name used in counters and errors, e.g. "attestation_store"
	Timeout     time.Duration // per command; 0 => DefaultTimeout
	Observer    kv.Observer
	CloseClient bool // set true only if this backend exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Redis{
		rdb:         cfg.Client,
		db:          cfg.DB,
		timeout:     cfg.Timeout,
		o:           kv.ObserverOrNop(cfg.Observer),
		closeClient: cfg.CloseClient,
	}, nil
}

// Dial parses a redis:// URL and returns a backend that owns its client.
// Each call creates an independent connection pool.
func Dial(url, db string, timeout time.Duration, o kv.Observer) (*Redis, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return New(Config{
		Client:      goredis.NewClient(opts),
		DB:          db,
		Timeout:     timeout,
		Observer:    o,
		CloseClient: true,
	})
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	b, err := p.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		p.o.BackendCall(p.db, kv.OpGet, nil)
		return nil, false, nil // miss
	}
	if err := kv.Observe(p.o, p.db, kv.OpGet, err); err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set is SET key value EX ttl. Non-positive TTLs store without expiry.
func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return kv.Observe(p.o, p.db, kv.OpSetEx, p.rdb.Set(ctx, key, value, ttl).Err())
}

// Ping checks connectivity. Used by the health endpoint.
func (p *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}

// Close releases the underlying redis client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
