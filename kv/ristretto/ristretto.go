// Package ristretto is an in-process kv.Backend on dgraph-io/ristretto.
// Suitable for single-replica deployments and local development; entries are
// not shared between processes.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/bouncer/kv"
)

// ErrRejected is returned when ristretto's admission policy drops a Set.
var ErrRejected = errors.New("ristretto: set rejected")

type Backend struct {
	c  *rc.Cache
	db string
	o  kv.Observer
}

var _ kv.Backend = (*Backend)(nil)

type Config struct {
	DB          string // logical database name for counters
	NumCounters int64
	MaxCost     int64 // bytes; cost of an entry is len(value)
	BufferItems int64
	Metrics     bool
	Observer    kv.Observer
}

// DefaultConfig sizes the cache for roughly 100k small entries in 64 MiB.
func DefaultConfig(db string) Config {
	return Config{
		DB:          db,
		NumCounters: 1_000_000,
		MaxCost:     64 << 20,
		BufferItems: 64,
	}
}

func New(cfg Config) (*Backend, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{c: c, db: cfg.DB, o: kv.ObserverOrNop(cfg.Observer)}, nil
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.c.Get(key)
	b.o.BackendCall(b.db, kv.OpGet, nil)
	if !ok {
		return nil, false, nil
	}
	raw, _ := v.([]byte)
	if raw == nil {
		// self-heal: drop unexpected entry shape
		b.c.Del(key)
		return nil, false, nil
	}
	return raw, true, nil
}

func (b *Backend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var err error
	if !b.c.SetWithTTL(key, value, int64(len(value)), ttl) {
		err = ErrRejected
	}
	return kv.Observe(b.o, b.db, kv.OpSetEx, err)
}

// Wait blocks until buffered writes are applied. Sets are asynchronous in
// ristretto; tests and warm-up code call Wait before reading back.
func (b *Backend) Wait() { b.c.Wait() }

func (b *Backend) Close(context.Context) error {
	b.c.Wait()
	b.c.Close()
	return nil
}

// Metrics exposes ristretto's counters when Config.Metrics is set.
func (b *Backend) Metrics() *rc.Metrics { return b.c.Metrics }
