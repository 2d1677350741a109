// Package bigcache is an in-process kv.Backend on allegro/bigcache.
//
// BigCache has no per-entry TTL; every entry lives for the configured
// LifeWindow. That matches bouncer, where every key has the same fixed TTL,
// so LifeWindow defaults to bouncer.TTL and Set rejects any other ttl.
package bigcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/bouncer/kv"
)

type Backend struct {
	c    *bc.BigCache
	life time.Duration
	db   string
	o    kv.Observer
}

var _ kv.Backend = (*Backend)(nil)

type Config struct {
	DB                 string
	LifeWindow         time.Duration // required
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
	Observer           kv.Observer
}

func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.LifeWindow <= 0 {
		return nil, errors.New("bigcache: life window is required")
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	conf.Verbose = false
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Backend{c: c, life: cfg.LifeWindow, db: cfg.DB, o: kv.ObserverOrNop(cfg.Observer)}, nil
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := b.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		b.o.BackendCall(b.db, kv.OpGet, nil)
		return nil, false, nil
	}
	if err := kv.Observe(b.o, b.db, kv.OpGet, err); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (b *Backend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl > 0 && ttl != b.life {
		return kv.Observe(b.o, b.db, kv.OpSetEx,
			fmt.Errorf("bigcache: ttl %v differs from life window %v", ttl, b.life))
	}
	return kv.Observe(b.o, b.db, kv.OpSetEx, b.c.Set(key, value))
}

func (b *Backend) Close(context.Context) error {
	return b.c.Close()
}
