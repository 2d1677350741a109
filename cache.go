package bouncer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/bouncer/spawn"
)

// Cached is a read-through decorator: it answers from Store when it can and
// falls back to Source otherwise, warming Store in the background.
//
// A cache outage makes Get slower, never failing; a Source outage fails Get.
type Cached[K ~string, V any] struct {
	ns     string
	source Source[K, V]
	store  Store[K, V]
	log    Logger
	hooks  Hooks

	pool      *spawn.Pool
	ownsPool  bool
	wbTimeout time.Duration

	dedupe       bool
	fetchTimeout time.Duration
	sf           singleflight.Group
}

func newCached[K ~string, V any](opts Options[K, V]) (*Cached[K, V], error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("bouncer: source is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("bouncer: store is required")
	}

	c := &Cached[K, V]{
		ns:     opts.Namespace,
		source: opts.Source,
		store:  opts.Store,
		dedupe: opts.Dedupe,
	}

	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.wbTimeout = coalesce[time.Duration](opts.WriteBackTimeout, DefaultWriteBackTimeout)
	c.fetchTimeout = coalesce[time.Duration](opts.FetchTimeout, DefaultFetchTimeout)

	if opts.WriteBack != nil {
		c.pool = opts.WriteBack
	} else {
		c.pool = spawn.New(1, spawn.DefaultQueue)
		c.ownsPool = true
	}
	return c, nil
}

// Close stops the private write-back pool, if any, after draining it.
// A shared pool is left to its owner.
func (c *Cached[K, V]) Close() {
	if c.ownsPool {
		c.pool.Close()
	}
}

// Get returns the value for key. A cached negative is returned as None
// without consulting Source.
func (c *Cached[K, V]) Get(ctx context.Context, key K) (Optional[V], error) {
	out, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.log.Warn("cache get failed; falling back to source", Fields{"ns": c.ns, "key": string(key), "err": err})
		c.hooks.CacheLookup(c.ns, OutcomeError)
	case out.IsHit():
		c.hooks.CacheLookup(c.ns, OutcomeHit)
		return out.Value(), nil
	default:
		c.hooks.CacheLookup(c.ns, OutcomeMiss)
	}

	v, err := c.fetch(ctx, key)
	if err != nil {
		return None[V](), err
	}
	c.writeBack(ctx, key, v)
	return v, nil
}

// Set writes v to the store synchronously. Used for explicit warm-up; the
// read path never calls it.
func (c *Cached[K, V]) Set(ctx context.Context, key K, v Optional[V]) error {
	return c.store.Set(ctx, key, v)
}

func (c *Cached[K, V]) fetch(ctx context.Context, key K) (Optional[V], error) {
	if !c.dedupe {
		v, err := c.source.Fetch(ctx, key)
		if err != nil {
			return None[V](), c.sourceErr(key, err)
		}
		return v, nil
	}

	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own context ends.
	ch := c.sf.DoChan(string(key), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.source.Fetch(fctx, key)
	})
	select {
	case <-ctx.Done():
		return None[V](), c.sourceErr(key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return None[V](), c.sourceErr(key, res.Err)
		}
		return res.Val.(Optional[V]), nil
	}
}

func (c *Cached[K, V]) sourceErr(key K, err error) error {
	return fmt.Errorf("%w: %s %q: %w", ErrSourceUnavailable, c.ns, string(key), err)
}

// writeBack caches v without making the caller wait. The request context is
// detached so that a finished request does not cancel the write.
func (c *Cached[K, V]) writeBack(ctx context.Context, key K, v Optional[V]) {
	bg := context.WithoutCancel(ctx)
	ok := c.pool.Go(func() {
		wctx, cancel := context.WithTimeout(bg, c.wbTimeout)
		defer cancel()

		err := c.store.Set(wctx, key, v)
		c.hooks.WriteBack(c.ns, err)
		if err != nil {
			c.log.Error("cache write-back failed", Fields{"ns": c.ns, "key": string(key), "err": err})
		}
	})
	if !ok {
		c.hooks.WriteBackDropped(c.ns)
		c.log.Debug("cache write-back dropped (queue full)", Fields{"ns": c.ns, "key": string(key)})
	}
}
