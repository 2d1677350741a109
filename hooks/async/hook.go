// Package asynchook moves bouncer.Hooks delivery off the request path.
// Events are queued on a spawn.Pool and dropped when the queue is full.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{MissEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	reg, _ := registry.WithCache(cloudRegistry, bouncer.Options[registry.ProjectID, registry.ProjectData]{
//	    Store: store,
//	    Hooks: hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync/atomic"

	"github.com/unkn0wn-root/bouncer"
	"github.com/unkn0wn-root/bouncer/spawn"
)

type Hooks struct {
	inner   bouncer.Hooks
	pool    *spawn.Pool
	dropped atomic.Uint64
}

var _ bouncer.Hooks = (*Hooks)(nil)

func New(inner bouncer.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	return &Hooks{inner: inner, pool: spawn.New(workers, qlen)}
}

// Close delivers queued events and stops the workers.
func (h *Hooks) Close() { h.pool.Close() }

// Dropped is the number of events lost to a full queue.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if !h.pool.Go(f) {
		h.dropped.Add(1)
	}
}

func (h *Hooks) BackendCall(db, op string, err error) {
	h.try(func() { h.inner.BackendCall(db, op, err) })
}
func (h *Hooks) CacheLookup(ns, outcome string) { h.try(func() { h.inner.CacheLookup(ns, outcome) }) }
func (h *Hooks) WriteBack(ns string, err error) { h.try(func() { h.inner.WriteBack(ns, err) }) }
func (h *Hooks) WriteBackDropped(ns string)     { h.try(func() { h.inner.WriteBackDropped(ns) }) }
func (h *Hooks) SecondaryFailure(store, op string, err error) {
	h.try(func() { h.inner.SecondaryFailure(store, op, err) })
}
func (h *Hooks) TokenRejected(reason string) { h.try(func() { h.inner.TokenRejected(reason) }) }
