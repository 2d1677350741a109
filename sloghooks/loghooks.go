// Package sloghooks reports bouncer.Hooks events as log/slog records.
//
// Successful backend calls and cache hits are not logged; everything else
// is, optionally sampled.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/bouncer"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	MissEvery          uint64
	DroppedEvery       uint64
	TokenRejectedEvery uint64
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	missCtr    atomic.Uint64
	droppedCtr atomic.Uint64
	tokenCtr   atomic.Uint64
}

var _ bouncer.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) BackendCall(db, op string, err error) {
	if h.l == nil || err == nil {
		return
	}
	h.l.Warn("bouncer.backend_error",
		"db", db,
		"op", op,
		"err", err)
}

func (h *Hooks) CacheLookup(ns, outcome string) {
	if h.l == nil || outcome == bouncer.OutcomeHit {
		return
	}
	if outcome == bouncer.OutcomeError {
		h.l.Warn("bouncer.cache_error", "ns", ns)
		return
	}
	if !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("bouncer.cache_miss", "ns", ns)
}

func (h *Hooks) WriteBack(ns string, err error) {
	if h.l == nil || err == nil {
		return
	}
	h.l.Warn("bouncer.write_back_error",
		"ns", ns,
		"err", err)
}

func (h *Hooks) WriteBackDropped(ns string) {
	if h.l == nil || !sample(h.opts.DroppedEvery, &h.droppedCtr) {
		return
	}
	h.l.Warn("bouncer.write_back_dropped", "ns", ns)
}

func (h *Hooks) SecondaryFailure(store, op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("bouncer.secondary_failure",
		"store", store,
		"op", op,
		"err", err)
}

func (h *Hooks) TokenRejected(reason string) {
	if h.l == nil || !sample(h.opts.TokenRejectedEvery, &h.tokenCtr) {
		return
	}
	h.l.Info("bouncer.csrf_rejected", "reason", reason)
}
