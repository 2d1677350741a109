// Package otelhooks counts bouncer.Hooks events with OpenTelemetry metrics.
package otelhooks

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/bouncer"
)

// Instrument names.
const (
	BackendCalls      = "bouncer.backend.calls"
	CacheLookups      = "bouncer.cache.lookups"
	WriteBacks        = "bouncer.cache.write_backs"
	WriteBacksDropped = "bouncer.cache.write_backs_dropped"
	SecondaryFailures = "bouncer.migration.secondary_failures"
	TokenRejections   = "bouncer.csrf.rejections"
)

type Hooks struct {
	backend   metric.Int64Counter
	lookups   metric.Int64Counter
	wb        metric.Int64Counter
	wbDropped metric.Int64Counter
	secondary metric.Int64Counter
	tokens    metric.Int64Counter
}

var _ bouncer.Hooks = (*Hooks)(nil)

func New(meter metric.Meter) (*Hooks, error) {
	var (
		h    Hooks
		errs []error
	)
	counter := func(dst *metric.Int64Counter, name, desc string) {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		*dst = c
	}
	counter(&h.backend, BackendCalls, "Key/value backend commands by db, op and result.")
	counter(&h.lookups, CacheLookups, "Cache lookups by namespace and outcome.")
	counter(&h.wb, WriteBacks, "Background cache write-backs by namespace and result.")
	counter(&h.wbDropped, WriteBacksDropped, "Write-backs dropped because the queue was full.")
	counter(&h.secondary, SecondaryFailures, "Swallowed failures of the secondary attestation store.")
	counter(&h.tokens, TokenRejections, "Rejected CSRF tokens by reason.")
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &h, nil
}

func result(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("result", "error")
	}
	return attribute.String("result", "ok")
}

func add(c metric.Int64Counter, attrs ...attribute.KeyValue) {
	c.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

func (h *Hooks) BackendCall(db, op string, err error) {
	add(h.backend, attribute.String("db", db), attribute.String("op", op), result(err))
}

func (h *Hooks) CacheLookup(ns, outcome string) {
	add(h.lookups, attribute.String("namespace", ns), attribute.String("outcome", outcome))
}

func (h *Hooks) WriteBack(ns string, err error) {
	add(h.wb, attribute.String("namespace", ns), result(err))
}

func (h *Hooks) WriteBackDropped(ns string) {
	add(h.wbDropped, attribute.String("namespace", ns))
}

func (h *Hooks) SecondaryFailure(store, op string, _ error) {
	add(h.secondary, attribute.String("store", store), attribute.String("op", op))
}

func (h *Hooks) TokenRejected(reason string) {
	add(h.tokens, attribute.String("reason", reason))
}
