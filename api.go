package bouncer

import (
	"context"
	"time"

	"github.com/unkn0wn-root/bouncer/spawn"
)

// TTL is the lifetime of every cached lookup and every attestation.
const TTL = 300 * time.Second

// DefaultWriteBackTimeout bounds one background write-back.
const DefaultWriteBackTimeout = time.Second

// DefaultFetchTimeout bounds a deduplicated Source fetch, which runs detached
// from the callers that share it.
const DefaultFetchTimeout = 5 * time.Second

// Source is the slow, authoritative lookup behind a Cached.
// A None result is a valid answer and is cached like a value.
type Source[K ~string, V any] interface {
	Fetch(ctx context.Context, key K) (Optional[V], error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[K ~string, V any] func(ctx context.Context, key K) (Optional[V], error)

func (f SourceFunc[K, V]) Fetch(ctx context.Context, key K) (Optional[V], error) {
	return f(ctx, key)
}

// Store is the cache side of a Cached: a typed view over a key/value backend.
type Store[K ~string, V any] interface {
	// Get returns Hit (possibly Hit(None)) or Miss. Errors mean the cache
	// could not answer; the Output is then a Miss.
	Get(ctx context.Context, key K) (Output[V], error)
	// Set caches v (including a None) for TTL.
	Set(ctx context.Context, key K, v Optional[V]) error
}

// Options tune a Cached. Source and Store are required.
type Options[K ~string, V any] struct {
	Namespace string // used in logs and hooks only. e.g. "project_registry"
	Source    Source[K, V]
	Store     Store[K, V]

	Logger           Logger        // if nil, NopLogger is used
	Hooks            Hooks         // if nil, NopHooks is used
	WriteBack        *spawn.Pool   // shared pool; nil => Cached owns a private one
	WriteBackTimeout time.Duration // 0 => DefaultWriteBackTimeout
	Dedupe           bool          // collapse concurrent fetches for the same key
	FetchTimeout     time.Duration // deduplicated fetches only; 0 => DefaultFetchTimeout
}

func New[K ~string, V any](opts Options[K, V]) (*Cached[K, V], error) {
	return newCached(opts)
}
