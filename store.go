package bouncer

import (
	"context"
	"fmt"

	c "github.com/unkn0wn-root/bouncer/codec"
	"github.com/unkn0wn-root/bouncer/internal/util"
	"github.com/unkn0wn-root/bouncer/internal/wire"
	"github.com/unkn0wn-root/bouncer/kv"
)

// KVStore is a Store over a kv.Backend. Values are encoded with Codec and
// framed so that a cached None is distinguishable from a missing entry.
// Entries expire after TTL.
type KVStore[K ~string, V any] struct {
	ns      string
	backend kv.Backend
	codec   c.Codec[V]
}

var _ Store[string, struct{}] = (*KVStore[string, struct{}])(nil)

func NewKVStore[K ~string, V any](namespace string, backend kv.Backend, codec c.Codec[V]) (*KVStore[K, V], error) {
	if backend == nil {
		return nil, fmt.Errorf("bouncer: backend is required")
	}
	if codec == nil {
		return nil, fmt.Errorf("bouncer: codec is required")
	}
	return &KVStore[K, V]{ns: namespace, backend: backend, codec: codec}, nil
}

func (s *KVStore[K, V]) Get(ctx context.Context, key K) (Output[V], error) {
	k := s.storageKey(key)
	raw, ok, err := s.backend.Get(ctx, k)
	if err != nil {
		return Miss[V](), &StoreError{Namespace: s.ns, Key: string(key), Op: "get", Err: err}
	}
	if !ok {
		return Miss[V](), nil
	}
	valid, payload, err := wire.Decode(raw)
	if err != nil {
		return Miss[V](), &StoreError{Namespace: s.ns, Key: string(key), Op: "decode", Err: err}
	}
	if !valid {
		return Hit(None[V]()), nil
	}
	v, err := s.codec.Decode(payload)
	if err != nil {
		return Miss[V](), &StoreError{Namespace: s.ns, Key: string(key), Op: "decode", Err: err}
	}
	return Hit(Some(v)), nil
}

func (s *KVStore[K, V]) Set(ctx context.Context, key K, v Optional[V]) error {
	var payload []byte
	if v.Valid {
		b, err := s.codec.Encode(v.Value)
		if err != nil {
			return &StoreError{Namespace: s.ns, Key: string(key), Op: "encode", Err: err}
		}
		payload = b
	}
	if err := s.backend.Set(ctx, s.storageKey(key), wire.Encode(v.Valid, payload), TTL); err != nil {
		return &StoreError{Namespace: s.ns, Key: string(key), Op: "set", Err: err}
	}
	return nil
}

func (s *KVStore[K, V]) storageKey(key K) string {
	return util.Key(s.ns, string(key))
}
