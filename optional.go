package bouncer

// Optional is a value that may be known-absent. A None is a legitimate
// lookup result (e.g. the registry has no such project) and is cached like
// any other value.
type Optional[V any] struct {
	Value V
	Valid bool
}

func Some[V any](v V) Optional[V] { return Optional[V]{Value: v, Valid: true} }

func None[V any]() Optional[V] { return Optional[V]{} }

// Get returns the value and whether it is present.
func (o Optional[V]) Get() (V, bool) { return o.Value, o.Valid }

// Output is the result of a cache lookup. It has exactly two cases:
// Hit, which carries the cached Optional (possibly a cached None), and Miss,
// which means the cache holds nothing for the key.
//
// Only a Miss sends the caller to the source of truth.
type Output[V any] struct {
	hit   bool
	value Optional[V]
}

func Hit[V any](v Optional[V]) Output[V] { return Output[V]{hit: true, value: v} }

func Miss[V any]() Output[V] { return Output[V]{} }

func (o Output[V]) IsHit() bool { return o.hit }

// Value returns the cached Optional. It is None for a Miss.
func (o Output[V]) Value() Optional[V] { return o.value }
