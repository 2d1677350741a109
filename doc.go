// Package bouncer implements the caching layer of the domain verification
// service: a cache-aside decorator over slow lookups with fire-and-forget
// write-back, backed by any key/value store with TTLs.
//
// Components:
//   - kv.Backend: byte store with TTL (Redis, Cloudflare KV, Ristretto, BigCache).
//   - codec.Codec[V]: (de)serializes V <-> []byte.
//   - KVStore[K, V]: typed Store over a kv.Backend. Cached negatives (None)
//     are framed distinctly from entries absent in the backend.
//   - Cached[K, V]: read-through decorator over a Source.
//
// Keys:
//
//	<ns>:<key>
//
// Read path:
//
//	out := store.Get(k)        // Hit(Some|None) returns immediately
//	v   := source.Fetch(k)     // on Miss or cache error; errors propagate
//	pool.Go(store.Set(k, v))   // write-back, not awaited by the caller
//
// Every entry lives for TTL (300s). The TTL is not configurable per call.
package bouncer
