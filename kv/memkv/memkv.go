// Package memkv is an in-process kv.Backend backed by a map with lazy expiry.
// The clock is injectable, which makes TTL behaviour testable without sleeping.
package memkv

import (
	"context"
	"sync"
	"time"

	"github.com/unkn0wn-root/bouncer/kv"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type Store struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

var _ kv.Backend = (*Store)(nil)

// New returns an empty store. now may be nil (time.Now).
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{m: make(map[string]entry), now: now}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && !s.now().Before(e.exp) {
		delete(s.m, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.v))
	copy(out, e.v)
	return out, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	b := make([]byte, len(value))
	copy(b, value)

	s.mu.Lock()
	s.m[key] = entry{v: b, exp: exp}
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored (possibly expired) entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *Store) Close(context.Context) error { return nil }
