// Package attestation stores which origin loaded a verify widget.
//
// An attestation is written once by the widget and read by the embedding
// application shortly after. Entries expire bouncer.TTL after the write;
// there is no delete.
package attestation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/unkn0wn-root/bouncer"
	"github.com/unkn0wn-root/bouncer/codec"
	"github.com/unkn0wn-root/bouncer/internal/util"
	"github.com/unkn0wn-root/bouncer/kv"
	"github.com/unkn0wn-root/bouncer/scamguard"
)

// Store is the attestation capability consumed by the service.
// Get returns ok=false when the id is unknown or expired.
type Store interface {
	Set(ctx context.Context, id, origin string) error
	Get(ctx context.Context, id string) (origin string, ok bool, err error)
}

// Record is an attestation as served to the embedding application.
type Record struct {
	ID     string            `json:"attestationId"`
	Origin string            `json:"origin"`
	IsScam scamguard.Verdict `json:"isScam"`
}

const maxIDLen = 256

// Namespace prefixes every attestation key. Keys never share a prefix with
// the lookup caches, even when both live in the same database.
const Namespace = "attestation"

var ErrMalformedID = errors.New("attestation: malformed id")

// ValidateID rejects ids that are empty, too long or contain whitespace or
// control characters. It runs before any backend call.
func ValidateID(id string) error {
	if id == "" || len(id) > maxIDLen {
		return ErrMalformedID
	}
	if strings.IndexFunc(id, func(r rune) bool { return r <= ' ' || r == 0x7f }) >= 0 {
		return ErrMalformedID
	}
	return nil
}

// KVStore keeps attestations in a kv.Backend as plain origin strings, so
// that every backend holds the same readable value.
type KVStore struct {
	ns      string
	backend kv.Backend
	codec   codec.String
}

var _ Store = (*KVStore)(nil)

// NewKVStore returns a Store over backend. Keys are "<namespace>:<id>".
func NewKVStore(namespace string, backend kv.Backend) (*KVStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("attestation: backend is required")
	}
	if namespace == "" {
		return nil, fmt.Errorf("attestation: namespace is required")
	}
	return &KVStore{ns: namespace, backend: backend}, nil
}

func (s *KVStore) Set(ctx context.Context, id, origin string) error {
	b, err := s.codec.Encode(origin)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, util.Key(s.ns, id), b, bouncer.TTL)
}

func (s *KVStore) Get(ctx context.Context, id string) (string, bool, error) {
	b, ok, err := s.backend.Get(ctx, util.Key(s.ns, id))
	if err != nil || !ok {
		return "", false, err
	}
	origin, err := s.codec.Decode(b)
	return origin, err == nil, err
}
