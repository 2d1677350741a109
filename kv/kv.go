// Package kv defines the key/value backend abstraction used by bouncer.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key. Framing of cached
// negatives and codec payloads is owned by the layers above.
//
// Every adapter that talks to the network wraps its failures in *OpError so
// that callers never see raw transport errors, and reports each command to
// an Observer (success/error counters tagged by logical database name).
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backend is a minimal byte store with TTLs.
// Must be safe for concurrent use.
type Backend interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl. ttl <= 0 means "backend default".
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Observer receives one call per backend command.
// bouncer.Hooks satisfies it.
type Observer interface {
	BackendCall(db, op string, err error)
}

type nopObserver struct{}

func (nopObserver) BackendCall(string, string, error) {}

// ObserverOrNop returns o, or a no-op observer when o is nil.
func ObserverOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}

// Command names reported to Observer and carried by OpError.
const (
	OpGet   = "GET"
	OpSetEx = "SETEX"
)

// ErrUnavailable is matched by every *OpError.
var ErrUnavailable = errors.New("kv: backend unavailable")

// OpError is a failed backend command. Connection acquisition failures are
// reported the same way as command failures.
type OpError struct {
	DB  string // logical database name, e.g. "attestation_store"
	Op  string // OpGet | OpSetEx
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s operation failed: %v", e.DB, e.Op, e.Err)
}

func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 2)
	errs = append(errs, ErrUnavailable)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Observe reports the command and wraps a non-nil err in *OpError.
func Observe(o Observer, db, op string, err error) error {
	o.BackendCall(db, op, err)
	if err == nil {
		return nil
	}
	return &OpError{DB: db, Op: op, Err: err}
}
