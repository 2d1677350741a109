package bouncer

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable wraps every error returned by the authoritative
	// source behind a Cached. It is always surfaced to the caller.
	ErrSourceUnavailable = errors.New("bouncer: source unavailable")

	// ErrCacheUnavailable wraps store errors (transport, corrupt frames,
	// decode failures). Cached swallows it into a Miss.
	ErrCacheUnavailable = errors.New("bouncer: cache unavailable")
)

// StoreError describes a failed cache store operation on a single key.
type StoreError struct {
	Namespace string
	Key       string
	Op        string // "get" | "set" | "encode" | "decode"
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cache %s %s:%s: %v", e.Op, e.Namespace, e.Key, e.Err)
}

func (e *StoreError) Unwrap() []error {
	errs := make([]error, 0, 2)
	errs = append(errs, ErrCacheUnavailable)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
