// Package scamguard asks a data API whether an origin is a known scam and
// caches the answer.
package scamguard

import (
	"context"
	"fmt"
)

// Verdict is tri-state: the data API may simply not know the domain.
type Verdict uint8

const (
	Unknown Verdict = iota
	No
	Yes
)

func (v Verdict) String() string {
	switch v {
	case Unknown:
		return "unknown"
	case No:
		return "no"
	case Yes:
		return "yes"
	default:
		return fmt.Sprintf("Verdict(%d)", uint8(v))
	}
}

// MarshalJSON encodes Yes/No as true/false and Unknown as null.
func (v Verdict) MarshalJSON() ([]byte, error) {
	switch v {
	case Yes:
		return []byte("true"), nil
	case No:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (v *Verdict) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "true":
		*v = Yes
	case "false":
		*v = No
	case "null":
		*v = Unknown
	default:
		return fmt.Errorf("scamguard: invalid verdict %s", b)
	}
	return nil
}

// Guard classifies an origin such as "https://app.example.com".
type Guard interface {
	IsScam(ctx context.Context, origin string) (Verdict, error)
}

// GuardFunc adapts a function to Guard.
type GuardFunc func(ctx context.Context, origin string) (Verdict, error)

func (f GuardFunc) IsScam(ctx context.Context, origin string) (Verdict, error) {
	return f(ctx, origin)
}
