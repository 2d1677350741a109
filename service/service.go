// Package service is the bouncer's application layer: it composes the
// attestation store, the project registry, the scam guard and the CSRF
// token manager behind the operations the HTTP boundary needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/unkn0wn-root/bouncer"
	"github.com/unkn0wn-root/bouncer/attestation"
	"github.com/unkn0wn-root/bouncer/csrf"
	"github.com/unkn0wn-root/bouncer/internal/util"
	"github.com/unkn0wn-root/bouncer/registry"
	"github.com/unkn0wn-root/bouncer/scamguard"
)

var (
	ErrInvalidProjectID = errors.New("service: project id must be 32 hex chars")
	ErrUnknownProject   = errors.New("service: unknown project")
)

// Infra holds the collaborators of a Bouncer. ScamGuard is optional.
type Infra struct {
	Attestations attestation.Store
	Registry     registry.Registry
	ScamGuard    scamguard.Guard
	Tokens       *csrf.Manager
}

type Options struct {
	Infra

	// DomainWhitelist is appended to the verified domains of every
	// verify-enabled project. Intended for dev environments.
	DomainWhitelist []string
	Logger          bouncer.Logger
}

type Bouncer struct {
	infra     Infra
	whitelist []string
	log       bouncer.Logger
}

func New(opts Options) (*Bouncer, error) {
	if opts.Attestations == nil || opts.Registry == nil || opts.Tokens == nil {
		return nil, fmt.Errorf("service: attestation store, registry and token manager are required")
	}
	b := &Bouncer{infra: opts.Infra, log: opts.Logger}
	for _, d := range opts.DomainWhitelist {
		if d = strings.TrimSpace(d); d != "" {
			b.whitelist = append(b.whitelist, d)
		}
	}
	if b.log == nil {
		b.log = bouncer.NopLogger{}
	}
	if b.infra.ScamGuard == nil {
		b.infra.ScamGuard = scamguard.GuardFunc(func(context.Context, string) (scamguard.Verdict, error) {
			return scamguard.Unknown, nil
		})
	}
	return b, nil
}

// IssueToken returns a fresh CSRF token for a read response.
func (b *Bouncer) IssueToken() (string, error) {
	return b.infra.Tokens.Generate()
}

// URLMatchers returns the frame ancestors allowed for a project. An empty
// result means the project does not restrict embedding.
func (b *Bouncer) URLMatchers(ctx context.Context, projectID string) ([]URLMatcher, error) {
	if !util.IsHex32(projectID) {
		return nil, ErrInvalidProjectID
	}
	data, ok, err := b.infra.Registry.ProjectData(ctx, registry.ProjectID(projectID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownProject
	}
	if !data.IsVerifyEnabled || len(data.VerifiedDomains) == 0 {
		return nil, nil
	}

	out := make([]URLMatcher, 0, len(data.VerifiedDomains)+len(b.whitelist))
	for _, d := range data.VerifiedDomains {
		if m, ok := ParseURLMatcher(d); ok {
			out = append(out, m)
		}
	}
	for _, d := range b.whitelist {
		if m, ok := ParseURLMatcher(d); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// SetAttestation checks the CSRF token, then the id, then writes. The
// returned error matches csrf.ErrMalformed, csrf.ErrInvalid or
// attestation.ErrMalformedID for client errors.
func (b *Bouncer) SetAttestation(ctx context.Context, token, id, origin string) error {
	if err := b.infra.Tokens.Validate(token); err != nil {
		return err
	}
	if err := attestation.ValidateID(id); err != nil {
		return err
	}
	if err := b.infra.Attestations.Set(ctx, id, origin); err != nil {
		return fmt.Errorf("service: set attestation %q: %w", id, err)
	}
	return nil
}

// GetAttestation returns the record for id. A failing scam guard degrades
// the verdict to Unknown.
func (b *Bouncer) GetAttestation(ctx context.Context, id string) (attestation.Record, bool, error) {
	if err := attestation.ValidateID(id); err != nil {
		return attestation.Record{}, false, err
	}
	origin, ok, err := b.infra.Attestations.Get(ctx, id)
	if err != nil {
		return attestation.Record{}, false, fmt.Errorf("service: get attestation %q: %w", id, err)
	}
	if !ok {
		return attestation.Record{}, false, nil
	}

	verdict, err := b.infra.ScamGuard.IsScam(ctx, origin)
	if err != nil {
		b.log.Warn("scam check failed", bouncer.Fields{"origin": origin, "err": err})
		verdict = scamguard.Unknown
	}
	return attestation.Record{ID: id, Origin: origin, IsScam: verdict}, true, nil
}
