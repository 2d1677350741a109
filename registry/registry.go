// Package registry answers which domains may embed a project.
package registry

import (
	"context"

	"github.com/unkn0wn-root/bouncer"
)

// ProjectID is a 32-char hex project id.
type ProjectID string

// ProjectData is the part of a project record the bouncer needs.
type ProjectData struct {
	IsVerifyEnabled bool     `json:"isVerifyEnabled" msgpack:"is_verify_enabled" cbor:"is_verify_enabled"`
	VerifiedDomains []string `json:"verifiedDomains" msgpack:"verified_domains" cbor:"verified_domains"`
}

// Registry returns ok=false when the project does not exist.
type Registry interface {
	ProjectData(ctx context.Context, id ProjectID) (data ProjectData, ok bool, err error)
}

// Namespace is the default cache namespace for project data.
const Namespace = "project_registry"

// Cached puts a bouncer.Cached in front of a Registry. Unknown projects are
// cached as negatives.
type Cached struct {
	c *bouncer.Cached[ProjectID, ProjectData]
}

var _ Registry = (*Cached)(nil)

// WithCache wraps inner. opts.Source is replaced by inner; opts.Store is required.
func WithCache(inner Registry, opts bouncer.Options[ProjectID, ProjectData]) (*Cached, error) {
	opts.Source = bouncer.SourceFunc[ProjectID, ProjectData](func(ctx context.Context, id ProjectID) (bouncer.Optional[ProjectData], error) {
		d, ok, err := inner.ProjectData(ctx, id)
		switch {
		case err != nil:
			return bouncer.None[ProjectData](), err
		case !ok:
			return bouncer.None[ProjectData](), nil
		default:
			return bouncer.Some(d), nil
		}
	})
	if opts.Namespace == "" {
		opts.Namespace = Namespace
	}
	c, err := bouncer.New(opts)
	if err != nil {
		return nil, err
	}
	return &Cached{c: c}, nil
}

func (r *Cached) ProjectData(ctx context.Context, id ProjectID) (ProjectData, bool, error) {
	v, err := r.c.Get(ctx, id)
	if err != nil {
		return ProjectData{}, false, err
	}
	d, ok := v.Get()
	return d, ok, nil
}

func (r *Cached) Close() { r.c.Close() }
