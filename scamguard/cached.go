package scamguard

import (
	"context"

	"github.com/unkn0wn-root/bouncer"
)

// Namespace is the default cache namespace for verdicts.
const Namespace = "scam_guard"

// Cached puts a bouncer.Cached in front of a Guard. Verdicts, Unknown
// included, are cached for bouncer.TTL keyed by origin.
type Cached struct {
	c *bouncer.Cached[string, Verdict]
}

var _ Guard = (*Cached)(nil)

// WithCache wraps inner. opts.Source is replaced by inner; opts.Store is required.
func WithCache(inner Guard, opts bouncer.Options[string, Verdict]) (*Cached, error) {
	opts.Source = bouncer.SourceFunc[string, Verdict](func(ctx context.Context, origin string) (bouncer.Optional[Verdict], error) {
		v, err := inner.IsScam(ctx, origin)
		if err != nil {
			return bouncer.None[Verdict](), err
		}
		return bouncer.Some(v), nil
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

func (g *Cached) IsScam(ctx context.Context, origin string) (Verdict, error) {
	v, err := g.c.Get(ctx, origin)
	if err != nil {
		return Unknown, err
	}
	if !v.Valid {
		return Unknown, nil
	}
	return v.Value, nil
}

func (g *Cached) Close() { g.c.Close() }
