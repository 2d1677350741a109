package attestation

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/bouncer"
)

// MigrationOptions configure a MigrationStore. Primary and Secondary are
// required and must not share a connection pool.
type MigrationOptions struct {
	Primary   Store
	Secondary Store

	// SecondaryName labels the secondary in logs and hooks. e.g. "cf_kv"
	SecondaryName string
	Policy        WritePolicy

	Logger bouncer.Logger // if nil, NopLogger is used
	Hooks  bouncer.Hooks  // if nil, NopHooks is used
}

// MigrationStore writes to two stores and reads primary-first.
//
// Reads never touch the secondary when the primary has the id, so the
// primary wins when the two disagree. Secondary read errors are reported
// and turned into a miss.
type MigrationStore struct {
	a, b   Store
	bName  string
	policy WritePolicy
	log    bouncer.Logger
	hooks  bouncer.Hooks
}

var _ Store = (*MigrationStore)(nil)

func NewMigrationStore(opts MigrationOptions) (*MigrationStore, error) {
	if opts.Primary == nil || opts.Secondary == nil {
		return nil, fmt.Errorf("attestation: primary and secondary stores are required")
	}
	m := &MigrationStore{
		a:      opts.Primary,
		b:      opts.Secondary,
		bName:  opts.SecondaryName,
		policy: opts.Policy,
		log:    opts.Logger,
		hooks:  opts.Hooks,
	}
	if m.bName == "" {
		m.bName = "secondary"
	}
	if m.log == nil {
		m.log = bouncer.NopLogger{}
	}
	if m.hooks == nil {
		m.hooks = bouncer.NopHooks{}
	}
	return m, nil
}

func (m *MigrationStore) Policy() WritePolicy { return m.policy }

// Set writes both stores concurrently. Neither write cancels the other.
func (m *MigrationStore) Set(ctx context.Context, id, origin string) error {
	var (
		g          errgroup.Group
		errA, errB error
	)
	g.Go(func() error { errA = m.a.Set(ctx, id, origin); return nil })
	g.Go(func() error { errB = m.b.Set(ctx, id, origin); return nil })
	_ = g.Wait()

	if errB != nil {
		m.log.Error("secondary attestation write failed", bouncer.Fields{"store": m.bName, "id": id, "policy": m.policy.String(), "err": errB})
		m.hooks.SecondaryFailure(m.bName, "set", errB)
	}

	switch m.policy {
	case Strict:
		return errors.Join(errA, errB)
	default:
		return errA
	}
}

func (m *MigrationStore) Get(ctx context.Context, id string) (string, bool, error) {
	origin, ok, err := m.a.Get(ctx, id)
	if err != nil {
		return "", false, err
	}
	if ok {
		return origin, true, nil
	}

	origin, ok, err = m.b.Get(ctx, id)
	if err != nil {
		m.log.Error("secondary attestation read failed", bouncer.Fields{"store": m.bName, "id": id, "err": err})
		m.hooks.SecondaryFailure(m.bName, "get", err)
		return "", false, nil
	}
	return origin, ok, nil
}
