package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"go.opentelemetry.io/otel"

	"github.com/unkn0wn-root/bouncer"
	"github.com/unkn0wn-root/bouncer/attestation"
	"github.com/unkn0wn-root/bouncer/codec"
	"github.com/unkn0wn-root/bouncer/config"
	"github.com/unkn0wn-root/bouncer/csrf"
	asynchook "github.com/unkn0wn-root/bouncer/hooks/async"
	"github.com/unkn0wn-root/bouncer/hooks/otelhooks"
	"github.com/unkn0wn-root/bouncer/httpapi"
	"github.com/unkn0wn-root/bouncer/kv"
	"github.com/unkn0wn-root/bouncer/kv/bigcache"
	"github.com/unkn0wn-root/bouncer/kv/cfkv"
	"github.com/unkn0wn-root/bouncer/kv/redis"
	"github.com/unkn0wn-root/bouncer/kv/ristretto"
	logruslog "github.com/unkn0wn-root/bouncer/log/logrus"
	sloglog "github.com/unkn0wn-root/bouncer/log/slog"
	zaplog "github.com/unkn0wn-root/bouncer/log/zap"
	"github.com/unkn0wn-root/bouncer/registry"
	"github.com/unkn0wn-root/bouncer/registry/cloud"
	"github.com/unkn0wn-root/bouncer/scamguard"
	"github.com/unkn0wn-root/bouncer/service"
	"github.com/unkn0wn-root/bouncer/sloghooks"
	"github.com/unkn0wn-root/bouncer/spawn"
)

// Logical database names used in counters and errors.
const (
	dbAttestation = "attestation_store"
	dbCFKV        = "cf_kv"
	dbCache       = "lookup_cache"
)

type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) onClose(f func()) { a.closers = append(a.closers, f) }

// close runs closers in reverse order of registration.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newLogger(cfg config.Config) (bouncer.Logger, error) {
	switch cfg.LogBackend {
	case config.LogLogrus:
		return logruslog.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	case config.LogSlog:
		return sloglog.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	default:
		return zaplog.New(cfg.LogLevel, cfg.LogPretty)
	}
}

// newHooks reports to the otel global meter and, sampled, to log.
func newHooks(a *app, log bouncer.Logger) (bouncer.Hooks, error) {
	metrics, err := otelhooks.New(otel.GetMeterProvider().Meter("github.com/unkn0wn-root/bouncer"))
	if err != nil {
		return nil, fmt.Errorf("otel hooks: %w", err)
	}
	logs := asynchook.New(sloghooks.New(sloglog.Bridge(log), sloghooks.Options{MissEvery: 100, TokenRejectedEvery: 10}), 1, 1024)
	a.onClose(logs.Close)
	return bouncer.MultiHooks{metrics, logs}, nil
}

func build(ctx context.Context, cfg config.Config, log bouncer.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	hooks, err := newHooks(a, log)
	if err != nil {
		return nil, err
	}

	atts, err := newAttestationStore(a, cfg, log, hooks)
	if err != nil {
		return nil, err
	}

	lookupCache, err := newLookupCache(ctx, a, cfg, hooks)
	if err != nil {
		return nil, err
	}
	pool := spawn.New(cfg.WriteBackWorkers, cfg.WriteBackQueue)
	a.onClose(pool.Close)

	reg, err := newRegistry(a, cfg, lookupCache, pool, log, hooks)
	if err != nil {
		return nil, err
	}
	guard, err := newScamGuard(a, cfg, lookupCache, pool, log, hooks)
	if err != nil {
		return nil, err
	}

	tokens, err := csrf.New(csrf.Options{Secret: []byte(cfg.CSRFSecret), Hooks: hooks})
	if err != nil {
		return nil, err
	}

	svc, err := service.New(service.Options{
		Infra: service.Infra{
			Attestations: atts,
			Registry:     reg,
			ScamGuard:    guard,
			Tokens:       tokens,
		},
		DomainWhitelist: cfg.DomainWhitelist,
		Logger:          log,
	})
	if err != nil {
		return nil, err
	}

	a.handler = httpapi.New(httpapi.Options{Service: svc, Version: version, Logger: log})
	ok = true
	return a, nil
}

// newAttestationStore returns the redis store, or a migration store
// writing redis and Cloudflare KV when the latter is configured.
func newAttestationStore(a *app, cfg config.Config, log bouncer.Logger, hooks bouncer.Hooks) (attestation.Store, error) {
	rds, err := redis.Dial(cfg.Attestation.CacheURL, dbAttestation, cfg.BackendTimeout, hooks)
	if err != nil {
		return nil, fmt.Errorf("attestation store: %w", err)
	}
	a.onClose(func() { _ = rds.Close(context.Background()) })
	primary, err := attestation.NewKVStore(attestation.Namespace, rds)
	if err != nil {
		return nil, err
	}
	if !cfg.CFKV.Enabled() {
		return primary, nil
	}

	cf, err := cfkv.New(cfkv.Config{
		AccountID:   cfg.CFKV.AccountID,
		NamespaceID: cfg.CFKV.NamespaceID,
		BearerToken: cfg.CFKV.BearerToken,
		BaseURL:     cfg.CFKV.BaseURL,
		DB:          dbCFKV,
		Timeout:     cfg.BackendTimeout,
		Observer:    hooks,
	})
	if err != nil {
		return nil, fmt.Errorf("cf kv: %w", err)
	}
	secondary, err := attestation.NewKVStore(attestation.Namespace, cf)
	if err != nil {
		return nil, err
	}
	log.Info("attestation migration enabled", bouncer.Fields{"secondary": dbCFKV, "policy": cfg.Attestation.WritePolicy.String()})
	return attestation.NewMigrationStore(attestation.MigrationOptions{
		Primary:       primary,
		Secondary:     secondary,
		SecondaryName: dbCFKV,
		Policy:        cfg.Attestation.WritePolicy,
		Logger:        log,
		Hooks:         hooks,
	})
}

// newLookupCache returns the backend shared by the registry and scam guard
// caches. Their keys are namespaced.
func newLookupCache(ctx context.Context, a *app, cfg config.Config, hooks bouncer.Hooks) (kv.Backend, error) {
	var (
		b   kv.Backend
		err error
	)
	switch cfg.CacheBackend {
	case config.CacheRistretto:
		rc := ristretto.DefaultConfig(dbCache)
		rc.Observer = hooks
		b, err = ristretto.New(rc)
	case config.CacheBigcache:
		b, err = bigcache.New(ctx, bigcache.Config{DB: dbCache, LifeWindow: bouncer.TTL, Observer: hooks})
	default:
		b, err = redis.Dial(cfg.Registry.CacheURL, dbCache, cfg.BackendTimeout, hooks)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup cache (%s): %w", cfg.CacheBackend, err)
	}
	a.onClose(func() { _ = b.Close(context.Background()) })
	return b, nil
}

func newRegistry(a *app, cfg config.Config, backend kv.Backend, pool *spawn.Pool, log bouncer.Logger, hooks bouncer.Hooks) (registry.Registry, error) {
	src, err := cloud.New(cloud.Config{BaseURL: cfg.Registry.URL, AuthToken: cfg.Registry.AuthToken})
	if err != nil {
		return nil, err
	}
	cd, err := codec.Select(cfg.CacheCodec, registry.ProtoCodec())
	if err != nil {
		return nil, err
	}
	store, err := bouncer.NewKVStore[registry.ProjectID, registry.ProjectData](registry.Namespace, backend, codec.Limit[registry.ProjectData]{Inner: cd, MaxDecode: 64 << 10})
	if err != nil {
		return nil, err
	}
	r, err := registry.WithCache(src, bouncer.Options[registry.ProjectID, registry.ProjectData]{
		Store:            store,
		Logger:           log,
		Hooks:            hooks,
		WriteBack:        pool,
		WriteBackTimeout: cfg.BackendTimeout,
		Dedupe:           true,
	})
	if err != nil {
		return nil, err
	}
	a.onClose(r.Close)
	return r, nil
}

// newScamGuard returns nil when no data API is configured.
func newScamGuard(a *app, cfg config.Config, backend kv.Backend, pool *spawn.Pool, log bouncer.Logger, hooks bouncer.Hooks) (scamguard.Guard, error) {
	if !cfg.ScamGuard.Enabled() {
		return nil, nil
	}
	src, err := scamguard.NewClient(scamguard.ClientConfig{BaseURL: cfg.ScamGuard.URL, APIKey: cfg.ScamGuard.APIKey, Logger: log})
	if err != nil {
		return nil, err
	}
	cd, err := codec.Select(cfg.CacheCodec, scamguard.ProtoCodec())
	if err != nil {
		return nil, err
	}
	store, err := bouncer.NewKVStore[string, scamguard.Verdict](scamguard.Namespace, backend, cd)
	if err != nil {
		return nil, err
	}
	g, err := scamguard.WithCache(src, bouncer.Options[string, scamguard.Verdict]{
		Store:            store,
		Logger:           log,
		Hooks:            hooks,
		WriteBack:        pool,
		WriteBackTimeout: cfg.BackendTimeout,
		Dedupe:           true,
	})
	if err != nil {
		return nil, err
	}
	a.onClose(g.Close)
	return g, nil
}
