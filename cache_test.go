package bouncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	c "github.com/unkn0wn-root/bouncer/codec"
	"github.com/unkn0wn-root/bouncer/internal/util"
	"github.com/unkn0wn-root/bouncer/internal/wire"
	"github.com/unkn0wn-root/bouncer/kv"
	"github.com/unkn0wn-root/bouncer/kv/memkv"
	"github.com/unkn0wn-root/bouncer/spawn"
)

type project struct {
	Enabled bool     `msgpack:"enabled"`
	Domains []string `msgpack:"domains"`
}

// countingSource serves a fixed map; keys not in the map are None.
type countingSource struct {
	mu    sync.Mutex
	data  map[string]project
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *countingSource) Fetch(_ context.Context, key string) (Optional[project], error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return None[project](), s.err
	}
	if p, ok := s.data[key]; ok {
		return Some(p), nil
	}
	return None[project](), nil
}

// flakyBackend wraps a kv.Backend with injectable failures and latency.
type flakyBackend struct {
	kv.Backend
	getErr   error
	setErr   error
	setDelay time.Duration
	sets     atomic.Int32
}

func (b *flakyBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b.getErr != nil {
		return nil, false, b.getErr
	}
	return b.Backend.Get(ctx, key)
}

func (b *flakyBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if b.setDelay > 0 {
		time.Sleep(b.setDelay)
	}
	defer b.sets.Add(1)
	if b.setErr != nil {
		return b.setErr
	}
	return b.Backend.Set(ctx, key, value, ttl)
}

type hookRecorder struct {
	NopHooks
	mu       sync.Mutex
	lookups  map[string]int
	wbErrs   int
	wbOK     int
	dropped  int
	wbSignal chan struct{}
}

func newHookRecorder() *hookRecorder {
	return &hookRecorder{lookups: map[string]int{}, wbSignal: make(chan struct{}, 64)}
}

func (h *hookRecorder) CacheLookup(_, outcome string) {
	h.mu.Lock()
	h.lookups[outcome]++
	h.mu.Unlock()
}

func (h *hookRecorder) WriteBack(_ string, err error) {
	h.mu.Lock()
	if err != nil {
		h.wbErrs++
	} else {
		h.wbOK++
	}
	h.mu.Unlock()
	h.wbSignal <- struct{}{}
}

func (h *hookRecorder) WriteBackDropped(string) {
	h.mu.Lock()
	h.dropped++
	h.mu.Unlock()
}

func (h *hookRecorder) count(outcome string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lookups[outcome]
}

func (h *hookRecorder) waitWriteBack(t *testing.T) {
	t.Helper()
	select {
	case <-h.wbSignal:
	case <-time.After(2 * time.Second):
		t.Fatalf("write-back did not complete")
	}
}

type fixture struct {
	cached  *Cached[string, project]
	source  *countingSource
	backend *flakyBackend
	hooks   *hookRecorder
}

func newFixture(t *testing.T, optsOpt func(*Options[string, project])) *fixture {
	t.Helper()
	backend := &flakyBackend{Backend: memkv.New(nil)}
	store, err := NewKVStore[string, project]("project_registry", backend, c.Msgpack[project]{})
	if err != nil {
		t.Fatalf("NewKVStore: %v", err)
	}
	src := &countingSource{data: map[string]project{
		"p1": {Enabled: true, Domains: []string{"example.com"}},
	}}
	hooks := newHookRecorder()
	opts := Options[string, project]{
		Namespace: "project_registry",
		Source:    src,
		Store:     store,
		Hooks:     hooks,
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	cc, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(cc.Close)
	return &fixture{cached: cc, source: src, backend: backend, hooks: hooks}
}

// ==============================
// Read path
// ==============================

func TestReadThroughThenHit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	got, err := f.cached.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v, ok := got.Get(); !ok || !v.Enabled || v.Domains[0] != "example.com" {
		t.Fatalf("Get = %+v", got)
	}
	f.hooks.waitWriteBack(t)

	got, err = f.cached.Get(ctx, "p1")
	if err != nil || !got.Valid {
		t.Fatalf("second Get: %+v err=%v", got, err)
	}
	if n := f.source.calls.Load(); n != 1 {
		t.Fatalf("source called %d times, want 1", n)
	}
	if f.hooks.count(OutcomeMiss) != 1 || f.hooks.count(OutcomeHit) != 1 {
		t.Fatalf("lookups = %v", f.hooks.lookups)
	}
}

// TestCachedNegativeSkipsSource verifies that a None from the source is
// cached and served without another fetch.
func TestCachedNegativeSkipsSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	got, err := f.cached.Get(ctx, "unknown")
	if err != nil || got.Valid {
		t.Fatalf("Get unknown: %+v err=%v", got, err)
	}
	f.hooks.waitWriteBack(t)

	for i := 0; i < 3; i++ {
		got, err = f.cached.Get(ctx, "unknown")
		if err != nil || got.Valid {
			t.Fatalf("Get unknown (cached): %+v err=%v", got, err)
		}
	}
	if n := f.source.calls.Load(); n != 1 {
		t.Fatalf("source called %d times for a cached negative, want 1", n)
	}
}

func TestCacheErrorFallsThroughToSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.backend.getErr = &kv.OpError{DB: "project_registry_cache", Op: kv.OpGet, Err: errors.New("connection refused")}

	got, err := f.cached.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("cache outage must not fail Get: %v", err)
	}
	if !got.Valid {
		t.Fatalf("expected value from source, got None")
	}
	if f.hooks.count(OutcomeError) != 1 {
		t.Fatalf("cache error not reported: %v", f.hooks.lookups)
	}
}

func TestCorruptEntryFallsThroughToSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	key := util.Key("project_registry", "p1")
	if err := f.backend.Backend.Set(ctx, key, []byte("not-a-frame"), time.Minute); err != nil {
		t.Fatalf("inject: %v", err)
	}

	got, err := f.cached.Get(ctx, "p1")
	if err != nil || !got.Valid {
		t.Fatalf("Get over corrupt entry: %+v err=%v", got, err)
	}
	if f.hooks.count(OutcomeError) != 1 {
		t.Fatalf("corrupt entry should count as cache error: %v", f.hooks.lookups)
	}
	f.hooks.waitWriteBack(t)

	// write-back replaced the corrupt bytes
	raw, ok, _ := f.backend.Backend.Get(ctx, key)
	if !ok {
		t.Fatalf("entry missing after write-back")
	}
	if _, _, err := wire.Decode(raw); err != nil {
		t.Fatalf("entry still corrupt after write-back: %v", err)
	}
}

func TestSourceErrorPropagates(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("registry: 503")
	f := newFixture(t, nil)
	f.source.err = boom

	_, err := f.cached.Get(ctx, "p1")
	if !errors.Is(err, ErrSourceUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("Get error = %v, want ErrSourceUnavailable wrapping source error", err)
	}
	if n := f.backend.sets.Load(); n != 0 {
		t.Fatalf("failed fetch must not be cached (sets=%d)", n)
	}
}

// ==============================
// Write-back
// ==============================

// TestWriteBackDoesNotBlock injects a slow backend Set and checks that Get
// returns well before the write completes.
func TestWriteBackDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	const slow = 500 * time.Millisecond
	f := newFixture(t, func(o *Options[string, project]) { o.WriteBackTimeout = time.Second })
	f.backend.setDelay = slow

	begin := time.Now()
	got, err := f.cached.Get(ctx, "p1")
	elapsed := time.Since(begin)
	if err != nil || !got.Valid {
		t.Fatalf("Get: %+v err=%v", got, err)
	}
	if elapsed >= slow {
		t.Fatalf("Get took %v; write-back latency leaked into the read", elapsed)
	}
	f.hooks.waitWriteBack(t)
}

func TestWriteBackFailureIsInvisible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.backend.setErr = errors.New("READONLY You can't write against a read only replica")

	got, err := f.cached.Get(ctx, "p1")
	if err != nil || !got.Valid {
		t.Fatalf("Get: %+v err=%v", got, err)
	}
	f.hooks.waitWriteBack(t)
	if f.hooks.wbErrs != 1 {
		t.Fatalf("write-back error not reported")
	}
}

func TestWriteBackSurvivesCanceledRequest(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.setDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := f.cached.Get(ctx, "p1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	cancel() // request finished
	f.hooks.waitWriteBack(t)

	if f.hooks.wbOK != 1 {
		t.Fatalf("write-back was canceled with its request")
	}
}

func TestWriteBackDroppedWhenQueueFull(t *testing.T) {
	ctx := context.Background()
	pool := spawn.New(1, 1)
	defer pool.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	pool.Go(func() { close(started); <-block })
	<-started
	pool.Go(func() {}) // queue full

	f := newFixture(t, func(o *Options[string, project]) { o.WriteBack = pool })

	if _, err := f.cached.Get(ctx, "p1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	f.hooks.mu.Lock()
	dropped := f.hooks.dropped
	f.hooks.mu.Unlock()
	if dropped != 1 {
		t.Fatalf("dropped=%d want 1", dropped)
	}
	close(block)
}

// ==============================
// Dedupe and options
// ==============================

func TestDedupeCollapsesConcurrentFetches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(o *Options[string, project]) { o.Dedupe = true })
	f.source.delay = 100 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got, err := f.cached.Get(ctx, "p1"); err != nil || !got.Valid {
				t.Errorf("Get: %+v err=%v", got, err)
			}
		}()
	}
	wg.Wait()
	if n := f.source.calls.Load(); n != 1 {
		t.Fatalf("source called %d times with dedupe, want 1", n)
	}
}

// gatedSource blocks every Fetch until release is closed.
type gatedSource struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (s *gatedSource) Fetch(ctx context.Context, _ string) (Optional[project], error) {
	if s.calls.Add(1) == 1 {
		close(s.entered)
	}
	select {
	case <-s.release:
		return Some(project{Enabled: true}), nil
	case <-ctx.Done():
		return None[project](), ctx.Err()
	}
}

func TestDedupeCallerCancelDoesNotFailOthers(t *testing.T) {
	src := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, func(o *Options[string, project]) {
		o.Source = src
		o.Dedupe = true
	})

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.cached.Get(first, "k")
		firstErr <- err
	}()
	<-src.entered

	type result struct {
		v   Optional[project]
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := f.cached.Get(context.Background(), "k")
		second <- result{v, err}
	}()
	time.Sleep(50 * time.Millisecond) // let the second caller join the flight

	cancel()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("canceled caller err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("canceled caller did not return")
	}

	close(src.release)
	select {
	case r := <-second:
		if r.err != nil || !r.v.Valid || !r.v.Value.Enabled {
			t.Fatalf("second caller = %+v err=%v", r.v, r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("second caller did not return")
	}
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("source called %d times, want 1", n)
	}
}

func TestDedupeFetchTimeout(t *testing.T) {
	src := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, func(o *Options[string, project]) {
		o.Source = src
		o.Dedupe = true
		o.FetchTimeout = 20 * time.Millisecond
	})
	_, err := f.cached.Get(context.Background(), "k")
	if !errors.Is(err, ErrSourceUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want source unavailable with deadline exceeded", err)
	}
}

func TestNewRequiresSourceAndStore(t *testing.T) {
	store, _ := NewKVStore[string, project]("ns", memkv.New(nil), c.Msgpack[project]{})
	if _, err := New(Options[string, project]{Store: store}); err == nil {
		t.Fatalf("missing source should fail")
	}
	if _, err := New(Options[string, project]{Source: &countingSource{}}); err == nil {
		t.Fatalf("missing store should fail")
	}
}

func TestExplicitSetWarmsCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.cached.Set(ctx, "p2", Some(project{Enabled: true})); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := f.cached.Get(ctx, "p2")
	if err != nil || !got.Valid || !got.Value.Enabled {
		t.Fatalf("Get after Set: %+v err=%v", got, err)
	}
	if n := f.source.calls.Load(); n != 0 {
		t.Fatalf("source consulted for a warmed key")
	}
}
