package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/unkn0wn-root/bouncer/kv"
)

type calls map[string]int

func (c calls) BackendCall(db, op string, err error) {
	k := db + "/" + op
	if err != nil {
		k += "/err"
	}
	c[k]++
}

func TestSetGetTTL(t *testing.T) {
	obs := calls{}
	cfg := DefaultConfig("lookup_cache")
	cfg.NumCounters, cfg.MaxCost = 1000, 1<<20
	cfg.Observer = obs
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close(context.Background())
	ctx := context.Background()

	if err := b.Set(ctx, "k", []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	b.Wait()

	v, ok, err := b.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("Get = %q,%v,%v", v, ok, err)
	}
	if _, ok, _ := b.Get(ctx, "missing"); ok {
		t.Fatalf("unexpected hit")
	}

	time.Sleep(100 * time.Millisecond)
	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatalf("entry alive after ttl")
	}
	if obs["lookup_cache/"+kv.OpSetEx] != 1 || obs["lookup_cache/"+kv.OpGet] != 3 {
		t.Fatalf("observer = %v", obs)
	}
}

func TestInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error")
	}
}
