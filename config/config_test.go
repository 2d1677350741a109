package config

import (
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/bouncer/attestation"
)

func base() map[string]string {
	return map[string]string{
		"BOUNCER_CSRF_SECRET":                 "s3cret",
		"BOUNCER_ATTESTATION_CACHE_URL":       "redis://localhost:6379/0",
		"BOUNCER_PROJECT_REGISTRY_URL":        "https://registry.example",
		"BOUNCER_PROJECT_REGISTRY_AUTH_TOKEN": "tok",
		"BOUNCER_PROJECT_REGISTRY_CACHE_URL":  "redis://localhost:6379/1",
	}
}

func TestDefaults(t *testing.T) {
	c, err := LoadFrom(base())
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if c.Port != 3008 || c.LogLevel != "warn" || c.LogBackend != LogZap {
		t.Fatalf("defaults = %+v", c)
	}
	if c.CacheBackend != CacheRedis || c.CacheCodec != "msgpack" {
		t.Fatalf("cache defaults = %q %q", c.CacheBackend, c.CacheCodec)
	}
	if c.Attestation.WritePolicy != attestation.BestEffort || c.BackendTimeout != time.Second {
		t.Fatalf("attestation defaults = %+v timeout=%v", c.Attestation, c.BackendTimeout)
	}
	if c.CFKV.Enabled() || c.ScamGuard.Enabled() {
		t.Fatalf("optional integrations enabled by default")
	}
}

func TestOverrides(t *testing.T) {
	vars := base()
	vars["BOUNCER_PORT"] = "8080"
	vars["BOUNCER_ATTESTATION_WRITE_POLICY"] = "strict"
	vars["BOUNCER_CF_KV_ACCOUNT_ID"] = "acc"
	vars["BOUNCER_CF_KV_NAMESPACE_ID"] = "ns"
	vars["BOUNCER_CF_KV_BEARER_TOKEN"] = "cf"
	vars["BOUNCER_DOMAIN_WHITELIST"] = "localhost,vercel.app"
	vars["BOUNCER_CACHE_BACKEND"] = "ristretto"
	vars["BOUNCER_CACHE_CODEC"] = "cbor"
	vars["BOUNCER_BACKEND_TIMEOUT"] = "250ms"

	c, err := LoadFrom(vars)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if c.Port != 8080 || c.Attestation.WritePolicy != attestation.Strict || !c.CFKV.Enabled() {
		t.Fatalf("overrides = %+v", c)
	}
	if len(c.DomainWhitelist) != 2 || c.DomainWhitelist[1] != "vercel.app" {
		t.Fatalf("whitelist = %v", c.DomainWhitelist)
	}
	if c.CacheBackend != CacheRistretto || c.CacheCodec != "cbor" || c.BackendTimeout != 250*time.Millisecond {
		t.Fatalf("cache = %q %q %v", c.CacheBackend, c.CacheCodec, c.BackendTimeout)
	}
}

func TestInvalidConfigs(t *testing.T) {
	cases := map[string]func(map[string]string){
		"missing secret":         func(v map[string]string) { delete(v, "BOUNCER_CSRF_SECRET") },
		"missing attestation":    func(v map[string]string) { delete(v, "BOUNCER_ATTESTATION_CACHE_URL") },
		"bad policy":             func(v map[string]string) { v["BOUNCER_ATTESTATION_WRITE_POLICY"] = "eventual" },
		"strict without cf":      func(v map[string]string) { v["BOUNCER_ATTESTATION_WRITE_POLICY"] = "strict" },
		"bad cache backend":      func(v map[string]string) { v["BOUNCER_CACHE_BACKEND"] = "memcached" },
		"redis cache needs url":  func(v map[string]string) { delete(v, "BOUNCER_PROJECT_REGISTRY_CACHE_URL") },
		"bad codec":              func(v map[string]string) { v["BOUNCER_CACHE_CODEC"] = "xml" },
		"bad log backend":        func(v map[string]string) { v["BOUNCER_LOG_BACKEND"] = "glog" },
		"cf without token":       func(v map[string]string) { v["BOUNCER_CF_KV_ACCOUNT_ID"] = "acc" },
		"scam guard without key": func(v map[string]string) { v["BOUNCER_SCAM_GUARD_URL"] = "https://api" },
		"bad port":               func(v map[string]string) { v["BOUNCER_PORT"] = "70000" },
		"shared redis db": func(v map[string]string) {
			v["BOUNCER_PROJECT_REGISTRY_CACHE_URL"] = "redis://localhost:6379"
			v["BOUNCER_ATTESTATION_CACHE_URL"] = "redis://localhost:6379/0"
		},
	}
	for name, mutate := range cases {
		vars := base()
		mutate(vars)
		if _, err := LoadFrom(vars); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	vars := base()
	vars["BOUNCER_CACHE_BACKEND"] = "memcached"
	vars["BOUNCER_LOG_BACKEND"] = "glog"
	_, err := LoadFrom(vars)
	if err == nil || !strings.Contains(err.Error(), "cache backend") || !strings.Contains(err.Error(), "log backend") {
		t.Fatalf("err = %v", err)
	}
}

func TestSameRedisDB(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"redis://localhost:6379/0", "redis://localhost:6379/0", true},
		{"redis://localhost:6379", "redis://localhost:6379/0", true},
		{"redis://localhost:6379/0", "redis://localhost:6379/1", false},
		{"redis://a:6379/0", "redis://b:6379/0", false},
		{"not a url", "not a url", true},
	}
	for _, tc := range cases {
		if got := sameRedisDB(tc.a, tc.b); got != tc.want {
			t.Fatalf("sameRedisDB(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestProtobufCodecAccepted(t *testing.T) {
	vars := base()
	vars["BOUNCER_CACHE_CODEC"] = "protobuf"
	c, err := LoadFrom(vars)
	if err != nil || c.CacheCodec != "protobuf" {
		t.Fatalf("LoadFrom = %q,%v", c.CacheCodec, err)
	}
}
