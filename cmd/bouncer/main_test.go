package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/bouncer"
	"github.com/unkn0wn-root/bouncer/codec"
	"github.com/unkn0wn-root/bouncer/config"
	"github.com/unkn0wn-root/bouncer/csrf"
	"github.com/unkn0wn-root/bouncer/internal/wire"
	"github.com/unkn0wn-root/bouncer/registry"
)

const projectID = "3cbaa32f8fbf3cdcc87d27ca1fa68069"

func testEnv(t *testing.T, cacheBackend string) (map[string]string, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	reg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/"+projectID) {
			_, _ = w.Write([]byte(`{"isVerifyEnabled":true,"verifiedDomains":["walletconnect.com"]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(reg.Close)

	return map[string]string{
		"BOUNCER_CSRF_SECRET":                 "s3cret",
		"BOUNCER_ATTESTATION_CACHE_URL":       "redis://" + mr.Addr() + "/0",
		"BOUNCER_PROJECT_REGISTRY_URL":        reg.URL,
		"BOUNCER_PROJECT_REGISTRY_AUTH_TOKEN": "tok",
		"BOUNCER_PROJECT_REGISTRY_CACHE_URL":  "redis://" + mr.Addr() + "/1",
		"BOUNCER_CACHE_BACKEND":               cacheBackend,
	}, mr
}

func testConfig(t *testing.T, cacheBackend string) config.Config {
	t.Helper()
	vars, _ := testEnv(t, cacheBackend)
	cfg, err := config.LoadFrom(vars)
	require.NoError(t, err)
	return cfg
}

func TestBuildServesEndToEnd(t *testing.T) {
	for _, backend := range []string{config.CacheRedis, config.CacheRistretto, config.CacheBigcache} {
		t.Run(backend, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a, err := build(ctx, testConfig(t, backend), bouncer.NopLogger{})
			require.NoError(t, err)
			defer a.close()

			rec := httptest.NewRecorder()
			a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+projectID, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "frame-ancestors https://*.walletconnect.com https://walletconnect.com", rec.Header().Get("Content-Security-Policy"))
			token := rec.Header().Get(csrf.HeaderName)
			require.NotEmpty(t, token)

			req := httptest.NewRequest(http.MethodPost, "/attestation", strings.NewReader(`{"attestationId":"abc123","origin":"https://example.com"}`))
			req.Header.Set(csrf.HeaderName, token)
			rec = httptest.NewRecorder()
			a.handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)

			rec = httptest.NewRecorder()
			a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/attestation/abc123", nil))
			require.Equal(t, http.StatusOK, rec.Code)
			require.JSONEq(t, `{"attestationId":"abc123","origin":"https://example.com","isScam":null}`, rec.Body.String())
		})
	}
}

func TestBuildProtobufCodecAndKeyLayout(t *testing.T) {
	vars, mr := testEnv(t, config.CacheRedis)
	vars["BOUNCER_CACHE_CODEC"] = codec.NameProtobuf
	cfg, err := config.LoadFrom(vars)
	require.NoError(t, err)

	a, err := build(context.Background(), cfg, bouncer.NopLogger{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+projectID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	token := rec.Header().Get(csrf.HeaderName)

	req := httptest.NewRequest(http.MethodPost, "/attestation", strings.NewReader(`{"attestationId":"project_registry:`+projectID+`","origin":"https://example.com"}`))
	req.Header.Set(csrf.HeaderName, token)
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	a.close() // drains write-backs

	require.True(t, mr.DB(0).Exists("attestation:project_registry:"+projectID))
	require.False(t, mr.DB(0).Exists("project_registry:"+projectID))
	require.True(t, mr.DB(1).Exists("project_registry:"+projectID))

	raw, err := mr.DB(1).Get("project_registry:" + projectID)
	require.NoError(t, err)
	valid, payload, err := wire.Decode([]byte(raw))
	require.NoError(t, err)
	require.True(t, valid)
	d, err := registry.ProtoCodec().Decode(payload)
	require.NoError(t, err)
	require.Equal(t, []string{"walletconnect.com"}, d.VerifiedDomains)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	cmd := rootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "9090", "--log-level", "debug"}))

	cfg := config.Config{Port: 3008, LogLevel: "warn"}
	applyFlags(cmd, &cfg)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, "debug", cfg.LogLevel)

	cmd = rootCmd()
	cfg = config.Config{Port: 3008, LogLevel: "warn"}
	applyFlags(cmd, &cfg)
	require.Equal(t, 3008, cfg.Port)
}

func TestNewLoggerBackends(t *testing.T) {
	for _, b := range []string{config.LogZap, config.LogLogrus, config.LogSlog} {
		_, err := newLogger(config.Config{LogBackend: b, LogLevel: "info"})
		require.NoError(t, err, b)
	}
	_, err := newLogger(config.Config{LogBackend: config.LogZap, LogLevel: "loud"})
	require.Error(t, err)
}
