// Package httpapi is the HTTP boundary of the bouncer.
//
// Routes:
//
//	GET     /health               liveness and build version
//	GET     /index.js             enclave script
//	GET     /{project_id}         enclave page with frame-ancestors CSP and a CSRF token
//	GET     /attestation/{id}     attestation record (CORS *)
//	OPTIONS /attestation/{id}     CORS preflight
//	POST    /attestation          store an attestation; requires x-csrf-token
package httpapi

import (
	"context"
	"net/http"

	"github.com/unkn0wn-root/bouncer"
	"github.com/unkn0wn-root/bouncer/attestation"
	"github.com/unkn0wn-root/bouncer/service"
)

// Service is what the handlers need from the application layer.
// *service.Bouncer implements it.
type Service interface {
	IssueToken() (string, error)
	URLMatchers(ctx context.Context, projectID string) ([]service.URLMatcher, error)
	SetAttestation(ctx context.Context, token, id, origin string) error
	GetAttestation(ctx context.Context, id string) (attestation.Record, bool, error)
}

var _ Service = (*service.Bouncer)(nil)

type Options struct {
	Service Service // required
	Name    string  // reported by /health; default "bouncer"
	Version string  // reported by /health
	Logger  bouncer.Logger
}

type handler struct {
	svc    Service
	health string
	log    bouncer.Logger
}

// New returns the routed handler wrapped in request-id and access-log middleware.
func New(opts Options) http.Handler {
	h := &handler{svc: opts.Service, log: opts.Logger}
	if h.log == nil {
		h.log = bouncer.NopLogger{}
	}
	name := opts.Name
	if name == "" {
		name = "bouncer"
	}
	h.health = "OK, " + name + " v" + opts.Version

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.getHealth)
	mux.HandleFunc("GET /index.js", h.getIndexJS)
	mux.HandleFunc("GET /attestation/{id}", h.getAttestation)
	mux.HandleFunc("OPTIONS /attestation/{id}", h.preflightAttestation)
	mux.HandleFunc("POST /attestation", h.postAttestation)
	mux.HandleFunc("GET /{project_id}", h.getEnclave)

	return withRequestID(withAccessLog(h.log, mux))
}

func (h *handler) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, h.health)
}
