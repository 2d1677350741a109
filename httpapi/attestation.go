package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/unkn0wn-root/bouncer"
	"github.com/unkn0wn-root/bouncer/attestation"
	"github.com/unkn0wn-root/bouncer/csrf"
)

const maxAttestationBody = 8 << 10

type attestationBody struct {
	AttestationID string `json:"attestationId"`
	Origin        string `json:"origin"`
}

func allowAnyOrigin(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

func (h *handler) getAttestation(w http.ResponseWriter, r *http.Request) {
	allowAnyOrigin(w)
	id := r.PathValue("id")

	rec, ok, err := h.svc.GetAttestation(r.Context(), id)
	switch {
	case errors.Is(err, attestation.ErrMalformedID):
		writeText(w, http.StatusBadRequest, "Invalid attestation id")
	case err != nil:
		h.log.Error("attestation read failed", bouncer.Fields{"id": id, "err": err})
		writeText(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	case !ok:
		writeText(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

func (h *handler) preflightAttestation(w http.ResponseWriter, _ *http.Request) {
	allowAnyOrigin(w)
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) postAttestation(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(csrf.HeaderName)
	if token == "" {
		writeText(w, http.StatusForbidden, "Missing CSRF token")
		return
	}

	var body attestationBody
	dec := json.NewDecoder(io.LimitReader(r.Body, maxAttestationBody))
	if err := dec.Decode(&body); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.svc.SetAttestation(r.Context(), token, body.AttestationID, body.Origin)
	switch {
	case errors.Is(err, csrf.ErrMalformed), errors.Is(err, csrf.ErrInvalid):
		writeText(w, http.StatusForbidden, "Invalid CSRF token")
	case errors.Is(err, attestation.ErrMalformedID):
		writeText(w, http.StatusBadRequest, "Invalid attestation id")
	case err != nil:
		h.log.Error("attestation write failed", bouncer.Fields{"id": body.AttestationID, "err": err})
		writeText(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	default:
		writeText(w, http.StatusOK, "OK")
	}
}
