package httpapi

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/unkn0wn-root/bouncer"
	"github.com/unkn0wn-root/bouncer/csrf"
	"github.com/unkn0wn-root/bouncer/service"
)

const indexJS = `
// event subscribed by Verify Enclave
window.addEventListener("message", (event) => {
    const attestationId = event.data
    const origin = event.origin
    if (!attestationId) return
    const token = document.querySelector('meta[name="csrf-token"]')?.content
    fetch(` + "`${window.location.protocol}//${window.location.host}/attestation`" + `, {
        method: "POST",
        body: JSON.stringify({ attestationId, origin }),
        headers: new Headers({ "content-type": "application/json", "x-csrf-token": token || "" })
    })
})
`

var indexHTML = template.Must(template.New("index").Parse(`
<!-- index.html -->
<html>
  <head>
      <meta name="csrf-token" content="{{.}}">
      <script src="/index.js"></script>
  </head>
</html>
`))

const (
	msgInvalidProjectID = "Invalid URL: ProjectId should be a hex string 32 chars long"
	msgUnknownProject   = "Project with the provided ID doesn't exist"
)

func (h *handler) getIndexJS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	_, _ = w.Write([]byte(indexJS))
}

func (h *handler) getEnclave(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("project_id")

	matchers, err := h.svc.URLMatchers(r.Context(), id)
	switch {
	case errors.Is(err, service.ErrInvalidProjectID):
		writeText(w, http.StatusBadRequest, msgInvalidProjectID)
		return
	case errors.Is(err, service.ErrUnknownProject):
		writeText(w, http.StatusNotFound, msgUnknownProject)
		return
	case err != nil:
		h.log.Error("project lookup failed", bouncer.Fields{"project_id": id, "err": err})
		writeText(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	token, err := h.svc.IssueToken()
	if err != nil {
		h.log.Error("csrf token issue failed", bouncer.Fields{"err": err})
		writeText(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	if len(matchers) > 0 {
		w.Header().Set("Content-Security-Policy", service.ContentSecurityPolicy(matchers))
	}
	w.Header().Set(csrf.HeaderName, token)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = indexHTML.Execute(w, token)
}
