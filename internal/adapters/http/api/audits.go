package api

import (
	"net/http"
	"strings"
)

// AuditsHandler handles audit lookup requests.
type AuditsHandler struct {
	deps Dependencies
}

// NewAuditsHandler creates a new audits handler.
func NewAuditsHandler(deps Dependencies) *AuditsHandler {
	return &AuditsHandler{deps: deps}
}

// HandleGetAudit handles GET /audits/{fingerprint} requests. Audits are
// computed asynchronously; a 404 with code "not_computed" means the audit
// is pending or was skipped, not that the trade is unknown.
func (h *AuditsHandler) HandleGetAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	fp := strings.TrimPrefix(r.URL.Path, "/audits/")
	if fp == "" || strings.Contains(fp, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	res, ok := h.deps.GetAudit(r.Context(), fp)
	if !ok {
		writeError(w, http.StatusNotFound, "not_computed", ErrAuditNotComputed)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
