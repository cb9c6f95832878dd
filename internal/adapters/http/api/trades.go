package api

import (
	"encoding/json"
	"net/http"
)

// TradesHandler handles trade submission and preview requests.
type TradesHandler struct {
	deps Dependencies
}

// NewTradesHandler creates a new trades handler.
func NewTradesHandler(deps Dependencies) *TradesHandler {
	return &TradesHandler{deps: deps}
}

// HandlePostTrade handles POST /trades requests: the grade-committing
// path. Repeat submissions of an asset-equal trade return the stored
// result with cached=true and credit nothing.
func (h *TradesHandler) HandlePostTrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", ErrUnauthenticated)
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	res, cached, err := h.deps.SubmitTrade(r.Context(), uid, req.toProposal())
	if err != nil {
		status, code := httpStatusFor(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, tradeResponse{Result: res, Cached: cached})
}

// HandlePreviewTrade handles POST /trades/preview requests: the
// non-committing read path with a degraded fallback grade when the
// evaluator is unavailable.
func (h *TradesHandler) HandlePreviewTrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	res, cached, err := h.deps.PreviewTrade(r.Context(), req.toProposal())
	if err != nil {
		status, code := httpStatusFor(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, tradeResponse{Result: res, Cached: cached})
}
