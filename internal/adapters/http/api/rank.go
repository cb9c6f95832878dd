package api

import (
	"net/http"
	"strings"
)

// RankHandler handles rank requests.
type RankHandler struct {
	deps Dependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps Dependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /rank/{user_id}?sport=nfl&affinity=bears.
// Works for any user, including those outside the public top-K; users
// with no recorded activity get competing=false, not a 404.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	uid := strings.TrimPrefix(r.URL.Path, "/rank/")
	if uid == "" || strings.Contains(uid, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	sport := r.URL.Query().Get("sport")
	if sport == "" {
		writeError(w, http.StatusBadRequest, "missing_sport", ErrBadRequest)
		return
	}
	affinity := r.URL.Query().Get("affinity")

	info, err := h.deps.UserRank(r.Context(), uid, sport, affinity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
