package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sportswire/gmtrade/internal/adapters/ledger"
)

// SessionsHandler handles session and activity-history requests.
type SessionsHandler struct {
	deps Dependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps Dependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

type sessionRequest struct {
	TeamContext string `json:"team_context"`
}

// HandleStartSession handles POST /sessions requests. Starting a session
// deactivates any prior active session for the same (user, team context).
func (h *SessionsHandler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", ErrUnauthenticated)
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.TeamContext == "" {
		writeError(w, http.StatusBadRequest, "missing_team_context", ErrBadRequest)
		return
	}
	sess, err := h.deps.StartSession(r.Context(), uid, req.TeamContext)
	if err != nil {
		status, code := httpStatusFor(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// HandleGetActivities handles GET /activities?limit=N for the calling
// user.
func (h *SessionsHandler) HandleGetActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", ErrUnauthenticated)
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		limit = n
	}
	acts, err := h.deps.Activities(r.Context(), uid, limit)
	if err != nil {
		status, code := httpStatusFor(err)
		writeError(w, status, code, err)
		return
	}
	if acts == nil {
		acts = []ledger.Activity{}
	}
	writeJSON(w, http.StatusOK, acts)
}
