package api

import (
	"net/http"
	"time"
)

// StatsProvider supplies a point-in-time snapshot of engine counters.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves engine statistics for monitoring.
type StatsHandler struct {
	statsProvider StatsProvider
	startedAt     time.Time
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{
		statsProvider: statsProvider,
		startedAt:     time.Now(),
	}
}

// HandleStats handles GET /stats requests. The snapshot carries process
// uptime so dashboards can spot restarts.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	snapshot := h.statsProvider.GetStats()
	snapshot["uptimeSeconds"] = int64(time.Since(h.startedAt).Seconds())
	writeJSON(w, http.StatusOK, snapshot)
}
