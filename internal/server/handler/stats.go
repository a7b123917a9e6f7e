package handler

import (
	"net/http"

	"github.com/amvega/scalpbot/internal/engine"
)

// StatsHandler serves the session statistics: windowed counters and
// realized P&L.
type StatsHandler struct {
	snapshot func() engine.Snapshot
}

// NewStatsHandler creates a StatsHandler reading from the given snapshot
// source.
func NewStatsHandler(snapshot func() engine.Snapshot) *StatsHandler {
	return &StatsHandler{snapshot: snapshot}
}

// GetStats responds with the symbol and the current session stats.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	s := h.snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": s.Symbol,
		"stats":  s.Stats,
	})
}
