package handler

import (
	"net/http"

	"github.com/amvega/scalpbot/internal/engine"
)

// StatusHandler serves the live engine snapshot for dashboards.
type StatusHandler struct {
	mode     string
	snapshot func() engine.Snapshot
}

// NewStatusHandler creates a StatusHandler reading from the given snapshot
// source.
func NewStatusHandler(mode string, snapshot func() engine.Snapshot) *StatusHandler {
	return &StatusHandler{mode: mode, snapshot: snapshot}
}

// GetStatus responds with the run mode and the current engine snapshot:
// bars, last evaluation, open slots, session stats, balances, and stream
// state.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":   h.mode,
		"engine": h.snapshot(),
	})
}
