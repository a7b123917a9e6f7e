package handler

import (
	"net/http"

	"github.com/amvega/scalpbot/internal/domain"
	"github.com/amvega/scalpbot/internal/engine"
)

// BarsHandler serves the retained one-second bar window for charting.
type BarsHandler struct {
	snapshot func() engine.Snapshot
}

// NewBarsHandler creates a BarsHandler reading from the given snapshot
// source.
func NewBarsHandler(snapshot func() engine.Snapshot) *BarsHandler {
	return &BarsHandler{snapshot: snapshot}
}

// GetBars responds with the symbol and its bars, oldest first. The newest
// bar may still be accumulating trades.
// GET /api/bars
func (h *BarsHandler) GetBars(w http.ResponseWriter, r *http.Request) {
	s := h.snapshot()
	bars := s.Bars
	if bars == nil {
		bars = []domain.SecondBar{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": s.Symbol,
		"bars":   bars,
	})
}
