package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amvega/scalpbot/internal/domain"
	"github.com/amvega/scalpbot/internal/engine"
	"github.com/amvega/scalpbot/internal/server/handler"
)

func fixedSnapshot() engine.Snapshot {
	return engine.Snapshot{
		Symbol:    "BTCUSDT",
		Conn:      domain.ConnConnected,
		LastPrice: 100.5,
		Bars: []domain.SecondBar{
			{Sec: 1, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 3},
			{Sec: 2, Open: 100.5, High: 100.6, Low: 100.4, Close: 100.5, Volume: 1},
		},
		Stats: domain.SessionStats{
			Signals:     4,
			Sent:        2,
			Filled:      2,
			RealizedUSD: 1.25,
			WindowStart: time.Unix(0, 0).UTC(),
		},
		At: time.Unix(2, 0).UTC(),
	}
}

func newTestServer(apiKey string) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(
		Config{Port: 0, APIKey: apiKey},
		Handlers{
			Health: handler.NewHealthHandler(logger),
			Status: handler.NewStatusHandler("paper", fixedSnapshot),
			Bars:   handler.NewBarsHandler(fixedSnapshot),
			Stats:  handler.NewStatsHandler(fixedSnapshot),
		},
		logger,
	)
}

func get(t *testing.T, s *Server, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestRoutesRespond(t *testing.T) {
	s := newTestServer("")
	for _, path := range []string{"/api/health", "/api/status", "/api/bars", "/api/stats", "/metrics"} {
		if rec := get(t, s, path, nil); rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestGetBars(t *testing.T) {
	rec := get(t, newTestServer(""), "/api/bars", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Symbol string             `json:"symbol"`
		Bars   []domain.SecondBar `json:"bars"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Symbol != "BTCUSDT" {
		t.Fatalf("symbol = %q", body.Symbol)
	}
	if len(body.Bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(body.Bars))
	}
	if body.Bars[0].Sec != 1 || body.Bars[1].Close != 100.5 {
		t.Fatalf("unexpected bars: %+v", body.Bars)
	}
}

func TestGetStats(t *testing.T) {
	rec := get(t, newTestServer(""), "/api/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Symbol string              `json:"symbol"`
		Stats  domain.SessionStats `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Stats.Signals != 4 || body.Stats.RealizedUSD != 1.25 {
		t.Fatalf("unexpected stats: %+v", body.Stats)
	}
}

func TestGetStatus(t *testing.T) {
	rec := get(t, newTestServer(""), "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Mode   string          `json:"mode"`
		Engine engine.Snapshot `json:"engine"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Mode != "paper" || body.Engine.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected status body: %+v", body)
	}
}

func TestAuthGuardsAllRoutes(t *testing.T) {
	s := newTestServer("secret")

	for _, path := range []string{"/api/health", "/api/status", "/api/bars", "/api/stats"} {
		if rec := get(t, s, path, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without key = %d, want 401", path, rec.Code)
		}
	}
	if rec := get(t, s, "/api/bars", map[string]string{"X-API-Key": "wrong"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key = %d, want 401", rec.Code)
	}
	if rec := get(t, s, "/api/bars", map[string]string{"X-API-Key": "secret"}); rec.Code != http.StatusOK {
		t.Fatalf("x-api-key = %d, want 200", rec.Code)
	}
	if rec := get(t, s, "/api/stats", map[string]string{"Authorization": "Bearer secret"}); rec.Code != http.StatusOK {
		t.Fatalf("bearer = %d, want 200", rec.Code)
	}
}
