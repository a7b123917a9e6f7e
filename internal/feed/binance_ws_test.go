package feed

import (
	"testing"
	"time"
)

func TestParseTrade(t *testing.T) {
	raw := []byte(`{"e":"trade","E":1700000000123,"s":"BTCUSDT","t":12345,"p":"60000.01","q":"0.00020000","T":1700000000120,"m":true}`)
	tick, err := parseTrade(raw)
	if err != nil {
		t.Fatalf("parse trade: %v", err)
	}
	if tick.Price != 60000.01 || tick.Qty != 0.0002 {
		t.Fatalf("unexpected tick: %+v", tick)
	}
	if !tick.Time.Equal(time.UnixMilli(1700000000120)) {
		t.Fatalf("trade time = %v", tick.Time)
	}
	if !tick.EventTime.Equal(time.UnixMilli(1700000000123)) {
		t.Fatalf("event time = %v", tick.EventTime)
	}
}

func TestParseTradeRejectsNonTradeFrames(t *testing.T) {
	for _, raw := range []string{
		`{"result":null,"id":1}`,
		`{"e":"aggTrade","E":1,"p":"1","q":"1","T":1}`,
		`{"e":"trade","E":1,"p":"0","q":"1","T":1}`,
		`{"e":"trade","E":1,"p":"nope","q":"1","T":1}`,
		`not json`,
	} {
		if _, err := parseTrade([]byte(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestStreamURL(t *testing.T) {
	if got := StreamURL("", "BTCUSDT"); got != "wss://stream.binance.com:9443/ws/btcusdt@trade" {
		t.Fatalf("unexpected url %q", got)
	}
	if got := StreamURL("wss://testnet.binance.vision/", "ethusdt"); got != "wss://testnet.binance.vision/ws/ethusdt@trade" {
		t.Fatalf("unexpected url %q", got)
	}
}
