// Package feed streams live trades from the Binance spot WebSocket into the
// engine's tick channel, reconnecting with capped exponential backoff.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amvega/scalpbot/internal/domain"
)

const (
	// DefaultStreamURL is the production spot market data endpoint.
	DefaultStreamURL = "wss://stream.binance.com:9443"

	// writeWait is the time allowed to write a control message to the peer.
	writeWait = 10 * time.Second

	// readWait is the max silence tolerated before the connection is
	// considered dead. Binance pings every few minutes; trades on a liquid
	// symbol arrive far more often.
	readWait = 70 * time.Second

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// tradeMessage is one event from the <symbol>@trade stream.
type tradeMessage struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

// TradeFeed owns the WebSocket connection to one trade stream. Parsed ticks
// go to the ticks channel; connection transitions go to the states channel.
// A slow tick consumer backpressures the feed rather than dropping trades.
type TradeFeed struct {
	url    string
	ticks  chan<- domain.Tick
	states chan<- domain.ConnState
	logger *slog.Logger
}

// NewTradeFeed creates a feed for the given symbol. baseURL falls back to
// the production endpoint when empty.
func NewTradeFeed(baseURL, symbol string, ticks chan<- domain.Tick, states chan<- domain.ConnState, logger *slog.Logger) *TradeFeed {
	return &TradeFeed{
		url:    StreamURL(baseURL, symbol),
		ticks:  ticks,
		states: states,
		logger: logger.With(slog.String("component", "feed")),
	}
}

// StreamURL builds the raw trade stream URL for a symbol, e.g.
// "wss://stream.binance.com:9443/ws/btcusdt@trade".
func StreamURL(baseURL, symbol string) string {
	if baseURL == "" {
		baseURL = DefaultStreamURL
	}
	return strings.TrimRight(baseURL, "/") + "/ws/" + strings.ToLower(symbol) + "@trade"
}

// Run connects and pumps trades until ctx is cancelled. Every disconnect is
// followed by a reconnect attempt with exponential backoff; the engine keeps
// its position state across reconnects.
func (f *TradeFeed) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		f.setState(ctx, domain.ConnConnecting)
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			f.setState(context.Background(), domain.ConnDisconnected)
			return ctx.Err()
		}

		f.setState(ctx, domain.ConnError)
		f.logger.Warn("stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConnection dials once and reads until the connection drops or ctx is
// cancelled. Returns the read error that ended the connection.
func (f *TradeFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("feed: connect: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(payload string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.PongMessage, []byte(payload))
	})

	f.setState(ctx, domain.ConnConnected)
	f.logger.Info("stream connected", slog.String("url", f.url))

	// Close the socket when ctx ends so the blocking read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w (%v)", domain.ErrWSDisconnect, err)
		}
		conn.SetReadDeadline(time.Now().Add(readWait))

		tick, err := parseTrade(raw)
		if err != nil {
			// Non-trade frames (subscription acks etc) are not an error.
			continue
		}

		select {
		case f.ticks <- tick:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// parseTrade converts a raw trade frame into a Tick.
func parseTrade(raw []byte) (domain.Tick, error) {
	var msg tradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.Tick{}, fmt.Errorf("feed: parse trade: %w", err)
	}
	if msg.EventType != "trade" {
		return domain.Tick{}, fmt.Errorf("feed: not a trade event: %q", msg.EventType)
	}
	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil || price <= 0 {
		return domain.Tick{}, fmt.Errorf("feed: bad price %q", msg.Price)
	}
	qty, _ := strconv.ParseFloat(msg.Quantity, 64)

	return domain.Tick{
		Time:      time.UnixMilli(msg.TradeTime),
		EventTime: time.UnixMilli(msg.EventTime),
		Price:     price,
		Qty:       qty,
	}, nil
}

// setState publishes a connection state transition without blocking forever
// on a stalled consumer.
func (f *TradeFeed) setState(ctx context.Context, s domain.ConnState) {
	if f.states == nil {
		return
	}
	select {
	case f.states <- s:
	case <-ctx.Done():
	}
}
