// Package binance is the REST gateway to the Binance spot API. Signed
// endpoints carry an HMAC-SHA256 signature over the query string plus the
// X-MBX-APIKEY header.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amvega/scalpbot/internal/domain"
)

const (
	// DefaultBaseURL is the production spot REST endpoint.
	DefaultBaseURL = "https://api.binance.com"

	// DefaultRecvWindowMs bounds how far a signed request's timestamp may
	// lag server time, in milliseconds.
	DefaultRecvWindowMs = 5000
)

// Client is the REST client for the Binance spot API. It implements
// domain.ExchangeGateway.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	recvWindow string
	httpClient *http.Client

	// now is swappable for tests.
	now func() time.Time
}

// NewClient creates a Binance REST client. baseURL falls back to the
// production endpoint when empty; recvWindowMs falls back to
// DefaultRecvWindowMs when non-positive.
func NewClient(baseURL, apiKey, apiSecret string, recvWindowMs int64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if recvWindowMs <= 0 {
		recvWindowMs = DefaultRecvWindowMs
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		recvWindow: strconv.FormatInt(recvWindowMs, 10),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		now: time.Now,
	}
}

// PlaceOrder submits a market order and returns the volume-weighted fill.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderFill, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", req.Type)
	params.Set("quantity", strconv.FormatFloat(req.Quantity, 'f', -1, 64))
	params.Set("newOrderRespType", "FULL")
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}

	body, err := c.doSigned(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		return domain.OrderFill{}, fmt.Errorf("binance: place order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderFill{}, fmt.Errorf("binance: decode order response: %w", err)
	}
	if resp.Status == "REJECTED" || resp.Status == "EXPIRED" {
		return domain.OrderFill{}, fmt.Errorf("binance: order %s: %w", resp.Status, domain.ErrOrderRejected)
	}

	fill := domain.OrderFill{
		OrderID:       strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Side:          req.Side,
		Quantity:      parseFloat(resp.ExecutedQty),
		Time:          time.UnixMilli(resp.TransactTime),
	}
	if qty := fill.Quantity; qty > 0 {
		if quote := parseFloat(resp.CumQuoteQty); quote > 0 {
			fill.Price = quote / qty
		}
	}
	if fill.Price == 0 && len(resp.Fills) > 0 {
		fill.Price = parseFloat(resp.Fills[0].Price)
	}
	return fill, nil
}

// GetBalances returns the free and locked amounts of every asset with a
// non-zero balance.
func (c *Client) GetBalances(ctx context.Context) (map[string]domain.Balance, error) {
	body, err := c.doSigned(ctx, http.MethodGet, "/api/v3/account", url.Values{})
	if err != nil {
		return nil, fmt.Errorf("binance: get account: %w", err)
	}

	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("binance: decode account: %w", err)
	}

	out := make(map[string]domain.Balance)
	for _, b := range resp.Balances {
		free, locked := parseFloat(b.Free), parseFloat(b.Locked)
		if free == 0 && locked == 0 {
			continue
		}
		out[b.Asset] = domain.Balance{Asset: b.Asset, Free: free, Locked: locked}
	}
	return out, nil
}

// GetSymbolFilters returns the quantization filters for one symbol.
// Both the legacy MIN_NOTIONAL and the newer NOTIONAL filter types are
// accepted.
func (c *Client) GetSymbolFilters(ctx context.Context, symbol string) (domain.SymbolFilters, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.doPublic(ctx, "/api/v3/exchangeInfo", params)
	if err != nil {
		return domain.SymbolFilters{}, fmt.Errorf("binance: get exchange info: %w", err)
	}

	var resp exchangeInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.SymbolFilters{}, fmt.Errorf("binance: decode exchange info: %w", err)
	}

	for _, s := range resp.Symbols {
		if s.Symbol != symbol {
			continue
		}
		var f domain.SymbolFilters
		for _, raw := range s.Filters {
			switch raw.FilterType {
			case "LOT_SIZE":
				f.StepSize = parseFloat(raw.StepSize)
				f.MinQty = parseFloat(raw.MinQty)
			case "PRICE_FILTER":
				f.TickSize = parseFloat(raw.TickSize)
			case "MIN_NOTIONAL", "NOTIONAL":
				f.MinNotional = parseFloat(raw.MinNotional)
			}
		}
		return f, nil
	}
	return domain.SymbolFilters{}, fmt.Errorf("binance: symbol %s: %w", symbol, domain.ErrNoFilters)
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doSigned sends a request to a signed endpoint: the timestamp and
// recvWindow are appended to the query, which is then HMAC-signed with the
// API secret.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	params.Set("recvWindow", c.recvWindow)

	query := params.Encode()
	query += "&signature=" + c.sign(query)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// doPublic sends a request to an unsigned endpoint.
func (c *Client) doPublic(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// sign returns the lowercase hex HMAC-SHA256 of the query string.
func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// checkStatus maps non-2xx HTTP status codes to errors carrying Binance's
// error code and message.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("unauthorized: %s (code %d)", apiErr.Message, apiErr.Code)
	case http.StatusTooManyRequests, http.StatusTeapot:
		// 418 means the IP has been auto-banned for ignoring 429s.
		return fmt.Errorf("rate limited: %s (code %d)", apiErr.Message, apiErr.Code)
	case http.StatusBadRequest:
		return fmt.Errorf("bad request: %s (code %d)", apiErr.Message, apiErr.Code)
	default:
		return fmt.Errorf("HTTP %d: %s (code %d)", statusCode, apiErr.Message, apiErr.Code)
	}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
