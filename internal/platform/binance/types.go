package binance

// accountResponse is the subset of GET /api/v3/account the bot reads.
type accountResponse struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

// orderResponse is the FULL-type response of POST /api/v3/order.
type orderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	TransactTime  int64  `json:"transactTime"`
	ExecutedQty   string `json:"executedQty"`
	CumQuoteQty   string `json:"cummulativeQuoteQty"`
	Status        string `json:"status"`
	Fills         []struct {
		Price string `json:"price"`
		Qty   string `json:"qty"`
	} `json:"fills"`
}

// exchangeInfoResponse is the subset of GET /api/v3/exchangeInfo the bot
// reads. Filter fields beyond the known types are ignored.
type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType  string `json:"filterType"`
			StepSize    string `json:"stepSize"`
			MinQty      string `json:"minQty"`
			TickSize    string `json:"tickSize"`
			MinNotional string `json:"minNotional"`
		} `json:"filters"`
	} `json:"symbols"`
}

// apiError is Binance's standard error envelope.
type apiError struct {
	Code    int64  `json:"code"`
	Message string `json:"msg"`
}
