package domain

import "time"

// SecondBar is a one-second OHLCV aggregate of trades, keyed by its epoch
// second. Open and Close are the first and last trade price of the second,
// High and Low the extremes, and Volume the number of trades folded in.
type SecondBar struct {
	Sec    int64   `json:"sec"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// NewSecondBar seeds a bar from the first trade of its second.
func NewSecondBar(sec int64, price float64) SecondBar {
	return SecondBar{Sec: sec, Open: price, High: price, Low: price, Close: price, Volume: 1}
}

// Apply folds another trade price into the bar.
func (b *SecondBar) Apply(price float64) {
	if price > b.High {
		b.High = price
	}
	if price < b.Low {
		b.Low = price
	}
	b.Close = price
	b.Volume++
}

// Time returns the bar's second as a time.Time.
func (b SecondBar) Time() time.Time {
	return time.Unix(b.Sec, 0)
}
