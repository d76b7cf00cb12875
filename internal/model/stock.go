package model

import "github.com/shopspring/decimal"

// Stock is one entry of the stock list.
type Stock struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market string `json:"market"`
}

// Candle is one trading day of a k-line series.
type Candle struct {
	Date   string
	Open   decimal.Decimal
	Close  decimal.Decimal
	Low    decimal.Decimal
	High   decimal.Decimal
	Volume int64
}

// Change returns close minus open.
func (c Candle) Change() decimal.Decimal {
	return c.Close.Sub(c.Open)
}

// KLine is the chart data for one stock, oldest day first.
type KLine struct {
	Code    string
	Candles []Candle
}

// Last returns the most recent candle, or false when the series is empty.
func (k *KLine) Last() (Candle, bool) {
	if k == nil || len(k.Candles) == 0 {
		return Candle{}, false
	}
	return k.Candles[len(k.Candles)-1], true
}

// Range returns the lowest low and highest high across the series.
func (k *KLine) Range() (low, high decimal.Decimal) {
	for i, c := range k.Candles {
		if i == 0 || c.Low.LessThan(low) {
			low = c.Low
		}
		if i == 0 || c.High.GreaterThan(high) {
			high = c.High
		}
	}
	return low, high
}

// WatchItem is a stock on the user's watchlist.
type WatchItem struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	AddedAt int64  `json:"addedAt"`
}
