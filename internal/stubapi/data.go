package stubapi

import (
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iammorganparry/stockview/internal/model"
)

// klineDays is how many trading days each stock series covers.
const klineDays = 120

var catalogue = []model.Stock{
	{Code: "600519", Name: "Kweichow Moutai"},
	{Code: "601318", Name: "Ping An Insurance"},
	{Code: "600036", Name: "China Merchants Bank"},
	{Code: "000001", Name: "Ping An Bank"},
	{Code: "000858", Name: "Wuliangye Yibin"},
	{Code: "300750", Name: "CATL"},
}

func init() {
	for i := range catalogue {
		catalogue[i].Market = marketOf(catalogue[i].Code)
	}
}

// marketOf maps a code to its exchange: 6xxxxx trade in Shanghai.
func marketOf(code string) string {
	if strings.HasPrefix(code, "6") {
		return "SH"
	}
	return "SZ"
}

func findStock(code string) (model.Stock, bool) {
	for _, s := range catalogue {
		if s.Code == code {
			return s, true
		}
	}
	return model.Stock{}, false
}

// klineEnd is the last trading day of every generated series.
var klineEnd = time.Date(2024, time.December, 3, 0, 0, 0, 0, time.UTC)

// generateKLine builds a deterministic random walk for code.
func generateKLine(code string) []model.Candle {
	h := fnv.New64a()
	h.Write([]byte(code))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed>>1))

	days := make([]time.Time, 0, klineDays)
	for d := klineEnd; len(days) < klineDays; d = d.AddDate(0, 0, -1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		days = append(days, d)
	}

	price := 10 + rng.Float64()*190
	candles := make([]model.Candle, klineDays)
	for i := klineDays - 1; i >= 0; i-- {
		o := price
		c := o * (1 + (rng.Float64()-0.5)*0.06)
		high := max(o, c) * (1 + rng.Float64()*0.02)
		low := min(o, c) * (1 - rng.Float64()*0.02)
		candles[klineDays-1-i] = model.Candle{
			Date:   days[i].Format(time.DateOnly),
			Open:   decimal.NewFromFloat(o).Round(2),
			Close:  decimal.NewFromFloat(c).Round(2),
			Low:    decimal.NewFromFloat(low).Round(2),
			High:   decimal.NewFromFloat(high).Round(2),
			Volume: 100_000 + rng.Int64N(5_000_000),
		}
		price = c
	}
	return candles
}
