package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Tick is one observed bid/ask quote.
type Tick struct {
	Timestamp time.Time
	Bid       float64
	Ask       float64
}

// PriceField selects which quote side feeds the bar prices.
type PriceField string

const (
	PriceMid PriceField = "mid"
	PriceAsk PriceField = "ask"
	PriceBid PriceField = "bid"
)

// ParsePriceField converts mid|ask|bid. Empty means mid.
func ParsePriceField(s string) (PriceField, error) {
	switch PriceField(strings.ToLower(strings.TrimSpace(s))) {
	case "", PriceMid:
		return PriceMid, nil
	case PriceAsk:
		return PriceAsk, nil
	case PriceBid:
		return PriceBid, nil
	default:
		return "", fmt.Errorf("unsupported price field %q (use: mid, ask, bid)", s)
	}
}

// Valid reports whether both quotes are finite and positive.
func (t Tick) Valid() bool {
	return validPrice(t.Bid) && validPrice(t.Ask)
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}

// Price returns the tick price for the given field.
func (t Tick) Price(f PriceField) float64 {
	switch f {
	case PriceAsk:
		return t.Ask
	case PriceBid:
		return t.Bid
	default:
		return (t.Ask + t.Bid) / 2
	}
}
