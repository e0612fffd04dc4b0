package model

import (
	"math"
	"time"
)

// Bar represents one OHLCV bucket built from ticks.
// Shared by the builder, the stores and serialization (json, parquet, msgpack).
type Bar struct {
	Timestamp int64   `json:"t" parquet:"t" msgpack:"t"` // bucket start, Unix milliseconds
	Open      float64 `json:"o" parquet:"o" msgpack:"o"`
	High      float64 `json:"h" parquet:"h" msgpack:"h"`
	Low       float64 `json:"l" parquet:"l" msgpack:"l"`
	Close     float64 `json:"c" parquet:"c" msgpack:"c"`
	Volume    int64   `json:"v" parquet:"v" msgpack:"v"` // tick count
}

// BarColumns lists the column names every persisted bar table carries.
var BarColumns = []string{"t", "o", "h", "l", "c", "v"}

// Time returns the bucket start in UTC.
func (b Bar) Time() time.Time {
	return time.UnixMilli(b.Timestamp).UTC()
}

// Valid reports whether prices are finite and positive and low <= open,close <= high.
func (b Bar) Valid() bool {
	for _, p := range [...]float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return false
		}
	}
	return b.Low <= math.Min(b.Open, b.Close) && b.High >= math.Max(b.Open, b.Close)
}

// HasClose reports whether the close is usable for a return computation.
func (b Bar) HasClose() bool {
	return !math.IsNaN(b.Close) && !math.IsInf(b.Close, 0) && b.Close > 0
}
