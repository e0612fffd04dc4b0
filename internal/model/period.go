package model

import (
	"fmt"
	"strings"
	"time"
)

// Period is one calendar month of raw data, the unit of acquisition and caching.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the month containing t (UTC).
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses "2006-01".
func ParsePeriod(s string) (Period, error) {
	t, err := time.ParseInLocation("2006-01", strings.TrimSpace(s), time.UTC)
	if err != nil {
		return Period{}, fmt.Errorf("parse period %q: %w", s, err)
	}
	return PeriodOf(t), nil
}

// Start is the first instant of the month.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the next month (exclusive).
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Next returns the following month.
func (p Period) Next() Period {
	return PeriodOf(p.End())
}

// Before reports whether p is an earlier month than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// CacheKey identifies one persisted bar table.
type CacheKey struct {
	Symbol string
	Period Period
	Bucket time.Duration
}

// NewCacheKey normalizes the symbol (upper case, no slash).
func NewCacheKey(symbol string, p Period, bucket time.Duration) CacheKey {
	return CacheKey{Symbol: NormalizeSymbol(symbol), Period: p, Bucket: bucket}
}

// BucketLabel renders the bucket as 15m, 1h, 1d...
func (k CacheKey) BucketLabel() string {
	return BucketLabel(k.Bucket)
}

// String renders EURUSD-2017-01-15m.
func (k CacheKey) String() string {
	return fmt.Sprintf("%s-%s-%s", k.Symbol, k.Period, k.BucketLabel())
}

// BucketLabel renders a duration in the shortest unit that divides it.
func BucketLabel(d time.Duration) string {
	switch {
	case d <= 0:
		return "0"
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	default:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	}
}

// NormalizeSymbol turns "eur/usd" into "EURUSD".
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "/", ""))
}
