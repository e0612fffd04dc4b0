package bars

import (
	"fmt"
	"time"

	"fxgym/internal/model"
)

// Period is one calendar month, the unit of acquisition and caching.
type Period = model.Period

// MonthsBetween returns the months overlapping [from, to) in order.
func MonthsBetween(from, to time.Time) []Period {
	if !from.Before(to) {
		return nil
	}
	last := model.PeriodOf(to.Add(-time.Nanosecond))
	var out []Period
	for p := model.PeriodOf(from); !last.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out
}

// ParseBucket parses "15m", "1h"... The bucket must be positive, a whole
// number of milliseconds, and divide a day so buckets align across months.
func ParseBucket(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse bucket %q: %w", s, err)
	}
	if d <= 0 || d%time.Millisecond != 0 || (24*time.Hour)%d != 0 {
		return 0, fmt.Errorf("bucket %s must be positive, whole milliseconds and divide 24h", d)
	}
	return d, nil
}
