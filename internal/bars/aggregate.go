package bars

import (
	"math"
	"sort"
	"time"

	"fxgym/internal/model"
)

// estimatedBuckets returns a pre-alloc capacity for ticks spanning first..last.
func estimatedBuckets(first, last time.Time, bucket time.Duration) int {
	if bucket <= 0 || last.Before(first) {
		return 0
	}
	return int(last.Sub(first)/bucket) + 1
}

// Aggregate buckets ticks into fixed-width bars: open is the first price, close
// the last, high/low the extrema and volume the tick count. Buckets without
// ticks are omitted. Ticks whose price is not finite and positive are
// skipped. Ticks are stable-sorted when they arrive out of order.
func Aggregate(ticks []model.Tick, bucket time.Duration, field model.PriceField) []model.Bar {
	if len(ticks) == 0 || bucket <= 0 {
		return nil
	}
	if !sort.SliceIsSorted(ticks, func(i, j int) bool { return ticks[i].Timestamp.Before(ticks[j].Timestamp) }) {
		sorted := make([]model.Tick, len(ticks))
		copy(sorted, ticks)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
		ticks = sorted
	}

	out := make([]model.Bar, 0, estimatedBuckets(ticks[0].Timestamp, ticks[len(ticks)-1].Timestamp, bucket))
	var cur model.Bar
	open := false
	for _, tk := range ticks {
		px := tk.Price(field)
		if math.IsNaN(px) || math.IsInf(px, 0) || px <= 0 {
			continue
		}
		start := tk.Timestamp.UTC().Truncate(bucket).UnixMilli()
		if !open || start != cur.Timestamp {
			if open {
				out = append(out, cur)
			}
			cur = model.Bar{Timestamp: start, Open: px, High: px, Low: px, Close: px}
			open = true
		}
		if px > cur.High {
			cur.High = px
		}
		if px < cur.Low {
			cur.Low = px
		}
		cur.Close = px
		cur.Volume++
	}
	if open {
		out = append(out, cur)
	}
	return out
}

// Concat joins per-period tables in order, keeps the first bar of any repeated
// timestamp, drops bars without a usable close and any bar that does not move
// time forward.
func Concat(parts ...[]model.Bar) []model.Bar {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]model.Bar, 0, n)
	for _, p := range parts {
		for _, b := range p {
			if !b.HasClose() {
				continue
			}
			if len(out) > 0 && b.Timestamp <= out[len(out)-1].Timestamp {
				continue
			}
			out = append(out, b)
		}
	}
	return out
}

// Clip keeps bars whose bucket start lies in [from, to).
func Clip(bars []model.Bar, from, to time.Time) []model.Bar {
	lo, hi := from.UnixMilli(), to.UnixMilli()
	i := sort.Search(len(bars), func(i int) bool { return bars[i].Timestamp >= lo })
	j := sort.Search(len(bars), func(i int) bool { return bars[i].Timestamp >= hi })
	return bars[i:j]
}
