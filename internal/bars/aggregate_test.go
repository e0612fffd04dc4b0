package bars

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxgym/internal/model"
)

var t0 = time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC)

func tick(offset time.Duration, bid, ask float64) model.Tick {
	return model.Tick{Timestamp: t0.Add(offset), Bid: bid, Ask: ask}
}

func TestAggregate_OHLCV(t *testing.T) {
	ticks := []model.Tick{
		tick(0, 1.0, 1.2),              // mid 1.1
		tick(time.Minute, 1.2, 1.4),    // mid 1.3
		tick(2*time.Minute, 0.8, 1.0),  // mid 0.9
		tick(3*time.Minute, 1.0, 1.0),  // mid 1.0
		tick(16*time.Minute, 2.0, 2.0), // next bucket
		tick(50*time.Minute, 3.0, 3.0), // skips the 30m bucket
		tick(59*time.Minute, 2.5, 2.5), // same bucket as 45m
		tick(45*time.Minute, 4.0, 4.0), // out of order, opens 45m bucket
		tick(44*time.Minute, 3.5, 3.5), // out of order, 30m bucket after all
	}
	bars := Aggregate(ticks, 15*time.Minute, model.PriceMid)
	require.Len(t, bars, 4)

	assert.Equal(t, t0.UnixMilli(), bars[0].Timestamp)
	assert.InDelta(t, 1.1, bars[0].Open, 1e-12)
	assert.InDelta(t, 1.3, bars[0].High, 1e-12)
	assert.InDelta(t, 0.9, bars[0].Low, 1e-12)
	assert.InDelta(t, 1.0, bars[0].Close, 1e-12)
	assert.Equal(t, int64(4), bars[0].Volume)

	assert.Equal(t, t0.Add(15*time.Minute).UnixMilli(), bars[1].Timestamp)
	assert.Equal(t, int64(1), bars[1].Volume)

	assert.Equal(t, t0.Add(30*time.Minute).UnixMilli(), bars[2].Timestamp)
	assert.Equal(t, 3.5, bars[2].Close)

	assert.Equal(t, t0.Add(45*time.Minute).UnixMilli(), bars[3].Timestamp)
	assert.Equal(t, 4.0, bars[3].Open)
	assert.Equal(t, 2.5, bars[3].Close)
	assert.Equal(t, 4.0, bars[3].High)
	assert.Equal(t, 2.5, bars[3].Low)
	assert.Equal(t, int64(3), bars[3].Volume)

	for _, b := range bars {
		assert.True(t, b.Valid(), "bar %d violates OHLC ordering", b.Timestamp)
	}
	// Input is not reordered in place.
	assert.Equal(t, t0.Add(44*time.Minute), ticks[8].Timestamp)
}

func TestAggregate_PriceField(t *testing.T) {
	ticks := []model.Tick{tick(0, 1.0, 1.2)}
	assert.Equal(t, 1.2, Aggregate(ticks, time.Minute, model.PriceAsk)[0].Close)
	assert.Equal(t, 1.0, Aggregate(ticks, time.Minute, model.PriceBid)[0].Close)
}

func TestAggregate_SkipsUnusablePrices(t *testing.T) {
	ticks := []model.Tick{
		tick(0, 0, 0),
		tick(time.Minute, 1.0, 1.2),
		tick(2*time.Minute, math.NaN(), 1.2),
		tick(3*time.Minute, -3, 1.0),
		tick(4*time.Minute, 1.2, 1.4),
	}
	bars := Aggregate(ticks, 15*time.Minute, model.PriceMid)
	require.Len(t, bars, 1)
	assert.InDelta(t, 1.1, bars[0].Open, 1e-12)
	assert.InDelta(t, 1.1, bars[0].Low, 1e-12)
	assert.InDelta(t, 1.3, bars[0].Close, 1e-12)
	assert.Equal(t, int64(2), bars[0].Volume)
	assert.True(t, bars[0].Valid())

	// The ask side alone is fine for an ask-priced bar.
	assert.Len(t, Aggregate(ticks[2:3], time.Minute, model.PriceAsk), 1)
	assert.Empty(t, Aggregate(ticks[:1], time.Minute, model.PriceMid))
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil, time.Minute, model.PriceMid))
	assert.Empty(t, Aggregate([]model.Tick{tick(0, 1, 1)}, 0, model.PriceMid))
}

func TestConcat_DedupesAndDropsRegressions(t *testing.T) {
	a := []model.Bar{
		{Timestamp: 1, Open: 1, High: 1, Low: 1, Close: 1},
		{Timestamp: 2, Open: 2, High: 2, Low: 2, Close: 2},
	}
	b := []model.Bar{
		{Timestamp: 2, Open: 9, High: 9, Low: 9, Close: 9},
		{Timestamp: 3, Open: 3, High: 3, Low: 3, Close: 0},
		{Timestamp: 4, Open: 4, High: 4, Low: 4, Close: 4},
	}
	out := Concat(a, b)
	require.Len(t, out, 3)
	assert.Equal(t, []int64{1, 2, 4}, []int64{out[0].Timestamp, out[1].Timestamp, out[2].Timestamp})
	assert.Equal(t, 2.0, out[1].Close, "first occurrence wins")
}

func TestClip(t *testing.T) {
	bars := make([]model.Bar, 10)
	for i := range bars {
		bars[i] = model.Bar{Timestamp: t0.Add(time.Duration(i) * time.Hour).UnixMilli(), Close: 1}
	}
	out := Clip(bars, t0.Add(2*time.Hour), t0.Add(5*time.Hour))
	require.Len(t, out, 3)
	assert.Equal(t, t0.Add(2*time.Hour).UnixMilli(), out[0].Timestamp)
	assert.Empty(t, Clip(bars, t0.Add(20*time.Hour), t0.Add(30*time.Hour)))
}

func TestMonthsBetween(t *testing.T) {
	from := time.Date(2016, 11, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2017, 2, 1, 0, 0, 0, 0, time.UTC)
	got := MonthsBetween(from, to)
	require.Len(t, got, 3)
	assert.Equal(t, "2016-11", got[0].String())
	assert.Equal(t, "2017-01", got[2].String())

	assert.Empty(t, MonthsBetween(to, from))
	assert.Len(t, MonthsBetween(to, to.Add(time.Minute)), 1)
}

func TestParseBucket(t *testing.T) {
	d, err := ParseBucket("15m")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d)

	for _, bad := range []string{"", "0s", "-1m", "7m", "1500us", "nope"} {
		_, err := ParseBucket(bad)
		assert.Error(t, err, bad)
	}
}

const benchTicksMonth = 22 * 24 * 3600 // one tick per second over a trading month

func benchTicks() []model.Tick {
	ticks := make([]model.Tick, benchTicksMonth)
	for i := range ticks {
		ticks[i] = model.Tick{Timestamp: t0.Add(time.Duration(i) * time.Second), Bid: 1.05, Ask: 1.0502}
	}
	return ticks
}

// BenchmarkAggregate measures one month of second ticks into 15m bars.
func BenchmarkAggregate(b *testing.B) {
	ticks := benchTicks()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Aggregate(ticks, 15*time.Minute, model.PriceMid)
	}
}

// BenchmarkConcatPreallocVsNoPrealloc compares joining 12 monthly tables.
func BenchmarkConcatPreallocVsNoPrealloc(b *testing.B) {
	month := Aggregate(benchTicks(), time.Minute, model.PriceMid)
	parts := make([][]model.Bar, 12)
	for m := range parts {
		part := make([]model.Bar, len(month))
		for j, bar := range month {
			bar.Timestamp += int64(m) * int64(len(month)) * 60_000
			part[j] = bar
		}
		parts[m] = part
	}

	b.Run("Prealloc", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = Concat(parts...)
		}
	})
	b.Run("NoPrealloc", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var all []model.Bar
			for _, p := range parts {
				all = append(all, p...)
			}
			_ = all
		}
	})
}
