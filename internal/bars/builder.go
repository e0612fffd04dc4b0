package bars

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"fxgym/internal/model"
	"fxgym/internal/provider"
	"fxgym/internal/provider/truefx"
	"fxgym/internal/store"
)

// ArchiveParser turns raw archive bytes into ticks.
type ArchiveParser func(data []byte) ([]model.Tick, error)

// Builder turns monthly tick archives into a cached, concatenated bar series.
// A valid cache artifact always wins over re-aggregation; the source is only
// contacted on a miss or when the artifact is corrupt.
type Builder struct {
	Source provider.DataProvider
	Store  store.Store
	Bucket time.Duration
	Field  model.PriceField
	Parse  ArchiveParser
	Logger *slog.Logger

	group singleflight.Group
}

// NewBuilder creates a Builder parsing TrueFX-style archives.
func NewBuilder(src provider.DataProvider, st store.Store, bucket time.Duration, field model.PriceField) *Builder {
	return &Builder{
		Source: src,
		Store:  st,
		Bucket: bucket,
		Field:  field,
		Parse:  truefx.ParseArchive,
	}
}

func (b *Builder) log() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Build returns the bars of symbol with bucket start in [from, to).
func (b *Builder) Build(ctx context.Context, symbol string, from, to time.Time) (*model.BarSeries, error) {
	periods := MonthsBetween(from, to)
	if len(periods) == 0 {
		return nil, fmt.Errorf("empty range [%s, %s)", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	parts := make([][]model.Bar, 0, len(periods))
	for _, p := range periods {
		bars, err := b.BuildPeriod(ctx, symbol, p)
		if err != nil {
			return nil, fmt.Errorf("build %s %s: %w", model.NormalizeSymbol(symbol), p, err)
		}
		parts = append(parts, bars)
	}
	all := Clip(Concat(parts...), from, to)
	series, err := model.NewBarSeries(symbol, b.Bucket, all)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", model.NormalizeSymbol(symbol), err)
	}
	b.log().Info("series built", "symbol", series.Symbol(), "bucket", model.BucketLabel(b.Bucket),
		"months", len(periods), "bars", series.Len())
	return series, nil
}

// BuildPeriod returns the bars of one month, from cache when possible.
// Concurrent calls for the same key share one load. The shared load is not
// cancelled with any single caller; each caller stops waiting when its own
// ctx is done.
func (b *Builder) BuildPeriod(ctx context.Context, symbol string, p Period) ([]model.Bar, error) {
	if b.Bucket <= 0 {
		return nil, fmt.Errorf("bucket must be positive, got %s", b.Bucket)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := model.NewCacheKey(symbol, p, b.Bucket)
	loadCtx := context.WithoutCancel(ctx)
	ch := b.group.DoChan(key.String(), func() (any, error) {
		return b.buildPeriod(loadCtx, key)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	shared := res.Val.([]model.Bar)
	out := make([]model.Bar, len(shared))
	copy(out, shared)
	return out, nil
}

func (b *Builder) buildPeriod(ctx context.Context, key model.CacheKey) ([]model.Bar, error) {
	cached, cacheErr := b.loadCached(ctx, key)
	switch {
	case cacheErr == nil && cached != nil:
		b.log().Debug("cache hit", "key", key.String(), "store", b.Store.Name(), "bars", len(cached))
		return cached, nil
	case cacheErr != nil && !errors.Is(cacheErr, ErrCorruptCache):
		return nil, cacheErr
	case cacheErr != nil:
		b.log().Warn("cache corrupt, rebuilding from source", "key", key.String(), "error", cacheErr)
	default:
		b.log().Debug("cache miss", "key", key.String(), "store", b.Store.Name())
	}

	data, err := b.Source.Fetch(ctx, key.Symbol, key.Period)
	if err != nil {
		if cacheErr != nil {
			return nil, fmt.Errorf("%w: %w: %s: %v", ErrCorruptCache, ErrDataUnavailable, key, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, key, err)
	}
	parse := b.Parse
	if parse == nil {
		parse = truefx.ParseArchive
	}
	ticks, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s archive: %w", key, err)
	}
	bars := Aggregate(inPeriod(ticks, key.Period), b.Bucket, b.Field)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s: archive has no ticks inside the period", ErrDataUnavailable, key)
	}
	// Never cache a table loadCached would reject.
	if err := model.ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", key, err)
	}
	if err := b.Store.Write(ctx, key, bars); err != nil {
		return nil, fmt.Errorf("write cache %s: %w", key, err)
	}
	b.log().Info("bars aggregated", "key", key.String(), "ticks", len(ticks), "bars", len(bars), "store", b.Store.Name())
	return bars, nil
}

// loadCached returns (nil, nil) on a miss and ErrCorruptCache on a bad artifact.
func (b *Builder) loadCached(ctx context.Context, key model.CacheKey) ([]model.Bar, error) {
	ok, err := b.Store.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check cache %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	bars, err := b.Store.Read(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	case errors.Is(err, store.ErrSchema):
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptCache, key, err)
	case err != nil:
		return nil, fmt.Errorf("read cache %s: %w", key, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s: artifact has no rows", ErrCorruptCache, key)
	}
	if err := model.ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptCache, key, err)
	}
	return bars, nil
}

func inPeriod(ticks []model.Tick, p Period) []model.Tick {
	start, end := p.Start(), p.End()
	out := ticks[:0:0]
	for _, tk := range ticks {
		if !tk.Timestamp.Before(start) && tk.Timestamp.Before(end) {
			out = append(out, tk)
		}
	}
	return out
}
