package app

import (
	"context"
	"log/slog"

	"fxgym/internal/bars"
	"fxgym/internal/env"
	"fxgym/internal/model"
	"fxgym/internal/provider"
	"fxgym/internal/store"
)

// ProvideConfig loads config from environment (for Wire).
func ProvideConfig() (*Config, error) {
	return LoadConfig()
}

// ProvideSource creates the tick source (for Wire). The cleanup closes it.
func ProvideSource(cfg *Config) (provider.DataProvider, func(), error) {
	src, err := CreateSource(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := src.Close(); err != nil {
			slog.Warn("close source", "source", src.GetName(), "error", err)
		}
	}
	return src, cleanup, nil
}

// ProvideStore opens the bar cache (for Wire). The cleanup closes it.
func ProvideStore(ctx context.Context, cfg *Config) (store.Store, func(), error) {
	st, err := CreateStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			slog.Warn("close store", "store", st.Name(), "error", err)
		}
	}
	return st, cleanup, nil
}

// ProvideBuilder wires source and store into a bar builder (for Wire).
func ProvideBuilder(cfg *Config, src provider.DataProvider, st store.Store) (*bars.Builder, error) {
	field, err := model.ParsePriceField(cfg.PriceField)
	if err != nil {
		return nil, err
	}
	return bars.NewBuilder(src, st, cfg.BucketDuration(), field), nil
}

// ProvideRegistry returns the built-in environments (for Wire).
func ProvideRegistry() *env.Registry {
	return env.NewDefaultRegistry()
}
