package app

import (
	"context"
	"fmt"
	"log/slog"

	"fxgym/internal/provider"
	"fxgym/internal/provider/truefx"
	"fxgym/internal/store"
)

// CreateSource creates the raw tick source from config
func CreateSource(cfg *Config) (provider.DataProvider, error) {
	switch cfg.Source {
	case "truefx":
		return truefx.NewClient(truefx.Options{
			BaseURL:     cfg.TrueFXBaseURL,
			ArchiveRoot: cfg.ArchiveDir(),
			Timeout:     cfg.DownloadTimeout,
			MinInterval: cfg.DownloadRate,
		}), nil
	case "local":
		return provider.NewArchiveDir(cfg.ArchiveDir()), nil
	default:
		return nil, fmt.Errorf("unsupported source: %s. Options: truefx, local", cfg.Source)
	}
}

// CreateStore opens the bar cache selected by CACHE_BACKEND.
func CreateStore(ctx context.Context, cfg *Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.CacheBackend {
	case "parquet", "csv", "json":
		st, err = store.NewFileStore(cfg.CacheDir(), cfg.CacheBackend)
	case "sqlite":
		st, err = store.NewSQLiteStore(cfg.SQLitePath())
	case "postgres":
		st, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
	case "redis":
		st, err = store.NewRedisStore(ctx, cfg.RedisAddr)
	default:
		return nil, fmt.Errorf("unsupported CACHE_BACKEND %q (use: parquet, csv, json, sqlite, postgres, redis)", cfg.CacheBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.CacheBackend, err)
	}
	slog.Info("wire", "store", st.Name(), "dir", cfg.CacheDir())
	return st, nil
}
