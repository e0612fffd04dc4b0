package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"fxgym/internal/bars"
	"fxgym/internal/crawl"
	"fxgym/internal/env"
	"fxgym/internal/model"
)

// Prepare builds and caches every configured month in parallel. Months
// already recorded in the progress file are skipped unless force is set.
func Prepare(ctx context.Context, cfg *Config, b crawl.PeriodBuilder, force bool) (crawl.Summary, error) {
	from, to, err := cfg.Range()
	if err != nil {
		return crawl.Summary{}, err
	}
	if err := os.MkdirAll(cfg.CacheDir(), 0755); err != nil {
		return crawl.Summary{}, fmt.Errorf("create cache dir: %w", err)
	}
	jobs := crawl.PlanJobs([]string{cfg.Symbol}, from, to)
	planned := len(jobs)
	if !force {
		jobs = crawl.FilterJobs(jobs, cfg.ProgressPath(), cfg.ProgressScope())
	}
	if skipped := planned - len(jobs); skipped > 0 {
		slog.Info("months up to date", "skipped", skipped, "jobs", len(jobs))
	}
	return crawl.RunPrepare(ctx, b, jobs, crawl.Options{
		Workers:       cfg.Workers,
		ProgressPath:  cfg.ProgressPath(),
		ProgressScope: cfg.ProgressScope(),
		ReportDir:     cfg.CacheDir(),
	})
}

// BuildSeries returns the configured symbol's bars over [From, To).
func BuildSeries(ctx context.Context, cfg *Config, b *bars.Builder) (*model.BarSeries, error) {
	from, to, err := cfg.Range()
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, cfg.Symbol, from.Start(), to.Start())
}

// SelectSplit returns the train or test share of series per TEST_SPLIT.
func SelectSplit(cfg *Config, series *model.BarSeries, split string) (*model.BarSeries, error) {
	switch split {
	case "", "all":
		return series, nil
	case "train", "test":
	default:
		return nil, fmt.Errorf("unknown split %q, want train|test|all", split)
	}
	train, test, err := series.Split(cfg.TestSplit)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", split, err)
	}
	if split == "train" {
		return train, nil
	}
	return test, nil
}

// MakeEnv builds the series, selects the split and instantiates id.
func MakeEnv(ctx context.Context, cfg *Config, b *bars.Builder, reg *env.Registry, id, split string) (env.Env, error) {
	series, err := BuildSeries(ctx, cfg, b)
	if err != nil {
		return nil, err
	}
	part, err := SelectSplit(cfg, series, split)
	if err != nil {
		return nil, err
	}
	e, err := reg.Make(id, part, cfg.EnvConfig())
	if err != nil {
		return nil, err
	}
	slog.Info("env ready", "env", id, "split", split, "bars", part.Len(),
		"first", part.First().Time(), "last", part.Last().Time())
	return e, nil
}
