package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/subcommands"

	"fxgym/internal/app"
	"fxgym/internal/env"
	"fxgym/internal/rollout"
)

type prepareCmd struct {
	force bool
}

func (*prepareCmd) Name() string     { return "prepare" }
func (*prepareCmd) Synopsis() string { return "download and cache every month of the configured range" }
func (*prepareCmd) Usage() string {
	return "prepare [-force]:\n  Build and cache bars for SYMBOL over [FROM, TO) in parallel.\n"
}

func (c *prepareCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.force, "force", false, "ignore the progress file and revisit every month")
}

func (c *prepareCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, cleanup, ok := initApp(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	defer cleanup()

	sum, err := app.Prepare(ctx, a.Config, a.Builder, c.force)
	if err != nil {
		slog.Error("prepare failed", "error", err)
		return subcommands.ExitFailure
	}
	slog.Info("prepare done", "success", sum.Success, "failed", sum.Failed, "bars", sum.Bars)
	if sum.Failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type buildCmd struct{}

func (*buildCmd) Name() string     { return "build" }
func (*buildCmd) Synopsis() string { return "build the bar series and print a summary" }
func (*buildCmd) Usage() string {
	return "build:\n  Build (or load from cache) the bar series for SYMBOL over [FROM, TO).\n"
}
func (*buildCmd) SetFlags(*flag.FlagSet) {}

func (*buildCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, cleanup, ok := initApp(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	defer cleanup()

	series, err := app.BuildSeries(ctx, a.Config, a.Builder)
	if err != nil {
		slog.Error("build failed", "error", err)
		return subcommands.ExitFailure
	}
	slog.Info("series",
		"symbol", series.Symbol(),
		"bars", series.Len(),
		"first", series.First().Time(),
		"last", series.Last().Time(),
		"log_return", series.LogReturn(),
	)
	return subcommands.ExitSuccess
}

type runCmd struct {
	policy   string
	episodes int
	envID    string
	split    string
	report   string
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "play episodes with a baseline policy" }
func (*runCmd) Usage() string {
	return "run [-policy name] [-episodes n] [-env id] [-split train|test|all] [-report path]:\n" +
		"  Roll out a baseline policy over the simulator and report metrics.\n"
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.policy, "policy", "random", "policy: "+strings.Join(rollout.PolicyNames, "|"))
	f.IntVar(&c.episodes, "episodes", 1, "number of episodes")
	f.StringVar(&c.envID, "env", env.FXTradingV0, "registered environment id")
	f.StringVar(&c.split, "split", "train", "series split: train|test|all")
	f.StringVar(&c.report, "report", "", "write a JSON report to this path")
}

func (c *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, cleanup, ok := initApp(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	defer cleanup()

	policy, err := rollout.ParsePolicy(c.policy, a.Config.Seed)
	if err != nil {
		slog.Error("bad flag", "error", err)
		return subcommands.ExitUsageError
	}
	e, err := app.MakeEnv(ctx, a.Config, a.Builder, a.Registry, c.envID, c.split)
	if err != nil {
		slog.Error("make env failed", "error", err)
		return subcommands.ExitFailure
	}
	res, err := rollout.Run(ctx, e, policy, c.episodes)
	if err != nil {
		slog.Error("rollout failed", "error", err)
		return subcommands.ExitFailure
	}
	slog.Info("rollout done",
		"policy", c.policy,
		"episodes", res.Episodes,
		"steps", res.Steps,
		"total_log_return", res.TotalLogReturn,
		"sharpe", res.Sharpe,
		"max_dd_pct", res.MaxDDPct,
		"win_rate", res.WinRate,
		"position_changes", res.PositionChanges,
	)
	if c.report != "" {
		if err := rollout.WriteReport(c.report, res); err != nil {
			slog.Error("write report failed", "path", c.report, "error", err)
			return subcommands.ExitFailure
		}
		slog.Info("report saved", "path", c.report)
	}
	return subcommands.ExitSuccess
}

type envsCmd struct{}

func (*envsCmd) Name() string           { return "envs" }
func (*envsCmd) Synopsis() string       { return "list registered environment ids" }
func (*envsCmd) Usage() string          { return "envs:\n  Print the registered environment ids.\n" }
func (*envsCmd) SetFlags(*flag.FlagSet) {}

func (*envsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	for _, id := range env.NewDefaultRegistry().IDs() {
		fmt.Println(id)
	}
	return subcommands.ExitSuccess
}
