package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"

	"fxgym/internal/app"
	"fxgym/internal/bars"
	"fxgym/internal/env"
	"fxgym/internal/provider"
	"fxgym/internal/slogx"
	"fxgym/internal/store"
)

// App holds application dependencies built by Wire.
type App struct {
	Config   *app.Config
	Source   provider.DataProvider
	Store    store.Store
	Builder  *bars.Builder
	Registry *env.Registry
}

func init() {
	slog.SetDefault(slogx.NewDefault("info"))
}

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&prepareCmd{}, "data")
	subcommands.Register(&buildCmd{}, "data")
	subcommands.Register(&runCmd{}, "env")
	subcommands.Register(&envsCmd{}, "env")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := subcommands.Execute(ctx)
	stop()
	os.Exit(int(status))
}

// initApp wires the app and switches logging to the configured level.
func initApp(ctx context.Context) (*App, func(), bool) {
	a, cleanup, err := InitializeApp(ctx)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return nil, nil, false
	}
	slogx.Setup(a.Config.LogLevel)
	slog.Info("using data provider", "provider", a.Source.GetName(), "store", a.Store.Name(),
		"symbol", a.Config.Symbol, "from", a.Config.From, "to", a.Config.To, "bucket", a.Config.Bucket)
	return a, cleanup, true
}
