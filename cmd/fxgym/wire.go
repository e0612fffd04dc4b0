//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"fxgym/internal/app"
)

// InitializeApp builds App (Config, Source, Store, Builder, Registry) via Wire.
// Caller must call the returned cleanup when done.
func InitializeApp(ctx context.Context) (*App, func(), error) {
	wire.Build(
		app.ProvideConfig,
		app.ProvideSource,
		app.ProvideStore,
		app.ProvideBuilder,
		app.ProvideRegistry,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
