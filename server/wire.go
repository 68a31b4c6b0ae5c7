//go:build wireinject
// +build wireinject

package server

import (
	"context"

	"github.com/google/wire"

	"wastewise/config"
)

// BuildApp wires the server components using Google Wire.
func BuildApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		provideLogger,
		provideHub,
		provideStats,
		provideService,
		provideHandler,
		provideServer,
		provideMetricsServer,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
