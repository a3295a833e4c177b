//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/services/relay-api/internal/config"
)

var relaySet = wire.NewSet(
	provideStore,
	provideRedis,
	provideMediaStore,
	provideEngine,
	provideGenerationService,
	provideTurnLocker,
	providePolicy,
	provideRelayService,
)

var interfaceSet = wire.NewSet(
	provideLimiters,
	provideAuthenticator,
	provideReadiness,
	provideHTTPServer,
	provideWorkerPool,
	provideSweeper,
)

// BuildApplication assembles the relay API with Wire.
func BuildApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, func(), error) {
	wire.Build(
		relaySet,
		interfaceSet,
		NewApplication,
	)
	return nil, nil, nil
}
