package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/janhq/jan-relay/services/relay-api/internal/config"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/logger"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/observability"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/sweeper"
	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver"
	"github.com/janhq/jan-relay/services/relay-api/internal/worker"
)

// @title Relay API
// @version 1.0
// @description Collaborative relay sessions: speculative drafts, generation jobs and turn-safe publishing.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
type Application struct {
	cfg        *config.Config
	httpServer *httpserver.HttpServer
	workers    *worker.Pool
	sweeper    *sweeper.Sweeper
	log        zerolog.Logger
}

func NewApplication(cfg *config.Config, httpServer *httpserver.HttpServer, workers *worker.Pool, sw *sweeper.Sweeper, log zerolog.Logger) *Application {
	return &Application{
		cfg:        cfg,
		httpServer: httpServer,
		workers:    workers,
		sweeper:    sw,
		log:        log,
	}
}

// Start runs the HTTP server, the generation workers and the sweeper until
// ctx is cancelled or one of them fails.
func (a *Application) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return a.httpServer.Run(ctx)
	})
	eg.Go(func() error {
		if err := a.workers.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		a.workers.Stop()
		return nil
	})
	if a.cfg.SweeperEnabled {
		eg.Go(func() error {
			return a.sweeper.Run(ctx)
		})
	}

	return eg.Wait()
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry, err := observability.Setup(ctx, observabilityConfig(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	app, cleanup, err := buildApplication(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build application")
	}
	defer cleanup()

	if err := app.Start(ctx); err != nil {
		log.Error().Err(err).Msg("application stopped with error")
		return
	}
	log.Info().Msg("application exited cleanly")
}

// buildApplication wires the service by hand in the order BuildApplication
// in wire.go describes.
func buildApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Application, func(), error) {
		cleanup()
		return nil, nil, err
	}

	store, closeStore, err := provideStore(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, closeStore)

	redisClient, closeRedis, err := provideRedis(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, closeRedis)

	media, err := provideMediaStore(ctx, cfg, log)
	if err != nil {
		return fail(fmt.Errorf("initialize media storage: %w", err))
	}

	gen := provideGenerationService(store, provideEngine(cfg), media, log)
	relaySvc := provideRelayService(store, gen, provideTurnLocker(cfg, redisClient, log), providePolicy(cfg), log)

	limiters, err := provideLimiters(cfg, redisClient)
	if err != nil {
		return fail(fmt.Errorf("initialize rate limits: %w", err))
	}
	authenticator, err := provideAuthenticator(ctx, cfg, log)
	if err != nil {
		return fail(fmt.Errorf("initialize auth: %w", err))
	}

	httpServer := provideHTTPServer(cfg, log, relaySvc, gen, authenticator, limiters, provideReadiness(store, redisClient, media))
	workers, err := provideWorkerPool(cfg, store, gen, log)
	if err != nil {
		return fail(err)
	}

	return NewApplication(cfg, httpServer, workers, provideSweeper(cfg, store, relaySvc, log), log), cleanup, nil
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
