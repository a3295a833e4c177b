package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"github.com/janhq/jan-relay/pkg/relay/api"
	"github.com/janhq/jan-relay/pkg/relay/retry"
	"github.com/janhq/jan-relay/services/relay-api/internal/config"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/relay"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/auth"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/database"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/engine"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/observability"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/queue"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/ratelimit"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/redisclient"
	repo "github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/repository/relay"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/storage"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/sweeper"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/turnlock"
	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver"
	"github.com/janhq/jan-relay/services/relay-api/internal/worker"
)

const serviceVersion = "1.0.0"

// relayStore is the persistence backend. Both repositories implement it.
type relayStore interface {
	relay.Repository
	generation.Repository
}

type pinger interface {
	Ping(ctx context.Context) error
}

func provideStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (relayStore, func(), error) {
	if cfg.StoreBackend == "memory" {
		log.Warn().Msg("using in-memory relay store; data is lost on restart")
		return repo.NewMemoryRepository(), func() {}, nil
	}

	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		ReadDSN:         cfg.DBReadDSN,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(ctx, db, log); err != nil {
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return repo.NewPostgresRepository(db), cleanup, nil
}

// provideRedis returns nil when no Redis is configured.
func provideRedis(ctx context.Context, cfg *config.Config, log zerolog.Logger) (redis.UniversalClient, func(), error) {
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set; publish locks and rate limits are per process")
		return nil, func() {}, nil
	}
	client, err := redisclient.New(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

func provideMediaStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (generation.MediaStore, error) {
	if !cfg.MediaStorageEnabled() {
		log.Warn().Msg("MEDIA_S3_ENDPOINT not set; panels are kept in memory")
		return storage.NewMemoryStore(cfg.MediaPublicPrefix), nil
	}
	return storage.NewMinioStore(ctx, storage.MinioConfig{
		Endpoint:     cfg.MediaEndpoint,
		AccessKey:    cfg.MediaAccessKey,
		SecretKey:    cfg.MediaSecretKey,
		Bucket:       cfg.MediaBucket,
		Region:       cfg.MediaRegion,
		UseSSL:       cfg.MediaUseSSL,
		PresignTTL:   cfg.MediaPresignTTL,
		URLCacheSize: cfg.MediaURLCacheSize,
	})
}

func provideEngine(cfg *config.Config) generation.Engine {
	switch cfg.EngineBackend {
	case "http":
		return engine.NewHTTPEngine(cfg.EngineURL, cfg.EngineAPIKey, cfg.EngineTimeout)
	case "openai":
		return engine.NewOpenAIEngine(engine.OpenAIConfig{
			BaseURL: cfg.EngineURL,
			APIKey:  cfg.EngineAPIKey,
			Model:   cfg.EngineModel,
			Size:    cfg.EngineImageSize,
			Timeout: cfg.EngineTimeout,
		})
	default:
		return engine.NewStubEngine(cfg.EngineDelay)
	}
}

func provideGenerationService(store relayStore, eng generation.Engine, media generation.MediaStore, log zerolog.Logger) *generation.Service {
	return generation.NewService(store, eng, media, log)
}

func provideTurnLocker(cfg *config.Config, client redis.UniversalClient, log zerolog.Logger) relay.TurnLocker {
	if client == nil {
		return turnlock.NewLocalLocker()
	}
	return turnlock.NewRedisLocker(client, cfg.PublishLockRedisPrefix, cfg.PublishLockTTL, log)
}

func providePolicy(cfg *config.Config) relay.Policy {
	prompt := cfg.ContinuityPrompt
	if prompt == "" {
		prompt = api.ContinuityInstruction
	}
	return relay.Policy{
		DefaultMaxSteps:  cfg.DefaultMaxSteps,
		AllowedMaxSteps:  cfg.AllowedMaxSteps,
		Cooldown:         cfg.PublishCooldown,
		ContinuityPrompt: prompt,
	}
}

func provideRelayService(store relayStore, gen *generation.Service, locker relay.TurnLocker, policy relay.Policy, log zerolog.Logger) *relay.Service {
	return relay.NewService(store, gen, locker, policy, log)
}

func provideLimiters(cfg *config.Config, client redis.UniversalClient) (httpserver.Limiters, error) {
	if !cfg.RateLimitEnabled {
		return httpserver.Limiters{}, nil
	}
	build := func(policy string, limit int) (ratelimit.Limiter, error) {
		if client == nil {
			return ratelimit.NewLocalFixedWindow(limit, cfg.RateLimitWindow)
		}
		return ratelimit.NewRedisFixedWindow(client, cfg.RateLimitRedisPrefix+":"+policy, limit, cfg.RateLimitWindow)
	}

	var (
		limiters httpserver.Limiters
		err      error
	)
	if limiters.Drafts, err = build("drafts", cfg.DraftRateLimit); err != nil {
		return limiters, err
	}
	if limiters.Publish, err = build("publish", cfg.PublishRateLimit); err != nil {
		return limiters, err
	}
	if limiters.JobStatus, err = build("job_status", cfg.JobStatusRateLimit); err != nil {
		return limiters, err
	}
	return limiters, nil
}

func provideAuthenticator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (auth.Authenticator, error) {
	if !cfg.AuthEnabled {
		return auth.HeaderAuthenticator{}, nil
	}
	return auth.NewJWTAuthenticator(ctx, cfg.AuthJWKSURL, cfg.AuthIssuer, cfg.AuthAudience, log)
}

func provideReadiness(store relayStore, client redis.UniversalClient, media generation.MediaStore) map[string]httpserver.ReadinessCheck {
	checks := map[string]httpserver.ReadinessCheck{}
	if p, ok := store.(pinger); ok {
		checks["database"] = p.Ping
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	if p, ok := media.(pinger); ok {
		checks["media"] = p.Ping
	}
	return checks
}

func provideHTTPServer(
	cfg *config.Config,
	log zerolog.Logger,
	relaySvc *relay.Service,
	gen *generation.Service,
	authenticator auth.Authenticator,
	limiters httpserver.Limiters,
	readiness map[string]httpserver.ReadinessCheck,
) *httpserver.HttpServer {
	return httpserver.New(cfg, log, httpserver.Dependencies{
		Relay:         relaySvc,
		Media:         gen,
		Authenticator: authenticator,
		Limiters:      limiters,
		Readiness:     readiness,
	})
}

func provideWorkerPool(cfg *config.Config, store relayStore, gen *generation.Service, log zerolog.Logger) (*worker.Pool, error) {
	instrumenter, err := observability.NewJobInstrumenter(cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("create job instrumenter: %w", err)
	}
	backoff := retry.Policy{
		InitialDelay:    2 * cfg.WorkerPollInterval,
		MaxDelay:        time.Minute,
		BackoffStrategy: retry.BackoffExponential,
		JitterFactor:    0.2,
	}
	jobQueue := queue.NewJobQueue(store, cfg.JobMaxAttempts, backoff, log)
	return worker.NewPool(jobQueue, gen, instrumenter, worker.Config{
		WorkerCount:  cfg.WorkerCount,
		PollInterval: cfg.WorkerPollInterval,
		TaskTimeout:  cfg.JobTimeout,
	}, log), nil
}

func provideSweeper(cfg *config.Config, store relayStore, relaySvc *relay.Service, log zerolog.Logger) *sweeper.Sweeper {
	return sweeper.New(store, relaySvc, sweeper.Config{
		Schedule:      cfg.SweeperSchedule,
		JobStaleAfter: cfg.JobStaleAfter,
		DraftTTL:      cfg.DraftTTL,
	}, log)
}

func observabilityConfig(cfg *config.Config) observability.Config {
	return observability.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		Enabled:        cfg.EnableTracing,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   1.0,
		PIILevel:       observability.PIILevel(cfg.TracePIILevel),
	}
}
