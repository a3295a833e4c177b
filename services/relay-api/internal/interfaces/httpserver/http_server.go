package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	relayapidocs "github.com/janhq/jan-relay/services/relay-api/docs/swagger"
	"github.com/janhq/jan-relay/services/relay-api/internal/config"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/auth"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/ratelimit"
	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/handlers"
	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/middlewares"
	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/routes"
	v1 "github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/routes/v1"
)

// Limiters holds the per-route rate limiters. Nil disables a limit.
type Limiters struct {
	Drafts    ratelimit.Limiter
	Publish   ratelimit.Limiter
	JobStatus ratelimit.Limiter
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Dependencies are the services the HTTP layer exposes.
type Dependencies struct {
	Relay         handlers.RelayService
	Media         handlers.MediaReader
	Authenticator auth.Authenticator
	Limiters      Limiters
	Readiness     map[string]ReadinessCheck
}

// HttpServer wraps the gin engine with graceful shutdown helpers.
type HttpServer struct {
	cfg    *config.Config
	engine *gin.Engine
	log    zerolog.Logger
}

// New constructs the HTTP server with default middleware and routes.
func New(cfg *config.Config, log zerolog.Logger, deps Dependencies) *HttpServer {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	relayapidocs.SwaggerInfo.BasePath = "/"

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middlewares.RequestID())
	engine.Use(middlewares.TracingMiddleware(cfg.ServiceName))
	engine.Use(middlewares.LoggingMiddleware(log))
	engine.Use(middlewares.MetricsMiddleware())

	registerPublicRoutes(engine, cfg, deps.Readiness)

	authenticator := deps.Authenticator
	if authenticator == nil {
		authenticator = auth.HeaderAuthenticator{}
	}
	mw := v1.Middlewares{Auth: middlewares.AuthMiddleware(authenticator, log)}
	if cfg.RateLimitEnabled {
		mw.DraftLimit = limit("drafts", deps.Limiters.Drafts, cfg.RateLimitRetryAfter, log)
		mw.PublishLimit = limit("publish", deps.Limiters.Publish, cfg.RateLimitRetryAfter, log)
		mw.JobStatusLimit = limit("job_status", deps.Limiters.JobStatus, cfg.RateLimitRetryAfter, log)
	}

	handlerProvider := handlers.NewProvider(deps.Relay, deps.Media, log)
	routes.NewProvider(handlerProvider, mw).Register(engine)

	return &HttpServer{
		cfg:    cfg,
		engine: engine,
		log:    log,
	}
}

func limit(policy string, limiter ratelimit.Limiter, retryAfter time.Duration, log zerolog.Logger) gin.HandlerFunc {
	if limiter == nil {
		return nil
	}
	return middlewares.RateLimitMiddleware(policy, limiter, retryAfter, log)
}

// Handler exposes the engine, mainly for tests.
func (s *HttpServer) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP listener and handles graceful shutdown via context cancellation.
func (s *HttpServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr()).Msg("HTTP server listening")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("HTTP server error")
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("Context cancelled, shutting down HTTP server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func registerPublicRoutes(engine *gin.Engine, cfg *config.Config, readiness map[string]ReadinessCheck) {
	engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": cfg.ServiceName,
			"status":  "ok",
		})
	})

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	engine.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}
		ready := true
		for name, check := range readiness {
			if err := check(ctx); err != nil {
				checks[name] = err.Error()
				ready = false
				continue
			}
			checks[name] = "ok"
		}
		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
	})

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
