// Package server defines the core Server struct that composes the app's main dependencies.
//
// It owns the lifecycle of:
//   - configuration
//   - logger + optional New Relic service wrapper
//   - database pool
//   - redis client, statistics cache and background jobs (only with a Redis address)
//   - Prometheus metrics and the ontology file store
//   - http.Server
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/deppfellow/ontology-api/internal/config"
	"github.com/deppfellow/ontology-api/internal/database"
	"github.com/deppfellow/ontology-api/internal/lib/cache"
	"github.com/deppfellow/ontology-api/internal/lib/job"
	"github.com/deppfellow/ontology-api/internal/lib/storage"
	"github.com/deppfellow/ontology-api/internal/metrics"
	"github.com/newrelic/go-agent/v3/integrations/nrredis-v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	loggerPkg "github.com/deppfellow/ontology-api/internal/logger"
)

// Server is the application container that holds shared resources.
// It is not the HTTP server itself.
type Server struct {
	Config *config.Config

	// Logger is the application's main structured logger.
	Logger *zerolog.Logger

	// LoggerService holds the New Relic application when one is configured.
	LoggerService *loggerPkg.LoggerService

	DB *database.Database

	// Redis, Cache and Job are nil when no Redis address is configured.
	Redis *redis.Client
	Cache *cache.Cache
	Job   *job.JobService

	// Metrics is nil when metrics are disabled.
	Metrics *metrics.Metrics

	// Files stores uploaded ontology files.
	Files *storage.FileStore

	httpServer *http.Server
}

// New constructs a Server and initializes core dependencies.
//
// It does not start the HTTP server or the job workers: handlers need the
// services first, see JobService.InitHandlers.
//
// Redis connection failure does not block startup (it logs and continues).
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService) (*Server, error) {
	db, err := database.New(ctx, cfg, logger, loggerService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	s := &Server{
		Config:        cfg,
		Logger:        logger,
		LoggerService: loggerService,
		DB:            db,
		Files:         storage.NewFileStore(cfg.Repository.FilesFolder),
	}

	if cfg.Observability.Metrics.Enabled {
		s.Metrics = metrics.New()
	}

	if cfg.Redis.Address == "" {
		logger.Warn().Msg("no redis address configured, statistics cache and background jobs disabled")
		return s, nil
	}

	// Redis connections are lazy; nothing is dialed yet.
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Address,
	})

	if loggerService.GetApplication() != nil {
		redisClient.AddHook(nrredis.NewHook(redisClient.Options()))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Error().Err(err).Msg("Failed to connect to Redis, continuing without Redis")
	}

	s.Redis = redisClient
	s.Cache = cache.New(redisClient)
	s.Job = job.NewJobService(logger, cfg)

	return s, nil
}

// SetupHTTPServer configures the internal net/http server around handler.
func (s *Server) SetupHTTPServer(handler http.Handler) {
	s.httpServer = &http.Server{
		Addr:    ":" + s.Config.Server.Port,
		Handler: handler,

		// Config stores seconds.
		ReadTimeout:  time.Duration(s.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.Config.Server.IdleTimeout) * time.Second,
	}
}

// Start runs the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	if s.httpServer == nil {
		return errors.New("HTTP server not initialized")
	}

	s.Logger.Info().
		Str("port", s.Config.Server.Port).
		Str("env", s.Config.Primary.Env).
		Msg("starting server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server (finishing in-flight requests until ctx
// expires), the job workers, then closes Redis and the database pool.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}

	if s.Job != nil {
		s.Job.Stop()
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.Logger.Error().Err(err).Msg("failed to close redis client")
		}
	}

	if err := s.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}
