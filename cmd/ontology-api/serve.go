package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deppfellow/ontology-api/internal/config"
	"github.com/deppfellow/ontology-api/internal/database"
	"github.com/deppfellow/ontology-api/internal/handler"
	"github.com/deppfellow/ontology-api/internal/logger"
	"github.com/deppfellow/ontology-api/internal/repository"
	"github.com/deppfellow/ontology-api/internal/router"
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/deppfellow/ontology-api/internal/service"
	"github.com/spf13/cobra"
)

const defaultShutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	var (
		migrate         bool
		shutdownTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and the background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), migrate, shutdownTimeout)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply pending database migrations before serving (ignored in the local env)")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", defaultShutdownTimeout, "Time allowed for in-flight requests on shutdown")

	return cmd
}

func serve(parent context.Context, migrate bool, shutdownTimeout time.Duration) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	loggerService := logger.NewLoggerService(cfg.Observability)
	defer loggerService.Shutdown()

	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	if migrate && cfg.Primary.Env != "local" {
		if err := database.Migrate(parent, &log, cfg); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	srv, err := server.New(parent, cfg, &log, loggerService)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	repos := repository.NewRepositories(srv)

	services, err := service.NewServices(srv, repos)
	if err != nil {
		return fmt.Errorf("could not create services: %w", err)
	}

	if srv.Job != nil {
		srv.Job.InitHandlers(cfg, &log, services.Ontology, services.Mapping)
		if err := srv.Job.Start(); err != nil {
			return fmt.Errorf("failed to start job workers: %w", err)
		}
	}

	handlers := handler.NewHandlers(srv, services)
	r := router.NewRouter(srv, handlers, services)

	srv.SetupHTTPServer(r)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("server stopped unexpectedly")
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited properly")
	return nil
}
