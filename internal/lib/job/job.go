// Package job provides background job processing using Asynq.
//
// Asynq is a Redis-backed job queue:
//   - tasks are enqueued (producer) with asynq.Client.
//   - a server runs workers that process those tasks (consumer) with asynq.Server.
//
// A cron scheduler enqueues the periodic mapping statistics refresh.
package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/deppfellow/ontology-api/internal/config"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobService holds the Asynq client (enqueue), the worker server and the
// periodic scheduler.
type JobService struct {
	// Client is used to enqueue tasks into Redis.
	Client *asynq.Client

	server    *asynq.Server
	scheduler *cron.Cron
	schedule  string
	logger    *zerolog.Logger

	processor SubmissionProcessor
	refresher StatsRefresher
	mailer    Mailer
}

// NewJobService creates a JobService configured to use Redis from cfg.
//
// Queue weights give parsing ("critical") most of the workers:
//
//	critical: 6
//	default:  3
//	low:      1
func NewJobService(logger *zerolog.Logger, cfg *config.Config) *JobService {
	redisAddr := cfg.Redis.Address

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr: redisAddr,
	})

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6, // submission parsing
				"default":  3, // notifications
				"low":      1, // statistics refresh
			},
			Logger: newAsynqLogger(logger),
		},
	)

	return &JobService{
		Client:    client,
		server:    server,
		scheduler: cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger))),
		schedule:  cfg.Repository.StatsRefreshSchedule,
		logger:    logger,
	}
}

// Start registers task handlers, starts the workers and the scheduler.
// asynq.Server.Start does not block.
func (j *JobService) Start() error {
	if j.processor == nil || j.refresher == nil {
		return errors.New("job handlers not initialized")
	}

	if j.schedule != "" {
		if _, err := j.scheduler.AddFunc(j.schedule, j.enqueueRefresh); err != nil {
			return fmt.Errorf("invalid stats refresh schedule %q: %w", j.schedule, err)
		}
	}

	j.logger.Info().Str("stats_refresh_schedule", j.schedule).Msg("Starting background job server")

	if err := j.server.Start(j.mux()); err != nil {
		return err
	}
	j.scheduler.Start()

	return nil
}

func (j *JobService) enqueueRefresh() {
	_, err := j.Client.EnqueueContext(context.Background(), NewRefreshStatsTask())
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask):
		j.logger.Debug().Msg("stats refresh already pending")
	case err != nil:
		j.logger.Error().Err(err).Msg("failed to enqueue stats refresh")
	}
}

// Stop halts the scheduler, waits for running tasks and closes the client.
func (j *JobService) Stop() {
	j.logger.Info().Msg("Stopping background job server")
	<-j.scheduler.Stop().Done()
	j.server.Shutdown()
	if err := j.Client.Close(); err != nil {
		j.logger.Error().Err(err).Msg("failed to close job client")
	}
}
