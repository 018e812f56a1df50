package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/deppfellow/ontology-api/internal/config"
	"github.com/deppfellow/ontology-api/internal/lib/email"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// SubmissionProcessor parses a stored submission.
type SubmissionProcessor interface {
	ProcessSubmission(ctx context.Context, acronym string, submissionID int) error
}

// StatsRefresher recomputes the cached mapping statistics.
type StatsRefresher interface {
	RefreshStatistics(ctx context.Context) error
}

// Mailer delivers submission notifications.
type Mailer interface {
	SendSubmissionProcessed(to string, data email.SubmissionProcessedData) error
}

// InitHandlers wires the dependencies task handlers call into. It must run
// before Start.
func (j *JobService) InitHandlers(cfg *config.Config, logger *zerolog.Logger, processor SubmissionProcessor, refresher StatsRefresher) {
	j.mailer = email.NewClient(cfg, logger)
	j.processor = processor
	j.refresher = refresher
}

// mux routes every task type to its handler.
func (j *JobService) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskProcessSubmission, j.handleProcessSubmissionTask)
	mux.HandleFunc(TaskSubmissionEmail, j.handleSubmissionEmailTask)
	mux.HandleFunc(TaskRefreshStats, j.handleRefreshStatsTask)
	return mux
}

func (j *JobService) handleProcessSubmissionTask(ctx context.Context, t *asynq.Task) error {
	var p ProcessSubmissionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal process submission payload: %w: %w", err, asynq.SkipRetry)
	}

	j.logger.Info().
		Str("type", t.Type()).
		Str("acronym", p.Acronym).
		Int("submission_id", p.SubmissionID).
		Msg("Processing submission task")

	if err := j.processor.ProcessSubmission(ctx, p.Acronym, p.SubmissionID); err != nil {
		j.logger.Error().
			Str("type", t.Type()).
			Str("acronym", p.Acronym).
			Int("submission_id", p.SubmissionID).
			Err(err).
			Msg("Failed to process submission")
		return err
	}

	j.logger.Info().
		Str("type", t.Type()).
		Str("acronym", p.Acronym).
		Int("submission_id", p.SubmissionID).
		Msg("Successfully processed submission")

	return nil
}

func (j *JobService) handleSubmissionEmailTask(ctx context.Context, t *asynq.Task) error {
	var p SubmissionEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal submission email payload: %w: %w", err, asynq.SkipRetry)
	}

	j.logger.Info().
		Str("type", t.Type()).
		Str("to", p.To).
		Str("acronym", p.Acronym).
		Msg("Processing submission email task")

	err := j.mailer.SendSubmissionProcessed(p.To, email.SubmissionProcessedData{
		Username:      p.Username,
		Acronym:       p.Acronym,
		SubmissionID:  p.SubmissionID,
		SubmissionURI: p.SubmissionURI,
		Status:        p.Status,
		ClassCount:    p.ClassCount,
		ParseError:    p.ParseError,
	})
	if err != nil {
		j.logger.Error().
			Str("type", t.Type()).
			Str("to", p.To).
			Err(err).
			Msg("Failed to send submission email")
		return err
	}

	j.logger.Info().
		Str("type", t.Type()).
		Str("to", p.To).
		Msg("Successfully sent submission email")

	return nil
}

func (j *JobService) handleRefreshStatsTask(ctx context.Context, t *asynq.Task) error {
	j.logger.Info().Str("type", t.Type()).Msg("Refreshing mapping statistics")

	if err := j.refresher.RefreshStatistics(ctx); err != nil {
		j.logger.Error().Str("type", t.Type()).Err(err).Msg("Failed to refresh mapping statistics")
		return err
	}
	return nil
}
