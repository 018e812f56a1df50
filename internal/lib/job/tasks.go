package job

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Task type names stored in Redis. Asynq routes on them.
const (
	TaskProcessSubmission = "submission:process"
	TaskSubmissionEmail   = "email:submission_processed"
	TaskRefreshStats      = "mappings:stats_refresh"
)

// ProcessSubmissionPayload names the submission to parse.
type ProcessSubmissionPayload struct {
	Acronym      string `json:"acronym"`
	SubmissionID int    `json:"submission_id"`
}

// NewProcessSubmissionTask builds the task that parses a freshly uploaded
// submission. Parsing large ontologies is slow, hence the long timeout.
func NewProcessSubmissionTask(acronym string, submissionID int) (*asynq.Task, error) {
	payload, err := json.Marshal(ProcessSubmissionPayload{
		Acronym:      acronym,
		SubmissionID: submissionID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskProcessSubmission,
		payload,
		asynq.MaxRetry(2),
		asynq.Queue("critical"),
		asynq.Timeout(30*time.Minute),
	), nil
}

// SubmissionEmailPayload is the data of one submission-processed email.
type SubmissionEmailPayload struct {
	To            string `json:"to"`
	Username      string `json:"username"`
	Acronym       string `json:"acronym"`
	SubmissionID  int    `json:"submission_id"`
	SubmissionURI string `json:"submission_uri"`
	Status        string `json:"status"`
	ClassCount    int    `json:"class_count"`
	ParseError    string `json:"parse_error,omitempty"`
}

func NewSubmissionEmailTask(p SubmissionEmailPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskSubmissionEmail,
		payload,
		asynq.MaxRetry(3),
		asynq.Queue("default"),
		asynq.Timeout(30*time.Second),
	), nil
}

// NewRefreshStatsTask builds the task that recomputes the mapping statistics
// cache. Only one can be pending at a time.
func NewRefreshStatsTask() *asynq.Task {
	return asynq.NewTask(
		TaskRefreshStats,
		nil,
		asynq.MaxRetry(1),
		asynq.Queue("low"),
		asynq.Timeout(5*time.Minute),
		asynq.Unique(5*time.Minute),
	)
}
