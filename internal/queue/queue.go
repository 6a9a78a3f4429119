package queue

import (
	"context"
	"time"

	job "github.com/maheshrc27/content-publisher/internal/jobs"
)

// Runner is the publish run the worker executes.
type Runner interface {
	Run(ctx context.Context, trigger job.Trigger) (*job.RunReport, error)
}

type Queue struct {
	runner Runner
}

func NewQueue(runner Runner) *Queue {
	return &Queue{runner: runner}
}

const TaskTypePublishRun = "publisher:run"

type RunPayload struct {
	Trigger     job.Trigger `json:"trigger"`
	RequestedAt time.Time   `json:"requested_at"`
}
