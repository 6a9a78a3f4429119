package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	job "github.com/maheshrc27/content-publisher/internal/jobs"
	log "github.com/sirupsen/logrus"
)

// NewRunTask builds a publish-run task. While one is queued or running, a
// second enqueue within uniqueTTL is rejected, so periodic runs never
// overlap.
func NewRunTask(payload RunPayload, uniqueTTL time.Duration) (*asynq.Task, error) {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypePublishRun, taskPayload,
		asynq.Unique(uniqueTTL),
		asynq.MaxRetry(0),
	), nil
}

// RegisterPeriodic registers the publish run with the asynq scheduler.
func RegisterPeriodic(scheduler *asynq.Scheduler, cronspec string, uniqueTTL time.Duration) (string, error) {
	task, err := NewRunTask(RunPayload{Trigger: job.TriggerPeriodic}, uniqueTTL)
	if err != nil {
		return "", err
	}

	entryID, err := scheduler.Register(cronspec, task)
	if err != nil {
		return "", err
	}

	log.Infof("Periodic publish run registered: %s (%s)", cronspec, entryID)
	return entryID, nil
}
