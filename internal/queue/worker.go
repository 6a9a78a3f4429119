package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	job "github.com/maheshrc27/content-publisher/internal/jobs"
	log "github.com/sirupsen/logrus"
)

func (q *Queue) HandlePublishRunTask(ctx context.Context, task *asynq.Task) error {
	var payload RunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid publish run payload: %v: %w", err, asynq.SkipRetry)
	}

	trigger := payload.Trigger
	if trigger == "" {
		trigger = job.TriggerPeriodic
	}

	report, err := q.runner.Run(ctx, trigger)
	if err != nil {
		log.Info(err.Error())
		return err
	}

	log.WithField("run_id", report.Context.ID).Info("Queued publish run finished")
	return nil
}

func (q *Queue) ServeMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypePublishRun, q.HandlePublishRunTask)
	return mux
}
