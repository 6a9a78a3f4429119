package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	job "github.com/maheshrc27/content-publisher/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, trigger job.Trigger) (*job.RunReport, error) {
	args := m.Called(ctx, trigger)
	report, _ := args.Get(0).(*job.RunReport)
	return report, args.Error(1)
}

func TestNewRunTask(t *testing.T) {
	task, err := NewRunTask(RunPayload{Trigger: job.TriggerPeriodic}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, TaskTypePublishRun, task.Type())

	var payload RunPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, job.TriggerPeriodic, payload.Trigger)
}

func TestHandlePublishRunTask(t *testing.T) {
	runner := new(mockRunner)
	runner.On("Run", mock.Anything, job.TriggerPeriodic).
		Return(&job.RunReport{Context: job.RunContext{ID: "run-1"}}, nil).Once()

	task, err := NewRunTask(RunPayload{Trigger: job.TriggerPeriodic}, time.Minute)
	require.NoError(t, err)

	require.NoError(t, NewQueue(runner).HandlePublishRunTask(context.Background(), task))
	runner.AssertExpectations(t)
}

func TestHandlePublishRunTask_RunError(t *testing.T) {
	runner := new(mockRunner)
	runErr := errors.New("store unavailable")
	runner.On("Run", mock.Anything, job.TriggerPeriodic).Return(&job.RunReport{}, runErr).Once()

	task := asynq.NewTask(TaskTypePublishRun, []byte(`{}`))
	err := NewQueue(runner).HandlePublishRunTask(context.Background(), task)
	assert.ErrorIs(t, err, runErr)
	runner.AssertExpectations(t)
}

func TestHandlePublishRunTask_BadPayload(t *testing.T) {
	runner := new(mockRunner)
	task := asynq.NewTask(TaskTypePublishRun, []byte("not json"))

	err := NewQueue(runner).HandlePublishRunTask(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}
