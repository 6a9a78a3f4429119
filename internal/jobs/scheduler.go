package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Scheduler fires the publish job on a cron schedule. A tick that arrives
// while the previous run is still going is skipped.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(j *PublishJob, schedule, timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}

	logger := cron.PrintfLogger(log.StandardLogger())
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(schedule, j.RunScheduled); err != nil {
		return nil, fmt.Errorf("failed to add publish job: %w", err)
	}
	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info("publish scheduler started")
}

// Stop prevents new runs and returns a context that is done once the
// running one, if any, has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
