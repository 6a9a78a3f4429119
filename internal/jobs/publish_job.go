package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	config "github.com/maheshrc27/content-publisher/configs"
	"github.com/maheshrc27/content-publisher/internal/repository"
	"github.com/maheshrc27/content-publisher/internal/service"
	log "github.com/sirupsen/logrus"
)

var ErrStoreUnavailable = errors.New("store unavailable")

type RunSummary struct {
	RunID      string
	Collected  int
	Published  int
	Failed     int
	Skipped    int
	NotClaimed int
	LeaseLost  int
	Duration   time.Duration
}

func (s RunSummary) String() string {
	return fmt.Sprintf("run %s finished: collected=%d published=%d failed=%d skipped=%d not_claimed=%d lease_lost=%d duration=%s",
		s.RunID, s.Collected, s.Published, s.Failed, s.Skipped, s.NotClaimed, s.LeaseLost, s.Duration)
}

// RunReport carries the transcript even when the run failed.
type RunReport struct {
	Context    RunContext
	Summary    RunSummary
	Results    []ItemResult
	Transcript []string
}

func (r *RunReport) TranscriptText() string {
	return strings.Join(r.Transcript, "\n")
}

type PublishJob struct {
	cr         repository.ContentRepository
	collector  *Collector
	dispatcher *Dispatcher
	logger     *log.Logger
	now        func() time.Time
}

type Option func(*PublishJob)

func WithClock(now func() time.Time) Option {
	return func(j *PublishJob) { j.now = now }
}

func WithLogger(logger *log.Logger) Option {
	return func(j *PublishJob) { j.logger = logger }
}

func NewPublishJob(
	cr repository.ContentRepository,
	creds service.CredentialService,
	publishers *service.PublisherRegistry,
	status service.StatusService,
	cfg config.Publisher,
	opts ...Option) (*PublishJob, error) {
	j := &PublishJob{
		cr:        cr,
		collector: NewCollector(cr),
		logger:    log.StandardLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	dispatcher, err := NewDispatcher(cr, creds, publishers, status, cfg.Concurrency, cfg.ItemTimeout, cfg.LeaseTTL, j.now)
	if err != nil {
		return nil, err
	}
	j.dispatcher = dispatcher
	return j, nil
}

// Run performs one full pass: store check, collection, dispatch. Only the
// store check and collection can fail the run; item failures end up in
// the report.
func (j *PublishJob) Run(ctx context.Context, trigger Trigger) (*RunReport, error) {
	rc, err := NewRunContext(trigger, j.now())
	if err != nil {
		return &RunReport{}, err
	}

	rl := NewRunLog(j.logger, rc)
	report := &RunReport{Context: rc, Summary: RunSummary{RunID: rc.ID}}
	defer func() { report.Transcript = rl.Lines() }()

	rl.Entry().WithField("as_of", rc.StartedAt.Format(time.RFC3339)).Info("publish run started")

	if err := j.cr.Ping(ctx); err != nil {
		rl.Entry().WithError(err).Error("store connectivity check failed")
		return report, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	items, err := j.collector.Collect(ctx, rc.StartedAt)
	if err != nil {
		rl.Entry().WithError(err).Error("failed to collect due content")
		return report, fmt.Errorf("failed to collect due content: %w", err)
	}
	rl.Entry().Infof("collected %d due item(s)", len(items))

	report.Results = j.dispatcher.Dispatch(ctx, rc, rl, items)

	report.Summary = summarize(rc.ID, report.Results)
	report.Summary.Duration = j.now().Sub(rc.StartedAt)
	rl.Entry().WithFields(log.Fields{
		"published":   report.Summary.Published,
		"failed":      report.Summary.Failed,
		"skipped":     report.Summary.Skipped,
		"not_claimed": report.Summary.NotClaimed,
		"lease_lost":  report.Summary.LeaseLost,
	}).Info(report.Summary.String())

	return report, nil
}

// RunScheduled is the periodic entry point; it only logs.
func (j *PublishJob) RunScheduled() {
	if _, err := j.Run(context.Background(), TriggerPeriodic); err != nil {
		j.logger.Info(err.Error())
	}
}

func summarize(runID string, results []ItemResult) RunSummary {
	s := RunSummary{RunID: runID, Collected: len(results)}
	for _, r := range results {
		switch r.Status {
		case ItemPublished:
			s.Published++
		case ItemFailed:
			s.Failed++
		case ItemSkipped:
			s.Skipped++
		case ItemNotClaimed:
			s.NotClaimed++
		case ItemLeaseLost:
			s.LeaseLost++
		}
	}
	return s
}
