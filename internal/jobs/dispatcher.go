package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/content-publisher/internal/models"
	"github.com/maheshrc27/content-publisher/internal/repository"
	"github.com/maheshrc27/content-publisher/internal/service"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotClaimed = errors.New("item claimed by another run")
	// ErrLeaseTooShort rejects configurations where an item may still be in
	// flight after its lease expired and another run reclaimed it.
	ErrLeaseTooShort = errors.New("lease TTL must be longer than the item timeout")
)

type ItemStatus string

const (
	ItemPublished  ItemStatus = "published"
	ItemFailed     ItemStatus = "failed"
	ItemSkipped    ItemStatus = "skipped"
	ItemNotClaimed ItemStatus = "not_claimed"
	ItemLeaseLost  ItemStatus = "lease_lost"
)

// ItemResult is the outcome of one item's pipeline. Err is set for failed,
// not-claimed and lease-lost items.
type ItemResult struct {
	ItemID     string
	ProjectID  string
	Platform   models.Platform
	Status     ItemStatus
	ExternalID string
	Err        error
}

type Dispatcher struct {
	cr          repository.ContentRepository
	creds       service.CredentialService
	publishers  *service.PublisherRegistry
	status      service.StatusService
	concurrency int
	itemTimeout time.Duration
	leaseTTL    time.Duration
	now         func() time.Time
}

func NewDispatcher(
	cr repository.ContentRepository,
	creds service.CredentialService,
	publishers *service.PublisherRegistry,
	status service.StatusService,
	concurrency int,
	itemTimeout, leaseTTL time.Duration,
	now func() time.Time) (*Dispatcher, error) {
	if itemTimeout <= 0 || itemTimeout >= leaseTTL {
		return nil, fmt.Errorf("%w: item timeout %s, lease TTL %s", ErrLeaseTooShort, itemTimeout, leaseTTL)
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		cr:          cr,
		creds:       creds,
		publishers:  publishers,
		status:      status,
		concurrency: concurrency,
		itemTimeout: itemTimeout,
		leaseTTL:    leaseTTL,
		now:         now,
	}, nil
}

// Dispatch processes every item with at most concurrency items in flight
// and returns once all of them have an outcome. Results are in input order.
func (d *Dispatcher) Dispatch(ctx context.Context, rc RunContext, rl *RunLog, items []*models.ScheduledContent) []ItemResult {
	results := make([]ItemResult, len(items))

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for i, item := range items {
		g.Go(func() error {
			results[i] = d.processItem(ctx, rc, rl, item)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) processItem(ctx context.Context, rc RunContext, rl *RunLog, item *models.ScheduledContent) (res ItemResult) {
	entry := rl.Item(item)
	res = ItemResult{ItemID: item.ID, ProjectID: item.ProjectID, Platform: item.Platform}

	defer func() {
		if r := recover(); r != nil {
			res = d.fail(ctx, rc, entry, res, fmt.Errorf("panic: %v", r))
		}
	}()

	publisher, err := d.publishers.Lookup(item.Platform)
	if err != nil {
		entry.Info("skipping item: no publisher for platform")
		res.Status = ItemSkipped
		return res
	}

	claimed, err := d.cr.Claim(ctx, item.ID, rc.ID, d.now().UTC(), d.leaseTTL)
	if err != nil {
		entry.WithError(err).Error("failed to claim item")
		res.Status = ItemNotClaimed
		res.Err = err
		return res
	}
	if !claimed {
		entry.Info("item already claimed by another run")
		res.Status = ItemNotClaimed
		res.Err = ErrNotClaimed
		return res
	}

	itemCtx, cancel := context.WithTimeout(ctx, d.itemTimeout)
	defer cancel()

	creds, err := d.creds.Resolve(itemCtx, item.ProjectID, item.Platform)
	if err != nil {
		return d.fail(ctx, rc, entry, res, err)
	}

	externalID, err := publisher.Publish(itemCtx, creds.AccountID, item.Body, creds.AccessToken)
	if err != nil {
		var graphErr *service.GraphError
		if errors.As(err, &graphErr) {
			entry = entry.WithField("graph_error", graphErr.Detail())
		}
		return d.fail(ctx, rc, entry, res, err)
	}

	if err := d.status.Apply(ctx, item.ID, rc.ID, models.Published(externalID)); err != nil {
		entry = entry.WithField("external_id", externalID)
		if errors.Is(err, repository.ErrLeaseLost) {
			return d.leaseLost(entry, res, err)
		}
		entry.WithError(err).Error("published but could not record status")
		return d.fail(ctx, rc, entry, res, err)
	}

	entry.WithField("external_id", externalID).Info("item published")
	res.Status = ItemPublished
	res.ExternalID = externalID
	return res
}

// fail records a Failed transition. The run context is used because the
// item context may already be done.
func (d *Dispatcher) fail(ctx context.Context, rc RunContext, entry *log.Entry, res ItemResult, cause error) ItemResult {
	res.Status = ItemFailed
	res.ExternalID = ""
	res.Err = cause

	entry.WithError(cause).Warn("item failed")
	if err := d.status.Apply(ctx, res.ItemID, rc.ID, models.Failed(cause.Error())); err != nil {
		if errors.Is(err, repository.ErrLeaseLost) {
			return d.leaseLost(entry, res, err)
		}
		entry.WithError(err).Error("failed to record failed status")
	}
	return res
}

// leaseLost reports an item whose lease moved to another run before this
// run could record its outcome. The other run's result stands.
func (d *Dispatcher) leaseLost(entry *log.Entry, res ItemResult, err error) ItemResult {
	entry.WithError(err).Error("lease lost before recording outcome; result discarded")
	res.Status = ItemLeaseLost
	res.Err = err
	return res
}
