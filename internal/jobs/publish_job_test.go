package job

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	config "github.com/maheshrc27/content-publisher/configs"
	"github.com/maheshrc27/content-publisher/internal/models"
	"github.com/maheshrc27/content-publisher/internal/repository"
	"github.com/maheshrc27/content-publisher/internal/repository/repotest"
	"github.com/maheshrc27/content-publisher/internal/service"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runAt = time.Date(2025, 1, 1, 0, 2, 0, 0, time.UTC)

type publishFunc func(ctx context.Context, accountID string, body models.ContentBody, accessToken string) (string, error)

func (f publishFunc) Publish(ctx context.Context, accountID string, body models.ContentBody, accessToken string) (string, error) {
	return f(ctx, accountID, body, accessToken)
}

func item(id string, platform models.Platform, scheduled time.Time, text string) *models.ScheduledContent {
	return &models.ScheduledContent{
		ID:            id,
		TenantID:      "t1",
		ProjectID:     "p1",
		Platform:      platform,
		Status:        models.StatusScheduled,
		ScheduledTime: scheduled,
		Body: models.ContentBody{
			Text:  text,
			Media: models.MediaList{{URL: "https://cdn.example.com/" + id + ".jpg", Kind: models.MediaImage}},
		},
	}
}

type fixture struct {
	store    *repotest.ContentStore
	registry *service.PublisherRegistry
	cfg      config.Publisher
}

func newFixture(items ...*models.ScheduledContent) *fixture {
	return &fixture{
		store:    repotest.NewContentStore(items...),
		registry: service.NewPublisherRegistry(),
		cfg: config.Publisher{
			Concurrency: 4,
			ItemTimeout: time.Second,
			LeaseTTL:    10 * time.Minute,
		},
	}
}

func (f *fixture) job(t *testing.T) *PublishJob {
	t.Helper()
	return f.jobAt(t, func() time.Time { return runAt })
}

func (f *fixture) jobAt(t *testing.T, clock func() time.Time) *PublishJob {
	t.Helper()
	integrations := repotest.NewIntegrationStore(&models.PlatformIntegration{
		ID:          "i1",
		ProjectID:   "p1",
		Platform:    models.PlatformInstagram,
		AccessToken: "tok",
		AccountID:   "1784",
	})
	logger := log.New()
	logger.SetOutput(io.Discard)

	j, err := NewPublishJob(
		f.store,
		service.NewCredentialService(integrations, nil),
		f.registry,
		service.NewStatusService(f.store, clock),
		f.cfg,
		WithClock(clock),
		WithLogger(logger),
	)
	require.NoError(t, err)
	return j
}

func TestPublishJob_RateLimitedContainerFailsOnlyDueItem(t *testing.T) {
	var commits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/media_publish") {
			atomic.AddInt32(&commits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "rate limited"},
		})
	}))
	defer srv.Close()

	itemA := item("A", models.PlatformInstagram, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "a")
	itemB := item("B", models.PlatformInstagram, time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC), "b")
	f := newFixture(itemA, itemB)
	f.registry.Register(models.PlatformInstagram, service.NewInstagramPublisher(config.Publisher{
		GraphAPIBaseURL: srv.URL,
		RequestTimeout:  time.Second,
	}, noopResolver{}))

	report, err := f.job(t).Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	a := f.store.Get("A")
	assert.Equal(t, models.StatusFailed, a.Status)
	assert.Equal(t, "rate limited", a.ErrorMessage)
	assert.Empty(t, a.ExternalID)
	assert.Nil(t, a.PublishedAt)

	b := f.store.Get("B")
	assert.Equal(t, models.StatusScheduled, b.Status)
	assert.Empty(t, b.LeaseRunID)
	assert.Zero(t, f.store.Writes["B"])

	assert.Zero(t, atomic.LoadInt32(&commits))
	assert.Equal(t, 1, report.Summary.Collected)
	assert.Equal(t, 1, report.Summary.Failed)
}

type noopResolver struct{}

func (noopResolver) Resolve(ctx context.Context, ref models.MediaRef) (models.MediaRef, error) {
	return ref, nil
}

func TestPublishJob_Published(t *testing.T) {
	f := newFixture(item("A", models.PlatformInstagram, runAt, "hello"))
	f.registry.Register(models.PlatformInstagram, publishFunc(func(ctx context.Context, accountID string, body models.ContentBody, accessToken string) (string, error) {
		assert.Equal(t, "1784", accountID)
		assert.Equal(t, "tok", accessToken)
		assert.Equal(t, "hello", body.Text)
		return "17890", nil
	}))

	report, err := f.job(t).Run(context.Background(), TriggerPeriodic)
	require.NoError(t, err)

	a := f.store.Get("A")
	assert.Equal(t, models.StatusPublished, a.Status)
	assert.Equal(t, "17890", a.ExternalID)
	require.NotNil(t, a.PublishedAt)
	assert.Equal(t, runAt, *a.PublishedAt)
	assert.Equal(t, report.Context.ID, a.LeaseRunID)
	assert.Nil(t, a.LeaseExpiresAt)

	require.NotEmpty(t, report.Transcript)
	last := report.Transcript[len(report.Transcript)-1]
	assert.Contains(t, last, "published=1")
	assert.Contains(t, last, report.Context.ID)
	assert.Equal(t, TriggerPeriodic, report.Context.Trigger)
}

func TestPublishJob_IsolatesItemFailures(t *testing.T) {
	f := newFixture(
		item("ok1", models.PlatformInstagram, runAt, "ok"),
		item("boom", models.PlatformInstagram, runAt, "panic"),
		item("bad", models.PlatformInstagram, runAt, "error"),
		item("ok2", models.PlatformInstagram, runAt, "ok"),
		item("empty", models.PlatformInstagram, runAt, "empty"),
	)
	f.registry.Register(models.PlatformInstagram, publishFunc(func(ctx context.Context, accountID string, body models.ContentBody, accessToken string) (string, error) {
		switch body.Text {
		case "panic":
			panic("publisher exploded")
		case "error":
			return "", errors.New("upstream said no")
		case "empty":
			return "", errors.New("")
		}
		return "ext-" + body.Text, nil
	}))

	report, err := f.job(t).Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPublished, f.store.Get("ok1").Status)
	assert.Equal(t, models.StatusPublished, f.store.Get("ok2").Status)

	boom := f.store.Get("boom")
	assert.Equal(t, models.StatusFailed, boom.Status)
	assert.Equal(t, "panic: publisher exploded", boom.ErrorMessage)

	bad := f.store.Get("bad")
	assert.Equal(t, models.StatusFailed, bad.Status)
	assert.Equal(t, "upstream said no", bad.ErrorMessage)

	assert.Equal(t, "publish failed", f.store.Get("empty").ErrorMessage)

	assert.Equal(t, 5, report.Summary.Collected)
	assert.Equal(t, 2, report.Summary.Published)
	assert.Equal(t, 3, report.Summary.Failed)
}

func TestPublishJob_SkipsUnimplementedPlatform(t *testing.T) {
	f := newFixture(item("tt", models.PlatformTikTok, runAt, "dance"))
	f.registry.Register(models.PlatformInstagram, publishFunc(func(ctx context.Context, accountID string, body models.ContentBody, accessToken string) (string, error) {
		t.Fatal("instagram publisher must not be called")
		return "", nil
	}))

	report, err := f.job(t).Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	tt := f.store.Get("tt")
	assert.Equal(t, models.StatusScheduled, tt.Status)
	assert.Empty(t, tt.LeaseRunID)
	assert.Empty(t, tt.ErrorMessage)
	assert.Zero(t, f.store.Writes["tt"])

	assert.Equal(t, 1, report.Summary.Skipped)
	assert.Contains(t, report.TranscriptText(), "skipping item")
	assert.Contains(t, report.TranscriptText(), "item_id=tt")
}

func TestPublishJob_MissingIntegrationFails(t *testing.T) {
	it := item("A", models.PlatformInstagram, runAt, "x")
	it.ProjectID = "p2"
	f := newFixture(it)
	f.registry.Register(models.PlatformInstagram, publishFunc(func(ctx context.Context, accountID string, body models.ContentBody, accessToken string) (string, error) {
		return "1", nil
	}))

	_, err := f.job(t).Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	a := f.store.Get("A")
	assert.Equal(t, models.StatusFailed, a.Status)
	assert.Equal(t, "integration missing for project p2 on instagram", a.ErrorMessage)
}

func TestPublishJob_StoreUnavailableAbortsRun(t *testing.T) {
	f := newFixture(item("A", models.PlatformInstagram, runAt, "x"))
	f.store.PingErr = errors.New("connection refused")
	f.registry.Register(models.PlatformInstagram, publishFunc(func(ctx context.Context, accountID string, body models.ContentBody, accessToken string) (string, error) {
		t.Fatal("publisher must not be called")
		return "", nil
	}))

	report, err := f.job(t).Run(context.Background(), TriggerManual)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, report.TranscriptText(), "store connectivity check failed")
	assert.Equal(t, models.StatusScheduled, f.store.Get("A").Status)
	assert.Zero(t, f.store.Writes["A"])
}

func TestPublishJob_CollectionErrorAbortsRun(t *testing.T) {
	f := newFixture()
	f.store.ListErr = errors.New("query timeout")

	report, err := f.job(t).Run(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query timeout")
	assert.Empty(t, report.Results)
	assert.Contains(t, report.TranscriptText(), "failed to collect due content")
}

func TestPublishJob_LeasedItemIsNotClaimed(t *testing.T) {
	it := item("A", models.PlatformInstagram, runAt, "x")
	until := runAt.Add(5 * time.Minute)
	it.LeaseRunID = "other-run"
	it.LeaseExpiresAt = &until
	f := newFixture(it)
	f.registry.Register(models.PlatformInstagram, publishFunc(func(ctx context.Context, accountID string, body models.ContentBody, accessToken string) (string, error) {
		t.Fatal("publisher must not be called for a leased item")
		return "", nil
	}))

	report, err := f.job(t).Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, ItemNotClaimed, report.Results[0].Status)
	assert.ErrorIs(t, report.Results[0].Err, ErrNotClaimed)
	a := f.store.Get("A")
	assert.Equal(t, models.StatusScheduled, a.Status)
	assert.Equal(t, "other-run", a.LeaseRunID)
}

func TestPublishJob_ExpiredLeaseIsReclaimed(t *testing.T) {
	it := item("A", models.PlatformInstagram, runAt, "x")
	expired := runAt.Add(-time.Minute)
	it.LeaseRunID = "crashed-run"
	it.LeaseExpiresAt = &expired
	f := newFixture(it)
	f.registry.Register(models.PlatformInstagram, publishFunc(func(ctx context.Context, accountID string, body models.ContentBody, accessToken string) (string, error) {
		return "1", nil
	}))

	_, err := f.job(t).Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, f.store.Get("A").Status)
}

func TestPublishJob_ItemTimeout(t *testing.T) {
	f := newFixture(item("slow", models.PlatformInstagram, runAt, "x"))
	f.cfg.ItemTimeout = 20 * time.Millisecond
	f.registry.Register(models.PlatformInstagram, publishFunc(func(ctx context.Context, accountID string, body models.ContentBody, accessToken string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}))

	_, err := f.job(t).Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	slow := f.store.Get("slow")
	assert.Equal(t, models.StatusFailed, slow.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), slow.ErrorMessage)
}

func TestPublishJob_BoundsConcurrency(t *testing.T) {
	var items []*models.ScheduledContent
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		items = append(items, item(id, models.PlatformInstagram, runAt, id))
	}
	f := newFixture(items...)
	f.cfg.Concurrency = 2

	var inFlight, peak int32
	f.registry.Register(models.PlatformInstagram, publishFunc(func(ctx context.Context, accountID string, body models.ContentBody, accessToken string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "ext-" + body.Text, nil
	}))

	report, err := f.job(t).Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 8, report.Summary.Published)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPublishJob_StaleRunCannotOverwriteReclaimedItem(t *testing.T) {
	f := newFixture(item("A", models.PlatformInstagram, runAt, "x"))

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	f.registry.Register(models.PlatformInstagram, publishFunc(func(ctx context.Context, accountID string, body models.ContentBody, accessToken string) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(entered)
			<-release
			return "ext-first", nil
		}
		return "ext-second", nil
	}))

	first := f.jobAt(t, func() time.Time { return runAt })
	second := f.jobAt(t, func() time.Time { return runAt.Add(f.cfg.LeaseTTL + time.Minute) })

	type outcome struct {
		report *RunReport
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := first.Run(context.Background(), TriggerPeriodic)
		done <- outcome{report, err}
	}()
	<-entered

	secondReport, err := second.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, secondReport.Summary.Published)

	close(release)
	firstRun := <-done
	require.NoError(t, firstRun.err)
	require.Len(t, firstRun.report.Results, 1)
	assert.Equal(t, ItemLeaseLost, firstRun.report.Results[0].Status)
	assert.ErrorIs(t, firstRun.report.Results[0].Err, repository.ErrLeaseLost)
	assert.Equal(t, 1, firstRun.report.Summary.LeaseLost)
	assert.Contains(t, firstRun.report.TranscriptText(), "lease lost")

	a := f.store.Get("A")
	assert.Equal(t, models.StatusPublished, a.Status)
	assert.Equal(t, "ext-second", a.ExternalID)
	assert.Equal(t, secondReport.Context.ID, a.LeaseRunID)
	assert.Equal(t, 1, f.store.Writes["A"])
}

func TestNewPublishJob_RejectsLeaseShorterThanItemTimeout(t *testing.T) {
	for _, tc := range []struct {
		name        string
		itemTimeout time.Duration
		leaseTTL    time.Duration
	}{
		{"longer", 15 * time.Minute, 10 * time.Minute},
		{"equal", 10 * time.Minute, 10 * time.Minute},
		{"zero", 0, 10 * time.Minute},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := repotest.NewContentStore()
			_, err := NewPublishJob(
				store,
				service.NewCredentialService(repotest.NewIntegrationStore(), nil),
				service.NewPublisherRegistry(),
				service.NewStatusService(store, nil),
				config.Publisher{Concurrency: 1, ItemTimeout: tc.itemTimeout, LeaseTTL: tc.leaseTTL},
			)
			assert.ErrorIs(t, err, ErrLeaseTooShort)
		})
	}
}
