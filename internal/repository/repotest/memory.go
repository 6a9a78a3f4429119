// Package repotest provides in-memory repositories for tests.
package repotest

import (
	"context"
	"sync"
	"time"

	"github.com/maheshrc27/content-publisher/internal/models"
	"github.com/maheshrc27/content-publisher/internal/repository"
)

type ContentStore struct {
	mu      sync.Mutex
	items   map[string]*models.ScheduledContent
	PingErr error
	ListErr error
	// Writes counts MarkPublished/MarkFailed calls per item.
	Writes map[string]int
}

var _ repository.ContentRepository = (*ContentStore)(nil)

func NewContentStore(items ...*models.ScheduledContent) *ContentStore {
	s := &ContentStore{
		items:  make(map[string]*models.ScheduledContent),
		Writes: make(map[string]int),
	}
	for _, it := range items {
		s.Put(it)
	}
	return s
}

func (s *ContentStore) Put(item *models.ScheduledContent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.items[item.ID] = &cp
}

// Get returns a copy of the stored item.
func (s *ContentStore) Get(id string) *models.ScheduledContent {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil
	}
	cp := *it
	return &cp
}

func (s *ContentStore) Ping(ctx context.Context) error {
	return s.PingErr
}

// ListDue returns every scheduled item regardless of time so callers can
// be checked for their own boundary handling.
func (s *ContentStore) ListDue(ctx context.Context, asOf time.Time) ([]*models.ScheduledContent, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.ScheduledContent
	for _, it := range s.items {
		if it.Status == models.StatusScheduled {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *ContentStore) Claim(ctx context.Context, id, runID string, now time.Time, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok || it.Status != models.StatusScheduled {
		return false, nil
	}
	if it.LeaseExpiresAt != nil && !it.LeaseExpiresAt.Before(now) {
		return false, nil
	}
	exp := now.Add(ttl)
	it.LeaseRunID = runID
	it.LeaseExpiresAt = &exp
	return true, nil
}

func (s *ContentStore) MarkPublished(ctx context.Context, id, runID, externalID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok || it.LeaseRunID != runID {
		return repository.ErrLeaseLost
	}
	at := publishedAt
	it.Status = models.StatusPublished
	it.ExternalID = externalID
	it.PublishedAt = &at
	it.ErrorMessage = ""
	it.LeaseExpiresAt = nil
	it.UpdatedAt = publishedAt
	s.Writes[id]++
	return nil
}

func (s *ContentStore) MarkFailed(ctx context.Context, id, runID, errorMessage string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok || it.LeaseRunID != runID {
		return repository.ErrLeaseLost
	}
	it.Status = models.StatusFailed
	it.ErrorMessage = errorMessage
	it.ExternalID = ""
	it.PublishedAt = nil
	it.LeaseExpiresAt = nil
	it.UpdatedAt = at
	s.Writes[id]++
	return nil
}

type IntegrationStore struct {
	mu           sync.Mutex
	integrations []*models.PlatformIntegration
	Err          error
}

var _ repository.IntegrationRepository = (*IntegrationStore)(nil)

func NewIntegrationStore(integrations ...*models.PlatformIntegration) *IntegrationStore {
	return &IntegrationStore{integrations: integrations}
}

func (s *IntegrationStore) ListByProjectPlatform(ctx context.Context, projectID string, platform models.Platform) ([]*models.PlatformIntegration, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.PlatformIntegration
	for _, pi := range s.integrations {
		if pi.ProjectID == projectID && pi.Platform == platform {
			cp := *pi
			out = append(out, &cp)
		}
	}
	return out, nil
}
