package service

import (
	"context"
	"fmt"
	"time"

	"github.com/maheshrc27/content-publisher/internal/models"
	"github.com/maheshrc27/content-publisher/internal/repository"
)

const fallbackErrorMessage = "publish failed"

// StatusService applies the terminal transition of a single item. The
// write only lands while runID is the item's lease holder; otherwise it
// returns repository.ErrLeaseLost.
type StatusService interface {
	Apply(ctx context.Context, itemID, runID string, outcome models.PublishOutcome) error
}

type statusService struct {
	cr  repository.ContentRepository
	now func() time.Time
}

func NewStatusService(cr repository.ContentRepository, now func() time.Time) StatusService {
	if now == nil {
		now = time.Now
	}
	return &statusService{cr: cr, now: now}
}

func (s *statusService) Apply(ctx context.Context, itemID, runID string, outcome models.PublishOutcome) error {
	if err := outcome.Validate(); err != nil {
		return fmt.Errorf("item %s: %w", itemID, err)
	}

	at := s.now().UTC()
	switch outcome.Status {
	case models.StatusPublished:
		if err := s.cr.MarkPublished(ctx, itemID, runID, outcome.ExternalID, at); err != nil {
			return fmt.Errorf("failed to mark item %s published: %w", itemID, err)
		}
	case models.StatusFailed:
		msg := outcome.ErrorMessage
		if msg == "" {
			msg = fallbackErrorMessage
		}
		if err := s.cr.MarkFailed(ctx, itemID, runID, msg, at); err != nil {
			return fmt.Errorf("failed to mark item %s failed: %w", itemID, err)
		}
	}
	return nil
}
