package job

import (
	"context"
	"time"

	"github.com/maheshrc27/content-publisher/internal/models"
	"github.com/maheshrc27/content-publisher/internal/repository"
)

type Collector struct {
	cr repository.ContentRepository
}

func NewCollector(cr repository.ContentRepository) *Collector {
	return &Collector{cr: cr}
}

// Collect returns every scheduled item whose scheduled time is at or before
// asOf, across all tenants and projects.
func (c *Collector) Collect(ctx context.Context, asOf time.Time) ([]*models.ScheduledContent, error) {
	items, err := c.cr.ListDue(ctx, asOf)
	if err != nil {
		return nil, err
	}

	due := items[:0]
	for _, item := range items {
		if item.IsDue(asOf) {
			due = append(due, item)
		}
	}
	return due, nil
}
