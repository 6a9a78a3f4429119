package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/maheshrc27/content-publisher/internal/models"
)

// Publisher runs one platform's publish protocol and returns the id the
// platform assigned to the published content.
type Publisher interface {
	Publish(ctx context.Context, accountID string, body models.ContentBody, accessToken string) (string, error)
}

// PublisherRegistry maps platforms to publishers. It is filled at startup
// and only read afterwards.
type PublisherRegistry struct {
	publishers map[models.Platform]Publisher
}

func NewPublisherRegistry() *PublisherRegistry {
	return &PublisherRegistry{publishers: make(map[models.Platform]Publisher)}
}

func (r *PublisherRegistry) Register(platform models.Platform, p Publisher) {
	r.publishers[platform] = p
}

func (r *PublisherRegistry) Lookup(platform models.Platform) (Publisher, error) {
	p, ok := r.publishers[platform]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnsupportedPlatform, platform)
	}
	return p, nil
}

func (r *PublisherRegistry) Platforms() []models.Platform {
	platforms := make([]models.Platform, 0, len(r.publishers))
	for p := range r.publishers {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}
