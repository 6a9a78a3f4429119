package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTikTok    Platform = "tiktok"
	PlatformX         Platform = "x"
	PlatformYouTube   Platform = "youtube"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformFacebook, PlatformLinkedIn, PlatformTikTok, PlatformX, PlatformYouTube:
		return true
	}
	return false
}

type ContentStatus string

const (
	StatusScheduled ContentStatus = "scheduled"
	StatusPublished ContentStatus = "published"
	StatusFailed    ContentStatus = "failed"
)

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaRef points at one asset of a post. URL is either a public http(s)
// URL or an object key in the media bucket.
type MediaRef struct {
	URL  string    `json:"url" bson:"url"`
	Kind MediaKind `json:"type,omitempty" bson:"type,omitempty"`
}

// MediaList is stored as a jsonb column.
type MediaList []MediaRef

func (m MediaList) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m)
}

func (m *MediaList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("media: unsupported source type %T", src)
	}
}

type ContentBody struct {
	Text  string    `json:"text" bson:"text"`
	Media MediaList `json:"media" bson:"media"`
}

type ScheduledContent struct {
	ID             string        `db:"id" json:"id"`
	TenantID       string        `db:"tenant_id" json:"tenant_id"`
	ProjectID      string        `db:"project_id" json:"project_id"`
	Platform       Platform      `db:"platform" json:"platform"`
	Body           ContentBody   `json:"body"`
	Status         ContentStatus `db:"status" json:"status"`
	ScheduledTime  time.Time     `db:"scheduled_time" json:"scheduled_time"`
	ExternalID     string        `db:"external_id" json:"external_id,omitempty"`
	ErrorMessage   string        `db:"error_message" json:"error_message,omitempty"`
	PublishedAt    *time.Time    `db:"published_at" json:"published_at,omitempty"`
	LeaseRunID     string        `db:"lease_run_id" json:"-"`
	LeaseExpiresAt *time.Time    `db:"lease_expires_at" json:"-"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// IsDue reports whether the item is waiting for publication at t.
// The boundary is inclusive.
func (c *ScheduledContent) IsDue(t time.Time) bool {
	return c.Status == StatusScheduled && !c.ScheduledTime.After(t)
}

// PublishOutcome is the terminal result the status transition applies.
type PublishOutcome struct {
	Status       ContentStatus
	ExternalID   string
	ErrorMessage string
}

func Published(externalID string) PublishOutcome {
	return PublishOutcome{Status: StatusPublished, ExternalID: externalID}
}

func Failed(message string) PublishOutcome {
	return PublishOutcome{Status: StatusFailed, ErrorMessage: message}
}

var ErrInvalidOutcome = errors.New("outcome must be published with an external id or failed")

func (o PublishOutcome) Validate() error {
	switch o.Status {
	case StatusPublished:
		if o.ExternalID == "" {
			return ErrInvalidOutcome
		}
		return nil
	case StatusFailed:
		return nil
	default:
		return ErrInvalidOutcome
	}
}
