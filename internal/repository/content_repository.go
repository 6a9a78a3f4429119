package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/maheshrc27/content-publisher/internal/models"
	log "github.com/sirupsen/logrus"
)

// ErrLeaseLost means the item is missing or was last claimed by another
// run, so the terminal write was not applied. Terminal writes keep
// lease_run_id so the owning run can repeat them.
var ErrLeaseLost = errors.New("item lease no longer held by this run")

type ContentRepository interface {
	Ping(ctx context.Context) error
	ListDue(ctx context.Context, asOf time.Time) ([]*models.ScheduledContent, error)
	Claim(ctx context.Context, id, runID string, now time.Time, ttl time.Duration) (bool, error)
	MarkPublished(ctx context.Context, id, runID, externalID string, publishedAt time.Time) error
	MarkFailed(ctx context.Context, id, runID, errorMessage string, at time.Time) error
}

type contentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		log.Info(err.Error())
		return err
	}
	return nil
}

func (r *contentRepository) ListDue(ctx context.Context, asOf time.Time) ([]*models.ScheduledContent, error) {
	query := `
		SELECT
			c.id,
			p.tenant_id,
			c.project_id,
			c.platform,
			c.body_text,
			c.media,
			c.status,
			c.scheduled_time,
			COALESCE(c.external_id, ''),
			COALESCE(c.error_message, ''),
			c.published_at,
			c.updated_at
		FROM scheduled_content c
		JOIN projects p ON p.id = c.project_id
		WHERE c.status = $1 AND c.scheduled_time <= $2
	`
	rows, err := r.db.QueryContext(ctx, query, string(models.StatusScheduled), asOf)
	if err != nil {
		log.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var items []*models.ScheduledContent
	for rows.Next() {
		var c models.ScheduledContent
		var publishedAt sql.NullTime
		err := rows.Scan(&c.ID, &c.TenantID, &c.ProjectID, &c.Platform, &c.Body.Text, &c.Body.Media,
			&c.Status, &c.ScheduledTime, &c.ExternalID, &c.ErrorMessage, &publishedAt, &c.UpdatedAt)
		if err != nil {
			log.Info(err.Error())
			return nil, err
		}
		if publishedAt.Valid {
			c.PublishedAt = &publishedAt.Time
		}
		items = append(items, &c)
	}

	if err := rows.Err(); err != nil {
		log.Info(err.Error())
		return nil, err
	}

	return items, nil
}

// Claim leases a still-scheduled item to runID until now+ttl. It reports
// false when the item is no longer scheduled or another run holds a live lease.
func (r *contentRepository) Claim(ctx context.Context, id, runID string, now time.Time, ttl time.Duration) (bool, error) {
	query := `
		UPDATE scheduled_content
		SET lease_run_id = $2,
			lease_expires_at = $3,
			updated_at = $4
		WHERE id = $1
			AND status = $5
			AND (lease_expires_at IS NULL OR lease_expires_at < $4)
	`
	result, err := r.db.ExecContext(ctx, query, id, runID, now.Add(ttl), now, string(models.StatusScheduled))
	if err != nil {
		log.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		log.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *contentRepository) MarkPublished(ctx context.Context, id, runID, externalID string, publishedAt time.Time) error {
	query := `
		UPDATE scheduled_content
		SET status = $2,
			external_id = $3,
			published_at = $4,
			error_message = NULL,
			lease_expires_at = NULL,
			updated_at = $4
		WHERE id = $1 AND lease_run_id = $5
	`
	return r.exec(ctx, query, id, string(models.StatusPublished), externalID, publishedAt, runID)
}

func (r *contentRepository) MarkFailed(ctx context.Context, id, runID, errorMessage string, at time.Time) error {
	query := `
		UPDATE scheduled_content
		SET status = $2,
			error_message = $3,
			external_id = NULL,
			published_at = NULL,
			lease_expires_at = NULL,
			updated_at = $4
		WHERE id = $1 AND lease_run_id = $5
	`
	return r.exec(ctx, query, id, string(models.StatusFailed), errorMessage, at, runID)
}

func (r *contentRepository) exec(ctx context.Context, query string, id string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		log.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		log.Info(err.Error())
		return err
	}
	if affected != 1 {
		return ErrLeaseLost
	}
	return nil
}
