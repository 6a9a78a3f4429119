package repository

import (
	"context"
	"database/sql"

	"github.com/maheshrc27/content-publisher/internal/models"
	log "github.com/sirupsen/logrus"
)

type IntegrationRepository interface {
	ListByProjectPlatform(ctx context.Context, projectID string, platform models.Platform) ([]*models.PlatformIntegration, error)
}

type integrationRepository struct {
	db *sql.DB
}

func NewIntegrationRepository(db *sql.DB) IntegrationRepository {
	return &integrationRepository{db: db}
}

func (r *integrationRepository) ListByProjectPlatform(ctx context.Context, projectID string, platform models.Platform) ([]*models.PlatformIntegration, error) {
	query := `
		SELECT id, project_id, platform, COALESCE(access_token, ''), account_id, created_at, updated_at
		FROM platform_integrations
		WHERE project_id = $1 AND platform = $2
	`
	rows, err := r.db.QueryContext(ctx, query, projectID, string(platform))
	if err != nil {
		log.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var integrations []*models.PlatformIntegration
	for rows.Next() {
		var pi models.PlatformIntegration
		err := rows.Scan(&pi.ID, &pi.ProjectID, &pi.Platform, &pi.AccessToken, &pi.AccountID, &pi.CreatedAt, &pi.UpdatedAt)
		if err != nil {
			log.Info(err.Error())
			return nil, err
		}
		integrations = append(integrations, &pi)
	}

	if err := rows.Err(); err != nil {
		log.Info(err.Error())
		return nil, err
	}

	return integrations, nil
}
