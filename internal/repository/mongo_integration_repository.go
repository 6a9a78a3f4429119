package repository

import (
	"context"
	"time"

	"github.com/maheshrc27/content-publisher/internal/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type integrationDocument struct {
	ID          string          `bson:"_id"`
	ProjectID   string          `bson:"project_id"`
	Platform    models.Platform `bson:"platform"`
	AccessToken string          `bson:"access_token"`
	AccountID   string          `bson:"account_id"`
	CreatedAt   time.Time       `bson:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at"`
}

type mongoIntegrationRepository struct {
	db *mongo.Database
}

func NewMongoIntegrationRepository(db *mongo.Database) IntegrationRepository {
	return &mongoIntegrationRepository{db: db}
}

func (r *mongoIntegrationRepository) ListByProjectPlatform(ctx context.Context, projectID string, platform models.Platform) ([]*models.PlatformIntegration, error) {
	cursor, err := r.db.Collection(integrationCollection).Find(ctx, bson.M{
		"project_id": projectID,
		"platform":   platform,
	})
	if err != nil {
		log.Info(err.Error())
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []integrationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		log.Info(err.Error())
		return nil, err
	}

	integrations := make([]*models.PlatformIntegration, 0, len(docs))
	for _, d := range docs {
		integrations = append(integrations, &models.PlatformIntegration{
			ID:          d.ID,
			ProjectID:   d.ProjectID,
			Platform:    d.Platform,
			AccessToken: d.AccessToken,
			AccountID:   d.AccountID,
			CreatedAt:   d.CreatedAt,
			UpdatedAt:   d.UpdatedAt,
		})
	}
	return integrations, nil
}
