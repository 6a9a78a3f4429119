package repository

import (
	"context"
	"time"

	"github.com/maheshrc27/content-publisher/internal/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	contentCollection     = "scheduled_content"
	integrationCollection = "platform_integrations"
)

// contentDocument flattens the tenant/project hierarchy onto each item so
// due items can be queried across every project with one index.
type contentDocument struct {
	ID             string               `bson:"_id"`
	TenantID       string               `bson:"tenant_id"`
	ProjectID      string               `bson:"project_id"`
	Platform       models.Platform      `bson:"platform"`
	Body           models.ContentBody   `bson:"body"`
	Status         models.ContentStatus `bson:"status"`
	ScheduledTime  time.Time            `bson:"scheduled_time"`
	ExternalID     string               `bson:"external_id,omitempty"`
	ErrorMessage   string               `bson:"error_message,omitempty"`
	PublishedAt    *time.Time           `bson:"published_at,omitempty"`
	LeaseRunID     string               `bson:"lease_run_id,omitempty"`
	LeaseExpiresAt *time.Time           `bson:"lease_expires_at,omitempty"`
	UpdatedAt      time.Time            `bson:"updated_at"`
}

func (d *contentDocument) toModel() *models.ScheduledContent {
	return &models.ScheduledContent{
		ID:             d.ID,
		TenantID:       d.TenantID,
		ProjectID:      d.ProjectID,
		Platform:       d.Platform,
		Body:           d.Body,
		Status:         d.Status,
		ScheduledTime:  d.ScheduledTime,
		ExternalID:     d.ExternalID,
		ErrorMessage:   d.ErrorMessage,
		PublishedAt:    d.PublishedAt,
		LeaseRunID:     d.LeaseRunID,
		LeaseExpiresAt: d.LeaseExpiresAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type mongoContentRepository struct {
	db *mongo.Database
}

func NewMongoContentRepository(db *mongo.Database) ContentRepository {
	return &mongoContentRepository{db: db}
}

func (r *mongoContentRepository) Ping(ctx context.Context) error {
	if err := r.db.Client().Ping(ctx, readpref.Primary()); err != nil {
		log.Info(err.Error())
		return err
	}
	return nil
}

func (r *mongoContentRepository) ListDue(ctx context.Context, asOf time.Time) ([]*models.ScheduledContent, error) {
	filter := bson.M{
		"status":         models.StatusScheduled,
		"scheduled_time": bson.M{"$lte": asOf},
	}

	cursor, err := r.db.Collection(contentCollection).Find(ctx, filter)
	if err != nil {
		log.Info(err.Error())
		return nil, err
	}
	defer cursor.Close(ctx)

	var items []*models.ScheduledContent
	for cursor.Next(ctx) {
		var doc contentDocument
		if err := cursor.Decode(&doc); err != nil {
			log.Info(err.Error())
			return nil, err
		}
		items = append(items, doc.toModel())
	}

	if err := cursor.Err(); err != nil {
		log.Info(err.Error())
		return nil, err
	}

	return items, nil
}

func (r *mongoContentRepository) Claim(ctx context.Context, id, runID string, now time.Time, ttl time.Duration) (bool, error) {
	filter := bson.M{
		"_id":    id,
		"status": models.StatusScheduled,
		"$or": bson.A{
			bson.M{"lease_expires_at": nil},
			bson.M{"lease_expires_at": bson.M{"$lt": now}},
		},
	}
	update := bson.M{"$set": bson.M{
		"lease_run_id":     runID,
		"lease_expires_at": now.Add(ttl),
		"updated_at":       now,
	}}

	result, err := r.db.Collection(contentCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		log.Info(err.Error())
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

func (r *mongoContentRepository) MarkPublished(ctx context.Context, id, runID, externalID string, publishedAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"status":       models.StatusPublished,
			"external_id":  externalID,
			"published_at": publishedAt,
			"updated_at":   publishedAt,
		},
		"$unset": bson.M{"error_message": "", "lease_expires_at": ""},
	}
	return r.updateOne(ctx, id, runID, update)
}

func (r *mongoContentRepository) MarkFailed(ctx context.Context, id, runID, errorMessage string, at time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"status":        models.StatusFailed,
			"error_message": errorMessage,
			"updated_at":    at,
		},
		"$unset": bson.M{"external_id": "", "published_at": "", "lease_expires_at": ""},
	}
	return r.updateOne(ctx, id, runID, update)
}

func (r *mongoContentRepository) updateOne(ctx context.Context, id, runID string, update bson.M) error {
	filter := bson.M{"_id": id, "lease_run_id": runID}
	result, err := r.db.Collection(contentCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		log.Info(err.Error())
		return err
	}
	if result.MatchedCount != 1 {
		return ErrLeaseLost
	}
	return nil
}
