package repository

import (
	"context"
	"fmt"

	"roomdesk/pkg/config"
	mongotx "roomdesk/pkg/db/mongo"
	"roomdesk/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

type AuditRepository interface {
	// Insert stores entry and reports false when an entry with the same
	// event id already exists.
	Insert(ctx context.Context, entry *model.AuditEntry) (bool, error)
}

type mongoAuditRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAuditRepository(cfg *config.Config) AuditRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAuditRepository{
		cfg:        cfg,
		collection: db.Collection(mongotx.CollectionAuditLog),
	}
}

func (r *mongoAuditRepository) Insert(ctx context.Context, entry *model.AuditEntry) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return true, nil
}
