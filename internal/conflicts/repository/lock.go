package repository

import (
	"context"
	"errors"
	"time"

	"roomdesk/pkg/config"
	mongotx "roomdesk/pkg/db/mongo"
	"roomdesk/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrLocked = errors.New("resolution lock is held by another resolver")

// LockRepository manages advisory resolution locks. Expired locks are
// removed by a TTL index and also reclaimed eagerly on acquire.
type LockRepository interface {
	Acquire(ctx context.Context, conflictID, ownerID string, ttl time.Duration) (*model.ResolutionLock, error)
	Release(ctx context.Context, lock *model.ResolutionLock) error
}

type mongoLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoLockRepository(cfg *config.Config) LockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLockRepository{
		cfg:        cfg,
		collection: db.Collection(mongotx.CollectionResolutionLocks),
		now:        time.Now,
	}
}

func (r *mongoLockRepository) Acquire(ctx context.Context, conflictID, ownerID string, ttl time.Duration) (*model.ResolutionLock, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := r.now().UTC().Truncate(time.Millisecond)
	lock := &model.ResolutionLock{
		ID:        conflictID,
		OwnerID:   ownerID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err == nil {
		return lock, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, err
	}

	// The TTL monitor runs about once a minute; take over a lock that has
	// already expired instead of waiting for it.
	result, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": conflictID, "expires_at": bson.M{"$lte": now}},
		lock,
	)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, ErrLocked
	}
	return lock, nil
}

// Release deletes the lock only if it is still owned by the caller.
func (r *mongoLockRepository) Release(ctx context.Context, lock *model.ResolutionLock) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{
		"_id":        lock.ID,
		"owner_id":   lock.OwnerID,
		"created_at": lock.CreatedAt,
	})
	return err
}
