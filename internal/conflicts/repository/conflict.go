package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	conflicterrors "roomdesk/internal/conflicts/errors"
	"roomdesk/pkg/config"
	mongotx "roomdesk/pkg/db/mongo"
	"roomdesk/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// maxPendingScan bounds how many pending bookings one grouping pass loads.
const maxPendingScan = 5000

// ErrTooManyPending is returned when a grouping pass would exceed
// maxPendingScan. Grouping a truncated set would report false non-conflicts.
var ErrTooManyPending = errors.New("pending bookings exceed grouping limit")

type ConflictRepository interface {
	FindPending(ctx context.Context, resourceID string) ([]*model.Booking, error)
	ApplyResolution(ctx context.Context, updated []*model.Booking) error
	SaveResolution(ctx context.Context, resolution *model.ConflictResolution) error
	FindResolution(ctx context.Context, conflictID string) (*model.ConflictResolution, error)
	FindResolvedBetween(ctx context.Context, from, to time.Time) ([]*model.ConflictResolution, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoConflictRepository struct {
	cfg         *config.Config
	bookings    *mongo.Collection
	resolutions *mongo.Collection
	txManager   mongotx.TransactionManager
}

func NewMongoConflictRepository(cfg *config.Config) ConflictRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoConflictRepository{
		cfg:         cfg,
		bookings:    db.Collection(mongotx.CollectionBookings),
		resolutions: db.Collection(mongotx.CollectionConflictResolutions),
		txManager:   mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// FindPending loads pending bookings, optionally restricted to one resource.
// Results come in submission order so that grouping ties resolve the same way
// on every call.
func (r *mongoConflictRepository) FindPending(ctx context.Context, resourceID string) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"status": model.StatusPending}
	if resourceID != "" {
		filter["resource_id"] = resourceID
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(maxPendingScan + 1)

	cursor, err := r.bookings.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode pending bookings: %w", err)
	}
	return checkPendingScan(bookings, maxPendingScan)
}

func checkPendingScan(bookings []*model.Booking, limit int) ([]*model.Booking, error) {
	if len(bookings) > limit {
		return nil, fmt.Errorf("%w: more than %d pending", ErrTooManyPending, limit)
	}
	return bookings, nil
}

// ApplyResolution writes every updated booking conditioned on it still being
// pending at the version it was read with. The first mismatch stops the
// writes with a ConcurrentModificationError; callers run this inside a
// transaction so earlier writes roll back. The in-memory versions are left
// alone because the transaction may be retried.
func (r *mongoConflictRepository) ApplyResolution(ctx context.Context, updated []*model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	for _, b := range updated {
		objectID, err := primitive.ObjectIDFromHex(b.ID)
		if err != nil {
			return conflicterrors.Validation("id", "invalid booking id %q", b.ID)
		}

		filter := bson.M{
			"_id":     objectID,
			"status":  model.StatusPending,
			"version": b.Version,
		}
		set := bson.M{
			"status":      b.Status,
			"approver_id": b.ApproverID,
			"decided_at":  b.DecidedAt,
		}
		update := bson.M{
			"$set": set,
			"$inc": bson.M{"version": 1},
		}
		if b.RejectionReason != "" {
			set["rejection_reason"] = b.RejectionReason
		} else {
			update["$unset"] = bson.M{"rejection_reason": ""}
		}

		result, err := r.bookings.UpdateOne(ctx, filter, update)
		if err != nil {
			return fmt.Errorf("failed to update booking %s: %w", b.ID, err)
		}
		if result.MatchedCount == 0 {
			return conflicterrors.ConcurrentModification(
				"booking %s changed since it was read, refresh and try again", b.ID)
		}
	}
	return nil
}

// SaveResolution records a resolved group. A second record for the same
// conflict id means another resolver got there first.
func (r *mongoConflictRepository) SaveResolution(ctx context.Context, resolution *model.ConflictResolution) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.resolutions.InsertOne(ctx, resolution); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return conflicterrors.AlreadyResolved(resolution.ConflictID)
		}
		return fmt.Errorf("failed to save resolution: %w", err)
	}
	return nil
}

func (r *mongoConflictRepository) FindResolution(ctx context.Context, conflictID string) (*model.ConflictResolution, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var resolution model.ConflictResolution
	err := r.resolutions.FindOne(ctx, bson.M{"_id": conflictID}).Decode(&resolution)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, conflicterrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find resolution: %w", err)
	}
	return &resolution, nil
}

func (r *mongoConflictRepository) FindResolvedBetween(ctx context.Context, from, to time.Time) ([]*model.ConflictResolution, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"resolved_at": bson.M{"$gte": from, "$lt": to}}
	opts := options.Find().SetSort(bson.D{{Key: "resolved_at", Value: -1}})

	cursor, err := r.resolutions.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find resolutions: %w", err)
	}
	defer cursor.Close(ctx)

	resolutions := []*model.ConflictResolution{}
	if err = cursor.All(ctx, &resolutions); err != nil {
		return nil, fmt.Errorf("failed to decode resolutions: %w", err)
	}
	return resolutions, nil
}

func (r *mongoConflictRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
