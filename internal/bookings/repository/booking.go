package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "roomdesk/internal/bookings/errors"
	"roomdesk/pkg/config"
	mongotx "roomdesk/pkg/db/mongo"
	"roomdesk/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxListScan bounds how many bookings one list request loads before the
// in-memory filters run.
const MaxListScan = 2000

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindRecent(ctx context.Context, limit int) ([]*model.Booking, error)
	FindByResource(ctx context.Context, resourceID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, error)
	CountByResource(ctx context.Context, resourceID string, startTime, endTime *time.Time) (int64, error)
	FindOverlapping(ctx context.Context, booking *model.Booking, statuses ...model.BookingStatus) ([]*model.Booking, error)
	Update(ctx context.Context, booking *model.Booking) error
	UpdateStatus(ctx context.Context, booking *model.Booking, from model.BookingStatus) error
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(mongotx.CollectionBookings),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

// FindRecent returns up to limit bookings, newest submission first.
func (r *mongoBookingRepository) FindRecent(ctx context.Context, limit int) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	return r.find(ctx, bson.M{}, opts)
}

func (r *mongoBookingRepository) FindByResource(
	ctx context.Context,
	resourceID string,
	startTime, endTime *time.Time,
	limit int, offset int64,
) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}})

	return r.find(ctx, buildResourceFilter(resourceID, startTime, endTime), opts)
}

func (r *mongoBookingRepository) CountByResource(ctx context.Context, resourceID string, startTime, endTime *time.Time) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildResourceFilter(resourceID, startTime, endTime))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings by resource: %w", err)
	}
	return count, nil
}

// FindOverlapping returns bookings on the same resource whose interval
// intersects booking's, excluding booking itself.
func (r *mongoBookingRepository) FindOverlapping(ctx context.Context, booking *model.Booking, statuses ...model.BookingStatus) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := buildResourceFilter(booking.ResourceID, &booking.StartTime, &booking.EndTime)
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	if objectID, err := primitive.ObjectIDFromHex(booking.ID); err == nil {
		filter["_id"] = bson.M{"$ne": objectID}
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	return r.find(ctx, filter, opts)
}

// Update rewrites the editable fields of a pending booking, conditioned on the
// version it was read with.
func (r *mongoBookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(booking.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, booking.ID)
	}

	filter := bson.M{
		"_id":     objectID,
		"status":  model.StatusPending,
		"version": booking.Version,
	}
	set := bson.M{
		"title":         booking.Title,
		"justification": booking.Justification,
		"start_time":    booking.StartTime,
		"end_time":      booking.EndTime,
	}
	unset := bson.M{}
	if booking.Notes != "" {
		set["notes"] = booking.Notes
	} else {
		unset["notes"] = ""
	}
	if len(booking.RequestedResources) > 0 {
		set["requested_resources"] = booking.RequestedResources
	} else {
		unset["requested_resources"] = ""
	}

	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	return r.conditionalUpdate(ctx, filter, update)
}

// UpdateStatus records a decision or cancellation. The write only applies
// while the booking is still in status from at the version it was read with.
func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, booking *model.Booking, from model.BookingStatus) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(booking.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, booking.ID)
	}

	filter := bson.M{
		"_id":     objectID,
		"status":  from,
		"version": booking.Version,
	}
	set := bson.M{
		"status":      booking.Status,
		"approver_id": booking.ApproverID,
		"decided_at":  booking.DecidedAt,
	}
	update := bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	}
	if booking.RejectionReason != "" {
		set["rejection_reason"] = booking.RejectionReason
	} else {
		update["$unset"] = bson.M{"rejection_reason": ""}
	}

	return r.conditionalUpdate(ctx, filter, update)
}

func (r *mongoBookingRepository) conditionalUpdate(ctx context.Context, filter, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrVersionMismatch
	}
	return nil
}

func (r *mongoBookingRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	if result.DeletedCount == 0 {
		return bookingserrors.ErrNotFound
	}

	return nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

// buildResourceFilter selects bookings on resourceID whose interval
// intersects [startTime, endTime). Either bound may be open.
func buildResourceFilter(resourceID string, startTime, endTime *time.Time) bson.M {
	filter := bson.M{"resource_id": resourceID}

	if startTime != nil {
		filter["end_time"] = bson.M{"$gt": *startTime}
	}
	if endTime != nil {
		filter["start_time"] = bson.M{"$lt": *endTime}
	}

	return filter
}
