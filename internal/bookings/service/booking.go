package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	bookingserrors "roomdesk/internal/bookings/errors"
	"roomdesk/internal/bookings/repository"
	"roomdesk/internal/bookings/validator"
	"roomdesk/internal/events"
	"roomdesk/pkg/config"
	apperrors "roomdesk/pkg/errors"
	"roomdesk/pkg/middleware"
	"roomdesk/pkg/model"
	"roomdesk/pkg/query"
	"roomdesk/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	SortStart   = "start"
	SortCreated = "created"
	SortTitle   = "title"
)

// ListQuery holds the list endpoint filters. Sort is one of start, created or
// title, optionally prefixed with '-' for descending order.
type ListQuery struct {
	Status      model.BookingStatus
	RequesterID string
	Text        string
	Sort        string
	Limit       int
	Offset      int64
}

type BookingService interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetAll(ctx context.Context, q ListQuery) ([]*model.Booking, int64, error)
	SearchByResource(ctx context.Context, resourceID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, int64, error)
	Update(ctx context.Context, id string, updates *model.BookingUpdate, actor middleware.Actor) (*model.Booking, error)
	Decide(ctx context.Context, id string, decision *model.BookingDecision, approverID string) (*model.Booking, error)
	Cancel(ctx context.Context, id string, actor middleware.Actor) (*model.Booking, error)
	Delete(ctx context.Context, id string) error
}

type bookingService struct {
	repo      repository.BookingRepository
	validator *validator.BookingValidator
	publisher events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, booking *model.Booking) error {
	booking.ID = ""
	booking.Status = model.StatusPending
	booking.RejectionReason = ""
	booking.ApproverID = ""
	booking.DecidedAt = nil
	booking.Version = 1
	booking.CreatedAt = s.timestamp()
	s.sanitize(booking)

	if err := s.validator.ValidateNew(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "resource_id", booking.ResourceID, "error", err)
		return validationError("Booking validation failed", err)
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		s.cfg.Log.Error("Failed to create booking", "resource_id", booking.ResourceID, "error", err)
		return apperrors.Internal("Failed to create booking", err)
	}

	s.publish(ctx, events.TypeBookingCreated, booking.RequesterID, booking.CreatedAt, events.BookingEvent{Booking: booking}, booking)

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"resource_id", booking.ResourceID,
		"requester_id", booking.RequesterID,
		"start_time", booking.StartTime,
	)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(id, err)
	}

	return booking, nil
}

// GetAll filters, sorts and pages the most recent bookings in memory.
func (s *bookingService) GetAll(ctx context.Context, q ListQuery) ([]*model.Booking, int64, error) {
	pipeline, err := listPipeline(q)
	if err != nil {
		return nil, 0, err
	}

	bookings, err := s.repo.FindRecent(ctx, repository.MaxListScan)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve bookings", err)
	}
	if len(bookings) == repository.MaxListScan {
		s.cfg.Log.Warn("Booking list scan hit its limit, older bookings are not listed", "limit", repository.MaxListScan)
	}

	page, total := pipeline.Page(bookings, q.Limit, q.Offset)
	return page, total, nil
}

func listPipeline(q ListQuery) (*query.Pipeline[*model.Booking], error) {
	p := query.New[*model.Booking]()

	if q.Status != "" {
		if !validStatus(q.Status) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("unknown status filter: %s", q.Status))
		}
		p.Where(func(b *model.Booking) bool { return b.Status == q.Status })
	}
	if requester := strings.TrimSpace(q.RequesterID); requester != "" {
		p.Where(func(b *model.Booking) bool { return b.RequesterID == requester })
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		p.Where(func(b *model.Booking) bool {
			return query.ContainsFold(text, b.Title, b.Justification, b.Notes, b.ResourceID)
		})
	}

	sortKey := strings.TrimSpace(q.Sort)
	descending := strings.HasPrefix(sortKey, "-")
	sortKey = strings.TrimPrefix(sortKey, "-")
	if sortKey == "" {
		sortKey = SortStart
	}

	var primary query.Comparator[*model.Booking]
	switch sortKey {
	case SortStart:
		primary = byStart
	case SortCreated:
		primary = byCreated
	case SortTitle:
		primary = byTitle
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown sort key: %s", q.Sort))
	}
	if descending {
		primary = query.Desc(primary)
	}

	return p.OrderBy(primary).OrderBy(byCreated).OrderBy(byID), nil
}

func byStart(a, b *model.Booking) int   { return a.StartTime.Compare(b.StartTime) }
func byCreated(a, b *model.Booking) int { return a.CreatedAt.Compare(b.CreatedAt) }
func byID(a, b *model.Booking) int      { return strings.Compare(a.ID, b.ID) }

func byTitle(a, b *model.Booking) int {
	return strings.Compare(sanitizer.NormalizeForComparison(a.Title), sanitizer.NormalizeForComparison(b.Title))
}

func validStatus(status model.BookingStatus) bool {
	switch status {
	case model.StatusPending, model.StatusApproved, model.StatusRejected, model.StatusCancelled:
		return true
	}
	return false
}

func (s *bookingService) SearchByResource(ctx context.Context, resourceID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, int64, error) {
	resourceID = sanitizer.SanitizeIdentifier(resourceID)
	if resourceID == "" {
		return nil, 0, apperrors.InvalidInput("resource_id is required")
	}
	if startTime != nil && endTime != nil && !startTime.Before(*endTime) {
		return nil, 0, apperrors.InvalidInput("start_time must be before end_time")
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountByResource(ctx, resourceID, startTime, endTime)
		if err != nil {
			s.cfg.Log.Error("Failed to count bookings by resource", "resource_id", resourceID, "error", err)
			errCount = apperrors.Internal("Failed to count bookings", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		bookings, err = s.repo.FindByResource(ctx, resourceID, startTime, endTime, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to search bookings",
				"resource_id", resourceID,
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to search bookings", err)
		}
	}()

	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	s.cfg.Log.Debug("Booking search completed",
		"resource_id", resourceID,
		"count", len(bookings),
		"total_count", count,
	)
	return bookings, count, nil
}

// Update lets the requester (or a reviewer) edit a booking that is still
// pending.
func (s *bookingService) Update(ctx context.Context, id string, updates *model.BookingUpdate, actor middleware.Actor) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	if updates == nil {
		return nil, apperrors.InvalidInput("Update body is required")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(id, err)
	}
	if existing.RequesterID != actor.ID && !actor.Privileged() {
		return nil, apperrors.Forbidden("only the requester or a reviewer may edit this booking")
	}
	if existing.Status != model.StatusPending {
		return nil, apperrors.Conflict(fmt.Sprintf("Booking is %s and can no longer be edited", existing.Status))
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Booking update validation failed", "id", id, "error", err)
		return nil, validationError("Invalid update input", err)
	}

	merged := mergeBookingUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validator.Validate(merged); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "id", id, "error", err)
		return nil, validationError("Booking validation failed", err)
	}

	if err := s.repo.Update(ctx, merged); err != nil {
		return nil, s.writeError("update", id, err)
	}
	merged.Version++

	s.cfg.Log.Info("Booking updated successfully", "id", id, "version", merged.Version)
	return merged, nil
}

// Decide approves or rejects a single booking outside conflict resolution.
// Approval is refused while another pending booking overlaps (that is a
// conflict to resolve) or an approved booking already holds the slot.
func (s *bookingService) Decide(ctx context.Context, id string, decision *model.BookingDecision, approverID string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	if strings.TrimSpace(approverID) == "" {
		return nil, apperrors.Validation("Approver is required", map[string]any{"field": "approver_id"})
	}
	if err := s.validator.ValidateDecision(decision); err != nil {
		s.cfg.Log.Warn("Booking decision validation failed", "id", id, "error", err)
		return nil, validationError("Invalid decision", err)
	}

	var decided *model.Booking
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		existing, err := s.repo.FindByID(sessCtx, id)
		if err != nil {
			return s.lookupError(id, err)
		}
		if existing.Status != model.StatusPending {
			return apperrors.Conflict(fmt.Sprintf("Booking is already %s", existing.Status))
		}

		if decision.Decision == model.DecisionApprove {
			if err := s.checkSlotFree(sessCtx, existing); err != nil {
				return err
			}
		}

		decided = existing.Clone()
		at := s.timestamp()
		decided.ApproverID = approverID
		decided.DecidedAt = &at
		if decision.Decision == model.DecisionApprove {
			decided.Status = model.StatusApproved
			decided.RejectionReason = ""
		} else {
			decided.Status = model.StatusRejected
			decided.RejectionReason = decision.Reason
		}

		if err := s.repo.UpdateStatus(sessCtx, decided, model.StatusPending); err != nil {
			return s.writeError("decide", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	decided.Version++

	s.publish(ctx, events.TypeBookingDecided, approverID, *decided.DecidedAt,
		events.BookingDecidedEvent{Booking: decided, Decision: decided.Status}, decided)

	s.cfg.Log.Info("Booking decided",
		"id", id,
		"resource_id", decided.ResourceID,
		"status", decided.Status,
		"approver_id", approverID,
	)
	return decided, nil
}

func (s *bookingService) checkSlotFree(ctx context.Context, booking *model.Booking) error {
	overlapping, err := s.repo.FindOverlapping(ctx, booking, model.StatusPending, model.StatusApproved)
	if err != nil {
		return apperrors.Internal("Failed to check overlapping bookings", err)
	}

	for _, other := range overlapping {
		if !booking.Overlaps(other) {
			continue
		}
		if other.Status == model.StatusApproved {
			return apperrors.Conflict(fmt.Sprintf(
				"Booking overlaps approved booking %s (%s - %s)",
				other.ID,
				other.StartTime.Format(time.RFC3339),
				other.EndTime.Format(time.RFC3339),
			))
		}
		return apperrors.Conflict(fmt.Sprintf(
			"Booking is in conflict with pending booking %s, resolve the conflict instead", other.ID,
		)).WithDetails(map[string]any{"conflicting_id": other.ID})
	}
	return nil
}

// Cancel withdraws a booking. Reviewers may cancel pending or approved
// bookings; a requester may only withdraw their own pending request.
func (s *bookingService) Cancel(ctx context.Context, id string, actor middleware.Actor) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(id, err)
	}

	if !actor.Privileged() {
		if existing.RequesterID != actor.ID {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if existing.Status != model.StatusPending {
			return nil, apperrors.Forbidden("only a reviewer may cancel an approved booking")
		}
	}
	if !model.CanTransition(existing.Status, model.StatusCancelled) {
		return nil, apperrors.Conflict(fmt.Sprintf("Booking is %s and cannot be cancelled", existing.Status))
	}

	cancelled := existing.Clone()
	at := s.timestamp()
	cancelled.Status = model.StatusCancelled
	cancelled.ApproverID = actor.ID
	cancelled.DecidedAt = &at
	cancelled.RejectionReason = ""

	if err := s.repo.UpdateStatus(ctx, cancelled, existing.Status); err != nil {
		return nil, s.writeError("cancel", id, err)
	}
	cancelled.Version++

	s.publish(ctx, events.TypeBookingCancelled, actor.ID, at, events.BookingEvent{Booking: cancelled}, cancelled)

	s.cfg.Log.Info("Booking cancelled", "id", id, "previous_status", existing.Status, "actor_id", actor.ID)
	return cancelled, nil
}

func (s *bookingService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) || errors.Is(err, bookingserrors.ErrInvalidID) {
			return s.lookupError(id, err)
		}
		s.cfg.Log.Error("Failed to delete booking", "id", id, "error", err)
		return apperrors.Internal("Failed to delete booking", err)
	}

	s.cfg.Log.Info("Booking deleted successfully", "id", id)
	return nil
}

// --- Helpers ---

func (s *bookingService) sanitize(b *model.Booking) {
	b.ResourceID = sanitizer.SanitizeIdentifier(b.ResourceID)
	b.RequesterID = sanitizer.SanitizeIdentifier(b.RequesterID)
	b.RecurrenceGroupID = sanitizer.SanitizeIdentifier(b.RecurrenceGroupID)
	b.Title = sanitizer.SanitizeTitle(b.Title)
	b.Justification = sanitizer.SanitizeText(b.Justification)
	b.Notes = sanitizer.SanitizeText(b.Notes)
	if b.RequestedResources != nil {
		b.RequestedResources = sanitizer.NormalizeIdentifiers(b.RequestedResources)
		if len(b.RequestedResources) == 0 {
			b.RequestedResources = nil
		}
	}
	b.StartTime = b.StartTime.UTC().Truncate(time.Millisecond)
	b.EndTime = b.EndTime.UTC().Truncate(time.Millisecond)
}

func mergeBookingUpdates(existing *model.Booking, updates *model.BookingUpdate) *model.Booking {
	merged := existing.Clone()

	if updates.Title != "" {
		merged.Title = updates.Title
	}
	if updates.Justification != "" {
		merged.Justification = updates.Justification
	}
	if updates.Notes != nil {
		merged.Notes = *updates.Notes
	}
	if updates.StartTime != nil {
		merged.StartTime = *updates.StartTime
	}
	if updates.EndTime != nil {
		merged.EndTime = *updates.EndTime
	}
	if updates.RequestedResources != nil {
		merged.RequestedResources = append([]string(nil), (*updates.RequestedResources)...)
	}

	return merged
}

func (s *bookingService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *bookingService) publish(ctx context.Context, eventType, actorID string, at time.Time, payload any, booking *model.Booking) {
	events.PublishBestEffort(ctx, s.publisher, s.cfg.Log, events.Event{
		Type:          eventType,
		Key:           booking.ResourceID,
		ActorID:       actorID,
		CorrelationID: middleware.RequestIDFromContext(ctx),
		OccurredAt:    at,
		Payload:       payload,
	})
}

func (s *bookingService) lookupError(id string, err error) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	default:
		s.cfg.Log.Error("Failed to retrieve booking", "id", id, "error", err)
		return apperrors.Internal("Failed to retrieve booking", err)
	}
}

func (s *bookingService) writeError(op, id string, err error) error {
	switch {
	case errors.Is(err, bookingserrors.ErrVersionMismatch):
		s.cfg.Log.Warn("Booking changed concurrently", "operation", op, "id", id)
		return apperrors.ConcurrentModification(
			fmt.Sprintf("Booking %s changed since it was read, refresh and try again", id), err)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	default:
		s.cfg.Log.Error("Failed to write booking", "operation", op, "id", id, "error", err)
		return apperrors.Internal(fmt.Sprintf("Failed to %s booking", op), err)
	}
}

func validationError(message string, err error) *apperrors.AppError {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		return apperrors.Validation(message, map[string]any{"errors": []validator.ValidationError(errs)})
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
