package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"roomdesk/internal/conflicts/engine"
	conflicterrors "roomdesk/internal/conflicts/errors"
	"roomdesk/internal/conflicts/repository"
	"roomdesk/internal/conflicts/validator"
	"roomdesk/internal/events"
	"roomdesk/pkg/config"
	apperrors "roomdesk/pkg/errors"
	"roomdesk/pkg/middleware"
	"roomdesk/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// ListFilter narrows the conflict listing. From/To select groups whose
// window intersects [From, To).
type ListFilter struct {
	ResourceID string
	From       *time.Time
	To         *time.Time
}

type ConflictService interface {
	List(ctx context.Context, filter ListFilter) (*model.GroupingResult, error)
	Resolve(ctx context.Context, cmd *model.ResolutionCommand, resolverID string) (*model.ResolutionResult, error)
	ResolvedOn(ctx context.Context, day time.Time) ([]*model.ConflictResolution, error)
	Stats(ctx context.Context) (*model.ConflictStats, error)
}

type conflictService struct {
	repo      repository.ConflictRepository
	locks     repository.LockRepository
	validator *validator.ResolutionValidator
	publisher events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewConflictService(
	repo repository.ConflictRepository,
	locks repository.LockRepository,
	validator *validator.ResolutionValidator,
	publisher events.Publisher,
	cfg *config.Config,
) ConflictService {
	return &conflictService{
		repo:      repo,
		locks:     locks,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *conflictService) List(ctx context.Context, filter ListFilter) (*model.GroupingResult, error) {
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, apperrors.InvalidInput("from must be before to")
	}

	grouping, err := s.group(ctx, strings.TrimSpace(filter.ResourceID))
	if err != nil {
		return nil, err
	}
	if filter.From == nil && filter.To == nil {
		return grouping, nil
	}

	filtered := &model.GroupingResult{
		Groups:          []*model.ConflictGroup{},
		WithoutConflict: []*model.Booking{},
	}
	for _, g := range grouping.Groups {
		if inWindow(g.WindowStart, g.WindowEnd, filter) {
			filtered.Groups = append(filtered.Groups, g)
		}
	}
	for _, b := range grouping.WithoutConflict {
		if inWindow(b.StartTime, b.EndTime, filter) {
			filtered.WithoutConflict = append(filtered.WithoutConflict, b)
		}
	}
	return filtered, nil
}

func inWindow(start, end time.Time, filter ListFilter) bool {
	if filter.From != nil && !end.After(*filter.From) {
		return false
	}
	if filter.To != nil && !start.Before(*filter.To) {
		return false
	}
	return true
}

// Resolve regroups the current pending bookings, so the group acted on is the
// one that exists now rather than the one the operator saw. The reload covers
// cmd.ResourceID when set and every resource otherwise.
func (s *conflictService) Resolve(ctx context.Context, cmd *model.ResolutionCommand, resolverID string) (*model.ResolutionResult, error) {
	if err := s.validator.Validate(cmd); err != nil {
		s.cfg.Log.Warn("Resolution command rejected", "error", err)
		return nil, conflicterrors.ToAppError(err)
	}
	if strings.TrimSpace(resolverID) == "" {
		return nil, conflicterrors.ToAppError(conflicterrors.Validation("resolver_id", "resolver is required"))
	}

	grouping, err := s.group(ctx, strings.TrimSpace(cmd.ResourceID))
	if err != nil {
		return nil, err
	}

	group := findGroup(grouping, cmd.ConflictID)
	if group == nil {
		return nil, s.missingGroup(ctx, cmd.ConflictID)
	}

	lock, err := s.locks.Acquire(ctx, group.ConflictID, resolverID, s.cfg.ResolutionLockTTL)
	if err != nil {
		if errors.Is(err, repository.ErrLocked) {
			return nil, conflicterrors.ToAppError(conflicterrors.ConcurrentModification(
				"conflict %s is being resolved by another operator", group.ConflictID))
		}
		s.cfg.Log.Error("Failed to acquire resolution lock", "conflict_id", group.ConflictID, "error", err)
		return nil, apperrors.Internal("Failed to lock conflict", err)
	}
	defer s.releaseLock(ctx, lock)

	members := memberIDs(group)
	d := engine.Decision{ResolverID: resolverID, At: s.now().UTC().Truncate(time.Millisecond)}

	var result *model.ResolutionResult
	switch cmd.Action {
	case model.ActionApprove:
		result, err = engine.ResolveByApproval(group, cmd.ChosenBookingID, cmd.RejectionReason, d)
	default:
		result, err = engine.ResolveByRejectAll(group, cmd.RejectionReason, d)
	}
	if err != nil {
		s.cfg.Log.Warn("Conflict resolution refused",
			"conflict_id", group.ConflictID,
			"action", cmd.Action,
			"error", err,
		)
		return nil, conflicterrors.ToAppError(err)
	}

	record := &model.ConflictResolution{
		ConflictID:       group.ConflictID,
		ResourceID:       group.ResourceID,
		Action:           cmd.Action,
		MemberIDs:        members,
		RejectionReason:  cmd.RejectionReason,
		ResolverID:       resolverID,
		ResolvedAt:       result.ResolvedAt,
		FirstRequestedID: group.FirstRequestedID,
	}
	if cmd.Action == model.ActionApprove {
		record.ApprovedID = strings.TrimSpace(cmd.ChosenBookingID)
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.ApplyResolution(sessCtx, result.UpdatedBookings); err != nil {
			return err
		}
		return s.repo.SaveResolution(sessCtx, record)
	})
	if err != nil {
		if _, ok := conflicterrors.KindOf(err); ok {
			s.cfg.Log.Warn("Conflict resolution lost a race", "conflict_id", group.ConflictID, "error", err)
		} else {
			s.cfg.Log.Error("Failed to persist conflict resolution", "conflict_id", group.ConflictID, "error", err)
		}
		return nil, conflicterrors.ToAppError(err)
	}

	for _, b := range result.UpdatedBookings {
		b.Version++
	}

	events.PublishBestEffort(ctx, s.publisher, s.cfg.Log, events.Event{
		Type:          events.TypeConflictResolved,
		Key:           group.ResourceID,
		ActorID:       resolverID,
		CorrelationID: middleware.RequestIDFromContext(ctx),
		OccurredAt:    result.ResolvedAt,
		Payload:       events.ConflictResolvedEvent{Resolution: record, Updated: result.UpdatedBookings},
	})

	s.cfg.Log.Info("Conflict resolved",
		"conflict_id", group.ConflictID,
		"resource_id", group.ResourceID,
		"action", cmd.Action,
		"approved_id", record.ApprovedID,
		"members", len(members),
		"resolver_id", resolverID,
	)
	return result, nil
}

// missingGroup explains why no current group carries conflictID. Ids are
// derived from the member set, so a well-formed id without a resolution record
// means a member changed after the caller read the list.
func (s *conflictService) missingGroup(ctx context.Context, conflictID string) error {
	conflictID = strings.TrimSpace(conflictID)
	if _, err := uuid.Parse(conflictID); err != nil {
		return apperrors.NotFoundWithID("Conflict", conflictID)
	}

	_, err := s.repo.FindResolution(ctx, conflictID)
	switch {
	case err == nil:
		return conflicterrors.ToAppError(conflicterrors.AlreadyResolved(conflictID))
	case errors.Is(err, conflicterrors.ErrNotFound):
		return conflicterrors.ToAppError(conflicterrors.ConcurrentModification(
			"conflict %s changed since it was read, refresh and try again", conflictID))
	default:
		s.cfg.Log.Error("Failed to look up resolution", "conflict_id", conflictID, "error", err)
		return apperrors.Internal("Failed to look up conflict", err)
	}
}

func (s *conflictService) releaseLock(ctx context.Context, lock *model.ResolutionLock) {
	if err := s.locks.Release(context.WithoutCancel(ctx), lock); err != nil {
		s.cfg.Log.Warn("Failed to release resolution lock, it will expire",
			"conflict_id", lock.ID,
			"expires_at", lock.ExpiresAt,
			"error", err,
		)
	}
}

func (s *conflictService) ResolvedOn(ctx context.Context, day time.Time) ([]*model.ConflictResolution, error) {
	if day.IsZero() {
		day = s.now()
	}
	from, to := engine.DayBounds(day, s.cfg.Location)

	resolutions, err := s.repo.FindResolvedBetween(ctx, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to list resolutions", "from", from, "to", to, "error", err)
		return nil, apperrors.Internal("Failed to list resolutions", err)
	}
	return resolutions, nil
}

func (s *conflictService) Stats(ctx context.Context) (*model.ConflictStats, error) {
	now := s.now()
	grouping, err := s.group(ctx, "")
	if err != nil {
		return nil, err
	}

	from, to := engine.DayBounds(now, s.cfg.Location)
	resolutions, err := s.repo.FindResolvedBetween(ctx, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to load today's resolutions", "error", err)
		return nil, apperrors.Internal("Failed to compute statistics", err)
	}

	stats := engine.Aggregate(grouping, resolutions, now, s.cfg.Location)
	return &stats, nil
}

func (s *conflictService) group(ctx context.Context, resourceID string) (*model.GroupingResult, error) {
	pending, err := s.repo.FindPending(ctx, resourceID)
	if errors.Is(err, repository.ErrTooManyPending) {
		s.cfg.Log.Error("Pending backlog exceeds grouping limit", "resource_id", resourceID, "error", err)
		return nil, apperrors.Internal("Too many pending bookings to group, narrow the request to one resource", err)
	}
	if err != nil {
		s.cfg.Log.Error("Failed to load pending bookings", "resource_id", resourceID, "error", err)
		return nil, apperrors.Internal("Failed to load pending bookings", err)
	}

	grouping, err := engine.Group(pending)
	if err != nil {
		// Stored bookings passed validation on write, so this is corrupt data.
		s.cfg.Log.Error("Pending bookings failed grouping", "resource_id", resourceID, "error", err)
		return nil, apperrors.Internal("Stored bookings are inconsistent", err)
	}
	return grouping, nil
}

func findGroup(grouping *model.GroupingResult, conflictID string) *model.ConflictGroup {
	conflictID = strings.TrimSpace(conflictID)
	for _, g := range grouping.Groups {
		if g.ConflictID == conflictID {
			return g
		}
	}
	return nil
}

func memberIDs(group *model.ConflictGroup) []string {
	ids := make([]string, len(group.Members))
	for i, m := range group.Members {
		ids[i] = m.ID
	}
	return ids
}
