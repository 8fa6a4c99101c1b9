package engine

import (
	"strings"
	"time"
	"unicode/utf8"

	conflicterrors "roomdesk/internal/conflicts/errors"
	"roomdesk/pkg/model"
)

const MinRejectionReasonLength = 5

// Decision carries who resolves a group and when. Both are applied to every
// booking touched by the resolution.
type Decision struct {
	ResolverID string
	At         time.Time
}

// ResolveByApproval approves chosenBookingID and rejects every other pending
// member with reason, stored as supplied. Nothing in the group changes unless the whole
// resolution succeeds.
func ResolveByApproval(group *model.ConflictGroup, chosenBookingID, reason string, d Decision) (*model.ResolutionResult, error) {
	if err := checkResolvable(group, d); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return nil, conflicterrors.Validation("rejection_reason", "a rejection reason is required")
	}
	if utf8.RuneCountInString(trimmed) < MinRejectionReasonLength {
		return nil, conflicterrors.Validation("rejection_reason",
			"rejection reason must be at least %d characters", MinRejectionReasonLength)
	}

	chosenBookingID = strings.TrimSpace(chosenBookingID)
	chosen := group.Member(chosenBookingID)
	if chosen == nil {
		return nil, conflicterrors.Validation("chosen_booking_id",
			"booking %q is not a member of conflict %s", chosenBookingID, group.ConflictID)
	}
	if !chosen.IsPending() {
		return nil, conflicterrors.Validation("chosen_booking_id",
			"booking %s is %s, only pending bookings can be approved", chosen.ID, chosen.Status)
	}

	staged := make([]*model.Booking, len(group.Members))
	updated := make([]*model.Booking, 0, len(group.Members))
	for i, m := range group.Members {
		c := m.Clone()
		staged[i] = c
		switch {
		case c.ID == chosen.ID:
			approve(c, d)
			updated = append(updated, c)
		case c.IsPending():
			reject(c, reason, d)
			updated = append(updated, c)
		case c.Status == model.StatusApproved:
			return nil, conflicterrors.ConcurrentModification(
				"booking %s in conflict %s was approved by someone else", c.ID, group.ConflictID)
		}
	}

	return commit(group, staged, updated, d), nil
}

// ResolveByRejectAll rejects every pending member of the group with reason.
func ResolveByRejectAll(group *model.ConflictGroup, reason string, d Decision) (*model.ResolutionResult, error) {
	if err := checkResolvable(group, d); err != nil {
		return nil, err
	}

	if strings.TrimSpace(reason) == "" {
		return nil, conflicterrors.Validation("rejection_reason", "a rejection reason is required")
	}

	staged := make([]*model.Booking, len(group.Members))
	updated := make([]*model.Booking, 0, len(group.Members))
	for i, m := range group.Members {
		c := m.Clone()
		staged[i] = c
		if c.IsPending() {
			reject(c, reason, d)
			updated = append(updated, c)
		}
	}

	return commit(group, staged, updated, d), nil
}

func checkResolvable(group *model.ConflictGroup, d Decision) error {
	if group == nil {
		return conflicterrors.Validation("conflict_id", "conflict group is required")
	}
	if group.Resolved || group.PendingCount() == 0 {
		return conflicterrors.AlreadyResolved(group.ConflictID)
	}
	if strings.TrimSpace(d.ResolverID) == "" {
		return conflicterrors.Validation("resolver_id", "resolver is required")
	}
	if d.At.IsZero() {
		return conflicterrors.Validation("resolved_at", "resolution time is required")
	}
	return nil
}

func approve(b *model.Booking, d Decision) {
	at := d.At
	b.Status = model.StatusApproved
	b.ApproverID = d.ResolverID
	b.DecidedAt = &at
	b.RejectionReason = ""
}

func reject(b *model.Booking, reason string, d Decision) {
	at := d.At
	b.Status = model.StatusRejected
	b.ApproverID = d.ResolverID
	b.DecidedAt = &at
	b.RejectionReason = reason
}

func commit(group *model.ConflictGroup, staged, updated []*model.Booking, d Decision) *model.ResolutionResult {
	at := d.At
	group.Members = staged
	group.Resolved = true
	group.ResolverID = d.ResolverID
	group.ResolvedAt = &at

	return &model.ResolutionResult{
		ConflictID:      group.ConflictID,
		UpdatedBookings: updated,
		ResolvedAt:      at,
		ResolverID:      d.ResolverID,
	}
}
