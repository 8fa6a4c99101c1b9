package model

import "time"

type ResolutionAction string

const (
	ActionApprove   ResolutionAction = "approve"
	ActionRejectAll ResolutionAction = "rejectAll"
)

// ConflictGroup is a maximal set of pending bookings on one resource that are
// connected through pairwise overlaps. Members are ordered oldest submission first.
type ConflictGroup struct {
	ConflictID       string     `json:"conflict_id"`
	ResourceID       string     `json:"resource_id"`
	Members          []*Booking `json:"members"`
	MemberCount      int        `json:"member_count"`
	FirstRequestedID string     `json:"first_requested_id"`
	WindowStart      time.Time  `json:"window_start"`
	WindowEnd        time.Time  `json:"window_end"`
	Resolved         bool       `json:"resolved"`
	ResolverID       string     `json:"resolver_id,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
}

// PendingCount returns the number of members still awaiting a decision.
func (g *ConflictGroup) PendingCount() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, m := range g.Members {
		if m.IsPending() {
			n++
		}
	}
	return n
}

// IsActive reports whether the group still needs an operator decision.
func (g *ConflictGroup) IsActive() bool {
	return g != nil && !g.Resolved && g.PendingCount() >= 2
}

func (g *ConflictGroup) Member(id string) *Booking {
	if g == nil {
		return nil
	}
	for _, m := range g.Members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

type GroupingResult struct {
	Groups          []*ConflictGroup `json:"groups"`
	WithoutConflict []*Booking       `json:"without_conflict"`
}

type ResolutionCommand struct {
	ConflictID      string           `json:"conflict_id" validate:"required,max=128"`
	ResourceID      string           `json:"resource_id,omitempty" validate:"omitempty,max=64"`
	Action          ResolutionAction `json:"action" validate:"required,resolution_action"`
	ChosenBookingID string           `json:"chosen_booking_id,omitempty" validate:"required_if=Action approve,omitempty,max=64"`
	RejectionReason string           `json:"rejection_reason" validate:"required,rejection_reason"`
}

type ResolutionResult struct {
	ConflictID      string     `json:"conflict_id"`
	UpdatedBookings []*Booking `json:"updated_bookings"`
	ResolvedAt      time.Time  `json:"resolved_at"`
	ResolverID      string     `json:"resolver_id"`
}

// ConflictResolution is the persisted trace of a resolved group, kept so that
// resolved groups can still be reported once their members left pending.
type ConflictResolution struct {
	ConflictID       string           `json:"conflict_id" bson:"_id"`
	ResourceID       string           `json:"resource_id" bson:"resource_id"`
	Action           ResolutionAction `json:"action" bson:"action"`
	MemberIDs        []string         `json:"member_ids" bson:"member_ids"`
	ApprovedID       string           `json:"approved_id,omitempty" bson:"approved_id,omitempty"`
	RejectionReason  string           `json:"rejection_reason" bson:"rejection_reason"`
	ResolverID       string           `json:"resolver_id" bson:"resolver_id"`
	ResolvedAt       time.Time        `json:"resolved_at" bson:"resolved_at"`
	FirstRequestedID string           `json:"first_requested_id,omitempty" bson:"first_requested_id,omitempty"`
}

type ConflictStats struct {
	PendingConflictGroups int `json:"pending_conflict_groups"`
	BookingsInConflict    int `json:"bookings_in_conflict"`
	ResolvedToday         int `json:"resolved_today"`
	WithoutConflict       int `json:"without_conflict"`
}
