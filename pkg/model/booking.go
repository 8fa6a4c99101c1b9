package model

import (
	"time"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusApproved  BookingStatus = "approved"
	StatusRejected  BookingStatus = "rejected"
	StatusCancelled BookingStatus = "cancelled"
)

type Booking struct {
	ID                 string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ResourceID         string        `json:"resource_id" bson:"resource_id" validate:"required,min=1,max=64"`
	RequesterID        string        `json:"requester_id" bson:"requester_id" validate:"required,min=1,max=64"`
	Title              string        `json:"title" bson:"title" validate:"required,not_blank,min=2,max=120"`
	Justification      string        `json:"justification" bson:"justification" validate:"required,not_blank,min=5,max=2000"`
	Notes              string        `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=2000"`
	StartTime          time.Time     `json:"start_time" bson:"start_time" validate:"required"`
	EndTime            time.Time     `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Status             BookingStatus `json:"status" bson:"status" validate:"required,oneof=pending approved rejected cancelled"`
	RejectionReason    string        `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	ApproverID         string        `json:"approver_id,omitempty" bson:"approver_id,omitempty"`
	DecidedAt          *time.Time    `json:"decided_at,omitempty" bson:"decided_at,omitempty"`
	RecurrenceGroupID  string        `json:"recurrence_group_id,omitempty" bson:"recurrence_group_id,omitempty" validate:"omitempty,max=64"`
	RequestedResources []string      `json:"requested_resources,omitempty" bson:"requested_resources,omitempty" validate:"omitempty,max=20,unique,dive,min=1,max=64"`
	CreatedAt          time.Time     `json:"created_at" bson:"created_at" validate:"omitempty"`
	Version            int64         `json:"version" bson:"version" validate:"omitempty,min=0"`
}

type BookingUpdate struct {
	Title              string     `json:"title,omitempty" validate:"omitempty,min=2,max=120"`
	Justification      string     `json:"justification,omitempty" validate:"omitempty,min=5,max=2000"`
	Notes              *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
	StartTime          *time.Time `json:"start_time,omitempty" validate:"omitempty"`
	EndTime            *time.Time `json:"end_time,omitempty" validate:"omitempty"`
	RequestedResources *[]string  `json:"requested_resources,omitempty" validate:"omitempty,max=20,unique,dive,min=1,max=64"`
}

type DecisionAction string

const (
	DecisionApprove DecisionAction = "approve"
	DecisionReject  DecisionAction = "reject"
)

// BookingDecision is a reviewer's verdict on a single booking that is not part
// of an active conflict.
type BookingDecision struct {
	Decision DecisionAction `json:"decision" validate:"required,oneof=approve reject"`
	Reason   string         `json:"reason,omitempty" validate:"max=1000"`
}

// Overlaps reports whether both bookings target the same resource over
// intersecting half-open intervals. Touching endpoints do not overlap.
func (b *Booking) Overlaps(other *Booking) bool {
	if b == nil || other == nil || b.ResourceID != other.ResourceID {
		return false
	}
	return b.StartTime.Before(other.EndTime) && other.StartTime.Before(b.EndTime)
}

func (b *Booking) IsPending() bool {
	return b != nil && b.Status == StatusPending
}

// Clone returns a deep copy so that callers can stage mutations without
// touching a shared snapshot.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	if b.DecidedAt != nil {
		decided := *b.DecidedAt
		c.DecidedAt = &decided
	}
	if b.RequestedResources != nil {
		c.RequestedResources = append([]string(nil), b.RequestedResources...)
	}
	return &c
}

var allowedTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCancelled},
}

// CanTransition reports whether a single booking may move from one status to
// another. Rejected and cancelled are terminal.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
