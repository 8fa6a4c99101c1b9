package model

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, time.March, 10, hour, minute, 0, 0, time.UTC)
}

func booking(id, resource string, start, end time.Time) *Booking {
	return &Booking{ID: id, ResourceID: resource, StartTime: start, EndTime: end, Status: StatusPending}
}

func TestBooking_Overlaps(t *testing.T) {
	tests := []struct {
		name     string
		a        *Booking
		b        *Booking
		expected bool
	}{
		{
			name:     "partial overlap",
			a:        booking("a", "r1", at(10, 0), at(11, 0)),
			b:        booking("b", "r1", at(10, 30), at(11, 30)),
			expected: true,
		},
		{
			name:     "containment",
			a:        booking("a", "r1", at(9, 0), at(12, 0)),
			b:        booking("b", "r1", at(10, 0), at(11, 0)),
			expected: true,
		},
		{
			name:     "touching endpoints do not overlap",
			a:        booking("a", "r1", at(10, 0), at(11, 0)),
			b:        booking("b", "r1", at(11, 0), at(12, 0)),
			expected: false,
		},
		{
			name:     "disjoint",
			a:        booking("a", "r1", at(10, 0), at(11, 0)),
			b:        booking("b", "r1", at(14, 0), at(15, 0)),
			expected: false,
		},
		{
			name:     "different resources never overlap",
			a:        booking("a", "r1", at(10, 0), at(11, 0)),
			b:        booking("b", "r2", at(10, 0), at(11, 0)),
			expected: false,
		},
		{
			name:     "nil booking",
			a:        booking("a", "r1", at(10, 0), at(11, 0)),
			b:        nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.expected {
				t.Errorf("a.Overlaps(b) = %v, want %v", got, tt.expected)
			}
			if tt.b != nil {
				if got := tt.b.Overlaps(tt.a); got != tt.expected {
					t.Errorf("b.Overlaps(a) = %v, want %v (overlap must be symmetric)", got, tt.expected)
				}
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from     BookingStatus
		to       BookingStatus
		expected bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCancelled, true},
		{StatusApproved, StatusCancelled, true},
		{StatusApproved, StatusRejected, false},
		{StatusApproved, StatusPending, false},
		{StatusRejected, StatusApproved, false},
		{StatusRejected, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusPending, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestBooking_CloneIsDeep(t *testing.T) {
	decided := at(9, 0)
	original := booking("a", "r1", at(10, 0), at(11, 0))
	original.DecidedAt = &decided
	original.RequestedResources = []string{"projector"}

	clone := original.Clone()
	clone.Status = StatusApproved
	*clone.DecidedAt = at(12, 0)
	clone.RequestedResources[0] = "whiteboard"

	if original.Status != StatusPending {
		t.Errorf("original status changed to %s", original.Status)
	}
	if !original.DecidedAt.Equal(decided) {
		t.Errorf("original decided_at changed to %s", original.DecidedAt)
	}
	if original.RequestedResources[0] != "projector" {
		t.Errorf("original requested resources changed to %v", original.RequestedResources)
	}
}

func TestConflictGroup_IsActive(t *testing.T) {
	group := &ConflictGroup{
		Members: []*Booking{
			booking("a", "r1", at(10, 0), at(11, 0)),
			booking("b", "r1", at(10, 30), at(11, 30)),
		},
	}
	if !group.IsActive() {
		t.Fatal("expected group with two pending members to be active")
	}

	group.Members[1].Status = StatusRejected
	if group.IsActive() {
		t.Error("expected group with a single pending member to be inactive")
	}

	group.Members[1].Status = StatusPending
	group.Resolved = true
	if group.IsActive() {
		t.Error("expected resolved group to be inactive")
	}
}
