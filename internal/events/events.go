package events

import (
	"context"
	"time"

	"roomdesk/pkg/model"
)

const (
	TypeBookingCreated     = "booking.created"
	TypeBookingDecided     = "booking.decided"
	TypeBookingCancelled   = "booking.cancelled"
	TypeConflictResolved   = "conflict.resolved"
	TypeConflictStatsDaily = "conflict.stats.daily"

	SchemaVersion = "1"
)

// Types lists every event type the services emit.
var Types = []string{
	TypeBookingCreated,
	TypeBookingDecided,
	TypeBookingCancelled,
	TypeConflictResolved,
	TypeConflictStatsDaily,
}

func KnownType(eventType string) bool {
	for _, t := range Types {
		if t == eventType {
			return true
		}
	}
	return false
}

// Event is one domain fact. Key selects the partition; events about the same
// resource share a key so their order is kept.
type Event struct {
	Type          string
	Key           string
	ActorID       string
	CorrelationID string
	OccurredAt    time.Time
	Payload       any
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type BookingEvent struct {
	Booking *model.Booking `json:"booking"`
}

type BookingDecidedEvent struct {
	Booking  *model.Booking      `json:"booking"`
	Decision model.BookingStatus `json:"decision"`
}

type ConflictResolvedEvent struct {
	Resolution *model.ConflictResolution `json:"resolution"`
	Updated    []*model.Booking          `json:"updated_bookings"`
}

type StatsDigestEvent struct {
	Day      string              `json:"day"`
	Timezone string              `json:"timezone"`
	Stats    model.ConflictStats `json:"stats"`
}
