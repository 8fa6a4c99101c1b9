package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	CollectionBookings            = "Bookings"
	CollectionConflictResolutions = "Conflict_resolutions"
	CollectionResolutionLocks     = "Resolution_locks"
	CollectionAuditLog            = "Audit_log"
)

// WithTimeout bounds ctx by timeout unless it is a transaction session
// context, which must be passed through untouched.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}

	return context.WithTimeout(ctx, timeout)
}
