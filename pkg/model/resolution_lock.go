package model

import "time"

// ResolutionLock is an advisory lock held while a conflict group is being
// resolved, so that a second operator racing on the same group fails fast.
type ResolutionLock struct {
	ID        string    `bson:"_id" json:"id"`
	OwnerID   string    `bson:"owner_id" json:"owner_id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
