package model

import "time"

// SlotLock is an advisory lock scoped to one slot key. It serializes the
// check-then-mutate step of allocation so two concurrent requests cannot both
// observe a slot as free. ExpiresAt bounds the damage of a crashed holder.
type SlotLock struct {
	ID        string    `json:"id" bson:"_id"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
