package model

import "time"

// WaitlistEntry is one user waiting on an occupied slot. Entries for a slot
// form a strict FIFO by join time; Position is derived from queue order and
// is 1-indexed.
type WaitlistEntry struct {
	ID       string    `json:"id" bson:"_id"`
	UserID   string    `json:"user_id" bson:"user_id"`
	UserName string    `json:"user_name" bson:"user_name"`
	Slot     Slot      `json:"slot" bson:",inline"`
	JoinedAt time.Time `json:"joined_at" bson:"joined_at"`
	Position int       `json:"position,omitempty" bson:"-"`
}
