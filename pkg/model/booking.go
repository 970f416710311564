package model

import "time"

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"

	OriginDirect    = "direct"
	OriginWaitlist  = "waitlist-promotion"
)

// Booking is a claim on a slot by a user. Cancelled bookings are kept for
// history and only ever gain a cancellation timestamp.
type Booking struct {
	ID            string     `json:"id" bson:"_id"`
	UserID        string     `json:"user_id" bson:"user_id"`
	UserName      string     `json:"user_name" bson:"user_name"`
	Slot          Slot       `json:"slot" bson:",inline"`
	Status        string     `json:"status" bson:"status"`
	Origin        string     `json:"origin" bson:"origin"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	RescheduledAt *time.Time `json:"rescheduled_at,omitempty" bson:"rescheduled_at,omitempty"`
}

func (b *Booking) IsConfirmed() bool {
	return b.Status == StatusConfirmed
}
