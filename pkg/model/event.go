package model

import "time"

const EventTypePromotion = "promotion.occurred"

// PromotionEvent is emitted whenever a waitlist entry is promoted into a
// confirmed booking. Consumed by the notifier service; the core never writes
// to a delivery channel directly.
type PromotionEvent struct {
	BookingID  string    `json:"booking_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	Slot       Slot      `json:"slot"`
	PromotedAt time.Time `json:"promoted_at"`
}
