package model

import "fmt"

// Slot is a (date, time-of-day) coordinate for one bookable unit. It has no
// stored lifecycle of its own; occupancy is derived from confirmed bookings.
type Slot struct {
	Date string `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	Time string `json:"time" bson:"time" validate:"required"`
}

// Key returns the canonical per-slot identifier used for waitlist grouping
// and advisory locking.
func (s Slot) Key() string {
	return s.Date + "T" + s.Time
}

func (s Slot) String() string {
	return fmt.Sprintf("%s %s", s.Date, s.Time)
}
