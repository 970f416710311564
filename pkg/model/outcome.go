package model

// Outcome kinds returned by the allocation engine. The HTTP layer maps these
// to status codes; the engine itself never touches the wire.
const (
	OutcomeConfirmed   = "confirmed"
	OutcomeQueued      = "queued"
	OutcomePromoted    = "promoted"
	OutcomeNoPromotion = "no_promotion"
)

// BookOutcome is the result of a Book call: either a confirmed booking or a
// waitlist entry, never both.
type BookOutcome struct {
	Kind    string         `json:"outcome"`
	Booking *Booking       `json:"booking,omitempty"`
	Entry   *WaitlistEntry `json:"waitlist_entry,omitempty"`
}

// ReleaseOutcome reports what happened to a freed slot: the head of the
// waitlist was promoted, or nobody was waiting.
type ReleaseOutcome struct {
	Kind     string   `json:"outcome"`
	Promoted *Booking `json:"promoted,omitempty"`
}

type CancelOutcome struct {
	Cancelled *Booking       `json:"cancelled"`
	Release   ReleaseOutcome `json:"release"`
}

// RescheduleOutcome: Kind is OutcomeConfirmed when the move succeeded (Booking
// set, Release describing the old slot), or OutcomeQueued when the target slot
// was occupied (Entry set, the original booking untouched, no release).
type RescheduleOutcome struct {
	Kind     string          `json:"outcome"`
	Booking  *Booking        `json:"booking,omitempty"`
	Entry    *WaitlistEntry  `json:"waitlist_entry,omitempty"`
	Release  *ReleaseOutcome `json:"release,omitempty"`
	Original *Booking        `json:"original,omitempty"`
}

// WaitlistStanding is a user's current place in one slot's queue.
type WaitlistStanding struct {
	Entry       *WaitlistEntry `json:"entry"`
	Position    int            `json:"position"`
	QueueLength int            `json:"queue_length"`
}

// UserStatus aggregates everything a caller holds: confirmed and cancelled
// bookings plus waitlist standings.
type UserStatus struct {
	Confirmed []*Booking          `json:"confirmed"`
	Cancelled []*Booking          `json:"cancelled"`
	Waitlists []*WaitlistStanding `json:"waitlists"`
}
