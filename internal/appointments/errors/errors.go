package errors

import "errors"

var (
	ErrBookingNotFound = errors.New("booking not found")

	ErrWaitlistEmpty = errors.New("waitlist is empty")

	ErrAlreadyBooked = errors.New("user already holds a confirmed booking for this slot")

	ErrAlreadyQueued = errors.New("user is already on the waitlist for this slot")

	ErrNotOwner = errors.New("booking belongs to another user")

	ErrAlreadyCancelled = errors.New("booking is already cancelled")

	ErrSameSlot = errors.New("new slot is the same as the current one")

	ErrLockHeld = errors.New("slot is currently being modified")
)
