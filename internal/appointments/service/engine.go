package service

import (
	"context"
	"errors"
	"sort"
	"time"

	appterrors "slotbook/internal/appointments/errors"
	"slotbook/internal/appointments/repository"
	"slotbook/internal/appointments/validator"
	"slotbook/internal/notification"
	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/google/uuid"
)

// SlotAvailability is the state of one slot on one date.
type SlotAvailability struct {
	Slot           model.Slot `json:"slot"`
	Available      bool       `json:"available"`
	WaitlistLength int64      `json:"waitlist_length"`
}

type DayAvailability struct {
	Date  string             `json:"date"`
	Slots []SlotAvailability `json:"slots"`
}

// Engine is the allocation core: it decides who holds a slot, who waits,
// and who gets promoted when a slot frees up.
type Engine interface {
	Book(ctx context.Context, caller model.Identity, req *validator.SlotRequest) (*model.BookOutcome, error)
	Cancel(ctx context.Context, caller model.Identity, bookingID string) (*model.CancelOutcome, error)
	Reschedule(ctx context.Context, caller model.Identity, bookingID string, req *validator.SlotRequest) (*model.RescheduleOutcome, error)
	Status(ctx context.Context, caller model.Identity) (*model.UserStatus, error)
	Availability(ctx context.Context, date string) (*DayAvailability, error)
	Upcoming(ctx context.Context) ([]*DayAvailability, error)
	ListOccupied(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)
}

type engine struct {
	bookings  repository.BookingRepository
	waitlist  repository.WaitlistRepository
	locker    repository.SlotLocker
	tx        repository.Transactor
	notifier  notification.Notifier
	validator *validator.SlotValidator
	cfg       *config.Config
	log       *logger.Logger
	now       func() time.Time
}

func NewEngine(
	bookings repository.BookingRepository,
	waitlist repository.WaitlistRepository,
	locker repository.SlotLocker,
	tx repository.Transactor,
	notifier notification.Notifier,
	slotValidator *validator.SlotValidator,
	cfg *config.Config,
	log *logger.Logger,
) Engine {
	return &engine{
		bookings:  bookings,
		waitlist:  waitlist,
		locker:    locker,
		tx:        tx,
		notifier:  notifier,
		validator: slotValidator,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Book claims the slot if it is free, otherwise appends the caller to the
// slot's waitlist. A caller never appears twice on the same slot, in either
// the ledger or the queue.
func (e *engine) Book(ctx context.Context, caller model.Identity, req *validator.SlotRequest) (*model.BookOutcome, error) {
	slot, err := e.validator.Validate(req)
	if err != nil {
		return nil, translateValidation(err)
	}

	release, err := e.locker.Acquire(ctx, slot.Key())
	if err != nil {
		return nil, translateLockError(err)
	}
	defer release()

	var outcome *model.BookOutcome
	err = e.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		own, err := e.bookings.FindConfirmedBySlotAndUser(ctx, slot, caller.UserID)
		if err != nil {
			return apperrors.Internal("failed to check existing booking", err)
		}
		if own != nil {
			return apperrors.Conflict(appterrors.ErrAlreadyBooked.Error())
		}

		occupant, err := e.bookings.FindConfirmedBySlot(ctx, slot)
		if err != nil {
			return apperrors.Internal("failed to check slot occupancy", err)
		}

		if occupant == nil {
			booking := &model.Booking{
				ID:        uuid.NewString(),
				UserID:    caller.UserID,
				UserName:  caller.Name,
				Slot:      slot,
				Status:    model.StatusConfirmed,
				Origin:    model.OriginDirect,
				CreatedAt: e.now().UTC(),
			}
			if err := e.bookings.Insert(ctx, booking); err != nil {
				return apperrors.Internal("failed to insert booking", err)
			}
			outcome = &model.BookOutcome{Kind: model.OutcomeConfirmed, Booking: booking}
			return nil
		}

		queued, err := e.waitlist.FindBySlotAndUser(ctx, slot, caller.UserID)
		if err != nil {
			return apperrors.Internal("failed to check waitlist", err)
		}
		if queued != nil {
			return apperrors.Conflict(appterrors.ErrAlreadyQueued.Error())
		}

		entry := &model.WaitlistEntry{
			ID:       uuid.NewString(),
			UserID:   caller.UserID,
			UserName: caller.Name,
			Slot:     slot,
			JoinedAt: e.now().UTC(),
		}
		if err := e.waitlist.Enqueue(ctx, entry); err != nil {
			return apperrors.Internal("failed to enqueue waitlist entry", err)
		}

		length, err := e.waitlist.CountBySlot(ctx, slot)
		if err != nil {
			return apperrors.Internal("failed to count waitlist", err)
		}
		entry.Position = int(length)

		outcome = &model.BookOutcome{Kind: model.OutcomeQueued, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("Book completed",
		"user_id", caller.UserID,
		"slot", slot.Key(),
		"outcome", outcome.Kind,
	)
	return outcome, nil
}

// Cancel marks the caller's booking cancelled and promotes the head of the
// slot's waitlist, if anyone is waiting. The cancelled booking stays in the
// ledger.
func (e *engine) Cancel(ctx context.Context, caller model.Identity, bookingID string) (*model.CancelOutcome, error) {
	booking, err := e.findOwnedConfirmed(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}

	release, err := e.locker.Acquire(ctx, booking.Slot.Key())
	if err != nil {
		return nil, translateLockError(err)
	}
	defer release()

	var (
		outcome *model.CancelOutcome
		event   *model.PromotionEvent
	)
	err = e.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		cancelledAt := e.now().UTC()
		if err := e.bookings.MarkCancelled(ctx, booking.ID, cancelledAt); err != nil {
			return translateRepoError(err)
		}
		booking.Status = model.StatusCancelled
		booking.CancelledAt = &cancelledAt

		releaseOutcome, promotion, err := e.promoteHead(ctx, booking.Slot)
		if err != nil {
			return err
		}
		event = promotion

		outcome = &model.CancelOutcome{Cancelled: booking, Release: releaseOutcome}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emitPromotion(ctx, event)

	e.log.Info("Cancel completed",
		"user_id", caller.UserID,
		"booking_id", booking.ID,
		"slot", booking.Slot.Key(),
		"release_outcome", outcome.Release.Kind,
	)
	return outcome, nil
}

// Reschedule moves a confirmed booking to a free slot, releasing the old
// one. When the target slot is occupied, the caller is queued on it and the
// original booking stays active.
func (e *engine) Reschedule(ctx context.Context, caller model.Identity, bookingID string, req *validator.SlotRequest) (*model.RescheduleOutcome, error) {
	newSlot, err := e.validator.Validate(req)
	if err != nil {
		return nil, translateValidation(err)
	}

	booking, err := e.findOwnedConfirmed(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}

	oldSlot := booking.Slot
	if oldSlot == newSlot {
		return nil, apperrors.InvalidInput(appterrors.ErrSameSlot.Error())
	}

	releases, err := e.acquireOrdered(ctx, oldSlot.Key(), newSlot.Key())
	if err != nil {
		return nil, translateLockError(err)
	}
	defer releases()

	var (
		outcome *model.RescheduleOutcome
		event   *model.PromotionEvent
	)
	err = e.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		occupant, err := e.bookings.FindConfirmedBySlot(ctx, newSlot)
		if err != nil {
			return apperrors.Internal("failed to check slot occupancy", err)
		}

		if occupant == nil {
			// A successful move closes the old booking and opens a new
			// one, so the ledger keeps both sides of the history.
			movedAt := e.now().UTC()
			if err := e.bookings.MarkRescheduled(ctx, booking.ID, movedAt); err != nil {
				return translateRepoError(err)
			}
			booking.Status = model.StatusCancelled
			booking.CancelledAt = &movedAt
			booking.RescheduledAt = &movedAt

			moved := &model.Booking{
				ID:        uuid.NewString(),
				UserID:    caller.UserID,
				UserName:  caller.Name,
				Slot:      newSlot,
				Status:    model.StatusConfirmed,
				Origin:    model.OriginDirect,
				CreatedAt: movedAt,
			}
			if err := e.bookings.Insert(ctx, moved); err != nil {
				return apperrors.Internal("failed to insert moved booking", err)
			}

			releaseOutcome, promotion, err := e.promoteHead(ctx, oldSlot)
			if err != nil {
				return err
			}
			event = promotion

			outcome = &model.RescheduleOutcome{
				Kind:     model.OutcomeConfirmed,
				Booking:  moved,
				Release:  &releaseOutcome,
				Original: booking,
			}
			return nil
		}

		if occupant.UserID == caller.UserID {
			return apperrors.Conflict(appterrors.ErrAlreadyBooked.Error())
		}

		queued, err := e.waitlist.FindBySlotAndUser(ctx, newSlot, caller.UserID)
		if err != nil {
			return apperrors.Internal("failed to check waitlist", err)
		}
		if queued != nil {
			return apperrors.Conflict(appterrors.ErrAlreadyQueued.Error())
		}

		entry := &model.WaitlistEntry{
			ID:       uuid.NewString(),
			UserID:   caller.UserID,
			UserName: caller.Name,
			Slot:     newSlot,
			JoinedAt: e.now().UTC(),
		}
		if err := e.waitlist.Enqueue(ctx, entry); err != nil {
			return apperrors.Internal("failed to enqueue waitlist entry", err)
		}

		length, err := e.waitlist.CountBySlot(ctx, newSlot)
		if err != nil {
			return apperrors.Internal("failed to count waitlist", err)
		}
		entry.Position = int(length)

		outcome = &model.RescheduleOutcome{
			Kind:     model.OutcomeQueued,
			Entry:    entry,
			Original: booking,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emitPromotion(ctx, event)

	e.log.Info("Reschedule completed",
		"user_id", caller.UserID,
		"booking_id", booking.ID,
		"from", oldSlot.Key(),
		"to", newSlot.Key(),
		"outcome", outcome.Kind,
	)
	return outcome, nil
}

// Status aggregates the caller's bookings, waitlist standings with their
// 1-indexed positions, and availability for the booking window.
func (e *engine) Status(ctx context.Context, caller model.Identity) (*model.UserStatus, error) {
	bookings, err := e.bookings.FindByUser(ctx, caller.UserID)
	if err != nil {
		return nil, apperrors.Internal("failed to load user bookings", err)
	}

	status := &model.UserStatus{
		Confirmed: []*model.Booking{},
		Cancelled: []*model.Booking{},
		Waitlists: []*model.WaitlistStanding{},
	}
	for _, b := range bookings {
		if b.IsConfirmed() {
			status.Confirmed = append(status.Confirmed, b)
		} else {
			status.Cancelled = append(status.Cancelled, b)
		}
	}

	entries, err := e.waitlist.FindByUser(ctx, caller.UserID)
	if err != nil {
		return nil, apperrors.Internal("failed to load waitlist entries", err)
	}

	for _, entry := range entries {
		queue, err := e.waitlist.FindBySlot(ctx, entry.Slot)
		if err != nil {
			return nil, apperrors.Internal("failed to load waitlist queue", err)
		}
		position := 0
		for i, queued := range queue {
			if queued.ID == entry.ID {
				position = i + 1
				break
			}
		}
		if position == 0 {
			// Promoted out of the queue between the two reads.
			continue
		}
		entry.Position = position
		status.Waitlists = append(status.Waitlists, &model.WaitlistStanding{
			Entry:       entry,
			Position:    position,
			QueueLength: len(queue),
		})
	}

	return status, nil
}

// Availability reports every slot time on one date: free or taken, plus the
// depth of the waitlist behind it.
func (e *engine) Availability(ctx context.Context, date string) (*DayAvailability, error) {
	if err := e.validator.ValidateDate(date); err != nil {
		return nil, translateValidation(err)
	}

	occupied, err := e.bookings.FindConfirmedByDate(ctx, date)
	if err != nil {
		return nil, apperrors.Internal("failed to load bookings for date", err)
	}
	taken := make(map[string]bool, len(occupied))
	for _, b := range occupied {
		taken[b.Slot.Time] = true
	}

	counts, err := e.waitlist.CountsByDate(ctx, date)
	if err != nil {
		return nil, apperrors.Internal("failed to load waitlist counts", err)
	}

	day := &DayAvailability{Date: date, Slots: make([]SlotAvailability, 0, len(e.cfg.SlotTimes))}
	times := append([]string(nil), e.cfg.SlotTimes...)
	sort.Strings(times)
	for _, t := range times {
		day.Slots = append(day.Slots, SlotAvailability{
			Slot:           model.Slot{Date: date, Time: t},
			Available:      !taken[t],
			WaitlistLength: counts[t],
		})
	}

	return day, nil
}

// Upcoming is Availability over the whole booking window, starting today.
func (e *engine) Upcoming(ctx context.Context) ([]*DayAvailability, error) {
	days := make([]*DayAvailability, 0, e.cfg.BookingWindowDays)
	today := e.now()
	for i := 0; i < e.cfg.BookingWindowDays; i++ {
		date := today.AddDate(0, 0, i).Format("2006-01-02")
		day, err := e.Availability(ctx, date)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, nil
}

func (e *engine) ListOccupied(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	bookings, err := e.bookings.FindConfirmed(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to list confirmed bookings", err)
	}

	total, err := e.bookings.CountConfirmed(ctx)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to count confirmed bookings", err)
	}

	return bookings, total, nil
}

// promoteHead shifts the waitlist head of a freed slot into a confirmed
// booking. Returns the promotion event for emission after the transaction
// commits.
func (e *engine) promoteHead(ctx context.Context, slot model.Slot) (model.ReleaseOutcome, *model.PromotionEvent, error) {
	entry, err := e.waitlist.DequeueHead(ctx, slot)
	if err != nil {
		return model.ReleaseOutcome{}, nil, apperrors.Internal("failed to dequeue waitlist head", err)
	}
	if entry == nil {
		return model.ReleaseOutcome{Kind: model.OutcomeNoPromotion}, nil, nil
	}

	promotedAt := e.now().UTC()
	promoted := &model.Booking{
		ID:        uuid.NewString(),
		UserID:    entry.UserID,
		UserName:  entry.UserName,
		Slot:      slot,
		Status:    model.StatusConfirmed,
		Origin:    model.OriginWaitlist,
		CreatedAt: promotedAt,
	}
	if err := e.bookings.Insert(ctx, promoted); err != nil {
		return model.ReleaseOutcome{}, nil, apperrors.Internal("failed to insert promoted booking", err)
	}

	event := &model.PromotionEvent{
		BookingID:  promoted.ID,
		UserID:     promoted.UserID,
		UserName:   promoted.UserName,
		Slot:       slot,
		PromotedAt: promotedAt,
	}

	return model.ReleaseOutcome{Kind: model.OutcomePromoted, Promoted: promoted}, event, nil
}

// emitPromotion publishes after commit. Delivery failure never rolls back an
// allocation decision; it is logged and the event is dropped.
func (e *engine) emitPromotion(ctx context.Context, event *model.PromotionEvent) {
	if event == nil {
		return
	}
	if err := e.notifier.PromotionOccurred(ctx, *event); err != nil {
		e.log.Error("Failed to emit promotion event",
			"booking_id", event.BookingID,
			"user_id", event.UserID,
			"slot", event.Slot.Key(),
			"error", err,
		)
	}
}

func (e *engine) findOwnedConfirmed(ctx context.Context, caller model.Identity, bookingID string) (*model.Booking, error) {
	booking, err := e.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if booking.UserID != caller.UserID {
		// Do not reveal other users' bookings.
		return nil, apperrors.NotFoundWithID("booking", bookingID)
	}
	if !booking.IsConfirmed() {
		return nil, apperrors.Conflict(appterrors.ErrAlreadyCancelled.Error())
	}
	return booking, nil
}

// acquireOrdered takes both slot locks in key order to avoid deadlock with a
// concurrent reschedule in the opposite direction.
func (e *engine) acquireOrdered(ctx context.Context, a, b string) (func(), error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	releaseFirst, err := e.locker.Acquire(ctx, first)
	if err != nil {
		return nil, err
	}
	releaseSecond, err := e.locker.Acquire(ctx, second)
	if err != nil {
		releaseFirst()
		return nil, err
	}

	return func() {
		releaseSecond()
		releaseFirst()
	}, nil
}

func translateValidation(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make(map[string]any, len(validationErrs))
		for _, v := range validationErrs {
			details[v.Field] = v.Message
		}
		return apperrors.Validation("invalid slot request", details)
	}
	return apperrors.InvalidInput(err.Error())
}

func translateLockError(err error) error {
	if errors.Is(err, appterrors.ErrLockHeld) {
		return apperrors.Conflict("slot is being modified by another request, retry shortly")
	}
	return apperrors.Internal("failed to acquire slot lock", err)
}

func translateRepoError(err error) error {
	if errors.Is(err, appterrors.ErrBookingNotFound) {
		return apperrors.NotFound("booking")
	}
	if errors.Is(err, appterrors.ErrAlreadyCancelled) {
		return apperrors.Conflict(appterrors.ErrAlreadyCancelled.Error())
	}
	return apperrors.Internal("storage operation failed", err)
}
