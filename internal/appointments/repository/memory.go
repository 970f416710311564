package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "slotbook/internal/appointments/errors"
	"slotbook/pkg/model"
)

// MemoryStore is a process-local backend holding the booking ledger and the
// waitlist queues. Used for development and tests; the mongo implementations
// are the production path. Bookings() and Waitlist() expose the repository
// views; the store itself acts as slot locker and transactor.
type MemoryStore struct {
	mu        sync.RWMutex
	bookings  map[string]*model.Booking
	waitlists map[string][]*model.WaitlistEntry

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings:  make(map[string]*model.Booking),
		waitlists: make(map[string][]*model.WaitlistEntry),
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) Bookings() BookingRepository {
	return &memoryBookingRepository{store: s}
}

func (s *MemoryStore) Waitlist() WaitlistRepository {
	return &memoryWaitlistRepository{store: s}
}

// Acquire blocks until the per-key mutex is free, honoring ctx cancellation.
func (s *MemoryStore) Acquire(ctx context.Context, key string) (func(), error) {
	s.lockMu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.lockMu.Unlock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return m.Unlock, nil
	case <-ctx.Done():
		go func() {
			<-acquired
			m.Unlock()
		}()
		return nil, ctx.Err()
	}
}

// WithinTransaction runs fn directly; individual operations already hold the
// store mutex, and allocation is serialized per slot by Acquire.
func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func cloneBooking(b *model.Booking) *model.Booking {
	if b == nil {
		return nil
	}
	clone := *b
	return &clone
}

func cloneEntry(e *model.WaitlistEntry) *model.WaitlistEntry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

type memoryBookingRepository struct {
	store *MemoryStore
}

func (r *memoryBookingRepository) Insert(ctx context.Context, booking *model.Booking) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (r *memoryBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	booking, ok := r.store.bookings[id]
	if !ok {
		return nil, apperrors.ErrBookingNotFound
	}
	return cloneBooking(booking), nil
}

func (r *memoryBookingRepository) FindConfirmedBySlot(ctx context.Context, slot model.Slot) (*model.Booking, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, b := range r.store.bookings {
		if b.Slot == slot && b.IsConfirmed() {
			return cloneBooking(b), nil
		}
	}
	return nil, nil
}

func (r *memoryBookingRepository) FindConfirmedBySlotAndUser(ctx context.Context, slot model.Slot, userID string) (*model.Booking, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, b := range r.store.bookings {
		if b.Slot == slot && b.IsConfirmed() && b.UserID == userID {
			return cloneBooking(b), nil
		}
	}
	return nil, nil
}

func (r *memoryBookingRepository) FindByUser(ctx context.Context, userID string) ([]*model.Booking, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var bookings []*model.Booking
	for _, b := range r.store.bookings {
		if b.UserID == userID {
			bookings = append(bookings, cloneBooking(b))
		}
	}
	sortBookings(bookings)
	return bookings, nil
}

func (r *memoryBookingRepository) FindConfirmed(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var bookings []*model.Booking
	for _, b := range r.store.bookings {
		if b.IsConfirmed() {
			bookings = append(bookings, cloneBooking(b))
		}
	}
	sortBookings(bookings)

	if offset >= int64(len(bookings)) {
		return nil, nil
	}
	bookings = bookings[offset:]
	if limit > 0 && limit < len(bookings) {
		bookings = bookings[:limit]
	}
	return bookings, nil
}

func (r *memoryBookingRepository) CountConfirmed(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var count int64
	for _, b := range r.store.bookings {
		if b.IsConfirmed() {
			count++
		}
	}
	return count, nil
}

func (r *memoryBookingRepository) FindConfirmedByDate(ctx context.Context, date string) ([]*model.Booking, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var bookings []*model.Booking
	for _, b := range r.store.bookings {
		if b.Slot.Date == date && b.IsConfirmed() {
			bookings = append(bookings, cloneBooking(b))
		}
	}
	sortBookings(bookings)
	return bookings, nil
}

func (r *memoryBookingRepository) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	booking, ok := r.store.bookings[id]
	if !ok {
		return apperrors.ErrBookingNotFound
	}
	if !booking.IsConfirmed() {
		return apperrors.ErrAlreadyCancelled
	}
	booking.Status = model.StatusCancelled
	booking.CancelledAt = &at
	return nil
}

func (r *memoryBookingRepository) MarkRescheduled(ctx context.Context, id string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	booking, ok := r.store.bookings[id]
	if !ok {
		return apperrors.ErrBookingNotFound
	}
	if !booking.IsConfirmed() {
		return apperrors.ErrAlreadyCancelled
	}
	booking.Status = model.StatusCancelled
	booking.CancelledAt = &at
	booking.RescheduledAt = &at
	return nil
}

type memoryWaitlistRepository struct {
	store *MemoryStore
}

func (r *memoryWaitlistRepository) Enqueue(ctx context.Context, entry *model.WaitlistEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := entry.Slot.Key()
	r.store.waitlists[key] = append(r.store.waitlists[key], cloneEntry(entry))
	return nil
}

func (r *memoryWaitlistRepository) DequeueHead(ctx context.Context, slot model.Slot) (*model.WaitlistEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := slot.Key()
	queue := r.store.waitlists[key]
	if len(queue) == 0 {
		return nil, nil
	}
	head := queue[0]
	r.store.waitlists[key] = queue[1:]
	return cloneEntry(head), nil
}

func (r *memoryWaitlistRepository) FindBySlot(ctx context.Context, slot model.Slot) ([]*model.WaitlistEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	queue := r.store.waitlists[slot.Key()]
	entries := make([]*model.WaitlistEntry, 0, len(queue))
	for _, e := range queue {
		entries = append(entries, cloneEntry(e))
	}
	return entries, nil
}

func (r *memoryWaitlistRepository) FindBySlotAndUser(ctx context.Context, slot model.Slot, userID string) (*model.WaitlistEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, e := range r.store.waitlists[slot.Key()] {
		if e.UserID == userID {
			return cloneEntry(e), nil
		}
	}
	return nil, nil
}

func (r *memoryWaitlistRepository) FindByUser(ctx context.Context, userID string) ([]*model.WaitlistEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var entries []*model.WaitlistEntry
	for _, queue := range r.store.waitlists {
		for _, e := range queue {
			if e.UserID == userID {
				entries = append(entries, cloneEntry(e))
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Slot.Date != entries[j].Slot.Date {
			return entries[i].Slot.Date < entries[j].Slot.Date
		}
		return entries[i].Slot.Time < entries[j].Slot.Time
	})
	return entries, nil
}

func (r *memoryWaitlistRepository) CountBySlot(ctx context.Context, slot model.Slot) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.waitlists[slot.Key()])), nil
}

func (r *memoryWaitlistRepository) CountsByDate(ctx context.Context, date string) (map[string]int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[string]int64)
	for _, queue := range r.store.waitlists {
		for _, e := range queue {
			if e.Slot.Date == date {
				counts[e.Slot.Time]++
			}
		}
	}
	return counts, nil
}

func sortBookings(bookings []*model.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Slot.Date != bookings[j].Slot.Date {
			return bookings[i].Slot.Date < bookings[j].Slot.Date
		}
		if bookings[i].Slot.Time != bookings[j].Slot.Time {
			return bookings[i].Slot.Time < bookings[j].Slot.Time
		}
		return bookings[i].CreatedAt.Before(bookings[j].CreatedAt)
	})
}
