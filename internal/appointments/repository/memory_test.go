package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "slotbook/internal/appointments/errors"
	"slotbook/pkg/model"
)

func testSlot() model.Slot {
	return model.Slot{Date: "2026-10-01", Time: "09:00"}
}

func entry(id, userID string, joined time.Time) *model.WaitlistEntry {
	return &model.WaitlistEntry{
		ID:       id,
		UserID:   userID,
		UserName: "user " + userID,
		Slot:     testSlot(),
		JoinedAt: joined,
	}
}

func TestWaitlist_FIFOOrder(t *testing.T) {
	store := NewMemoryStore()
	waitlist := store.Waitlist()
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("e%d", i)
		if err := waitlist.Enqueue(ctx, entry(id, "u"+id, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		head, err := waitlist.DequeueHead(ctx, testSlot())
		if err != nil {
			t.Fatalf("DequeueHead: %v", err)
		}
		want := fmt.Sprintf("e%d", i)
		if head == nil || head.ID != want {
			t.Fatalf("dequeue %d: expected %s, got %+v", i, want, head)
		}
	}

	head, err := waitlist.DequeueHead(ctx, testSlot())
	if err != nil {
		t.Fatalf("DequeueHead on empty queue: %v", err)
	}
	if head != nil {
		t.Fatalf("expected nil head on empty queue, got %+v", head)
	}
}

func TestWaitlist_FindBySlotKeepsQueueOrder(t *testing.T) {
	store := NewMemoryStore()
	waitlist := store.Waitlist()
	ctx := context.Background()

	base := time.Now()
	waitlist.Enqueue(ctx, entry("e0", "alice", base))
	waitlist.Enqueue(ctx, entry("e1", "bob", base.Add(time.Second)))
	waitlist.Enqueue(ctx, entry("e2", "carol", base.Add(2*time.Second)))

	queue, err := waitlist.FindBySlot(ctx, testSlot())
	if err != nil {
		t.Fatalf("FindBySlot: %v", err)
	}
	if len(queue) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(queue))
	}
	for i, want := range []string{"e0", "e1", "e2"} {
		if queue[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i+1, want, queue[i].ID)
		}
	}
}

func TestBookings_SlotLookupIgnoresCancelled(t *testing.T) {
	store := NewMemoryStore()
	bookings := store.Bookings()
	ctx := context.Background()

	booking := &model.Booking{
		ID:        "b1",
		UserID:    "alice",
		Slot:      testSlot(),
		Status:    model.StatusConfirmed,
		Origin:    model.OriginDirect,
		CreatedAt: time.Now(),
	}
	if err := bookings.Insert(ctx, booking); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	occupant, err := bookings.FindConfirmedBySlot(ctx, testSlot())
	if err != nil {
		t.Fatalf("FindConfirmedBySlot: %v", err)
	}
	if occupant == nil || occupant.ID != "b1" {
		t.Fatalf("expected b1 as occupant, got %+v", occupant)
	}

	if err := bookings.MarkCancelled(ctx, "b1", time.Now()); err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}

	occupant, err = bookings.FindConfirmedBySlot(ctx, testSlot())
	if err != nil {
		t.Fatalf("FindConfirmedBySlot: %v", err)
	}
	if occupant != nil {
		t.Fatalf("cancelled booking must not occupy the slot, got %+v", occupant)
	}

	// Still retrievable by ID with its history intact.
	kept, err := bookings.FindByID(ctx, "b1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if kept.Status != model.StatusCancelled || kept.CancelledAt == nil {
		t.Errorf("expected cancelled booking with timestamp, got %+v", kept)
	}
}

func TestBookings_ReturnedValuesAreCopies(t *testing.T) {
	store := NewMemoryStore()
	bookings := store.Bookings()
	ctx := context.Background()

	bookings.Insert(ctx, &model.Booking{
		ID:     "b1",
		UserID: "alice",
		Slot:   testSlot(),
		Status: model.StatusConfirmed,
	})

	got, _ := bookings.FindByID(ctx, "b1")
	got.Status = "tampered"

	again, _ := bookings.FindByID(ctx, "b1")
	if again.Status != model.StatusConfirmed {
		t.Errorf("mutation of a returned booking leaked into the store: %s", again.Status)
	}
}

func TestAcquire_SerializesHolders(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	release, err := store.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	var mu sync.Mutex
	order := []string{}

	done := make(chan struct{})
	go func() {
		defer close(done)
		release2, err := store.Acquire(ctx, "k")
		if err != nil {
			t.Errorf("second Acquire: %v", err)
			return
		}
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		release2()
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	order = append(order, "first")
	mu.Unlock()
	release()
	<-done

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected first release before second acquire, got %v", order)
	}
}

func TestAcquire_HonorsContextCancellation(t *testing.T) {
	store := NewMemoryStore()

	release, err := store.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := store.Acquire(ctx, "k"); err == nil {
		t.Fatal("expected context error while lock is held")
	}
}

func TestBookings_MarkCancelledRequiresConfirmed(t *testing.T) {
	store := NewMemoryStore()
	bookings := store.Bookings()
	ctx := context.Background()

	booking := &model.Booking{
		ID:        "b1",
		UserID:    "alice",
		Slot:      testSlot(),
		Status:    model.StatusConfirmed,
		Origin:    model.OriginDirect,
		CreatedAt: time.Now(),
	}
	if err := bookings.Insert(ctx, booking); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := bookings.MarkCancelled(ctx, "b1", time.Now()); err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}

	if err := bookings.MarkCancelled(ctx, "b1", time.Now()); !errors.Is(err, apperrors.ErrAlreadyCancelled) {
		t.Fatalf("second MarkCancelled must report already cancelled, got %v", err)
	}
	if err := bookings.MarkRescheduled(ctx, "b1", time.Now()); !errors.Is(err, apperrors.ErrAlreadyCancelled) {
		t.Fatalf("MarkRescheduled on a cancelled booking must report already cancelled, got %v", err)
	}
	if err := bookings.MarkCancelled(ctx, "missing", time.Now()); !errors.Is(err, apperrors.ErrBookingNotFound) {
		t.Fatalf("MarkCancelled on an unknown id must report not found, got %v", err)
	}
}
