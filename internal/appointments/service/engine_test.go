package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"slotbook/internal/appointments/repository"
	"slotbook/internal/appointments/validator"
	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
)

type captureNotifier struct {
	mu     sync.Mutex
	events []model.PromotionEvent
}

func (n *captureNotifier) PromotionOccurred(ctx context.Context, event model.PromotionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *captureNotifier) all() []model.PromotionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.PromotionEvent(nil), n.events...)
}

func testConfig() *config.Config {
	return &config.Config{
		SlotTimes:         []string{"09:00", "10:00", "11:00"},
		BookingWindowDays: 3,
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.TEXT,
			Service: "test",
		}),
	}
}

func newTestEngine(t *testing.T) (*engine, *repository.MemoryStore, *captureNotifier) {
	t.Helper()

	cfg := testConfig()
	store := repository.NewMemoryStore()
	notifier := &captureNotifier{}

	e := &engine{
		bookings:  store.Bookings(),
		waitlist:  store.Waitlist(),
		locker:    store,
		tx:        store,
		notifier:  notifier,
		validator: validator.NewSlotValidator(cfg, cfg.Log),
		cfg:       cfg,
		log:       cfg.Log,
		now:       time.Now,
	}
	return e, store, notifier
}

func futureSlot(t *testing.T, slotTime string) *validator.SlotRequest {
	t.Helper()
	return &validator.SlotRequest{
		Date: time.Now().AddDate(0, 0, 1).Format("2006-01-02"),
		Time: slotTime,
	}
}

func user(id string) model.Identity {
	return model.Identity{UserID: id, Name: "user " + id}
}

func mustBook(t *testing.T, e *engine, caller model.Identity, req *validator.SlotRequest) *model.BookOutcome {
	t.Helper()
	outcome, err := e.Book(context.Background(), caller, req)
	if err != nil {
		t.Fatalf("Book(%s): unexpected error: %v", caller.UserID, err)
	}
	return outcome
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != code {
		t.Fatalf("expected error code %s, got %s (%v)", code, appErr.Code, err)
	}
}

func TestBook_FreeSlotConfirms(t *testing.T) {
	e, _, _ := newTestEngine(t)

	outcome := mustBook(t, e, user("alice"), futureSlot(t, "09:00"))

	if outcome.Kind != model.OutcomeConfirmed {
		t.Fatalf("expected outcome %s, got %s", model.OutcomeConfirmed, outcome.Kind)
	}
	if outcome.Booking == nil {
		t.Fatal("expected a booking, got nil")
	}
	if outcome.Booking.Status != model.StatusConfirmed {
		t.Errorf("expected status %s, got %s", model.StatusConfirmed, outcome.Booking.Status)
	}
	if outcome.Booking.Origin != model.OriginDirect {
		t.Errorf("expected origin %s, got %s", model.OriginDirect, outcome.Booking.Origin)
	}
	if outcome.Entry != nil {
		t.Error("confirmed outcome must not carry a waitlist entry")
	}
}

func TestBook_OccupiedSlotQueues(t *testing.T) {
	e, _, _ := newTestEngine(t)
	req := futureSlot(t, "09:00")

	mustBook(t, e, user("alice"), req)
	outcome := mustBook(t, e, user("bob"), req)

	if outcome.Kind != model.OutcomeQueued {
		t.Fatalf("expected outcome %s, got %s", model.OutcomeQueued, outcome.Kind)
	}
	if outcome.Entry == nil {
		t.Fatal("expected a waitlist entry, got nil")
	}
	if outcome.Entry.Position != 1 {
		t.Errorf("expected position 1, got %d", outcome.Entry.Position)
	}
	if outcome.Booking != nil {
		t.Error("queued outcome must not carry a booking")
	}
}

func TestBook_DuplicateBookingRejected(t *testing.T) {
	e, _, _ := newTestEngine(t)
	req := futureSlot(t, "09:00")

	mustBook(t, e, user("alice"), req)

	_, err := e.Book(context.Background(), user("alice"), req)
	assertCode(t, err, apperrors.CodeConflict)
}

func TestBook_DuplicateQueueEntryRejected(t *testing.T) {
	e, _, _ := newTestEngine(t)
	req := futureSlot(t, "09:00")

	mustBook(t, e, user("alice"), req)
	mustBook(t, e, user("bob"), req)

	_, err := e.Book(context.Background(), user("bob"), req)
	assertCode(t, err, apperrors.CodeConflict)
}

func TestBook_PastSlotRejected(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.Book(context.Background(), user("alice"), &validator.SlotRequest{
		Date: "2020-01-01",
		Time: "09:00",
	})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestBook_UnknownSlotTimeRejected(t *testing.T) {
	e, _, _ := newTestEngine(t)

	req := futureSlot(t, "09:30")
	_, err := e.Book(context.Background(), user("alice"), req)
	assertCode(t, err, apperrors.CodeValidation)
}

func TestCancel_PromotesWaitlistHeadInOrder(t *testing.T) {
	e, _, notifier := newTestEngine(t)
	req := futureSlot(t, "09:00")

	booked := mustBook(t, e, user("alice"), req)
	mustBook(t, e, user("bob"), req)
	mustBook(t, e, user("carol"), req)

	outcome, err := e.Cancel(context.Background(), user("alice"), booked.Booking.ID)
	if err != nil {
		t.Fatalf("Cancel: unexpected error: %v", err)
	}

	if outcome.Release.Kind != model.OutcomePromoted {
		t.Fatalf("expected release outcome %s, got %s", model.OutcomePromoted, outcome.Release.Kind)
	}
	promoted := outcome.Release.Promoted
	if promoted.UserID != "bob" {
		t.Errorf("expected bob promoted first, got %s", promoted.UserID)
	}
	if promoted.Origin != model.OriginWaitlist {
		t.Errorf("expected origin %s, got %s", model.OriginWaitlist, promoted.Origin)
	}

	events := notifier.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 promotion event, got %d", len(events))
	}
	if events[0].UserID != "bob" || events[0].BookingID != promoted.ID {
		t.Errorf("promotion event does not match promoted booking: %+v", events[0])
	}

	// Carol moves up to the head.
	status, err := e.Status(context.Background(), user("carol"))
	if err != nil {
		t.Fatalf("Status: unexpected error: %v", err)
	}
	if len(status.Waitlists) != 1 {
		t.Fatalf("expected carol on 1 waitlist, got %d", len(status.Waitlists))
	}
	if status.Waitlists[0].Position != 1 {
		t.Errorf("expected carol at position 1, got %d", status.Waitlists[0].Position)
	}
}

func TestCancel_EmptyWaitlistNoPromotion(t *testing.T) {
	e, _, notifier := newTestEngine(t)

	booked := mustBook(t, e, user("alice"), futureSlot(t, "09:00"))

	outcome, err := e.Cancel(context.Background(), user("alice"), booked.Booking.ID)
	if err != nil {
		t.Fatalf("Cancel: unexpected error: %v", err)
	}

	if outcome.Release.Kind != model.OutcomeNoPromotion {
		t.Errorf("expected release outcome %s, got %s", model.OutcomeNoPromotion, outcome.Release.Kind)
	}
	if outcome.Cancelled.CancelledAt == nil {
		t.Error("cancelled booking must carry a cancellation timestamp")
	}
	if len(notifier.all()) != 0 {
		t.Error("no promotion event expected on empty waitlist")
	}
}

func TestCancel_KeepsHistory(t *testing.T) {
	e, _, _ := newTestEngine(t)

	booked := mustBook(t, e, user("alice"), futureSlot(t, "09:00"))
	if _, err := e.Cancel(context.Background(), user("alice"), booked.Booking.ID); err != nil {
		t.Fatalf("Cancel: unexpected error: %v", err)
	}

	status, err := e.Status(context.Background(), user("alice"))
	if err != nil {
		t.Fatalf("Status: unexpected error: %v", err)
	}
	if len(status.Cancelled) != 1 {
		t.Fatalf("expected 1 cancelled booking in history, got %d", len(status.Cancelled))
	}
	if status.Cancelled[0].ID != booked.Booking.ID {
		t.Errorf("history holds wrong booking: %s", status.Cancelled[0].ID)
	}
}

func TestCancel_OtherUsersBookingHidden(t *testing.T) {
	e, _, _ := newTestEngine(t)

	booked := mustBook(t, e, user("alice"), futureSlot(t, "09:00"))

	_, err := e.Cancel(context.Background(), user("bob"), booked.Booking.ID)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestCancel_AlreadyCancelledRejected(t *testing.T) {
	e, _, _ := newTestEngine(t)

	booked := mustBook(t, e, user("alice"), futureSlot(t, "09:00"))
	if _, err := e.Cancel(context.Background(), user("alice"), booked.Booking.ID); err != nil {
		t.Fatalf("Cancel: unexpected error: %v", err)
	}

	_, err := e.Cancel(context.Background(), user("alice"), booked.Booking.ID)
	assertCode(t, err, apperrors.CodeConflict)
}

func TestReschedule_ToFreeSlotMovesAndPromotes(t *testing.T) {
	e, _, notifier := newTestEngine(t)
	oldReq := futureSlot(t, "09:00")
	newReq := futureSlot(t, "10:00")

	booked := mustBook(t, e, user("alice"), oldReq)
	mustBook(t, e, user("bob"), oldReq)

	outcome, err := e.Reschedule(context.Background(), user("alice"), booked.Booking.ID, newReq)
	if err != nil {
		t.Fatalf("Reschedule: unexpected error: %v", err)
	}

	if outcome.Kind != model.OutcomeConfirmed {
		t.Fatalf("expected outcome %s, got %s", model.OutcomeConfirmed, outcome.Kind)
	}
	if outcome.Booking.Slot.Time != "10:00" {
		t.Errorf("expected booking moved to 10:00, got %s", outcome.Booking.Slot.Time)
	}
	if outcome.Booking.ID == booked.Booking.ID {
		t.Error("a move must create a new booking, not mutate the old one")
	}
	if outcome.Original == nil || outcome.Original.Status != model.StatusCancelled {
		t.Fatalf("old booking must be kept as cancelled, got %+v", outcome.Original)
	}
	if outcome.Original.RescheduledAt == nil {
		t.Error("old booking must carry a reschedule timestamp")
	}
	if outcome.Release == nil || outcome.Release.Kind != model.OutcomePromoted {
		t.Fatalf("expected old slot promotion, got %+v", outcome.Release)
	}
	if outcome.Release.Promoted.UserID != "bob" {
		t.Errorf("expected bob promoted on the old slot, got %s", outcome.Release.Promoted.UserID)
	}
	if len(notifier.all()) != 1 {
		t.Errorf("expected 1 promotion event, got %d", len(notifier.all()))
	}
}

func TestReschedule_ToOccupiedSlotQueuesKeepingOriginal(t *testing.T) {
	e, _, _ := newTestEngine(t)
	oldReq := futureSlot(t, "09:00")
	newReq := futureSlot(t, "10:00")

	booked := mustBook(t, e, user("alice"), oldReq)
	mustBook(t, e, user("bob"), newReq)

	outcome, err := e.Reschedule(context.Background(), user("alice"), booked.Booking.ID, newReq)
	if err != nil {
		t.Fatalf("Reschedule: unexpected error: %v", err)
	}

	if outcome.Kind != model.OutcomeQueued {
		t.Fatalf("expected outcome %s, got %s", model.OutcomeQueued, outcome.Kind)
	}
	if outcome.Entry == nil || outcome.Entry.Slot.Time != "10:00" {
		t.Fatalf("expected waitlist entry on 10:00, got %+v", outcome.Entry)
	}
	if outcome.Original == nil || !outcome.Original.IsConfirmed() {
		t.Fatal("original booking must stay confirmed")
	}

	// The original slot is still held by alice.
	status, err := e.Status(context.Background(), user("alice"))
	if err != nil {
		t.Fatalf("Status: unexpected error: %v", err)
	}
	if len(status.Confirmed) != 1 || status.Confirmed[0].Slot.Time != "09:00" {
		t.Errorf("expected alice still confirmed on 09:00, got %+v", status.Confirmed)
	}
	if len(status.Waitlists) != 1 || status.Waitlists[0].Position != 1 {
		t.Errorf("expected alice queued at position 1 on 10:00, got %+v", status.Waitlists)
	}
}

func TestReschedule_SameSlotRejected(t *testing.T) {
	e, _, _ := newTestEngine(t)
	req := futureSlot(t, "09:00")

	booked := mustBook(t, e, user("alice"), req)

	_, err := e.Reschedule(context.Background(), user("alice"), booked.Booking.ID, req)
	assertCode(t, err, apperrors.CodeInvalidInput)
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	e, _, _ := newTestEngine(t)
	req := futureSlot(t, "09:00")

	const callers = 10
	outcomes := make([]*model.BookOutcome, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = e.Book(context.Background(), user(string(rune('a'+i))), req)
		}(i)
	}
	wg.Wait()

	confirmed, queued := 0, 0
	for i := range outcomes {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error: %v", i, errs[i])
		}
		switch outcomes[i].Kind {
		case model.OutcomeConfirmed:
			confirmed++
		case model.OutcomeQueued:
			queued++
		}
	}

	if confirmed != 1 {
		t.Errorf("expected exactly 1 confirmed booking, got %d", confirmed)
	}
	if queued != callers-1 {
		t.Errorf("expected %d queued callers, got %d", callers-1, queued)
	}
}

func TestAvailability_ReflectsLedgerAndQueues(t *testing.T) {
	e, _, _ := newTestEngine(t)
	req := futureSlot(t, "09:00")

	mustBook(t, e, user("alice"), req)
	mustBook(t, e, user("bob"), req)

	day, err := e.Availability(context.Background(), req.Date)
	if err != nil {
		t.Fatalf("Availability: unexpected error: %v", err)
	}

	if len(day.Slots) != 3 {
		t.Fatalf("expected 3 slot times, got %d", len(day.Slots))
	}
	for _, slot := range day.Slots {
		switch slot.Slot.Time {
		case "09:00":
			if slot.Available {
				t.Error("09:00 should be taken")
			}
			if slot.WaitlistLength != 1 {
				t.Errorf("expected waitlist length 1 on 09:00, got %d", slot.WaitlistLength)
			}
		default:
			if !slot.Available {
				t.Errorf("%s should be free", slot.Slot.Time)
			}
			if slot.WaitlistLength != 0 {
				t.Errorf("expected empty waitlist on %s, got %d", slot.Slot.Time, slot.WaitlistLength)
			}
		}
	}
}

func TestUpcoming_CoversBookingWindow(t *testing.T) {
	e, _, _ := newTestEngine(t)

	days, err := e.Upcoming(context.Background())
	if err != nil {
		t.Fatalf("Upcoming: unexpected error: %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	if days[0].Date != time.Now().Format("2006-01-02") {
		t.Errorf("expected window to start today, got %s", days[0].Date)
	}
}

func TestListOccupied_Paginates(t *testing.T) {
	e, _, _ := newTestEngine(t)

	mustBook(t, e, user("alice"), futureSlot(t, "09:00"))
	mustBook(t, e, user("bob"), futureSlot(t, "10:00"))
	mustBook(t, e, user("carol"), futureSlot(t, "11:00"))

	page, total, err := e.ListOccupied(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("ListOccupied: unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	if len(page) != 2 {
		t.Errorf("expected page of 2, got %d", len(page))
	}

	rest, _, err := e.ListOccupied(context.Background(), 2, 2)
	if err != nil {
		t.Fatalf("ListOccupied: unexpected error: %v", err)
	}
	if len(rest) != 1 {
		t.Errorf("expected remaining page of 1, got %d", len(rest))
	}
}

func TestCancel_ConcurrentDoubleReleasePromotesOnce(t *testing.T) {
	e, store, notifier := newTestEngine(t)
	req := futureSlot(t, "09:00")

	booked := mustBook(t, e, user("alice"), req)
	mustBook(t, e, user("bob"), req)
	mustBook(t, e, user("carol"), req)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Cancel(context.Background(), user("alice"), booked.Booking.ID)
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			assertCode(t, err, apperrors.CodeConflict)
			conflicted++
		}
	}
	if succeeded != 1 || conflicted != 1 {
		t.Fatalf("expected exactly one success and one conflict, got %d successes, %d conflicts", succeeded, conflicted)
	}

	confirmed, err := store.Bookings().FindConfirmedByDate(context.Background(), req.Date)
	if err != nil {
		t.Fatalf("FindConfirmedByDate: %v", err)
	}
	var holders []*model.Booking
	for _, b := range confirmed {
		if b.Slot.Time == "09:00" {
			holders = append(holders, b)
		}
	}
	if len(holders) != 1 {
		t.Fatalf("expected exactly one confirmed holder after double release, got %d", len(holders))
	}
	if holders[0].UserID != "bob" {
		t.Errorf("expected bob to hold the slot, got %s", holders[0].UserID)
	}

	if len(notifier.all()) != 1 {
		t.Errorf("expected exactly one promotion event, got %d", len(notifier.all()))
	}

	queue, err := store.Waitlist().FindBySlot(context.Background(), model.Slot{Date: req.Date, Time: "09:00"})
	if err != nil {
		t.Fatalf("FindBySlot: %v", err)
	}
	if len(queue) != 1 || queue[0].UserID != "carol" {
		t.Errorf("expected carol still queued alone, got %+v", queue)
	}
}

// staleWaitlistRepository reports a queue entry from FindByUser that no
// queue contains anymore, as happens when a promotion lands between the
// two status reads.
type staleWaitlistRepository struct {
	repository.WaitlistRepository
	stale *model.WaitlistEntry
}

func (r *staleWaitlistRepository) FindByUser(ctx context.Context, userID string) ([]*model.WaitlistEntry, error) {
	return []*model.WaitlistEntry{r.stale}, nil
}

func TestStatus_SkipsEntryPromotedBetweenReads(t *testing.T) {
	e, store, _ := newTestEngine(t)
	req := futureSlot(t, "09:00")

	mustBook(t, e, user("alice"), req)

	e.waitlist = &staleWaitlistRepository{
		WaitlistRepository: store.Waitlist(),
		stale: &model.WaitlistEntry{
			ID:     "gone",
			UserID: "alice",
			Slot:   model.Slot{Date: req.Date, Time: "10:00"},
		},
	}

	status, err := e.Status(context.Background(), user("alice"))
	if err != nil {
		t.Fatalf("Status: unexpected error: %v", err)
	}
	if len(status.Waitlists) != 0 {
		t.Fatalf("expected no waitlist standings, got %+v", status.Waitlists)
	}
	if len(status.Confirmed) != 1 {
		t.Errorf("expected the confirmed booking to survive, got %d", len(status.Confirmed))
	}
}
