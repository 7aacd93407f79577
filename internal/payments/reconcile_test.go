package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/evercart/checkout/internal/notify"
)

// fakeStore mirrors the transactional semantics of Repo: the event id acts as
// the idempotency guard, and an unknown intent leaves the event unrecorded so
// a redelivery can land after intent creation.
type fakeStore struct {
	mu     sync.Mutex
	events map[string]bool

	paymentStatus  Status
	orderStatus    string
	orderCreatedAt time.Time
	orderID        string
	userID         string
	totalCents     int

	restocked bool
	applies   int
}

func newFakeStore(created time.Time) *fakeStore {
	return &fakeStore{
		events:         map[string]bool{},
		paymentStatus:  StatusPending,
		orderStatus:    "PENDING",
		orderCreatedAt: created,
		orderID:        "order-1",
		userID:         "u1",
		totalCents:     2599,
	}
}

func (f *fakeStore) ApplySucceeded(ctx context.Context, eventID, intentID, cardLast4 string) (ReconcileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events[eventID] {
		return ReconcileResult{Duplicate: true}, nil
	}
	if intentID != "pi_1" {
		return ReconcileResult{}, ErrNotFound
	}
	f.events[eventID] = true
	if f.paymentStatus == StatusSucceeded {
		return ReconcileResult{AlreadyApplied: true}, nil
	}
	f.paymentStatus = StatusSucceeded
	advanced := false
	if f.orderStatus == "PENDING" {
		f.orderStatus = "PROCESSING"
		advanced = true
	}
	f.applies++
	return ReconcileResult{
		Applied:       true,
		OrderAdvanced: advanced,
		OrderID:       f.orderID,
		UserID:        f.userID,
		TotalCents:    f.totalCents,
	}, nil
}

func (f *fakeStore) ApplyFailed(ctx context.Context, eventID, intentID, reason string, cancelBefore *time.Time) (ReconcileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events[eventID] {
		return ReconcileResult{Duplicate: true}, nil
	}
	if intentID != "pi_1" {
		return ReconcileResult{}, ErrNotFound
	}
	f.events[eventID] = true
	if f.paymentStatus == StatusSucceeded {
		return ReconcileResult{AlreadyApplied: true}, nil
	}
	f.paymentStatus = StatusFailed
	res := ReconcileResult{
		Applied: true,
		OrderID: f.orderID,
		UserID:  f.userID,
	}
	if cancelBefore != nil && f.orderStatus == "PENDING" && !f.orderCreatedAt.After(*cancelBefore) {
		f.orderStatus = "CANCELLED"
		f.restocked = true
		res.Cancelled = true
	}
	f.applies++
	return res, nil
}

type recDispatcher struct {
	mu        sync.Mutex
	templates []string
}

func (d *recDispatcher) Dispatch(ctx context.Context, msg notify.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.templates = append(d.templates, msg.Template)
	return nil
}

func succeededEvent(id string) Event {
	return Event{
		ID:   id,
		Type: EventIntentSucceeded,
		Data: EventData{Object: IntentObject{ID: "pi_1", CardLast4: "4242"}},
	}
}

func failedEvent(id string) Event {
	return Event{
		ID:   id,
		Type: EventIntentFailed,
		Data: EventData{Object: IntentObject{ID: "pi_1", FailureMessage: "card_declined"}},
	}
}

func newReconciler(store *fakeStore, disp *recDispatcher, window time.Duration, now time.Time) *Reconciler {
	return &Reconciler{
		Store:       store,
		Notify:      disp,
		Log:         zap.NewNop(),
		RetryWindow: window,
		now:         func() time.Time { return now },
	}
}

func TestHandleSucceeded(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(now)
	disp := &recDispatcher{}
	r := newReconciler(store, disp, time.Hour, now)
	ctx := context.Background()

	if err := r.HandleEvent(ctx, succeededEvent("evt_1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.paymentStatus != StatusSucceeded {
		t.Errorf("payment status = %s, want SUCCEEDED", store.paymentStatus)
	}
	if store.orderStatus != "PROCESSING" {
		t.Errorf("order status = %s, want PROCESSING", store.orderStatus)
	}
	if len(disp.templates) != 1 || disp.templates[0] != notify.TemplateOrderConfirmation {
		t.Errorf("dispatched = %v, want one order_confirmation", disp.templates)
	}
}

func TestHandleEventDuplicateID(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(now)
	disp := &recDispatcher{}
	r := newReconciler(store, disp, time.Hour, now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := r.HandleEvent(ctx, succeededEvent("evt_1")); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if store.applies != 1 {
		t.Errorf("state applied %d times, want 1", store.applies)
	}
	if len(disp.templates) != 1 {
		t.Errorf("dispatched %d notifications, want 1", len(disp.templates))
	}
}

func TestHandleSucceededAlreadyPaid(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(now)
	disp := &recDispatcher{}
	r := newReconciler(store, disp, time.Hour, now)
	ctx := context.Background()

	if err := r.HandleEvent(ctx, succeededEvent("evt_1")); err != nil {
		t.Fatalf("first: %v", err)
	}
	// distinct event id, same intent already succeeded
	if err := r.HandleEvent(ctx, succeededEvent("evt_2")); err != nil {
		t.Fatalf("second: %v", err)
	}
	if len(disp.templates) != 1 {
		t.Errorf("dispatched %d notifications, want 1 (no repeat on no-op)", len(disp.templates))
	}
}

func TestHandleFailedWithinRetryWindow(t *testing.T) {
	now := time.Now().UTC()
	// order created 10 minutes ago, window is an hour: customer may retry
	store := newFakeStore(now.Add(-10 * time.Minute))
	disp := &recDispatcher{}
	r := newReconciler(store, disp, time.Hour, now)

	if err := r.HandleEvent(context.Background(), failedEvent("evt_f1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.paymentStatus != StatusFailed {
		t.Errorf("payment status = %s, want FAILED", store.paymentStatus)
	}
	if store.orderStatus != "PENDING" {
		t.Errorf("order status = %s, want PENDING (still retryable)", store.orderStatus)
	}
	if store.restocked {
		t.Error("stock restored while the order is still open")
	}
	if len(disp.templates) != 0 {
		t.Errorf("dispatched %v, want none", disp.templates)
	}
}

func TestHandleFailedAfterRetryWindow(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(now.Add(-2 * time.Hour))
	disp := &recDispatcher{}
	r := newReconciler(store, disp, time.Hour, now)

	if err := r.HandleEvent(context.Background(), failedEvent("evt_f1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.orderStatus != "CANCELLED" {
		t.Errorf("order status = %s, want CANCELLED", store.orderStatus)
	}
	if !store.restocked {
		t.Error("stock not restored on auto-cancel")
	}
	if len(disp.templates) != 1 || disp.templates[0] != notify.TemplateOrderCancelled {
		t.Errorf("dispatched = %v, want one order_cancelled", disp.templates)
	}
}

func TestHandleFailedWindowDisabled(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(now.Add(-100 * 24 * time.Hour))
	disp := &recDispatcher{}
	r := newReconciler(store, disp, 0, now)

	if err := r.HandleEvent(context.Background(), failedEvent("evt_f1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.orderStatus != "PENDING" {
		t.Errorf("order status = %s, want PENDING (auto-cancel disabled)", store.orderStatus)
	}
	if store.restocked {
		t.Error("stock restored with auto-cancel disabled")
	}
}

func TestHandleFailedAfterSucceededNoRegress(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(now.Add(-2 * time.Hour))
	disp := &recDispatcher{}
	r := newReconciler(store, disp, time.Hour, now)
	ctx := context.Background()

	if err := r.HandleEvent(ctx, succeededEvent("evt_ok")); err != nil {
		t.Fatalf("succeeded: %v", err)
	}
	// out-of-order failure from an earlier attempt lands afterwards
	if err := r.HandleEvent(ctx, failedEvent("evt_late")); err != nil {
		t.Fatalf("late failure: %v", err)
	}
	if store.paymentStatus != StatusSucceeded {
		t.Errorf("payment status = %s, settled payment must not regress", store.paymentStatus)
	}
	if store.orderStatus != "PROCESSING" {
		t.Errorf("order status = %s, want PROCESSING", store.orderStatus)
	}
}

func TestHandleSucceededAfterAutoCancel(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(now.Add(-2 * time.Hour))
	disp := &recDispatcher{}
	r := newReconciler(store, disp, time.Hour, now)
	ctx := context.Background()

	// failure past the window cancels the order and restores stock
	if err := r.HandleEvent(ctx, failedEvent("evt_f1")); err != nil {
		t.Fatalf("failed event: %v", err)
	}
	if store.orderStatus != "CANCELLED" {
		t.Fatalf("order status = %s, want CANCELLED", store.orderStatus)
	}

	// then the success for the same intent arrives late
	if err := r.HandleEvent(ctx, succeededEvent("evt_s1")); err != nil {
		t.Fatalf("late success: %v", err)
	}
	if store.paymentStatus != StatusSucceeded {
		t.Errorf("payment status = %s, the capture still settles for audit", store.paymentStatus)
	}
	if store.orderStatus != "CANCELLED" {
		t.Errorf("order status = %s, a cancelled order must stay cancelled", store.orderStatus)
	}
	got := disp.templates
	if len(got) != 1 || got[0] != notify.TemplateOrderCancelled {
		t.Errorf("dispatched = %v, want only order_cancelled (no confirmation for a cancelled order)", got)
	}
}

func TestHandleEventUnknownType(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(now)
	disp := &recDispatcher{}
	r := newReconciler(store, disp, time.Hour, now)

	ev := Event{ID: "evt_x", Type: "charge.dispute.created"}
	if err := r.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("unknown type must be swallowed, got %v", err)
	}
	if store.applies != 0 {
		t.Error("unknown event touched state")
	}
	if len(store.events) != 0 {
		t.Error("unknown event recorded as processed")
	}
}

func TestHandleEventMissingID(t *testing.T) {
	r := newReconciler(newFakeStore(time.Now()), &recDispatcher{}, time.Hour, time.Now())
	if err := r.HandleEvent(context.Background(), Event{Type: EventIntentSucceeded}); err == nil {
		t.Fatal("event without id must be an error")
	}
}

func TestHandleEventUnknownIntent(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(now)
	r := newReconciler(store, &recDispatcher{}, time.Hour, now)

	ev := succeededEvent("evt_early")
	ev.Data.Object.ID = "pi_unknown"
	err := r.HandleEvent(context.Background(), ev)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound so the processor redelivers", err)
	}
	if store.events["evt_early"] {
		t.Error("failed event recorded as processed, redelivery would be lost")
	}
}
