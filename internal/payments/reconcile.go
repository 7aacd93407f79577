package payments

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/evercart/checkout/internal/metrics"
	"github.com/evercart/checkout/internal/notify"
	"github.com/evercart/checkout/internal/redisx"
)

// ReconcileResult reports what a reconciliation transaction actually did.
type ReconcileResult struct {
	Duplicate      bool // event id seen before, nothing applied
	AlreadyApplied bool // payment already in the target/terminal state
	Applied        bool // payment row moved
	OrderAdvanced  bool // succeeded path only: order CAS PENDING -> PROCESSING landed
	Cancelled      bool // failed path only: order auto-cancelled, stock restored
	OrderID        string
	UserID         string
	TotalCents     int
}

// ReconcileStore applies one event as one transaction, guarded by the
// event-id uniqueness constraint.
type ReconcileStore interface {
	ApplySucceeded(ctx context.Context, eventID, intentID, cardLast4 string) (ReconcileResult, error)
	ApplyFailed(ctx context.Context, eventID, intentID, reason string, cancelBefore *time.Time) (ReconcileResult, error)
}

// Reconciler consumes processor webhook events and is the single writer of
// payment and order lifecycle state. Events arrive at-least-once and out of
// order; everything here is idempotent.
type Reconciler struct {
	Store ReconcileStore
	Redis *redis.Client // optional dedup fast path; Postgres stays authoritative

	Notify notify.Dispatcher
	Log    *zap.Logger

	// RetryWindow is how long after order creation a failed payment may still
	// be retried. Once elapsed, a failure event cancels the order and restores
	// stock. Zero disables auto-cancellation.
	RetryWindow time.Duration

	now func() time.Time // test hook
}

func (r *Reconciler) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now().UTC()
}

func (r *Reconciler) HandleEvent(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		return fmt.Errorf("payments: event without id")
	}

	// Fast-path dedup. Best-effort: a Redis miss just means one extra trip to
	// the authoritative webhook_events check.
	if r.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, "reconcile", ev.ID)
		if seen, _ := redisx.Exists(ctx, r.Redis, dkey); seen {
			metrics.WebhookEvents.WithLabelValues(ev.Type, "duplicate").Inc()
			return nil
		}
	}

	var (
		res ReconcileResult
		err error
	)
	switch ev.Type {
	case EventIntentSucceeded:
		res, err = r.handleSucceeded(ctx, ev)
	case EventIntentFailed:
		res, err = r.handleFailed(ctx, ev)
	default:
		// Unknown types are expected as the processor's vocabulary evolves.
		r.Log.Info("webhook_event_ignored",
			zap.String("event_id", ev.ID),
			zap.String("event_type", ev.Type),
		)
		metrics.WebhookEvents.WithLabelValues(ev.Type, "ignored").Inc()
		return nil
	}
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(ev.Type, "error").Inc()
		return err
	}

	switch {
	case res.Duplicate:
		metrics.WebhookEvents.WithLabelValues(ev.Type, "duplicate").Inc()
	case res.AlreadyApplied:
		metrics.WebhookEvents.WithLabelValues(ev.Type, "noop").Inc()
	default:
		metrics.WebhookEvents.WithLabelValues(ev.Type, "applied").Inc()
	}

	if r.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, "reconcile", ev.ID)
		_ = r.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}
	return nil
}

func (r *Reconciler) handleSucceeded(ctx context.Context, ev Event) (ReconcileResult, error) {
	res, err := r.Store.ApplySucceeded(ctx, ev.ID, ev.Data.Object.ID, ev.Data.Object.CardLast4)
	if err != nil {
		return res, err
	}
	if !res.Applied {
		return res, nil
	}
	r.Log.Info("payment_succeeded",
		zap.String("event_id", ev.ID),
		zap.String("order_id", res.OrderID),
		zap.Bool("order_advanced", res.OrderAdvanced),
	)
	// The confirmation and the status cache follow the ORDER transition, not
	// the payment row. A success landing after auto-cancel settles the payment
	// but must not announce a cancelled order as processing.
	if !res.OrderAdvanced {
		return res, nil
	}
	r.refreshStatusCache(ctx, res.OrderID, res.UserID, "PROCESSING")
	r.dispatch(ctx, notify.Message{
		Recipient: res.UserID,
		Template:  notify.TemplateOrderConfirmation,
		Context: map[string]string{
			"order_id": res.OrderID,
			"total":    centsToDollars(res.TotalCents),
		},
	})
	return res, nil
}

func (r *Reconciler) handleFailed(ctx context.Context, ev Event) (ReconcileResult, error) {
	var cancelBefore *time.Time
	if r.RetryWindow > 0 {
		cutoff := r.clock().Add(-r.RetryWindow)
		cancelBefore = &cutoff
	}
	res, err := r.Store.ApplyFailed(ctx, ev.ID, ev.Data.Object.ID, ev.Data.Object.FailureMessage, cancelBefore)
	if err != nil {
		return res, err
	}
	if !res.Applied {
		return res, nil
	}
	r.Log.Info("payment_failed",
		zap.String("event_id", ev.ID),
		zap.String("order_id", res.OrderID),
		zap.Bool("order_cancelled", res.Cancelled),
		zap.String("reason", ev.Data.Object.FailureMessage),
	)
	if res.Cancelled {
		r.refreshStatusCache(ctx, res.OrderID, res.UserID, "CANCELLED")
		r.dispatch(ctx, notify.Message{
			Recipient: res.UserID,
			Template:  notify.TemplateOrderCancelled,
			Context:   map[string]string{"order_id": res.OrderID},
		})
	}
	return res, nil
}

func (r *Reconciler) dispatch(ctx context.Context, msg notify.Message) {
	if r.Notify == nil {
		return
	}
	if err := r.Notify.Dispatch(ctx, msg); err != nil {
		// best-effort: never fail the event over a notification
		r.Log.Warn("notify_dispatch_failed",
			zap.String("template", msg.Template),
			zap.Error(err),
		)
	}
}

func (r *Reconciler) refreshStatusCache(ctx context.Context, orderID, userID, status string) {
	if r.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	_ = r.Redis.Set(ctx, key, redisx.StatusPayload(userID, status), redisx.TTLStatusCache).Err()
}

func centsToDollars(c int) string {
	return strconv.FormatFloat(float64(c)/100, 'f', 2, 64)
}
