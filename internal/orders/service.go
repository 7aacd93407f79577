package orders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/evercart/checkout/internal/metrics"
	"github.com/evercart/checkout/internal/notify"
)

type Store interface {
	CreateFromCart(ctx context.Context, userID string, ship ShippingAddress) (Order, error)
	Get(ctx context.Context, orderID string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	SetStatus(ctx context.Context, orderID string, from, to Status) (bool, error)
	CancelRestock(ctx context.Context, orderID string, from Status) (bool, error)
}

type Service struct {
	Store  Store
	Notify notify.Dispatcher
	Log    *zap.Logger
}

// Checkout turns the user's cart into a PENDING order. All side effects
// (stock decrements, item snapshots, cart clearing) happen in the store's
// single transaction.
func (s *Service) Checkout(ctx context.Context, userID string, ship ShippingAddress) (Order, error) {
	o, err := s.Store.CreateFromCart(ctx, userID, ship)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyCart):
			metrics.CheckoutFailures.WithLabelValues("empty_cart").Inc()
		case errors.Is(err, ErrStockConflict):
			metrics.CheckoutFailures.WithLabelValues("stock_conflict").Inc()
		}
		return Order{}, err
	}
	metrics.OrdersCreated.Inc()
	s.Log.Info("order_created",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.Int("total_cents", o.TotalCents),
		zap.Int("items", len(o.Items)),
	)
	return o, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (Order, error) {
	return s.Store.Get(ctx, orderID)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.Store.ListByUser(ctx, userID)
}

// Transition moves an order along the lifecycle graph. Notification dispatch
// on SHIPPED/DELIVERED is best-effort: a failure is logged, the transition
// stands.
func (s *Service) Transition(ctx context.Context, orderID string, to Status) (Order, error) {
	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(o.Status, to) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	if to == StatusCancelled {
		return s.cancel(ctx, o)
	}
	ok, err := s.Store.SetStatus(ctx, orderID, o.Status, to)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		// someone else moved the order first
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	s.notifyStatus(ctx, o)
	return o, nil
}

// AdminOverride is the escape hatch around the forward-only graph. REFUNDED
// is reachable only through here.
func (s *Service) AdminOverride(ctx context.Context, orderID string, to Status) (Order, error) {
	if !ValidStatus(to) {
		return Order{}, fmt.Errorf("%w: unknown status %s", ErrInvalidTransition, to)
	}
	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !CanAdminOverride(o.Status, to) {
		return Order{}, fmt.Errorf("%w: admin override %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	ok, err := s.Store.SetStatus(ctx, orderID, o.Status, to)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, fmt.Errorf("%w: admin override %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	s.Log.Warn("order_status_overridden",
		zap.String("order_id", orderID),
		zap.String("from", string(o.Status)),
		zap.String("to", string(to)),
	)
	o.Status = to
	return o, nil
}

// Cancel aborts an order that has not shipped and restores its stock.
func (s *Service) Cancel(ctx context.Context, orderID string) (Order, error) {
	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusCancelled)
	}
	return s.cancel(ctx, o)
}

func (s *Service) cancel(ctx context.Context, o Order) (Order, error) {
	ok, err := s.Store.CancelRestock(ctx, o.ID, o.Status)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusCancelled)
	}
	o.Status = StatusCancelled
	s.notifyStatus(ctx, o)
	return o, nil
}

var statusTemplates = map[Status]string{
	StatusShipped:   notify.TemplateOrderShipped,
	StatusDelivered: notify.TemplateOrderDelivered,
	StatusCancelled: notify.TemplateOrderCancelled,
}

func (s *Service) notifyStatus(ctx context.Context, o Order) {
	tmpl, ok := statusTemplates[o.Status]
	if !ok {
		return
	}
	err := s.Notify.Dispatch(ctx, notify.Message{
		Recipient: o.UserID,
		Template:  tmpl,
		Context: map[string]string{
			"order_id":         o.ID,
			"status":           string(o.Status),
			"shipping_address": o.Shipping.Address,
		},
	})
	if err != nil {
		s.Log.Warn("notify_dispatch_failed",
			zap.String("order_id", o.ID),
			zap.String("template", tmpl),
			zap.Error(err),
		)
	}
}
