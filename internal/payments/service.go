package payments

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/evercart/checkout/internal/orders"
)

type Store interface {
	Insert(ctx context.Context, p Payment) (Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (Payment, error)
	GetByIntentID(ctx context.Context, intentID string) (Payment, error)
}

type OrderReader interface {
	Get(ctx context.Context, orderID string) (orders.Order, error)
}

// Service creates and confirms payment intents. It owns the Payment rows but
// never writes order status; reconciliation is the single writer there.
type Service struct {
	Gateway Gateway
	Store   Store
	Orders  OrderReader
	Log     *zap.Logger
}

// CreateIntent asks the processor for an intent and records the PENDING
// Payment. Idempotent per order: an existing unpaid payment returns the
// stored intent, a paid one is refused.
func (s *Service) CreateIntent(ctx context.Context, userID, orderID string) (Payment, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return Payment{}, err
	}
	if o.UserID != userID {
		return Payment{}, orders.ErrNotFound
	}

	existing, err := s.Store.GetByOrderID(ctx, orderID)
	switch {
	case err == nil:
		if existing.Status == StatusSucceeded {
			return Payment{}, ErrOrderAlreadyPaid
		}
		return existing, nil
	case errors.Is(err, ErrNotFound):
		// first attempt for this order
	default:
		return Payment{}, err
	}

	ref, err := s.Gateway.CreateIntent(ctx, o.ID, o.TotalCents)
	if err != nil {
		return Payment{}, err
	}
	p, err := s.Store.Insert(ctx, Payment{
		OrderID:      o.ID,
		IntentID:     ref.IntentID,
		ClientSecret: ref.ClientSecret,
		Status:       StatusPending,
		AmountCents:  o.TotalCents,
	})
	if err != nil {
		return Payment{}, err
	}
	s.Log.Info("payment_intent_created",
		zap.String("order_id", o.ID),
		zap.String("intent_id", ref.IntentID),
		zap.Int("amount_cents", o.TotalCents),
	)
	return p, nil
}

// Confirm forwards a confirmation to the processor. The local Payment is left
// untouched on purpose: its state only moves via reconciliation events, so a
// crash between confirm and webhook cannot fork the two.
func (s *Service) Confirm(ctx context.Context, userID, intentID string) (IntentRef, error) {
	p, err := s.Store.GetByIntentID(ctx, intentID)
	if err != nil {
		return IntentRef{}, err
	}
	o, err := s.Orders.Get(ctx, p.OrderID)
	if err != nil {
		return IntentRef{}, err
	}
	if o.UserID != userID {
		return IntentRef{}, ErrNotFound
	}
	return s.Gateway.ConfirmIntent(ctx, intentID)
}
