package payments

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("payments: payment not found")
	ErrOrderAlreadyPaid = errors.New("payments: order already paid")

	// ErrGatewayUnavailable covers timeouts and transport failures talking to
	// the processor. Retryable by the caller.
	ErrGatewayUnavailable = errors.New("payments: gateway unavailable")
	// ErrGatewayRejected means the processor refused the request. Not retryable.
	ErrGatewayRejected = errors.New("payments: gateway rejected request")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Payment is the 1:1 companion of an order. It is created PENDING alongside
// the processor intent and only moves via reconciliation events. The row
// outlives the checkout attempt for audit purposes.
type Payment struct {
	ID            string     `json:"id"`
	OrderID       string     `json:"order_id"`
	IntentID      string     `json:"intent_id"`
	ClientSecret  string     `json:"-"`
	Status        Status     `json:"status"`
	AmountCents   int        `json:"amount_cents"`
	CardLast4     string     `json:"card_last4,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}
