package notify

import "context"

// Templates understood by the notifier. Bodies live in templates.go.
const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplateOrderShipped      = "order_shipped"
	TemplateOrderDelivered    = "order_delivered"
	TemplateOrderCancelled    = "order_cancelled"
)

type Message struct {
	Recipient string            `json:"recipient"`
	Template  string            `json:"template_id"`
	Context   map[string]string `json:"context"`
}

// Dispatcher hands a message to the delivery channel. Delivery is best-effort
// and asynchronous; callers log a dispatch error and move on, they never roll
// back state because of one.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// Nop drops every message. Useful in tests and when no broker is configured.
type Nop struct{}

func (Nop) Dispatch(context.Context, Message) error { return nil }
