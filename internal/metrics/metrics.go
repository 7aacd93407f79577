package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OrdersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders successfully created from carts.",
		},
	)
	CheckoutFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_failures_total",
			Help: "Checkout attempts rejected, by reason.",
		},
		[]string{"reason"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook events received, by type and outcome.",
		},
		[]string{"type", "outcome"},
	)
	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notification emails attempted, by template and outcome.",
		},
		[]string{"template", "outcome"},
	)
)

func MustRegister() {
	prometheus.MustRegister(OrdersCreated, CheckoutFailures, WebhookEvents, NotificationsSent)
}
