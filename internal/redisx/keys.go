package redisx

import "time"

const (
	// Cache of order status payloads: order_status:{order_id} -> CachedStatus JSON
	KeyOrderStatus = "order_status:%s"

	// Fast-path dedup for webhook event processing: dedup:{service}:{event_id}.
	// The webhook_events table stays the source of truth; this only short-circuits
	// repeat deliveries without a round trip to Postgres.
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
