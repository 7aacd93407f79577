package redisx

import "encoding/json"

// CachedStatus is the order-status cache payload. The owner id travels with
// the status so reads can enforce ownership without a database round trip.
type CachedStatus struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

func StatusPayload(userID, status string) []byte {
	b, _ := json.Marshal(CachedStatus{UserID: userID, Status: status})
	return b
}
