package payments

import "encoding/json"

// Processor webhook event vocabulary this service understands. Anything else
// is logged and ignored; the processor's vocabulary evolves independently.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

// Event is the decoded webhook envelope.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"` // unix seconds
	Data    EventData `json:"data"`
}

type EventData struct {
	Object IntentObject `json:"object"`
}

// IntentObject carries the fields of the processor's payment-intent object
// that reconciliation cares about.
type IntentObject struct {
	ID             string `json:"id"`
	CardLast4      string `json:"card_last4,omitempty"`
	FailureMessage string `json:"failure_message,omitempty"`
}

func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
