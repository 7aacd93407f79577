package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/evercart/checkout/internal/kafka"
)

// KafkaDispatcher publishes messages to the notify.email topic for the
// notifier binary to deliver.
type KafkaDispatcher struct {
	Producer *kafkax.Producer
	Service  string
}

var _ Dispatcher = (*KafkaDispatcher)(nil)

func (d *KafkaDispatcher) Dispatch(ctx context.Context, msg Message) error {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventEmailRequested,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      d.Service,
		CorrelationID: msg.Context["order_id"],
		Payload:       kafkax.MustMarshal(msg),
	}
	d.Producer.Publish(PartitionKey(msg.Recipient), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventEmailRequested)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}
