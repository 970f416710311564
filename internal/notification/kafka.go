package notification

import (
	"context"
	"fmt"

	"slotbook/pkg/kafka"
	"slotbook/pkg/model"
)

// KafkaNotifier publishes promotion events keyed by slot, so all events for
// one slot land on the same partition in order.
type KafkaNotifier struct {
	producer *kafka.Producer
	source   string
}

func NewKafkaNotifier(producer *kafka.Producer, source string) *KafkaNotifier {
	return &KafkaNotifier{
		producer: producer,
		source:   source,
	}
}

func (n *KafkaNotifier) PromotionOccurred(ctx context.Context, event model.PromotionEvent) error {
	msg := kafka.NewMessage().
		WithKey(event.Slot.Key()).
		WithValue(event).
		WithEventType(model.EventTypePromotion).
		WithSource(n.source).
		Build()

	if err := n.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish promotion event: %w", err)
	}
	return nil
}
