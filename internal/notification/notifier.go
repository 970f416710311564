package notification

import (
	"context"

	"slotbook/pkg/logger"
	"slotbook/pkg/model"
)

// Notifier is the outbound port for promotion events. The allocation engine
// reports promotions here and never writes to a delivery channel itself.
type Notifier interface {
	PromotionOccurred(ctx context.Context, event model.PromotionEvent) error
}

// LogNotifier records promotions in the service log. Used when Kafka is
// disabled, typically local development with the memory backend.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) PromotionOccurred(ctx context.Context, event model.PromotionEvent) error {
	n.log.Info("Waitlist promotion",
		"booking_id", event.BookingID,
		"user_id", event.UserID,
		"user_name", event.UserName,
		"date", event.Slot.Date,
		"time", event.Slot.Time,
		"promoted_at", event.PromotedAt,
	)
	return nil
}
