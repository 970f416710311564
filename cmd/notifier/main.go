package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"slotbook/pkg/config"
	"slotbook/pkg/kafka"
	kafkaconfig "slotbook/pkg/kafka/config"
	kafkamw "slotbook/pkg/kafka/middleware"
	"slotbook/pkg/model"
)

const serviceName = "promotion-notifier"

// The notifier consumes promotion events and delivers the "your waitlist
// spot came through" notification. Delivery here is a structured log line;
// swapping in email or push means replacing notify only.
func main() {
	cfg := config.Load(serviceName)
	log := cfg.Log

	handler := func(ctx context.Context, msg kafka.Message) error {
		var event model.PromotionEvent
		if err := msg.DecodeValue(&event); err != nil {
			return err
		}
		return notify(cfg, event)
	}

	consumer, err := kafka.NewConsumer(
		kafkaconfig.Load(),
		cfg.PromotionTopic,
		cfg.NotifierGroupID,
		cfg.PromotionDLQTopic,
		handler,
	)
	if err != nil {
		log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafkamw.LoggingConsumerMiddleware(log))

	ctx, cancel := context.WithCancel(context.Background())

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		log.Info("Shutdown signal received", "signal", sig)
		cancel()
	}()

	log.Info("Consuming promotion events",
		"topic", cfg.PromotionTopic,
		"group_id", cfg.NotifierGroupID,
	)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Consumer stopped with error", "error", err)
	}

	if err := consumer.Close(); err != nil {
		log.Error("Failed to close consumer", "error", err)
	}
	log.Info("Notifier stopped")
}

func notify(cfg *config.Config, event model.PromotionEvent) error {
	cfg.Log.Info("Notifying promoted user",
		"booking_id", event.BookingID,
		"user_id", event.UserID,
		"user_name", event.UserName,
		"date", event.Slot.Date,
		"time", event.Slot.Time,
		"promoted_at", event.PromotedAt,
	)
	return nil
}
