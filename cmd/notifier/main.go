package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/evercart/checkout/internal/config"
	kafkax "github.com/evercart/checkout/internal/kafka"
	"github.com/evercart/checkout/internal/logging"
	"github.com/evercart/checkout/internal/metrics"
	"github.com/evercart/checkout/internal/notify"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.MustNewLogger(cfg.ServiceName+"-notifier", cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.MustRegister()

	mailer := &notify.Mailer{Addr: cfg.SMTPAddr, From: cfg.SMTPFrom}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, notify.TopicEmail, cfg.NotifierWorkers, log)

	handler := func(ctx context.Context, m kafkago.Message) error {
		var env notify.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			log.Warn("notify_bad_envelope", zap.Error(err))
			return nil // poison message, drop it
		}
		if env.EventType != notify.EventEmailRequested {
			return nil
		}
		msg, err := kafkax.UnwrapPayload[notify.Message](env.Payload)
		if err != nil {
			log.Warn("notify_bad_payload", zap.String("event_id", env.EventID), zap.Error(err))
			return nil
		}

		// Delivery is best-effort: failures are logged and the offset is
		// still committed, never retried into a mail storm.
		if err := mailer.Send(msg); err != nil {
			metrics.NotificationsSent.WithLabelValues(msg.Template, "error").Inc()
			log.Warn("notify_send_failed",
				zap.String("event_id", env.EventID),
				zap.String("template", msg.Template),
				zap.String("recipient", msg.Recipient),
				zap.Error(err),
			)
			return nil
		}
		metrics.NotificationsSent.WithLabelValues(msg.Template, "ok").Inc()
		log.Info("notify_sent",
			zap.String("template", msg.Template),
			zap.String("recipient", msg.Recipient),
		)
		return nil
	}

	go func() {
		log.Info("notifier_started",
			zap.String("group", cfg.NotifierGroup),
			zap.String("topic", notify.TopicEmail),
			zap.Int("workers", cfg.NotifierWorkers),
		)
		if err := cons.Start(ctx, handler); err != nil {
			log.Error("consumer_exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting_down")
	cancel()
}
