package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shop-svc/config"
	"shop-svc/middleware"
	"shop-svc/models"

	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type NotificationHandler interface {
	Notify(ctx context.Context, msg models.NotificationMessage) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NotificationWorker drains the notification topic as part of a consumer
// group and hands each message to the handler.
type NotificationWorker struct {
	reader     messageReader
	handler    NotificationHandler
	logger     *zap.Logger
	maxRetries int
	backoff    time.Duration
}

func NewNotificationWorker(cfg config.KafkaConfig, handler NotificationHandler, logger *zap.Logger) *NotificationWorker {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.NotificationGroup,
		Topic:    cfg.NotificationTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &NotificationWorker{
		reader:     reader,
		handler:    handler,
		logger:     logger,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// Run consumes until ctx is cancelled. Offsets are committed once a message
// has been handled or given up on.
func (w *NotificationWorker) Run(ctx context.Context) error {
	defer w.reader.Close()
	w.logger.Info("Kafka notification worker started")

	for {
		message, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		if err := w.handleMessageWithRetry(ctx, message); err != nil {
			w.logger.Error("Failed to handle message after retries",
				zap.Int64("offset", message.Offset),
				zap.Error(err),
			)
		}

		if err := w.reader.CommitMessages(ctx, message); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("Failed to commit message", zap.Int64("offset", message.Offset), zap.Error(err))
		}
	}
}

var errMalformed = errors.New("malformed notification")

func (w *NotificationWorker) handleMessageWithRetry(ctx context.Context, message kafkago.Message) error {
	var lastErr error
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		err := w.handleMessage(ctx, message)
		if err == nil {
			return nil
		}
		if errors.Is(err, errMalformed) {
			return err
		}
		lastErr = err
		if attempt < w.maxRetries {
			backoff := time.Duration(attempt) * w.backoff
			w.logger.Warn("Retrying message handling",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", w.maxRetries, lastErr)
}

func (w *NotificationWorker) handleMessage(ctx context.Context, message kafkago.Message) error {
	// Extract trace context from Kafka message headers
	ctx = otel.GetTextMapPropagator().Extract(ctx, kafkaHeaderCarrier(message.Headers))
	ctx, span := otel.Tracer("shop-service").Start(ctx, "ProcessNotification")
	defer span.End()

	var msg models.NotificationMessage
	if err := json.Unmarshal(message.Value, &msg); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if msg.Email == "" {
		return fmt.Errorf("%w: missing email", errMalformed)
	}
	span.SetAttributes(attribute.String("notification.kind", msg.Kind))

	if err := w.handler.Notify(ctx, msg); err != nil {
		span.RecordError(err)
		return err
	}

	w.logger.Info("Notification delivered",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("kind", msg.Kind),
		zap.String("email", msg.Email),
	)
	return nil
}

// kafkaHeaderCarrier adapts consumed message headers to the otel TextMapCarrier.
type kafkaHeaderCarrier []kafkago.Header

func (c kafkaHeaderCarrier) Get(key string) string {
	for _, h := range c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c kafkaHeaderCarrier) Set(key, value string) {
	// Not needed for extraction
}

func (c kafkaHeaderCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = h.Key
	}
	return keys
}
