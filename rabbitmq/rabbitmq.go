// Package rabbitmq queues notifications on a durable RabbitMQ queue and
// delivers them from a worker with manual acknowledgements.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shop-svc/middleware"
	"shop-svc/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// SetupConn dials with a short retry loop for container startup and
// declares the notification queue.
func SetupConn(url, queue string, logger *zap.Logger) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to RabbitMQ", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("could not declare queue: %w", err)
	}

	logger.Info("RabbitMQ connection established", zap.String("queue", queue))
	return conn, ch, nil
}

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Notifier struct {
	ch    publishChannel
	queue string
}

func NewNotifier(ch *amqp.Channel, queue string) *Notifier {
	return &Notifier{ch: ch, queue: queue}
}

func (n *Notifier) Notify(ctx context.Context, msg models.NotificationMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("could not marshal notification: %w", err)
	}

	err = n.ch.PublishWithContext(ctx,
		"",      // default exchange
		n.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		middleware.RecordNotificationSent("rabbitmq", "failed")
		return fmt.Errorf("could not publish notification: %w", err)
	}
	middleware.RecordNotificationSent("rabbitmq", "queued")
	return nil
}

type NotificationHandler interface {
	Notify(ctx context.Context, msg models.NotificationMessage) error
}

type Worker struct {
	ch      *amqp.Channel
	queue   string
	handler NotificationHandler
	logger  *zap.Logger
}

func NewWorker(ch *amqp.Channel, queue string, handler NotificationHandler, logger *zap.Logger) *Worker {
	return &Worker{ch: ch, queue: queue, handler: handler, logger: logger}
}

// Run consumes until ctx is cancelled or the channel closes.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("could not set qos: %w", err)
	}
	msgs, err := w.ch.Consume(
		w.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("could not start consume: %w", err)
	}

	w.logger.Info("RabbitMQ notification worker started", zap.String("queue", w.queue))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			w.deliver(ctx, d)
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (w *Worker) deliver(ctx context.Context, d amqp.Delivery) {
	w.handle(ctx, d.Body, d.Redelivered, d)
}

// handle acks delivered and malformed messages. A failed delivery is
// requeued once, then dropped.
func (w *Worker) handle(ctx context.Context, body []byte, redelivered bool, ack acknowledger) bool {
	var msg models.NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil || msg.Email == "" {
		w.logger.Error("Dropping malformed notification", zap.ByteString("body", body), zap.Error(err))
		ack.Ack(false)
		return false
	}

	if err := w.handler.Notify(ctx, msg); err != nil {
		w.logger.Error("Failed to deliver notification",
			zap.String("kind", msg.Kind),
			zap.String("email", msg.Email),
			zap.Bool("redelivered", redelivered),
			zap.Error(err),
		)
		ack.Nack(false, !redelivered)
		return false
	}

	ack.Ack(false)
	return true
}
