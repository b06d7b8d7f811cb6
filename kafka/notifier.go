package kafka

import (
	"context"

	"shop-svc/middleware"
	"shop-svc/models"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Notifier queues notifications on a topic instead of sending them inline.
// A NotificationWorker delivers them.
type Notifier struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

func NewNotifier(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Notifier {
	return &Notifier{producer: producer, topic: topic, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, msg models.NotificationMessage) error {
	if err := publish(ctx, n.producer, n.topic, msg.Email, msg, n.logger); err != nil {
		middleware.RecordNotificationSent("kafka", "failed")
		return err
	}
	middleware.RecordNotificationSent("kafka", "queued")
	return nil
}
