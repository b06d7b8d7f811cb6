package workflow

import (
	"context"
	"fmt"

	"shop-svc/middleware"
	"shop-svc/models"

	"go.uber.org/zap"
)

// notify hands msg to the notifier and swallows any failure. The caller's
// cancellation does not cut delivery short.
func (w *Workflow) notify(ctx context.Context, msg models.NotificationMessage) {
	if w.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("notifier panicked: %v", r)
			}
		}()
		return w.notifier.Notify(ctx, msg)
	}()
	if err != nil {
		w.logger.Error("Failed to send notification",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("kind", msg.Kind),
			zap.String("email", msg.Email),
			zap.Error(err),
		)
	}
}

// SendWelcome notifies a newly registered user. Failures are only logged.
func (w *Workflow) SendWelcome(ctx context.Context, user *models.User) {
	w.notify(ctx, models.NotificationMessage{
		Kind:      models.NotificationWelcome,
		Email:     user.Email,
		FirstName: user.Name,
	})
}

func (w *Workflow) publish(ctx context.Context, o *models.Order, eventType string) {
	if w.events == nil {
		return
	}
	event := models.OrderEvent{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		EventType:   eventType,
	}
	if o.PaymentReference != nil {
		event.PaymentReference = *o.PaymentReference
	}
	if err := w.events.PublishOrderEvent(ctx, event); err != nil {
		// Don't fail the request, but log the error
		w.logger.Error("Failed to publish order event",
			zap.String("event_type", eventType),
			zap.Int("order_id", o.ID),
			zap.Error(err),
		)
	}
}
