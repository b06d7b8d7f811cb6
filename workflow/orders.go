package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shop-svc/middleware"
	"shop-svc/models"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CreateOrderInput is one checkout. Authenticated callers set UserID and
// Email; guest callers set Guest instead.
type CreateOrderInput struct {
	Items           []models.OrderItemRequest
	UserID          *int
	Email           string
	FirstName       string
	LastName        string
	Phone           string
	Guest           *models.Contact
	ShippingAddress *models.ShippingAddress
	Notes           string
}

func (in CreateOrderInput) contact() (models.Contact, bool, error) {
	if in.UserID != nil {
		email := strings.TrimSpace(in.Email)
		if email == "" {
			return models.Contact{}, false, badRequest("account has no email address")
		}
		return models.Contact{Email: email, FirstName: in.FirstName, LastName: in.LastName, Phone: in.Phone}, false, nil
	}
	if in.Guest == nil || strings.TrimSpace(in.Guest.Email) == "" {
		return models.Contact{}, true, badRequest("guest email is required")
	}
	c := *in.Guest
	c.Email = strings.TrimSpace(c.Email)
	return c, true, nil
}

// CreateOrder prices the requested lines at current catalog prices, takes
// the stock and persists a pending order. Stock decrements and the order
// insert commit together or not at all.
func (w *Workflow) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	ctx, span := otel.Tracer("shop-service").Start(ctx, "workflow.CreateOrder")
	defer span.End()

	contact, isGuest, err := in.contact()
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, badRequest("order must contain at least one item")
	}

	// Resolve every product before touching anything.
	products := make(map[int]*models.Product, len(in.Items))
	requested := make(map[int]int, len(in.Items))
	var productIDs []int
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, badRequest("quantity for product %d must be positive", item.ProductID)
		}
		if _, seen := products[item.ProductID]; !seen {
			p, err := w.catalog.GetProduct(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, models.ErrProductNotFound) {
					return nil, fmt.Errorf("product %d: %w", item.ProductID, models.ErrProductNotFound)
				}
				span.RecordError(err)
				return nil, fmt.Errorf("failed to load product %d: %w", item.ProductID, err)
			}
			products[item.ProductID] = p
			productIDs = append(productIDs, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
	}

	for _, id := range productIDs {
		p := products[id]
		if p.Stock < requested[id] {
			return nil, &InsufficientStockError{
				ProductID:   id,
				ProductName: p.Name,
				Available:   p.Stock,
				Requested:   requested[id],
			}
		}
	}

	items := make([]models.OrderItem, 0, len(in.Items))
	total := decimal.Zero
	for _, item := range in.Items {
		p := products[item.ProductID]
		subtotal := p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		items = append(items, models.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    item.Quantity,
			UnitPrice:   p.Price,
			Subtotal:    subtotal,
		})
		total = total.Add(subtotal)
	}

	order := &models.Order{
		UserID:          in.UserID,
		IsGuest:         isGuest,
		Contact:         contact,
		ShippingAddress: in.ShippingAddress,
		Items:           items,
		TotalAmount:     total,
		Status:          models.OrderStatusPending,
		Notes:           in.Notes,
		PaymentStatus:   models.PaymentStatusUnpaid,
	}

	var saved *models.Order
	err = w.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, id := range productIDs {
			if err := w.catalog.ConditionalDecrementStock(ctx, id, requested[id]); err != nil {
				return w.decrementError(ctx, products[id], requested[id], err)
			}
		}
		var err error
		saved, err = w.orders.SaveOrder(ctx, order)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("order.id", saved.ID),
		attribute.Bool("order.guest", isGuest),
		attribute.String("order.total", saved.TotalAmount.String()),
	)

	if w.cache != nil {
		w.cache.Invalidate(ctx, productIDs...)
	}

	checkout := "user"
	if isGuest {
		checkout = "guest"
	}
	middleware.RecordOrderCreated(checkout)

	w.logger.Info("Order created",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("order_id", saved.ID),
		zap.Bool("guest", isGuest),
		zap.String("total", saved.TotalAmount.String()),
	)

	summary := saved.Summary()
	w.notify(ctx, models.NotificationMessage{
		Kind:      models.NotificationOrderConfirmation,
		Email:     saved.Contact.Email,
		FirstName: saved.Contact.FirstName,
		Order:     &summary,
	})
	w.publish(ctx, saved, "order_created")

	return saved, nil
}

// decrementError turns a failed conditional decrement into the caller-facing
// error. Losing the race to a concurrent order reports the stock left now.
func (w *Workflow) decrementError(ctx context.Context, p *models.Product, requested int, err error) error {
	switch {
	case errors.Is(err, models.ErrInsufficientStock):
		middleware.RecordStockConflict()
		available := 0
		if current, gerr := w.catalog.GetProduct(ctx, p.ID); gerr == nil {
			available = current.Stock
		}
		w.logger.Warn("Stock taken by a concurrent order",
			zap.Int("product_id", p.ID),
			zap.Int("available", available),
			zap.Int("requested", requested),
		)
		return &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Available:   available,
			Requested:   requested,
		}
	case errors.Is(err, models.ErrProductNotFound):
		return fmt.Errorf("product %d: %w", p.ID, models.ErrProductNotFound)
	}
	return fmt.Errorf("failed to reserve stock for product %d: %w", p.ID, err)
}

// UpdateOrderStatus is the admin override. It follows the order state
// machine and only applies if nobody moved the order in the meantime.
func (w *Workflow) UpdateOrderStatus(ctx context.Context, id int, to models.OrderStatus) (*models.Order, error) {
	ctx, span := otel.Tracer("shop-service").Start(ctx, "workflow.UpdateOrderStatus")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", id), attribute.String("order.status", string(to)))

	if !to.Valid() {
		return nil, badRequest("unknown order status %q", to)
	}

	order, err := w.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == to {
		return order, nil
	}
	if !models.CanTransition(order.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, to)
	}

	ok, err := w.orders.ConditionalUpdateStatus(ctx, id, order.Status, to)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: order %d is no longer %s", ErrInvalidTransition, id, order.Status)
	}

	w.logger.Info("Order status updated",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("order_id", id),
		zap.String("from", string(order.Status)),
		zap.String("to", string(to)),
	)
	return w.orders.GetOrder(ctx, id)
}
