// Package workflow holds the order and payment rules: order creation with
// stock reservation, payment initialization and idempotent reconciliation
// of gateway outcomes.
package workflow

import (
	"context"
	"time"

	"shop-svc/models"
	"shop-svc/paystack"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type CatalogStore interface {
	GetProduct(ctx context.Context, id int) (*models.Product, error)
	ConditionalDecrementStock(ctx context.Context, id, quantity int) error
}

type OrderStore interface {
	SaveOrder(ctx context.Context, o *models.Order) (*models.Order, error)
	GetOrder(ctx context.Context, id int) (*models.Order, error)
	ConditionalUpdateStatus(ctx context.Context, id int, from, to models.OrderStatus) (bool, error)
	SetPaymentReference(ctx context.Context, id int, ref string) error
	ReplacePaymentReference(ctx context.Context, id int, old, ref string) error
	UpdatePaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) (*models.Payment, error)
	GetPaymentByReference(ctx context.Context, ref string) (*models.Payment, error)
	CompletePayment(ctx context.Context, ref string, c models.PaymentCompletion) (bool, error)
}

// Transactor runs fn atomically; store calls made with the ctx it passes to
// fn take part in the same transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type PaymentGateway interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*paystack.Verification, error)
	Currency() string
}

type Notifier interface {
	Notify(ctx context.Context, msg models.NotificationMessage) error
}

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

type ProductCache interface {
	Invalidate(ctx context.Context, ids ...int)
}

// Deps wires a Workflow. Notifier, Events and Cache are optional.
type Deps struct {
	Tx       Transactor
	Catalog  CatalogStore
	Orders   OrderStore
	Payments PaymentStore
	Gateway  PaymentGateway
	Notifier Notifier
	Events   EventPublisher
	Cache    ProductCache

	ReconcileTimeout time.Duration
}

type Workflow struct {
	tx       Transactor
	catalog  CatalogStore
	orders   OrderStore
	payments PaymentStore
	gateway  PaymentGateway
	notifier Notifier
	events   EventPublisher
	cache    ProductCache

	reconcileTimeout time.Duration
	inflight         singleflight.Group
	logger           *zap.Logger
}

func New(d Deps, logger *zap.Logger) *Workflow {
	timeout := d.ReconcileTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Workflow{
		tx:               d.Tx,
		catalog:          d.Catalog,
		orders:           d.Orders,
		payments:         d.Payments,
		gateway:          d.Gateway,
		notifier:         d.Notifier,
		events:           d.Events,
		cache:            d.Cache,
		reconcileTimeout: timeout,
		logger:           logger,
	}
}
