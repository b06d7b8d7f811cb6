package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var forward = map[OrderStatus]OrderStatus{
	OrderStatusPending:    OrderStatusProcessing,
	OrderStatusProcessing: OrderStatusShipped,
	OrderStatusShipped:    OrderStatusDelivered,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransition reports whether from -> to is an edge of the order state
// machine: one step forward, or cancellation from any non-terminal state.
func CanTransition(from, to OrderStatus) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	if to == OrderStatusCancelled {
		return true
	}
	return forward[from] == to
}

type OrderItem struct {
	ProductID   int             `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal" db:"subtotal"`
}

type Contact struct {
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type ShippingAddress struct {
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state" binding:"required"`
	ZipCode string `json:"zip_code" binding:"required"`
	Country string `json:"country" binding:"required"`
}

type Order struct {
	ID               int              `json:"id"`
	UserID           *int             `json:"user_id,omitempty"`
	IsGuest          bool             `json:"is_guest"`
	Contact          Contact          `json:"contact"`
	ShippingAddress  *ShippingAddress `json:"shipping_address,omitempty"`
	Items            []OrderItem      `json:"items"`
	TotalAmount      decimal.Decimal  `json:"total_amount"`
	Status           OrderStatus      `json:"status"`
	Notes            string           `json:"notes,omitempty"`
	PaymentReference *string          `json:"payment_reference,omitempty"`
	PaymentStatus    PaymentStatus    `json:"payment_status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Summary is the view of an order handed to notifiers.
func (o *Order) Summary() OrderSummary {
	items := make([]OrderItem, len(o.Items))
	copy(items, o.Items)
	return OrderSummary{
		OrderID:         o.ID,
		CustomerName:    o.Contact.FirstName,
		Items:           items,
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
	}
}

type OrderSummary struct {
	OrderID         int              `json:"order_id"`
	CustomerName    string           `json:"customer_name,omitempty"`
	Items           []OrderItem      `json:"items"`
	TotalAmount     decimal.Decimal  `json:"total_amount"`
	ShippingAddress *ShippingAddress `json:"shipping_address,omitempty"`
}

type OrderItemRequest struct {
	ProductID int `json:"product_id" binding:"required"`
	Quantity  int `json:"quantity" binding:"required,gt=0"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddress *ShippingAddress   `json:"shipping_address"`
	Notes           string             `json:"notes"`
	FirstName       string             `json:"first_name"`
	LastName        string             `json:"last_name"`
	Phone           string             `json:"phone"`
}

type CreateGuestOrderRequest struct {
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	GuestInfo       *Contact           `json:"guest_info"`
	ShippingAddress *ShippingAddress   `json:"shipping_address"`
	Notes           string             `json:"notes"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

type OrderFilter struct {
	UserID *int
	Status OrderStatus
	Limit  int
	Offset int
}

type OrderEvent struct {
	OrderID          int             `json:"order_id"`
	UserID           *int            `json:"user_id,omitempty"`
	Status           OrderStatus     `json:"status"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	EventType        string          `json:"event_type"` // order_created, order_paid
}
