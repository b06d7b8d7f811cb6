package models

import "time"

type PaymentStatus string

const (
	PaymentStatusUnpaid    PaymentStatus = "unpaid"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusAbandoned PaymentStatus = "abandoned"
)

// Payment is one attempt to pay for an order at the gateway.
type Payment struct {
	ID               int           `json:"id"`
	// OrderID is nil once the order has been deleted; the attempt is kept.
	OrderID          *int          `json:"order_id,omitempty"`
	UserID           *int          `json:"user_id,omitempty"`
	Email            string        `json:"email"`
	AmountMinor      int64         `json:"amount_minor"`
	Currency         string        `json:"currency"`
	Reference        string        `json:"reference"`
	Status           PaymentStatus `json:"status"`
	AuthorizationURL string        `json:"authorization_url,omitempty"`
	AccessCode       string        `json:"access_code,omitempty"`
	Channel          string        `json:"channel,omitempty"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// PaymentCompletion is the single update a pending attempt receives once
// the gateway has answered.
type PaymentCompletion struct {
	Status  PaymentStatus
	PaidAt  *time.Time
	Channel string
}

type PaymentFilter struct {
	UserID *int
	Limit  int
	Offset int
}

type InitializePaymentRequest struct {
	OrderID int    `json:"order_id" binding:"required"`
	Email   string `json:"email" binding:"omitempty,email"`
}

type VerifyPaymentRequest struct {
	Reference string `json:"reference" binding:"required"`
}
