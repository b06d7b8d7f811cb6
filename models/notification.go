package models

const (
	NotificationOrderConfirmation = "order_confirmation"
	NotificationWelcome           = "welcome"
)

// NotificationMessage is what queued notifiers put on the wire.
type NotificationMessage struct {
	Kind      string        `json:"kind"`
	Email     string        `json:"email"`
	FirstName string        `json:"first_name,omitempty"`
	Order     *OrderSummary `json:"order,omitempty"`
}
