package models

import "time"

// Subscriber is a newsletter address. Unsubscribing keeps the row inactive
// so a later subscribe reactivates it.
type Subscriber struct {
	ID             int        `json:"id" db:"id"`
	Email          string     `json:"email" db:"email"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty" db:"unsubscribed_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

type NewsletterRequest struct {
	Email string `json:"email" binding:"required,email"`
}
