package models

import "errors"

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrPaymentReferenceSet = errors.New("order already has a payment reference")

	ErrAlreadySubscribed   = errors.New("email is already subscribed")
	ErrNotSubscribed       = errors.New("email is not subscribed")
	ErrAlreadyUnsubscribed = errors.New("email is already unsubscribed")
)
