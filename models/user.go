package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID           int       `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// UserDetail is the admin view of one account and its order history.
// TotalSpent leaves out cancelled orders.
type UserDetail struct {
	User       User            `json:"user"`
	Orders     []Order         `json:"orders"`
	OrderCount int             `json:"order_count"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

func NewUserDetail(u User, orders []Order) UserDetail {
	d := UserDetail{User: u, Orders: orders, OrderCount: len(orders), TotalSpent: decimal.Zero}
	for _, o := range orders {
		if o.Status != OrderStatusCancelled {
			d.TotalSpent = d.TotalSpent.Add(o.TotalAmount)
		}
	}
	return d
}
