package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryMen   Category = "men"
	CategoryWomen Category = "women"
)

var subcategories = map[Category][]string{
	CategoryMen: {
		"shirts", "pants", "accessories", "shoes", "outerwear", "underwear", "sportswear",
	},
	CategoryWomen: {
		"life accessories", "dresses", "tops", "bottoms", "shoes", "accessories", "outerwear", "underwear", "sportswear",
	},
}

// ValidSubcategory reports whether sub belongs to the category's list.
func ValidSubcategory(category Category, sub string) bool {
	for _, s := range subcategories[category] {
		if s == sub {
			return true
		}
	}
	return false
}

func (c Category) Valid() bool {
	_, ok := subcategories[c]
	return ok
}

type Product struct {
	ID          int             `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description,omitempty" db:"description"`
	Brand       string          `json:"brand" db:"brand"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Stock       int             `json:"stock" db:"stock"`
	Category    Category        `json:"category" db:"category"`
	Subcategory string          `json:"subcategory" db:"subcategory"`
	ImageURL    string          `json:"image_url,omitempty" db:"image_url"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Brand       string          `json:"brand" binding:"required"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" binding:"gte=0"`
	Category    Category        `json:"category" binding:"required"`
	Subcategory string          `json:"subcategory" binding:"required"`
	ImageURL    string          `json:"image_url"`
}

// ProductUpdate carries the fields an admin edit changes; nil means untouched.
type ProductUpdate struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Brand       *string          `json:"brand"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" binding:"omitempty,gte=0"`
	Category    *Category        `json:"category"`
	Subcategory *string          `json:"subcategory"`
	ImageURL    *string          `json:"image_url"`
}

type ProductFilter struct {
	Category    Category
	Subcategory string
	Search      string
	Limit       int
	Offset      int
}
