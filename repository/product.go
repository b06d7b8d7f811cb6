package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"shop-svc/models"

	"github.com/jmoiron/sqlx"
)

const productColumns = "id, name, description, brand, price, stock, category, subcategory, image_url, created_at, updated_at"

type ProductRepository struct {
	db *sqlx.DB
}

func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE TRUE"
	args := []interface{}{}

	if f.Category != "" {
		args = append(args, f.Category)
		query += " AND category = $" + strconv.Itoa(len(args))
	}
	if f.Subcategory != "" {
		args = append(args, f.Subcategory)
		query += " AND subcategory = $" + strconv.Itoa(len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		query += " AND (name ILIKE $" + strconv.Itoa(len(args)) + " OR brand ILIKE $" + strconv.Itoa(len(args)) + ")"
	}
	query += " ORDER BY id"
	query += limitOffset(&args, f.Limit, f.Offset)

	products := []models.Product{}
	if err := conn(ctx, r.db).SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (r *ProductRepository) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	var p models.Product
	err := conn(ctx, r.db).GetContext(ctx, &p, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (r *ProductRepository) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	var created models.Product
	err := conn(ctx, r.db).GetContext(ctx, &created,
		"INSERT INTO products (name, description, brand, price, stock, category, subcategory, image_url) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING "+productColumns,
		p.Name, p.Description, p.Brand, p.Price, p.Stock, p.Category, p.Subcategory, p.ImageURL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &created, nil
}

func (r *ProductRepository) UpdateProduct(ctx context.Context, id int, u models.ProductUpdate) (*models.Product, error) {
	// Build update query dynamically
	query := "UPDATE products SET updated_at = CURRENT_TIMESTAMP"
	args := []interface{}{}
	set := func(column string, value interface{}) {
		args = append(args, value)
		query += ", " + column + " = $" + strconv.Itoa(len(args))
	}

	if u.Name != nil {
		set("name", *u.Name)
	}
	if u.Description != nil {
		set("description", *u.Description)
	}
	if u.Brand != nil {
		set("brand", *u.Brand)
	}
	if u.Price != nil {
		set("price", *u.Price)
	}
	if u.Stock != nil {
		set("stock", *u.Stock)
	}
	if u.Category != nil {
		set("category", *u.Category)
	}
	if u.Subcategory != nil {
		set("subcategory", *u.Subcategory)
	}
	if u.ImageURL != nil {
		set("image_url", *u.ImageURL)
	}

	args = append(args, id)
	query += " WHERE id = $" + strconv.Itoa(len(args)) + " RETURNING " + productColumns

	var p models.Product
	if err := conn(ctx, r.db).GetContext(ctx, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &p, nil
}

func (r *ProductRepository) DeleteProduct(ctx context.Context, id int) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrProductNotFound
	}
	return nil
}

func (r *ProductRepository) DeleteAllProducts(ctx context.Context) (int64, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx, "DELETE FROM products")
	if err != nil {
		return 0, fmt.Errorf("failed to clear products: %w", err)
	}
	return result.RowsAffected()
}

// ConditionalDecrementStock takes quantity units out of stock only if that
// many are available, in a single statement. Zero rows affected means the
// product is gone or another order got there first.
func (r *ProductRepository) ConditionalDecrementStock(ctx context.Context, id, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("invalid decrement quantity %d", quantity)
	}

	q := conn(ctx, r.db)
	result, err := q.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND stock >= $1",
		quantity, id,
	)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	var exists bool
	if err := q.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)", id); err != nil {
		return fmt.Errorf("failed to check product: %w", err)
	}
	if !exists {
		return models.ErrProductNotFound
	}
	return models.ErrInsufficientStock
}

func limitOffset(args *[]interface{}, limit, offset int) string {
	clause := ""
	if limit > 0 {
		*args = append(*args, limit)
		clause += " LIMIT $" + strconv.Itoa(len(*args))
	}
	if offset > 0 {
		*args = append(*args, offset)
		clause += " OFFSET $" + strconv.Itoa(len(*args))
	}
	return clause
}
