package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"shop-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func setupMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	db := sqlx.NewDb(mockDB, "postgres")
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var productRowColumns = []string{"id", "name", "description", "brand", "price", "stock", "category", "subcategory", "image_url", "created_at", "updated_at"}

const decrementSQL = "UPDATE products SET stock = stock - $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND stock >= $1"

func TestProductRepository_GetProduct_Success(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewProductRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(3, "Linen Shirt", "", "Acme", "25.50", 4, "men", "shirts", "", now, now))

	p, err := repo.GetProduct(context.Background(), 3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !p.Price.Equal(decimal.RequireFromString("25.50")) {
		t.Errorf("Expected price 25.50, got %s", p.Price)
	}
	if p.Category != models.CategoryMen {
		t.Errorf("Expected category men, got %s", p.Category)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestProductRepository_GetProduct_NotFound(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewProductRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs(999).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetProduct(context.Background(), 999)
	if !errors.Is(err, models.ErrProductNotFound) {
		t.Errorf("Expected ErrProductNotFound, got %v", err)
	}
}

func TestProductRepository_ListProducts_Filters(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewProductRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE TRUE AND category = $1 AND subcategory = $2 ORDER BY id LIMIT $3")).
		WithArgs("women", "dresses", 10).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(1, "Wrap Dress", "", "Acme", "40.00", 2, "women", "dresses", "", now, now))

	products, err := repo.ListProducts(context.Background(), models.ProductFilter{
		Category:    models.CategoryWomen,
		Subcategory: "dresses",
		Limit:       10,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(products) != 1 {
		t.Errorf("Expected 1 product, got %d", len(products))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestProductRepository_UpdateProduct_OnlyChangedFields(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewProductRepository(db)

	now := time.Now()
	stock := 12
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE products SET updated_at = CURRENT_TIMESTAMP, stock = $1 WHERE id = $2 RETURNING")).
		WithArgs(12, 5).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(5, "Chinos", "", "Acme", "30.00", 12, "men", "pants", "", now, now))

	p, err := repo.UpdateProduct(context.Background(), 5, models.ProductUpdate{Stock: &stock})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.Stock != 12 {
		t.Errorf("Expected stock 12, got %d", p.Stock)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestProductRepository_ConditionalDecrementStock_Success(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewProductRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(decrementSQL)).
		WithArgs(2, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ConditionalDecrementStock(context.Background(), 7, 2); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestProductRepository_ConditionalDecrementStock_Insufficient(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewProductRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(decrementSQL)).
		WithArgs(5, 7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.ConditionalDecrementStock(context.Background(), 7, 5)
	if !errors.Is(err, models.ErrInsufficientStock) {
		t.Errorf("Expected ErrInsufficientStock, got %v", err)
	}
}

func TestProductRepository_ConditionalDecrementStock_Missing(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewProductRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(decrementSQL)).
		WithArgs(1, 404).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(404).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.ConditionalDecrementStock(context.Background(), 404, 1)
	if !errors.Is(err, models.ErrProductNotFound) {
		t.Errorf("Expected ErrProductNotFound, got %v", err)
	}
}

func TestProductRepository_ConditionalDecrementStock_RejectsNonPositive(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewProductRepository(db)

	for _, qty := range []int{0, -3} {
		if err := repo.ConditionalDecrementStock(context.Background(), 1, qty); err == nil {
			t.Errorf("Expected error for quantity %d", qty)
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected database calls: %v", err)
	}
}

func TestTransactor_WithinTx_RollsBackOnError(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewProductRepository(db)
	tx := NewTransactor(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(decrementSQL)).
		WithArgs(1, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(decrementSQL)).
		WithArgs(3, 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := repo.ConditionalDecrementStock(ctx, 1, 1); err != nil {
			return err
		}
		return repo.ConditionalDecrementStock(ctx, 2, 3)
	})
	if !errors.Is(err, models.ErrInsufficientStock) {
		t.Errorf("Expected ErrInsufficientStock, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestTransactor_WithinTx_NestedJoinsOuter(t *testing.T) {
	db, mock := setupMock(t)
	tx := NewTransactor(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		return tx.WithinTx(ctx, func(ctx context.Context) error {
			calls++
			return nil
		})
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected inner function to run once, ran %d times", calls)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
