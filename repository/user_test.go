package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"shop-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
)

var userRowColumns = []string{"id", "name", "email", "password_hash", "role", "created_at"}

func TestUserRepository_ListUsers(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY created_at DESC, id DESC LIMIT $1")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(5, "Eve", "eve@x.com", "hash", "customer", now).
			AddRow(4, "Dan", "dan@x.com", "hash", "admin", now))

	users, total, err := repo.ListUsers(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if total != 5 || len(users) != 2 || users[1].Role != models.RoleAdmin {
		t.Errorf("Unexpected result: total %d users %+v", total, users)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestUserRepository_DeleteUser(t *testing.T) {
	t.Run("returns deleted row", func(t *testing.T) {
		db, mock := setupMock(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM users WHERE id = $1 RETURNING")).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(7, "Ada", "ada@x.com", "hash", "customer", time.Now()))

		u, err := repo.DeleteUser(context.Background(), 7)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if u.ID != 7 || u.Email != "ada@x.com" {
			t.Errorf("Unexpected user: %+v", u)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Database expectations were not met: %v", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := setupMock(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM users WHERE id = $1 RETURNING")).
			WithArgs(8).
			WillReturnRows(sqlmock.NewRows(userRowColumns))

		if _, err := repo.DeleteUser(context.Background(), 8); !errors.Is(err, models.ErrUserNotFound) {
			t.Errorf("Expected ErrUserNotFound, got %v", err)
		}
	})
}
