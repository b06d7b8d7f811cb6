package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shop-svc/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const userColumns = "id, name, email, password_hash, role, created_at"

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	var created models.User
	err := conn(ctx, r.db).GetContext(ctx, &created,
		"INSERT INTO users (name, email, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING "+userColumns,
		u.Name, u.Email, u.PasswordHash, u.Role,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, models.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &created, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email = $1", email)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	return r.getUser(ctx, "id = $1", id)
}

// ListUsers returns one page of accounts, newest first, plus the total.
func (r *UserRepository) ListUsers(ctx context.Context, limit, offset int) ([]models.User, int, error) {
	q := conn(ctx, r.db)

	var total int
	if err := q.GetContext(ctx, &total, "SELECT COUNT(*) FROM users"); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	args := []interface{}{}
	query := "SELECT " + userColumns + " FROM users ORDER BY created_at DESC, id DESC"
	query += limitOffset(&args, limit, offset)

	users := []models.User{}
	if err := q.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// DeleteUser removes the account and returns it. Its orders stay, detached.
func (r *UserRepository) DeleteUser(ctx context.Context, id int) (*models.User, error) {
	var u models.User
	err := conn(ctx, r.db).GetContext(ctx, &u, "DELETE FROM users WHERE id = $1 RETURNING "+userColumns, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) getUser(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	var u models.User
	err := conn(ctx, r.db).GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE "+where, arg,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
