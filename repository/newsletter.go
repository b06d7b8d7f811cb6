package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shop-svc/models"

	"github.com/jmoiron/sqlx"
)

const subscriberColumns = "id, email, is_active, unsubscribed_at, created_at, updated_at"

type NewsletterRepository struct {
	db *sqlx.DB
}

func NewNewsletterRepository(db *sqlx.DB) *NewsletterRepository {
	return &NewsletterRepository{db: db}
}

// Subscribe adds email or reactivates it. resubscribed is true when an
// inactive row was brought back.
func (r *NewsletterRepository) Subscribe(ctx context.Context, email string) (sub *models.Subscriber, resubscribed bool, err error) {
	q := conn(ctx, r.db)

	var s models.Subscriber
	err = q.GetContext(ctx, &s,
		"INSERT INTO newsletter_subscribers (email) VALUES ($1) ON CONFLICT (email) DO NOTHING RETURNING "+subscriberColumns,
		email,
	)
	if err == nil {
		return &s, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to subscribe: %w", err)
	}

	err = q.GetContext(ctx, &s,
		`UPDATE newsletter_subscribers SET is_active = TRUE, unsubscribed_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE email = $1 AND is_active = FALSE RETURNING `+subscriberColumns,
		email,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, models.ErrAlreadySubscribed
		}
		return nil, false, fmt.Errorf("failed to resubscribe: %w", err)
	}
	return &s, true, nil
}

func (r *NewsletterRepository) Unsubscribe(ctx context.Context, email string) (*models.Subscriber, error) {
	q := conn(ctx, r.db)

	var s models.Subscriber
	err := q.GetContext(ctx, &s,
		`UPDATE newsletter_subscribers SET is_active = FALSE, unsubscribed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE email = $1 AND is_active = TRUE RETURNING `+subscriberColumns,
		email,
	)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to unsubscribe: %w", err)
	}

	var exists bool
	if err := q.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM newsletter_subscribers WHERE email = $1)", email); err != nil {
		return nil, fmt.Errorf("failed to check subscriber: %w", err)
	}
	if !exists {
		return nil, models.ErrNotSubscribed
	}
	return nil, models.ErrAlreadyUnsubscribed
}

// ListSubscribers pages through active subscribers, newest first.
func (r *NewsletterRepository) ListSubscribers(ctx context.Context, limit, offset int) ([]models.Subscriber, int, error) {
	q := conn(ctx, r.db)

	var total int
	if err := q.GetContext(ctx, &total, "SELECT COUNT(*) FROM newsletter_subscribers WHERE is_active = TRUE"); err != nil {
		return nil, 0, fmt.Errorf("failed to count subscribers: %w", err)
	}

	args := []interface{}{}
	query := "SELECT " + subscriberColumns + " FROM newsletter_subscribers WHERE is_active = TRUE ORDER BY created_at DESC, id DESC"
	query += limitOffset(&args, limit, offset)

	subs := []models.Subscriber{}
	if err := q.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subs, total, nil
}
