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
)

var subscriberRowColumns = []string{"id", "email", "is_active", "unsubscribed_at", "created_at", "updated_at"}

func TestNewsletterRepository_Subscribe(t *testing.T) {
	now := time.Now()

	t.Run("new address", func(t *testing.T) {
		db, mock := setupMock(t)
		repo := NewNewsletterRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO newsletter_subscribers")).
			WithArgs("ada@example.com").
			WillReturnRows(sqlmock.NewRows(subscriberRowColumns).AddRow(1, "ada@example.com", true, nil, now, now))

		sub, resubscribed, err := repo.Subscribe(context.Background(), "ada@example.com")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if resubscribed || sub.ID != 1 || !sub.IsActive || sub.UnsubscribedAt != nil {
			t.Errorf("Unexpected subscriber: %+v resubscribed=%v", sub, resubscribed)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Database expectations were not met: %v", err)
		}
	})

	t.Run("inactive address is reactivated", func(t *testing.T) {
		db, mock := setupMock(t)
		repo := NewNewsletterRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO newsletter_subscribers")).
			WithArgs("ada@example.com").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE newsletter_subscribers SET is_active = TRUE")).
			WithArgs("ada@example.com").
			WillReturnRows(sqlmock.NewRows(subscriberRowColumns).AddRow(1, "ada@example.com", true, nil, now, now))

		_, resubscribed, err := repo.Subscribe(context.Background(), "ada@example.com")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !resubscribed {
			t.Error("Expected resubscribed to be true")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Database expectations were not met: %v", err)
		}
	})

	t.Run("active address conflicts", func(t *testing.T) {
		db, mock := setupMock(t)
		repo := NewNewsletterRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO newsletter_subscribers")).
			WillReturnRows(sqlmock.NewRows(subscriberRowColumns))
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE newsletter_subscribers SET is_active = TRUE")).
			WillReturnRows(sqlmock.NewRows(subscriberRowColumns))

		_, _, err := repo.Subscribe(context.Background(), "ada@example.com")
		if !errors.Is(err, models.ErrAlreadySubscribed) {
			t.Errorf("Expected ErrAlreadySubscribed, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Database expectations were not met: %v", err)
		}
	})
}

func TestNewsletterRepository_Unsubscribe(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		updated bool
		exists  bool
		wantErr error
	}{
		{"active", true, true, nil},
		{"already inactive", false, true, models.ErrAlreadyUnsubscribed},
		{"unknown", false, false, models.ErrNotSubscribed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMock(t)
			repo := NewNewsletterRepository(db)

			rows := sqlmock.NewRows(subscriberRowColumns)
			if tt.updated {
				rows.AddRow(1, "ada@example.com", false, now, now, now)
			}
			mock.ExpectQuery(regexp.QuoteMeta("UPDATE newsletter_subscribers SET is_active = FALSE")).
				WithArgs("ada@example.com").
				WillReturnRows(rows)
			if !tt.updated {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
					WithArgs("ada@example.com").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))
			}

			sub, err := repo.Unsubscribe(context.Background(), "ada@example.com")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && (sub.IsActive || sub.UnsubscribedAt == nil) {
				t.Errorf("Unexpected subscriber: %+v", sub)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("Database expectations were not met: %v", err)
			}
		})
	}
}

func TestNewsletterRepository_ListSubscribers(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewNewsletterRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM newsletter_subscribers WHERE is_active = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_active = TRUE ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2")).
		WithArgs(2, 1).
		WillReturnRows(sqlmock.NewRows(subscriberRowColumns).
			AddRow(3, "c@x.com", true, nil, now, now).
			AddRow(2, "b@x.com", true, nil, now, now))

	subs, total, err := repo.ListSubscribers(context.Background(), 2, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if total != 3 || len(subs) != 2 {
		t.Errorf("Expected total 3 and 2 rows, got %d and %d", total, len(subs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
