package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"shop-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

var paymentRowColumns = []string{
	"id", "order_id", "user_id", "email", "amount_minor", "currency", "reference", "status",
	"authorization_url", "access_code", "channel", "paid_at", "created_at", "updated_at",
}

const completeSQL = "UPDATE payments SET status = $1, paid_at = $2, channel = $3, updated_at = CURRENT_TIMESTAMP WHERE reference = $4 AND status = $5"

func TestPaymentRepository_CreatePayment(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs(int64(1), nil, "ada@example.com", int64(4500), "NGN", "order_1_1_abcd1234", "pending", "https://checkout/x", "ac_1").
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).AddRow(
			10, 1, nil, "ada@example.com", 4500, "NGN", "order_1_1_abcd1234", "pending",
			"https://checkout/x", "ac_1", "", nil, now, now,
		))

	orderID := 1
	p, err := repo.CreatePayment(context.Background(), &models.Payment{
		OrderID:          &orderID,
		Email:            "ada@example.com",
		AmountMinor:      4500,
		Currency:         "NGN",
		Reference:        "order_1_1_abcd1234",
		Status:           models.PaymentStatusPending,
		AuthorizationURL: "https://checkout/x",
		AccessCode:       "ac_1",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.ID != 10 || p.OrderID == nil || *p.OrderID != 1 || p.UserID != nil || p.PaidAt != nil {
		t.Errorf("Unexpected payment: %+v", p)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestPaymentRepository_CreatePayment_DuplicateReference(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.CreatePayment(context.Background(), &models.Payment{Reference: "dup"})
	if !errors.Is(err, models.ErrPaymentReferenceSet) {
		t.Errorf("Expected ErrPaymentReferenceSet, got %v", err)
	}
}

func TestPaymentRepository_CompletePayment(t *testing.T) {
	paidAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("first completion wins", func(t *testing.T) {
		db, mock := setupMock(t)
		repo := NewPaymentRepository(db)

		mock.ExpectExec(regexp.QuoteMeta(completeSQL)).
			WithArgs("success", paidAt, "card", "ref_1", "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.CompletePayment(context.Background(), "ref_1", models.PaymentCompletion{
			Status:  models.PaymentStatusSuccess,
			PaidAt:  &paidAt,
			Channel: "card",
		})
		if err != nil || !ok {
			t.Errorf("Expected completion, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("already completed", func(t *testing.T) {
		db, mock := setupMock(t)
		repo := NewPaymentRepository(db)

		mock.ExpectExec(regexp.QuoteMeta(completeSQL)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM payments WHERE reference = $1)")).
			WithArgs("ref_1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		ok, err := repo.CompletePayment(context.Background(), "ref_1", models.PaymentCompletion{Status: models.PaymentStatusSuccess})
		if err != nil || ok {
			t.Errorf("Expected no-op, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("unknown reference", func(t *testing.T) {
		db, mock := setupMock(t)
		repo := NewPaymentRepository(db)

		mock.ExpectExec(regexp.QuoteMeta(completeSQL)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := repo.CompletePayment(context.Background(), "nope", models.PaymentCompletion{Status: models.PaymentStatusFailed})
		if !errors.Is(err, models.ErrPaymentNotFound) {
			t.Errorf("Expected ErrPaymentNotFound, got %v", err)
		}
	})
}

func TestPaymentRepository_ListPayments_WithTotal(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepository(db)

	now := time.Now()
	userID := 8
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payments WHERE TRUE AND user_id = $1")).
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3")).
		WithArgs(8, 1, 2).
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).AddRow(
			3, 5, 8, "b@example.com", 1000, "NGN", "ref_3", "success", "", "", "card", now, now, now,
		))

	payments, total, err := repo.ListPayments(context.Background(), models.PaymentFilter{UserID: &userID, Limit: 1, Offset: 2})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("Expected total 3, got %d", total)
	}
	if len(payments) != 1 || payments[0].PaidAt == nil {
		t.Errorf("Unexpected payments: %+v", payments)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestUserRepository_CreateUser_EmailTaken(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("Ada", "ada@example.com", sqlmock.AnyArg(), "customer").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.CreateUser(context.Background(), &models.User{
		Name:         "Ada",
		Email:        "ada@example.com",
		PasswordHash: "hash",
		Role:         models.RoleCustomer,
	})
	if !errors.Is(err, models.ErrEmailTaken) {
		t.Errorf("Expected ErrEmailTaken, got %v", err)
	}
}

func TestPaymentRepository_GetPaymentByID_Detached(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE id = $1")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).AddRow(
			10, nil, 3, "ada@example.com", 4500, "NGN", "order_1_1_abcd1234", "failed",
			"", "", "", nil, now, now,
		))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE id = $1")).
		WithArgs(11).
		WillReturnRows(sqlmock.NewRows(paymentRowColumns))

	p, err := repo.GetPaymentByID(context.Background(), 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.OrderID != nil || p.UserID == nil || *p.UserID != 3 {
		t.Errorf("Unexpected payment: %+v", p)
	}
	if _, err := repo.GetPaymentByID(context.Background(), 11); !errors.Is(err, models.ErrPaymentNotFound) {
		t.Errorf("Expected ErrPaymentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
