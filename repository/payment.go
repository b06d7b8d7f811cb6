package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"shop-svc/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const paymentColumns = "id, order_id, user_id, email, amount_minor, currency, reference, status, authorization_url, access_code, channel, paid_at, created_at, updated_at"

const uniqueViolation = "23505"

type paymentRow struct {
	ID               int                  `db:"id"`
	OrderID          sql.NullInt64        `db:"order_id"`
	UserID           sql.NullInt64        `db:"user_id"`
	Email            string               `db:"email"`
	AmountMinor      int64                `db:"amount_minor"`
	Currency         string               `db:"currency"`
	Reference        string               `db:"reference"`
	Status           models.PaymentStatus `db:"status"`
	AuthorizationURL string               `db:"authorization_url"`
	AccessCode       string               `db:"access_code"`
	Channel          string               `db:"channel"`
	PaidAt           sql.NullTime         `db:"paid_at"`
	CreatedAt        time.Time            `db:"created_at"`
	UpdatedAt        time.Time            `db:"updated_at"`
}

func (r paymentRow) toModel() models.Payment {
	p := models.Payment{
		ID:               r.ID,
		Email:            r.Email,
		AmountMinor:      r.AmountMinor,
		Currency:         r.Currency,
		Reference:        r.Reference,
		Status:           r.Status,
		AuthorizationURL: r.AuthorizationURL,
		AccessCode:       r.AccessCode,
		Channel:          r.Channel,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.OrderID.Valid {
		id := int(r.OrderID.Int64)
		p.OrderID = &id
	}
	if r.UserID.Valid {
		id := int(r.UserID.Int64)
		p.UserID = &id
	}
	if r.PaidAt.Valid {
		t := r.PaidAt.Time
		p.PaidAt = &t
	}
	return p
}

type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	var orderID, userID sql.NullInt64
	if p.OrderID != nil {
		orderID = sql.NullInt64{Int64: int64(*p.OrderID), Valid: true}
	}
	if p.UserID != nil {
		userID = sql.NullInt64{Int64: int64(*p.UserID), Valid: true}
	}

	var row paymentRow
	err := conn(ctx, r.db).GetContext(ctx, &row,
		`INSERT INTO payments (order_id, user_id, email, amount_minor, currency, reference, status, authorization_url, access_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+paymentColumns,
		orderID, userID, p.Email, p.AmountMinor, p.Currency, p.Reference, p.Status, p.AuthorizationURL, p.AccessCode,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("payment %s: %w", p.Reference, models.ErrPaymentReferenceSet)
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	created := row.toModel()
	return &created, nil
}

func (r *PaymentRepository) GetPaymentByReference(ctx context.Context, ref string) (*models.Payment, error) {
	return r.getPayment(ctx, "reference = $1", ref)
}

func (r *PaymentRepository) GetPaymentByID(ctx context.Context, id int) (*models.Payment, error) {
	return r.getPayment(ctx, "id = $1", id)
}

func (r *PaymentRepository) getPayment(ctx context.Context, where string, arg interface{}) (*models.Payment, error) {
	var row paymentRow
	err := conn(ctx, r.db).GetContext(ctx, &row, "SELECT "+paymentColumns+" FROM payments WHERE "+where, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	p := row.toModel()
	return &p, nil
}

// CompletePayment records the gateway outcome on a pending attempt. It
// reports false if the attempt was already completed by someone else.
func (r *PaymentRepository) CompletePayment(ctx context.Context, ref string, c models.PaymentCompletion) (bool, error) {
	q := conn(ctx, r.db)

	var paidAt sql.NullTime
	if c.PaidAt != nil {
		paidAt = sql.NullTime{Time: *c.PaidAt, Valid: true}
	}
	result, err := q.ExecContext(ctx,
		"UPDATE payments SET status = $1, paid_at = $2, channel = $3, updated_at = CURRENT_TIMESTAMP WHERE reference = $4 AND status = $5",
		c.Status, paidAt, c.Channel, ref, models.PaymentStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete payment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to complete payment: %w", err)
	}
	if rowsAffected == 1 {
		return true, nil
	}

	var exists bool
	if err := q.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM payments WHERE reference = $1)", ref); err != nil {
		return false, fmt.Errorf("failed to check payment: %w", err)
	}
	if !exists {
		return false, models.ErrPaymentNotFound
	}
	return false, nil
}

// ListPayments returns one page of attempts plus the total matching count.
func (r *PaymentRepository) ListPayments(ctx context.Context, f models.PaymentFilter) ([]models.Payment, int, error) {
	q := conn(ctx, r.db)

	where := " WHERE TRUE"
	args := []interface{}{}
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where += " AND user_id = $" + strconv.Itoa(len(args))
	}

	var total int
	if err := q.GetContext(ctx, &total, "SELECT COUNT(*) FROM payments"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	query := "SELECT " + paymentColumns + " FROM payments" + where + " ORDER BY created_at DESC, id DESC"
	query += limitOffset(&args, f.Limit, f.Offset)

	var rows []paymentRow
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}

	payments := make([]models.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, row.toModel())
	}
	return payments, total, nil
}
