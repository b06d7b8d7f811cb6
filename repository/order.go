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
	"github.com/shopspring/decimal"
)

const orderColumns = `id, user_id, is_guest, contact_email, contact_first_name, contact_last_name, contact_phone,
	ship_street, ship_city, ship_state, ship_zip_code, ship_country,
	total_amount, status, notes, payment_reference, payment_status, created_at, updated_at`

type orderRow struct {
	ID               int                  `db:"id"`
	UserID           sql.NullInt64        `db:"user_id"`
	IsGuest          bool                 `db:"is_guest"`
	ContactEmail     string               `db:"contact_email"`
	ContactFirstName string               `db:"contact_first_name"`
	ContactLastName  string               `db:"contact_last_name"`
	ContactPhone     string               `db:"contact_phone"`
	ShipStreet       string               `db:"ship_street"`
	ShipCity         string               `db:"ship_city"`
	ShipState        string               `db:"ship_state"`
	ShipZipCode      string               `db:"ship_zip_code"`
	ShipCountry      string               `db:"ship_country"`
	TotalAmount      decimal.Decimal      `db:"total_amount"`
	Status           models.OrderStatus   `db:"status"`
	Notes            string               `db:"notes"`
	PaymentReference sql.NullString       `db:"payment_reference"`
	PaymentStatus    models.PaymentStatus `db:"payment_status"`
	CreatedAt        time.Time            `db:"created_at"`
	UpdatedAt        time.Time            `db:"updated_at"`
}

func (r orderRow) toModel() models.Order {
	o := models.Order{
		ID:      r.ID,
		IsGuest: r.IsGuest,
		Contact: models.Contact{
			Email:     r.ContactEmail,
			FirstName: r.ContactFirstName,
			LastName:  r.ContactLastName,
			Phone:     r.ContactPhone,
		},
		TotalAmount:   r.TotalAmount,
		Status:        r.Status,
		Notes:         r.Notes,
		PaymentStatus: r.PaymentStatus,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Items:         []models.OrderItem{},
	}
	if r.UserID.Valid {
		id := int(r.UserID.Int64)
		o.UserID = &id
	}
	if r.PaymentReference.Valid {
		ref := r.PaymentReference.String
		o.PaymentReference = &ref
	}
	if r.ShipStreet != "" || r.ShipCity != "" || r.ShipCountry != "" {
		o.ShippingAddress = &models.ShippingAddress{
			Street:  r.ShipStreet,
			City:    r.ShipCity,
			State:   r.ShipState,
			ZipCode: r.ShipZipCode,
			Country: r.ShipCountry,
		}
	}
	return o
}

type orderItemRow struct {
	OrderID int `db:"order_id"`
	LineNo  int `db:"line_no"`
	models.OrderItem
}

type OrderRepository struct {
	db *sqlx.DB
	tx *Transactor
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db, tx: NewTransactor(db)}
}

// SaveOrder inserts the order and its lines. It joins the transaction in ctx
// if there is one, otherwise it opens its own so the lines never land
// without their order.
func (r *OrderRepository) SaveOrder(ctx context.Context, o *models.Order) (*models.Order, error) {
	saved := *o
	saved.Items = append([]models.OrderItem(nil), o.Items...)

	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.db)

		ship := models.ShippingAddress{}
		if o.ShippingAddress != nil {
			ship = *o.ShippingAddress
		}
		var userID sql.NullInt64
		if o.UserID != nil {
			userID = sql.NullInt64{Int64: int64(*o.UserID), Valid: true}
		}

		err := q.QueryRowxContext(ctx,
			`INSERT INTO orders (user_id, is_guest, contact_email, contact_first_name, contact_last_name, contact_phone,
				ship_street, ship_city, ship_state, ship_zip_code, ship_country, total_amount, status, notes, payment_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING id, created_at, updated_at`,
			userID, o.IsGuest, o.Contact.Email, o.Contact.FirstName, o.Contact.LastName, o.Contact.Phone,
			ship.Street, ship.City, ship.State, ship.ZipCode, ship.Country,
			o.TotalAmount, o.Status, o.Notes, o.PaymentStatus,
		).Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for i, item := range o.Items {
			_, err := q.ExecContext(ctx,
				"INSERT INTO order_items (order_id, line_no, product_id, product_name, quantity, unit_price, subtotal) VALUES ($1, $2, $3, $4, $5, $6, $7)",
				saved.ID, i+1, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.Subtotal,
			)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id int) (*models.Order, error) {
	q := conn(ctx, r.db)

	var row orderRow
	if err := q.GetContext(ctx, &row, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	order := row.toModel()

	var items []orderItemRow
	err := q.SelectContext(ctx, &items,
		"SELECT order_id, line_no, product_id, product_name, quantity, unit_price, subtotal FROM order_items WHERE order_id = $1 ORDER BY line_no",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	for _, it := range items {
		order.Items = append(order.Items, it.OrderItem)
	}
	return &order, nil
}

func (r *OrderRepository) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	q := conn(ctx, r.db)

	query := "SELECT " + orderColumns + " FROM orders WHERE TRUE"
	args := []interface{}{}
	if f.UserID != nil {
		args = append(args, *f.UserID)
		query += " AND user_id = $" + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"
	query += limitOffset(&args, f.Limit, f.Offset)

	var rows []orderRow
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]models.Order, 0, len(rows))
	if len(rows) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(rows))
	index := make(map[int]int, len(rows))
	for i, row := range rows {
		orders = append(orders, row.toModel())
		ids[i] = int64(row.ID)
		index[row.ID] = i
	}

	var items []orderItemRow
	err := q.SelectContext(ctx, &items,
		"SELECT order_id, line_no, product_id, product_name, quantity, unit_price, subtotal FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line_no",
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	for _, it := range items {
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it.OrderItem)
		}
	}
	return orders, nil
}

// ConditionalUpdateStatus moves the order to `to` only while it is still in
// `from`. It reports false when the order has already moved on.
func (r *OrderRepository) ConditionalUpdateStatus(ctx context.Context, id int, from, to models.OrderStatus) (bool, error) {
	q := conn(ctx, r.db)
	result, err := q.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND status = $3",
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	if rowsAffected == 1 {
		return true, nil
	}
	if err := r.mustExist(ctx, q, id); err != nil {
		return false, err
	}
	return false, nil
}

// SetPaymentReference attaches ref to an order that has none yet.
func (r *OrderRepository) SetPaymentReference(ctx context.Context, id int, ref string) error {
	q := conn(ctx, r.db)
	result, err := q.ExecContext(ctx,
		"UPDATE orders SET payment_reference = $1, payment_status = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3 AND payment_reference IS NULL",
		ref, models.PaymentStatusPending, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set payment reference: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set payment reference: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}
	if err := r.mustExist(ctx, q, id); err != nil {
		return err
	}
	return models.ErrPaymentReferenceSet
}

// ReplacePaymentReference swaps old for ref, provided old is still the
// order's reference. Used to retry payment after a failed attempt.
func (r *OrderRepository) ReplacePaymentReference(ctx context.Context, id int, old, ref string) error {
	q := conn(ctx, r.db)
	result, err := q.ExecContext(ctx,
		"UPDATE orders SET payment_reference = $1, payment_status = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3 AND payment_reference = $4",
		ref, models.PaymentStatusPending, id, old,
	)
	if err != nil {
		return fmt.Errorf("failed to replace payment reference: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to replace payment reference: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}
	if err := r.mustExist(ctx, q, id); err != nil {
		return err
	}
	return models.ErrPaymentReferenceSet
}

func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		"UPDATE orders SET payment_status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) DeleteOrder(ctx context.Context, id int) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) mustExist(ctx context.Context, q dbtx, id int) error {
	var exists bool
	if err := q.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)", id); err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	if !exists {
		return models.ErrOrderNotFound
	}
	return nil
}
