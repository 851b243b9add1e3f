package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getOrder = `
SELECT id, customer_id, pickup_at, note, internal_note, delivery_type, payment_status, status, created_at, updated_at
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id int64) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	var o Order
	err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.PickupAt,
		&o.Note,
		&o.InternalNote,
		&o.DeliveryType,
		&o.PaymentStatus,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

const listOrdersByCustomer = `
SELECT id, customer_id, pickup_at, note, internal_note, delivery_type, payment_status, status, created_at, updated_at
FROM orders
WHERE customer_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

type ListOrdersByCustomerParams struct {
	CustomerID uuid.UUID
	Limit      int32
	Offset     int32
}

func (q *Queries) ListOrdersByCustomer(ctx context.Context, arg ListOrdersByCustomerParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByCustomer, arg.CustomerID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID,
			&o.CustomerID,
			&o.PickupAt,
			&o.Note,
			&o.InternalNote,
			&o.DeliveryType,
			&o.PaymentStatus,
			&o.Status,
			&o.CreatedAt,
			&o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const listOrderLines = `
SELECT id, order_id, item_ref, line_type, name, unit_price, quantity
FROM order_lines
WHERE order_id = $1
ORDER BY id
`

func (q *Queries) ListOrderLines(ctx context.Context, orderID int64) ([]OrderLine, error) {
	rows, err := q.db.Query(ctx, listOrderLines, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(
			&l.ID,
			&l.OrderID,
			&l.ItemRef,
			&l.LineType,
			&l.Name,
			&l.UnitPrice,
			&l.Quantity,
		); err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

const createOrder = `
INSERT INTO orders (customer_id, pickup_at, note, delivery_type, payment_status, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, customer_id, pickup_at, note, internal_note, delivery_type, payment_status, status, created_at, updated_at
`

type CreateOrderParams struct {
	CustomerID    uuid.UUID
	PickupAt      time.Time
	Note          pgtype.Text
	DeliveryType  string
	PaymentStatus string
	Status        string
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.CustomerID,
		arg.PickupAt,
		arg.Note,
		arg.DeliveryType,
		arg.PaymentStatus,
		arg.Status,
	)
	var o Order
	err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.PickupAt,
		&o.Note,
		&o.InternalNote,
		&o.DeliveryType,
		&o.PaymentStatus,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

const createOrderLine = `
INSERT INTO order_lines (order_id, item_ref, line_type, name, unit_price, quantity)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, item_ref, line_type, name, unit_price, quantity
`

type CreateOrderLineParams struct {
	OrderID   int64
	ItemRef   int64
	LineType  pgtype.Text
	Name      pgtype.Text
	UnitPrice pgtype.Numeric
	Quantity  int32
}

func (q *Queries) CreateOrderLine(ctx context.Context, arg CreateOrderLineParams) (OrderLine, error) {
	row := q.db.QueryRow(ctx, createOrderLine,
		arg.OrderID,
		arg.ItemRef,
		arg.LineType,
		arg.Name,
		arg.UnitPrice,
		arg.Quantity,
	)
	var l OrderLine
	err := row.Scan(
		&l.ID,
		&l.OrderID,
		&l.ItemRef,
		&l.LineType,
		&l.Name,
		&l.UnitPrice,
		&l.Quantity,
	)
	return l, err
}

const updateOrderStatus = `
UPDATE orders
SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING id, customer_id, pickup_at, note, internal_note, delivery_type, payment_status, status, created_at, updated_at
`

type UpdateOrderStatusParams struct {
	ID         int64
	Status     string
	PrevStatus string
}

// UpdateOrderStatus is a compare-and-set: it only updates when the row still
// holds PrevStatus, returning pgx.ErrNoRows when a concurrent writer won.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.PrevStatus)
	var o Order
	err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.PickupAt,
		&o.Note,
		&o.InternalNote,
		&o.DeliveryType,
		&o.PaymentStatus,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

const cancelOrder = `
UPDATE orders
SET status = 'CANCELLED',
    internal_note = COALESCE(internal_note || E'\n', '') || $2,
    updated_at = now()
WHERE id = $1 AND status IN ('PENDING', 'CONFIRMED')
RETURNING id, customer_id, pickup_at, note, internal_note, delivery_type, payment_status, status, created_at, updated_at
`

type CancelOrderParams struct {
	ID           int64
	InternalNote string
}

// CancelOrder enforces the cancellable-status precondition atomically: no row
// comes back unless the order was still PENDING or CONFIRMED.
func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, cancelOrder, arg.ID, arg.InternalNote)
	var o Order
	err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.PickupAt,
		&o.Note,
		&o.InternalNote,
		&o.DeliveryType,
		&o.PaymentStatus,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}
