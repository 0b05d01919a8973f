package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, customer_id, fullname, contact, address,
subtotal, delivery_fee, total_amount, payment_method, payment_status,
refund_status, status, payment_proof, gateway_ref, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...interface{}) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.CustomerID,
		&o.Fullname,
		&o.Contact,
		&o.Address,
		&o.Subtotal,
		&o.DeliveryFee,
		&o.TotalAmount,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&o.RefundStatus,
		&o.Status,
		&o.PaymentProof,
		&o.GatewayRef,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

const orderItemColumns = `id, order_id, menu_item_id, name, unit_price, quantity, subtotal`

func scanOrderItem(row interface{ Scan(dest ...interface{}) error }) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.MenuItemID,
		&i.Name,
		&i.UnitPrice,
		&i.Quantity,
		&i.Subtotal,
	)
	return i, err
}

const getNextOrderNumber = `
SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM 4) AS INTEGER)), 0) + 1
FROM orders`

// GetNextOrderNumber derives the next sequence from the "LB-NNNNN" numbers.
// Concurrent transactions may read the same MAX; the unique constraint on
// order_number turns the loser into a retryable 23505.
func (q *Queries) GetNextOrderNumber(ctx context.Context) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, getNextOrderNumber).Scan(&n)
	return n, err
}

const createOrder = `
INSERT INTO orders (
	order_number, customer_id, fullname, contact, address,
	subtotal, delivery_fee, total_amount,
	payment_method, payment_status, refund_status, status
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'NONE', 'PENDING')
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber   string
	CustomerID    uuid.UUID
	Fullname      string
	Contact       string
	Address       string
	Subtotal      pgtype.Numeric
	DeliveryFee   pgtype.Numeric
	TotalAmount   pgtype.Numeric
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber, arg.CustomerID, arg.Fullname, arg.Contact, arg.Address,
		arg.Subtotal, arg.DeliveryFee, arg.TotalAmount,
		arg.PaymentMethod, arg.PaymentStatus)
	return scanOrder(row)
}

const createOrderItem = `
INSERT INTO order_items (order_id, menu_item_id, name, unit_price, quantity, subtotal)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	UnitPrice  pgtype.Numeric
	Quantity   int32
	Subtotal   pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.MenuItemID, arg.Name, arg.UnitPrice, arg.Quantity, arg.Subtotal)
	return scanOrderItem(row)
}

const getOrder = `
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR NO KEY UPDATE`

// GetOrderForUpdate locks the order row to serialize concurrent edits,
// cancellations and payment updates against each other.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const getOrderByGatewayRef = `
SELECT ` + orderColumns + ` FROM orders WHERE gateway_ref = $1`

func (q *Queries) GetOrderByGatewayRef(ctx context.Context, ref string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByGatewayRef, ref))
}

const listOrders = `
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::uuid IS NULL OR customer_id = $1)
  AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

type ListOrdersParams struct {
	CustomerID pgtype.UUID
	Status     pgtype.Text
	Limit      int32
	Offset     int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.CustomerID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const listOrderItemsByOrder = `
SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY name`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteOrderItemsByOrder = `
DELETE FROM order_items WHERE order_id = $1`

func (q *Queries) DeleteOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrderItemsByOrder, orderID)
	return err
}

const updateOrderDetails = `
UPDATE orders
SET fullname = $2, contact = $3, address = $4,
    subtotal = $5, total_amount = $6, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderDetailsParams struct {
	ID          uuid.UUID
	Fullname    string
	Contact     string
	Address     string
	Subtotal    pgtype.Numeric
	TotalAmount pgtype.Numeric
}

func (q *Queries) UpdateOrderDetails(ctx context.Context, arg UpdateOrderDetailsParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderDetails,
		arg.ID, arg.Fullname, arg.Contact, arg.Address, arg.Subtotal, arg.TotalAmount)
	return scanOrder(row)
}

const updateOrderStatus = `
UPDATE orders
SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	Status     OrderStatus
	PrevStatus OrderStatus
}

// UpdateOrderStatus is a compare-and-swap: it only writes if the status is
// still what the caller read. pgx.ErrNoRows means a concurrent transition won.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.PrevStatus))
}

const setOrderCancelled = `
UPDATE orders
SET status = 'CANCELLED', refund_status = $2, updated_at = now()
WHERE id = $1 AND status = 'PENDING'
RETURNING ` + orderColumns

type SetOrderCancelledParams struct {
	ID           uuid.UUID
	RefundStatus RefundStatus
}

func (q *Queries) SetOrderCancelled(ctx context.Context, arg SetOrderCancelledParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, setOrderCancelled, arg.ID, arg.RefundStatus))
}

const updatePaymentStatus = `
UPDATE orders
SET payment_status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdatePaymentStatusParams struct {
	ID            uuid.UUID
	PaymentStatus PaymentStatus
}

func (q *Queries) UpdatePaymentStatus(ctx context.Context, arg UpdatePaymentStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updatePaymentStatus, arg.ID, arg.PaymentStatus))
}

const updatePaymentProof = `
UPDATE orders
SET payment_proof = $2, payment_status = $3, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdatePaymentProofParams struct {
	ID            uuid.UUID
	PaymentProof  pgtype.Text
	PaymentStatus PaymentStatus
}

func (q *Queries) UpdatePaymentProof(ctx context.Context, arg UpdatePaymentProofParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updatePaymentProof, arg.ID, arg.PaymentProof, arg.PaymentStatus))
}

const updateRefundStatus = `
UPDATE orders
SET refund_status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateRefundStatusParams struct {
	ID           uuid.UUID
	RefundStatus RefundStatus
}

func (q *Queries) UpdateRefundStatus(ctx context.Context, arg UpdateRefundStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateRefundStatus, arg.ID, arg.RefundStatus))
}

const setOrderGatewayRef = `
UPDATE orders
SET gateway_ref = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type SetOrderGatewayRefParams struct {
	ID         uuid.UUID
	GatewayRef pgtype.Text
}

func (q *Queries) SetOrderGatewayRef(ctx context.Context, arg SetOrderGatewayRefParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, setOrderGatewayRef, arg.ID, arg.GatewayRef))
}
