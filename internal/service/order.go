package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lutong-bahay/api/internal/database"
	"github.com/lutong-bahay/api/internal/enum"
	"github.com/lutong-bahay/api/internal/gateway"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidMenuItemID    = errors.New("invalid menu_item_id")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderNotPending      = errors.New("order can no longer be modified")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create and modify orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderNumber(ctx context.Context) (int32, error)
	GetMenuItemForUpdate(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	ReserveMenuItemStock(ctx context.Context, arg database.ReserveMenuItemStockParams) (database.MenuItem, error)
	AddMenuItemStock(ctx context.Context, arg database.AddMenuItemStockParams) (database.MenuItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	DeleteOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error
	UpdateOrderDetails(ctx context.Context, arg database.UpdateOrderDetailsParams) (database.Order, error)
	SetOrderCancelled(ctx context.Context, arg database.SetOrderCancelledParams) (database.Order, error)
	UpdatePaymentStatus(ctx context.Context, arg database.UpdatePaymentStatusParams) (database.Order, error)
	SetOrderGatewayRef(ctx context.Context, arg database.SetOrderGatewayRefParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// WalletGateway creates payment sources with the external wallet provider.
// Nil when no gateway is configured; wallet orders then fall back to the
// manual proof-of-payment flow.
type WalletGateway interface {
	CreateSource(ctx context.Context, orderNumber string, amount decimal.Decimal) (*gateway.Source, error)
}

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	CustomerID    uuid.UUID
	Fullname      string
	Contact       string
	Address       string
	PaymentMethod string
	Items         []OrderLineRequest
}

// OrderLineRequest is a single item in the order.
type OrderLineRequest struct {
	MenuItemID string
	Quantity   int32
}

// UpdateOrderRequest replaces the delivery details and cart of a pending order.
type UpdateOrderRequest struct {
	OrderID    uuid.UUID
	CustomerID uuid.UUID // uuid.Nil means admin, no ownership check
	Fullname   string
	Contact    string
	Address    string
	Items      []OrderLineRequest
}

// CreateOrderResult is the full created order with its line items.
type CreateOrderResult struct {
	Order       database.Order
	Items       []database.OrderItem
	RedirectURL string
}

// OrderService handles order business logic.
type OrderService struct {
	pool        TxBeginner
	newStore    NewOrderStore
	deliveryFee decimal.Decimal
	gateway     WalletGateway
}

// NewOrderService creates a new OrderService. gw may be nil.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, deliveryFee decimal.Decimal, gw WalletGateway) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, deliveryFee: deliveryFee, gateway: gw}
}

// CreateOrder validates, reserves stock, and creates an order atomically.
// Retries up to maxOrderNumberRetries times on order_number unique constraint
// violations (race condition where concurrent transactions get the same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if err := ValidateDeliveryDetails(req.Fullname, req.Contact, req.Address); err != nil {
		return nil, err
	}
	if !isValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}
	lines, err := parseLines(req.Items)
	if err != nil {
		return nil, err
	}

	var result *CreateOrderResult
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err = s.createOrderTx(ctx, req, lines)
		if err == nil {
			lastErr = nil
			break
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}

	// Wallet orders are handed to the gateway after commit so a gateway
	// outage never loses the order. On failure the order stands with
	// payment FAILED and the customer can submit proof manually.
	if req.PaymentMethod == enum.PaymentMethodWallet && s.gateway != nil {
		s.requestGatewaySource(ctx, result)
	}

	return result, nil
}

func (s *OrderService) requestGatewaySource(ctx context.Context, result *CreateOrderResult) {
	total := numericToDecimal(result.Order.TotalAmount)

	src, err := s.gateway.CreateSource(ctx, result.Order.OrderNumber, total)
	if err != nil {
		log.Printf("ERROR: wallet gateway source for %s: %v", result.Order.OrderNumber, err)
		if uerr := s.updateAfterGateway(ctx, result, "", enum.PaymentStatusFailed); uerr != nil {
			log.Printf("ERROR: mark payment failed for %s: %v", result.Order.OrderNumber, uerr)
		}
		return
	}

	// Some sources settle immediately (wallet balance already captured).
	status := ""
	if src.Status == gateway.SourceStatusPaid {
		status = enum.PaymentStatusPaid
	}
	if err := s.updateAfterGateway(ctx, result, src.Reference, status); err != nil {
		log.Printf("ERROR: save gateway source for %s: %v", result.Order.OrderNumber, err)
		return
	}
	result.RedirectURL = src.RedirectURL
}

// updateAfterGateway records the gateway outcome on the committed order.
func (s *OrderService) updateAfterGateway(ctx context.Context, result *CreateOrderResult, ref, paymentStatus string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	order := result.Order

	if ref != "" {
		order, err = store.SetOrderGatewayRef(ctx, database.SetOrderGatewayRefParams{
			ID:         order.ID,
			GatewayRef: pgtype.Text{String: ref, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("set gateway ref: %w", err)
		}
	}
	if paymentStatus != "" {
		order, err = store.UpdatePaymentStatus(ctx, database.UpdatePaymentStatusParams{
			ID:            order.ID,
			PaymentStatus: database.PaymentStatus(paymentStatus),
		})
		if err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	result.Order = order
	return nil
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest, lines []reservationLine) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	nextNum, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("LB-%05d", nextNum)

	reserved, err := reserveLines(ctx, store, lines)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for i, item := range reserved {
		price := numericToDecimal(item.Price)
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt32(lines[i].quantity)))
	}
	totalAmount := subtotal.Add(s.deliveryFee)

	// Cash on hand settles immediately; wallet transfers stay pending
	// until the gateway confirms or an admin verifies the proof.
	paymentStatus := database.PaymentStatusPAID
	if req.PaymentMethod == enum.PaymentMethodWallet {
		paymentStatus = database.PaymentStatusPENDING
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:   orderNumber,
		CustomerID:    req.CustomerID,
		Fullname:      req.Fullname,
		Contact:       req.Contact,
		Address:       req.Address,
		Subtotal:      decimalToNumeric(subtotal),
		DeliveryFee:   decimalToNumeric(s.deliveryFee),
		TotalAmount:   decimalToNumeric(totalAmount),
		PaymentMethod: database.PaymentMethod(req.PaymentMethod),
		PaymentStatus: paymentStatus,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var itemRows []database.OrderItem
	for i, item := range reserved {
		price := numericToDecimal(item.Price)
		lineSubtotal := price.Mul(decimal.NewFromInt32(lines[i].quantity))
		row, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:    order.ID,
			MenuItemID: item.ID,
			Name:       item.Name,
			UnitPrice:  item.Price,
			Quantity:   lines[i].quantity,
			Subtotal:   decimalToNumeric(lineSubtotal),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		itemRows = append(itemRows, row)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: itemRows}, nil
}

// UpdateOrder replaces the delivery details and cart of a PENDING order.
// The old reservation is released and the new one taken in the same
// transaction, so stock is never double-counted.
func (s *OrderService) UpdateOrder(ctx context.Context, req UpdateOrderRequest) (*CreateOrderResult, error) {
	if err := ValidateDeliveryDetails(req.Fullname, req.Contact, req.Address); err != nil {
		return nil, err
	}
	lines, err := parseLines(req.Items)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := s.lockPendingOrder(ctx, store, req.OrderID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	oldItems, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	oldLines := make([]reservationLine, 0, len(oldItems))
	for _, it := range oldItems {
		oldLines = append(oldLines, reservationLine{menuItemID: it.MenuItemID, quantity: it.Quantity})
	}
	if err := releaseLines(ctx, store, oldLines); err != nil {
		return nil, err
	}
	if err := store.DeleteOrderItemsByOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("delete order items: %w", err)
	}

	reserved, err := reserveLines(ctx, store, lines)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for i, item := range reserved {
		price := numericToDecimal(item.Price)
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt32(lines[i].quantity)))
	}
	deliveryFee := numericToDecimal(order.DeliveryFee)
	totalAmount := subtotal.Add(deliveryFee)

	updated, err := store.UpdateOrderDetails(ctx, database.UpdateOrderDetailsParams{
		ID:          order.ID,
		Fullname:    req.Fullname,
		Contact:     req.Contact,
		Address:     req.Address,
		Subtotal:    decimalToNumeric(subtotal),
		TotalAmount: decimalToNumeric(totalAmount),
	})
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	var itemRows []database.OrderItem
	for i, item := range reserved {
		price := numericToDecimal(item.Price)
		lineSubtotal := price.Mul(decimal.NewFromInt32(lines[i].quantity))
		row, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:    order.ID,
			MenuItemID: item.ID,
			Name:       item.Name,
			UnitPrice:  item.Price,
			Quantity:   lines[i].quantity,
			Subtotal:   decimalToNumeric(lineSubtotal),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		itemRows = append(itemRows, row)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: updated, Items: itemRows}, nil
}

// CancelOrder cancels a PENDING order and returns its reserved stock. Orders
// already paid are flagged for refund.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, customerID uuid.UUID) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := s.lockPendingOrder(ctx, store, orderID, customerID)
	if err != nil {
		return nil, err
	}

	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	lines := make([]reservationLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, reservationLine{menuItemID: it.MenuItemID, quantity: it.Quantity})
	}
	if err := releaseLines(ctx, store, lines); err != nil {
		return nil, err
	}

	refundStatus := database.RefundStatusNONE
	if order.PaymentStatus == enum.PaymentStatusPaid {
		refundStatus = database.RefundStatusPENDING
	}

	cancelled, err := store.SetOrderCancelled(ctx, database.SetOrderCancelledParams{
		ID:           order.ID,
		RefundStatus: refundStatus,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotPending
		}
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &cancelled, nil
}

// lockPendingOrder loads the order under a row lock and enforces ownership
// and the PENDING-only invariant. A customer probing someone else's order
// gets not-found, not forbidden.
func (s *OrderService) lockPendingOrder(ctx context.Context, store OrderStore, orderID, customerID uuid.UUID) (database.Order, error) {
	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if customerID != uuid.Nil && order.CustomerID != customerID {
		return database.Order{}, ErrOrderNotFound
	}
	if order.Status != enum.OrderStatusPending {
		return database.Order{}, ErrOrderNotPending
	}
	return order, nil
}

// --- Helpers ---

func parseLines(items []OrderLineRequest) ([]reservationLine, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	lines := make([]reservationLine, 0, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		id, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidMenuItemID)
		}
		lines = append(lines, reservationLine{menuItemID: id, quantity: item.Quantity})
	}
	return lines, nil
}

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodCOD, enum.PaymentMethodWallet:
		return true
	}
	return false
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
