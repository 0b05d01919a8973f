package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lutong-bahay/api/internal/database"
	"github.com/lutong-bahay/api/internal/enum"
	"github.com/lutong-bahay/api/internal/gateway"
)

// Errors returned by the payment service.
var (
	ErrNotWalletOrder    = errors.New("order is not a wallet-transfer order")
	ErrAlreadyPaid       = errors.New("order is already paid")
	ErrOrderCancelled    = errors.New("order is cancelled")
	ErrPaymentNotPending = errors.New("payment is not awaiting verification")
	ErrNoRefundPending   = errors.New("order has no refund pending")
	ErrEmptyProof        = errors.New("payment proof is required")
)

// PaymentStore defines the DB methods needed for payment flows.
// Satisfied by *database.Queries (and its WithTx variant).
type PaymentStore interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderByGatewayRef(ctx context.Context, gatewayRef string) (database.Order, error)
	UpdatePaymentProof(ctx context.Context, arg database.UpdatePaymentProofParams) (database.Order, error)
	UpdatePaymentStatus(ctx context.Context, arg database.UpdatePaymentStatusParams) (database.Order, error)
	UpdateRefundStatus(ctx context.Context, arg database.UpdateRefundStatusParams) (database.Order, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// PaymentService handles wallet-transfer verification and refunds.
type PaymentService struct {
	pool     TxBeginner
	newStore NewPaymentStore
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(pool TxBeginner, newStore NewPaymentStore) *PaymentService {
	return &PaymentService{pool: pool, newStore: newStore}
}

// SubmitProof attaches a proof-of-payment image reference to a wallet order
// and puts the payment back to PENDING for admin review. A customer may
// resubmit after a failed verification.
func (s *PaymentService) SubmitProof(ctx context.Context, orderID, customerID uuid.UUID, proof string) (*database.Order, error) {
	if proof == "" {
		return nil, ErrEmptyProof
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if customerID != uuid.Nil && order.CustomerID != customerID {
		return nil, ErrOrderNotFound
	}
	if order.PaymentMethod != enum.PaymentMethodWallet {
		return nil, ErrNotWalletOrder
	}
	if order.Status == enum.OrderStatusCancelled {
		return nil, ErrOrderCancelled
	}
	if order.PaymentStatus == enum.PaymentStatusPaid {
		return nil, ErrAlreadyPaid
	}

	updated, err := store.UpdatePaymentProof(ctx, database.UpdatePaymentProofParams{
		ID:            order.ID,
		PaymentProof:  pgtype.Text{String: proof, Valid: true},
		PaymentStatus: enum.PaymentStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("update payment proof: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// Verify records an admin's decision on a pending wallet payment.
func (s *PaymentService) Verify(ctx context.Context, orderID uuid.UUID, approved bool) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.PaymentMethod != enum.PaymentMethodWallet {
		return nil, ErrNotWalletOrder
	}
	if order.Status == enum.OrderStatusCancelled {
		return nil, ErrOrderCancelled
	}
	if order.PaymentStatus != enum.PaymentStatusPending {
		return nil, ErrPaymentNotPending
	}

	status := database.PaymentStatusFAILED
	if approved {
		status = database.PaymentStatusPAID
	}
	updated, err := store.UpdatePaymentStatus(ctx, database.UpdatePaymentStatusParams{
		ID:            order.ID,
		PaymentStatus: status,
	})
	if err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// HandleCallback settles a wallet payment reported by the gateway. Lookup is
// by the gateway's source reference. Repeated notifications for an already
// paid order are acknowledged without change.
func (s *PaymentService) HandleCallback(ctx context.Context, gatewayRef, sourceStatus string) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderByGatewayRef(ctx, gatewayRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by gateway ref: %w", err)
	}
	if order.PaymentStatus == enum.PaymentStatusPaid {
		return &order, nil
	}

	status := database.PaymentStatusFAILED
	if sourceStatus == gateway.SourceStatusPaid {
		status = database.PaymentStatusPAID
	}
	updated, err := store.UpdatePaymentStatus(ctx, database.UpdatePaymentStatusParams{
		ID:            order.ID,
		PaymentStatus: status,
	})
	if err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	// A late settlement can land after the customer cancelled. The money is
	// captured either way, so the order goes into the refund queue.
	if status == database.PaymentStatusPAID && order.Status == enum.OrderStatusCancelled {
		updated, err = store.UpdateRefundStatus(ctx, database.UpdateRefundStatusParams{
			ID:           order.ID,
			RefundStatus: enum.RefundStatusPending,
		})
		if err != nil {
			return nil, fmt.Errorf("update refund status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// MarkRefunded closes out a pending refund after the admin has returned the
// money out of band.
func (s *PaymentService) MarkRefunded(ctx context.Context, orderID uuid.UUID) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.RefundStatus != enum.RefundStatusPending {
		return nil, ErrNoRefundPending
	}

	updated, err := store.UpdateRefundStatus(ctx, database.UpdateRefundStatusParams{
		ID:           order.ID,
		RefundStatus: enum.RefundStatusRefunded,
	})
	if err != nil {
		return nil, fmt.Errorf("update refund status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}
