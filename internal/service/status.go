package service

import (
	"errors"

	"github.com/lutong-bahay/api/internal/enum"
)

// ErrInvalidTransition is returned when an order status change is not allowed
// from the order's current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// allowedTransitions defines the forward path of the fulfilment flow.
// Cancellation is only possible while the order is still PENDING; once the
// kitchen starts preparing, the order runs to delivery.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:        {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing:      {enum.OrderStatusOutForDelivery},
	enum.OrderStatusOutForDelivery: {enum.OrderStatusDelivered},
	enum.OrderStatusDelivered:      {},
	enum.OrderStatusCancelled:      {},
}

func isValidOrderStatus(s string) bool {
	_, ok := allowedTransitions[s]
	return ok
}

func isTerminalStatus(s string) bool {
	return s == enum.OrderStatusDelivered || s == enum.OrderStatusCancelled
}

// ValidateTransition checks whether an order may move from current to next.
// In strict mode only the single forward step (or PENDING cancellation) is
// allowed. In permissive mode admins may jump between non-terminal statuses
// to correct mistakes, but terminal statuses stay locked and CANCELLED is
// still only reachable from PENDING.
func ValidateTransition(current, next string, strict bool) error {
	if !isValidOrderStatus(next) {
		return ErrInvalidTransition
	}
	if next == current {
		return ErrInvalidTransition
	}
	if isTerminalStatus(current) {
		return ErrInvalidTransition
	}

	if !strict {
		if next == enum.OrderStatusCancelled && current != enum.OrderStatusPending {
			return ErrInvalidTransition
		}
		return nil
	}

	for _, allowed := range allowedTransitions[current] {
		if next == allowed {
			return nil
		}
	}
	return ErrInvalidTransition
}
