package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lutong-bahay/api/internal/database"
)

// Errors returned by stock reservation.
var (
	ErrItemNotFound      = errors.New("menu item not found")
	ErrItemUnavailable   = errors.New("menu item is not available")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// StockError carries the rejection detail for a single menu item so the
// customer can adjust their cart.
type StockError struct {
	ItemID    uuid.UUID
	Name      string
	Requested int32
	Available int32
	err       error
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%s: %v (requested %d, available %d)", e.Name, e.err, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return e.err
}

// reservationLine is one item/quantity pair to reserve or release.
type reservationLine struct {
	menuItemID uuid.UUID
	quantity   int32
}

// reserveLines locks each menu item row and decrements its stock. It must run
// inside a transaction: any failure aborts the whole reservation via rollback,
// so stock is taken all-or-nothing. Returns the locked item rows in input
// order on success.
func reserveLines(ctx context.Context, store OrderStore, lines []reservationLine) ([]database.MenuItem, error) {
	reserved := make([]database.MenuItem, 0, len(lines))
	for i, line := range lines {
		item, err := store.GetMenuItemForUpdate(ctx, line.menuItemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("items[%d]: %w", i, ErrItemNotFound)
			}
			return nil, fmt.Errorf("items[%d]: lock menu item: %w", i, err)
		}

		if !item.IsAvailable || item.Quantity == 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, &StockError{
				ItemID:    item.ID,
				Name:      item.Name,
				Requested: line.quantity,
				Available: item.Quantity,
				err:       ErrItemUnavailable,
			})
		}
		if item.Quantity < line.quantity {
			return nil, fmt.Errorf("items[%d]: %w", i, &StockError{
				ItemID:    item.ID,
				Name:      item.Name,
				Requested: line.quantity,
				Available: item.Quantity,
				err:       ErrInsufficientStock,
			})
		}

		updated, err := store.ReserveMenuItemStock(ctx, database.ReserveMenuItemStockParams{
			ID:       line.menuItemID,
			Quantity: line.quantity,
		})
		if err != nil {
			// The conditional decrement lost a race despite the row lock.
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("items[%d]: %w", i, &StockError{
					ItemID:    item.ID,
					Name:      item.Name,
					Requested: line.quantity,
					Available: item.Quantity,
					err:       ErrInsufficientStock,
				})
			}
			return nil, fmt.Errorf("items[%d]: reserve stock: %w", i, err)
		}
		reserved = append(reserved, updated)
	}
	return reserved, nil
}

// releaseLines returns previously reserved stock to the menu items. Items
// that were auto-hidden when they sold out become available again.
func releaseLines(ctx context.Context, store OrderStore, lines []reservationLine) error {
	for i, line := range lines {
		if _, err := store.AddMenuItemStock(ctx, database.AddMenuItemStockParams{
			ID:       line.menuItemID,
			Quantity: line.quantity,
		}); err != nil {
			return fmt.Errorf("items[%d]: release stock: %w", i, err)
		}
	}
	return nil
}
