package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, name, price, category, quantity, is_available, created_at, updated_at`

func scanMenuItem(row interface{ Scan(dest ...interface{}) error }) (MenuItem, error) {
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Price,
		&i.Category,
		&i.Quantity,
		&i.IsAvailable,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createMenuItem = `
INSERT INTO menu_items (name, price, category, quantity, is_available)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + menuItemColumns

type CreateMenuItemParams struct {
	Name        string
	Price       pgtype.Numeric
	Category    MenuCategory
	Quantity    int32
	IsAvailable bool
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem,
		arg.Name, arg.Price, arg.Category, arg.Quantity, arg.IsAvailable)
	return scanMenuItem(row)
}

const getMenuItem = `
SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = $1`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItem, id))
}

const getMenuItemForUpdate = `
SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = $1 FOR UPDATE`

// GetMenuItemForUpdate locks the item row for the rest of the transaction.
// Reservation reads stock through this so concurrent checkouts serialize.
func (q *Queries) GetMenuItemForUpdate(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItemForUpdate, id))
}

const listMenuItems = `
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE ($1::text IS NULL OR category = $1)
  AND (NOT $2::boolean OR is_available)
ORDER BY category, name`

type ListMenuItemsParams struct {
	Category      pgtype.Text
	AvailableOnly bool
}

func (q *Queries) ListMenuItems(ctx context.Context, arg ListMenuItemsParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems, arg.Category, arg.AvailableOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		i, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateMenuItem = `
UPDATE menu_items
SET name = $2, price = $3, category = $4, quantity = $5, is_available = $6,
    updated_at = now()
WHERE id = $1
RETURNING ` + menuItemColumns

type UpdateMenuItemParams struct {
	ID          uuid.UUID
	Name        string
	Price       pgtype.Numeric
	Category    MenuCategory
	Quantity    int32
	IsAvailable bool
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, updateMenuItem,
		arg.ID, arg.Name, arg.Price, arg.Category, arg.Quantity, arg.IsAvailable)
	return scanMenuItem(row)
}

const deleteMenuItem = `
DELETE FROM menu_items WHERE id = $1
RETURNING ` + menuItemColumns

func (q *Queries) DeleteMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, deleteMenuItem, id))
}

const reserveMenuItemStock = `
UPDATE menu_items
SET quantity = quantity - $2,
    is_available = (quantity - $2) > 0,
    updated_at = now()
WHERE id = $1 AND quantity >= $2
RETURNING ` + menuItemColumns

type ReserveMenuItemStockParams struct {
	ID       uuid.UUID
	Quantity int32
}

// ReserveMenuItemStock decrements stock only when enough remains; the
// quantity >= $2 guard means pgx.ErrNoRows on insufficient stock and the
// quantity column can never go negative. Hitting zero hides the item.
func (q *Queries) ReserveMenuItemStock(ctx context.Context, arg ReserveMenuItemStockParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, reserveMenuItemStock, arg.ID, arg.Quantity))
}

const addMenuItemStock = `
UPDATE menu_items
SET quantity = quantity + $2,
    is_available = CASE WHEN quantity = 0 AND $2 > 0 THEN TRUE ELSE is_available END,
    updated_at = now()
WHERE id = $1
RETURNING ` + menuItemColumns

type AddMenuItemStockParams struct {
	ID       uuid.UUID
	Quantity int32
}

// AddMenuItemStock restores stock on release or admin restock. An item that
// was auto-hidden at zero becomes visible again; an item the admin hid
// deliberately (stock > 0) stays hidden.
func (q *Queries) AddMenuItemStock(ctx context.Context, arg AddMenuItemStockParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, addMenuItemStock, arg.ID, arg.Quantity))
}
