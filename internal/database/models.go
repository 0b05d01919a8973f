package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type MenuCategory string

const (
	MenuCategoryFoods    MenuCategory = "foods"
	MenuCategoryDrinks   MenuCategory = "drinks"
	MenuCategoryDesserts MenuCategory = "desserts"
)

type OrderStatus string

const (
	OrderStatusPENDING        OrderStatus = "PENDING"
	OrderStatusPREPARING      OrderStatus = "PREPARING"
	OrderStatusOUTFORDELIVERY OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDELIVERED      OrderStatus = "DELIVERED"
	OrderStatusCANCELLED      OrderStatus = "CANCELLED"
)

type PaymentMethod string

const (
	PaymentMethodCASH   PaymentMethod = "CASH"
	PaymentMethodCOD    PaymentMethod = "COD"
	PaymentMethodWALLET PaymentMethod = "WALLET"
)

type PaymentStatus string

const (
	PaymentStatusPENDING PaymentStatus = "PENDING"
	PaymentStatusPAID    PaymentStatus = "PAID"
	PaymentStatusFAILED  PaymentStatus = "FAILED"
)

type RefundStatus string

const (
	RefundStatusNONE     RefundStatus = "NONE"
	RefundStatusPENDING  RefundStatus = "PENDING"
	RefundStatusREFUNDED RefundStatus = "REFUNDED"
)

type UserRole string

const (
	UserRoleCUSTOMER UserRole = "CUSTOMER"
	UserRoleADMIN    UserRole = "ADMIN"
)

type MenuItem struct {
	ID          uuid.UUID
	Name        string
	Price       pgtype.Numeric
	Category    MenuCategory
	Quantity    int32
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Order struct {
	ID            uuid.UUID
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
	RefundStatus  RefundStatus
	Status        OrderStatus
	PaymentProof  pgtype.Text
	GatewayRef    pgtype.Text
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	UnitPrice  pgtype.Numeric
	Quantity   int32
	Subtotal   pgtype.Numeric
}

type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
}
