package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending        = "PENDING"
	OrderStatusPreparing      = "PREPARING"
	OrderStatusOutForDelivery = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      = "DELIVERED"
	OrderStatusCancelled      = "CANCELLED"
)

const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
	PaymentStatusFailed  = "FAILED"
)

const (
	RefundStatusNone     = "NONE"
	RefundStatusPending  = "PENDING"
	RefundStatusRefunded = "REFUNDED"
)

// ── Roles (CHECK constrained in DB) ──

const (
	UserRoleCustomer = "CUSTOMER"
	UserRoleAdmin    = "ADMIN"
)

// ── Configurable labels ──

const (
	PaymentMethodCash   = "CASH"
	PaymentMethodCOD    = "COD"
	PaymentMethodWallet = "WALLET"
)

const (
	MenuCategoryFoods    = "foods"
	MenuCategoryDrinks   = "drinks"
	MenuCategoryDesserts = "desserts"
)
