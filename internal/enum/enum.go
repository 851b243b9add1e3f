package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending        = "PENDING"
	OrderStatusConfirmed      = "CONFIRMED"
	OrderStatusPreparing      = "PREPARING"
	OrderStatusReadyForPickup = "READY_FOR_PICKUP"
	OrderStatusPickedUp       = "PICKED_UP"
	OrderStatusCancelled      = "CANCELLED"
)

const (
	PaymentStatusPending  = "PENDING"
	PaymentStatusPaid     = "PAID"
	PaymentStatusRefunded = "REFUNDED"
)

// ── Group B: Roles and delivery modes (CHECK constrained in DB) ──

const (
	RoleCustomer = "CUSTOMER"
	RoleStaff    = "STAFF"
)

const (
	DeliveryTypePickup   = "PICKUP"
	DeliveryTypeDelivery = "DELIVERY"
)

// ── Group C: Legacy wire values (lowercase in historical rows) ──

// LineTypeExtra is the explicit type tag written on order lines that
// reference the extras catalog (the current extra encoding).
const LineTypeExtra = "extra"
