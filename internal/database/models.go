package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Customer struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Phone        pgtype.Text
	Role         string
	CreatedAt    time.Time
}

type Dish struct {
	ID           int64
	Name         string
	Price        pgtype.Numeric
	PhotoUrl     pgtype.Text
	AvailableMon bool
	AvailableTue bool
	AvailableWed bool
	AvailableThu bool
	AvailableFri bool
	AvailableSat bool
	AvailableSun bool
	Exhausted    bool
}

type Extra struct {
	ID        int64
	Name      string
	Price     pgtype.Numeric
	Available bool
	PhotoUrl  pgtype.Text
}

type Order struct {
	ID            int64
	CustomerID    uuid.UUID
	PickupAt      time.Time
	Note          pgtype.Text
	InternalNote  pgtype.Text
	DeliveryType  string
	PaymentStatus string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderLine. ItemRef is the historically overloaded catalog reference: a dish
// id on dish lines, an extra id when LineType is "extra", and the zero
// sentinel on legacy extra lines whose Name/UnitPrice are stored inline.
type OrderLine struct {
	ID        int64
	OrderID   int64
	ItemRef   int64
	LineType  pgtype.Text
	Name      pgtype.Text
	UnitPrice pgtype.Numeric
	Quantity  int32
}
