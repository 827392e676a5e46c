package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one product entry in a user's cart. There is at most one line
// per (user, product) pair; re-adding the same product increments Quantity.
type CartLine struct {
	UserID    int64     `json:"user_id" db:"user_id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CartSnapshotLine is a cart line joined with the product's current price,
// stock and title, read inside the checkout transaction. The price here is
// the snapshot that ends up on the order line.
type CartSnapshotLine struct {
	ProductID int64
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
	Stock     int
}

// LineTotal returns unit price times quantity without losing precision.
func (l CartSnapshotLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
