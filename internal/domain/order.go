package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxRate is the flat tax rate applied to every order subtotal.
var TaxRate = decimal.NewFromFloat(0.10)

// OrderStatusCompleted is the only status an order can have: orders are
// created at checkout and never move to partial or refunded states.
const OrderStatusCompleted = "completed"

// Order is the immutable record of a checkout. Totals are computed once from
// the snapshot prices and never recomputed afterwards.
type Order struct {
	ID        int64           `json:"id" db:"id"`
	Reference uuid.UUID       `json:"reference" db:"reference"`
	UserID    int64           `json:"user_id" db:"user_id"`
	Subtotal  decimal.Decimal `json:"subtotal" db:"subtotal"`
	Tax       decimal.Decimal `json:"tax" db:"tax"`
	Total     decimal.Decimal `json:"total" db:"total"`
	Status    string          `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// OrderLine is one purchased product on an order. UnitPrice is the price at
// the time of purchase, copied from the catalog, so later price changes never
// alter historical orders.
type OrderLine struct {
	OrderID   int64           `json:"order_id" db:"order_id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Title     string          `json:"title" db:"title"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
}

// LineTotal returns unit price times quantity.
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ComputeTotals derives subtotal, tax and total from snapshot lines.
// Tax is rounded to 2 decimal places; the subtotal keeps full precision of
// the price-times-quantity sums.
func ComputeTotals(lines []CartSnapshotLine) (subtotal, tax, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal())
	}
	tax = subtotal.Mul(TaxRate).Round(2)
	total = subtotal.Add(tax)
	return subtotal, tax, total
}
