package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog. Stock is never negative: the
// checkout engine only mutates it through a conditional decrement and the
// admin path validates before writing.
type Product struct {
	ID          int64           `json:"id" db:"id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Stock       int             `json:"stock" db:"stock"`
	Rating      int             `json:"rating" db:"rating"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}
