package domain

import "time"

// WishlistEntry links a user to a product they want to be notified about.
// Unique per (user, product); re-adding bumps UpdatedAt.
type WishlistEntry struct {
	UserID    int64     `json:"user_id" db:"user_id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Recipient is a notification target resolved from a wishlist entry.
type Recipient struct {
	Address     string
	DisplayName string
}
