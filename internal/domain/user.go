package domain

import "time"

// User is the owner of carts, orders and wishlist entries. Account
// management lives outside this service; only the notification recipient
// fields are read here.
type User struct {
	ID          int64     `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"display_name" db:"display_name"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
