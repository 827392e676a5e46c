package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopfront/internal/domain"
)

var ErrWishlistEntryNotFound = errors.New("wishlist entry not found")

// WishlistRepository defines the interface for wishlist data access
type WishlistRepository interface {
	Add(ctx context.Context, userID, productID int64) error
	Remove(ctx context.Context, userID, productID int64) error
	ListByUser(ctx context.Context, userID int64) ([]*domain.WishlistEntry, error)

	// FindRecipientsForProduct resolves every user who wishlisted the
	// product into a notification recipient, distinct by email address.
	FindRecipientsForProduct(ctx context.Context, productID int64) ([]domain.Recipient, error)
}

type wishlistRepository struct {
	db *sql.DB
}

// NewWishlistRepository creates a new instance of WishlistRepository
func NewWishlistRepository(db *sql.DB) WishlistRepository {
	return &wishlistRepository{db: db}
}

// Add upserts a wishlist entry; re-adding bumps updated_at
func (r *wishlistRepository) Add(ctx context.Context, userID, productID int64) error {
	query := `
		INSERT INTO wishlists (user_id, product_id, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET updated_at = now()
	`

	if _, err := r.db.ExecContext(ctx, query, userID, productID); err != nil {
		return fmt.Errorf("failed to add wishlist entry: %w", err)
	}

	return nil
}

// Remove deletes a wishlist entry
func (r *wishlistRepository) Remove(ctx context.Context, userID, productID int64) error {
	query := `DELETE FROM wishlists WHERE user_id = $1 AND product_id = $2`

	result, err := r.db.ExecContext(ctx, query, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove wishlist entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrWishlistEntryNotFound
	}

	return nil
}

// ListByUser retrieves a user's wishlist entries
func (r *wishlistRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.WishlistEntry, error) {
	query := `
		SELECT user_id, product_id, created_at, updated_at
		FROM wishlists
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist entries: %w", err)
	}
	defer rows.Close()

	entries := []*domain.WishlistEntry{}
	for rows.Next() {
		entry := &domain.WishlistEntry{}
		err := rows.Scan(
			&entry.UserID,
			&entry.ProductID,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wishlist entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wishlist entries: %w", err)
	}

	return entries, nil
}

// FindRecipientsForProduct joins wishlist entries with user addresses
func (r *wishlistRepository) FindRecipientsForProduct(ctx context.Context, productID int64) ([]domain.Recipient, error) {
	query := `
		SELECT DISTINCT ON (u.email) u.email, u.display_name
		FROM wishlists w
		JOIN users u ON u.id = w.user_id
		WHERE w.product_id = $1
		ORDER BY u.email
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to find wishlist recipients: %w", err)
	}
	defer rows.Close()

	recipients := []domain.Recipient{}
	for rows.Next() {
		var recipient domain.Recipient
		if err := rows.Scan(&recipient.Address, &recipient.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan wishlist recipient: %w", err)
		}
		recipients = append(recipients, recipient)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wishlist recipients: %w", err)
	}

	return recipients, nil
}
