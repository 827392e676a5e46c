package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopfront/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

var ErrCartLineNotFound = errors.New("cart line not found")

// CartRepository defines the interface for cart data access
type CartRepository interface {
	// AddLine merge-inserts a cart line: a second add of the same product
	// increments the existing quantity instead of creating a duplicate row.
	// Adding a product that does not exist returns ErrProductNotFound.
	AddLine(ctx context.Context, userID, productID int64, quantity int) error
	RemoveLine(ctx context.Context, userID, productID int64) error
	ListLines(ctx context.Context, userID int64) ([]*domain.CartLine, error)

	// ReadWithProductSnapshot joins the user's cart lines with the current
	// product price, stock and title, locking the cart rows for the duration
	// of the transaction. Run against the checkout transaction's Querier,
	// this read is the price snapshot the order is built from, and the lock
	// serializes concurrent checkouts of the same cart.
	ReadWithProductSnapshot(ctx context.Context, q Querier, userID int64) ([]domain.CartSnapshotLine, error)

	// Clear deletes all of the user's cart lines.
	Clear(ctx context.Context, q Querier, userID int64) error
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

// AddLine upserts on the (user_id, product_id) primary key
func (r *cartRepository) AddLine(ctx context.Context, userID, productID int64, quantity int) error {
	query := `
		INSERT INTO carts (user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = carts.quantity + EXCLUDED.quantity, updated_at = now()
	`

	_, err := r.db.ExecContext(ctx, query, userID, productID, quantity)
	if err != nil {
		// SQLSTATE 23503: foreign key violation, the product does not exist.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to add cart line: %w", err)
	}

	return nil
}

// RemoveLine deletes a single cart line
func (r *cartRepository) RemoveLine(ctx context.Context, userID, productID int64) error {
	query := `DELETE FROM carts WHERE user_id = $1 AND product_id = $2`

	result, err := r.db.ExecContext(ctx, query, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove cart line: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCartLineNotFound
	}

	return nil
}

// ListLines retrieves all cart lines for a user
func (r *cartRepository) ListLines(ctx context.Context, userID int64) ([]*domain.CartLine, error) {
	query := `
		SELECT user_id, product_id, quantity, created_at, updated_at
		FROM carts
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	defer rows.Close()

	lines := []*domain.CartLine{}
	for rows.Next() {
		line := &domain.CartLine{}
		err := rows.Scan(
			&line.UserID,
			&line.ProductID,
			&line.Quantity,
			&line.CreatedAt,
			&line.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return lines, nil
}

// ReadWithProductSnapshot joins cart lines with live product data. The cart
// rows are locked: a concurrent checkout for the same user blocks here and,
// once the first commit deletes the cart, re-reads it as empty. Only the
// cart side is locked so checkouts for different users never contend.
func (r *cartRepository) ReadWithProductSnapshot(ctx context.Context, q Querier, userID int64) ([]domain.CartSnapshotLine, error) {
	query := `
		SELECT c.product_id, p.title, c.quantity, p.price, p.stock
		FROM carts c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.product_id
		FOR UPDATE OF c
	`

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart snapshot: %w", err)
	}
	defer rows.Close()

	lines := []domain.CartSnapshotLine{}
	for rows.Next() {
		var line domain.CartSnapshotLine
		err := rows.Scan(
			&line.ProductID,
			&line.Title,
			&line.Quantity,
			&line.UnitPrice,
			&line.Stock,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart snapshot line: %w", err)
		}
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart snapshot: %w", err)
	}

	return lines, nil
}

// Clear deletes every cart line belonging to the user
func (r *cartRepository) Clear(ctx context.Context, q Querier, userID int64) error {
	query := `DELETE FROM carts WHERE user_id = $1`

	if _, err := q.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return nil
}
