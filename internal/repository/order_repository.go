package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopfront/internal/domain"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderRepository defines the interface for order data access. Orders and
// their lines are written exactly once, by the checkout transaction, and
// never updated afterwards.
type OrderRepository interface {
	InsertOrder(ctx context.Context, q Querier, order *domain.Order) error
	InsertLine(ctx context.Context, q Querier, line *domain.OrderLine) error

	// FindWithLines loads a persisted order and its lines for invoice
	// re-rendering. Returns ErrOrderNotFound when the order does not exist
	// or belongs to a different user.
	FindWithLines(ctx context.Context, orderID, userID int64) (*domain.Order, []domain.OrderLine, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// InsertOrder writes the order row and fills in the generated ID
func (r *orderRepository) InsertOrder(ctx context.Context, q Querier, order *domain.Order) error {
	query := `
		INSERT INTO orders (reference, user_id, subtotal, tax, total, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := q.QueryRowContext(
		ctx,
		query,
		order.Reference,
		order.UserID,
		order.Subtotal,
		order.Tax,
		order.Total,
		order.Status,
		order.CreatedAt,
	).Scan(&order.ID)

	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

// InsertLine writes one order line with its snapshot price
func (r *orderRepository) InsertLine(ctx context.Context, q Querier, line *domain.OrderLine) error {
	query := `
		INSERT INTO order_lines (order_id, product_id, title, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := q.ExecContext(
		ctx,
		query,
		line.OrderID,
		line.ProductID,
		line.Title,
		line.Quantity,
		line.UnitPrice,
	)

	if err != nil {
		return fmt.Errorf("failed to insert order line: %w", err)
	}

	return nil
}

// FindWithLines loads the order aggregate scoped to its owning user
func (r *orderRepository) FindWithLines(ctx context.Context, orderID, userID int64) (*domain.Order, []domain.OrderLine, error) {
	query := `
		SELECT id, reference, user_id, subtotal, tax, total, status, created_at
		FROM orders
		WHERE id = $1 AND user_id = $2
	`

	order := &domain.Order{}
	err := r.db.QueryRowContext(ctx, query, orderID, userID).Scan(
		&order.ID,
		&order.Reference,
		&order.UserID,
		&order.Subtotal,
		&order.Tax,
		&order.Total,
		&order.Status,
		&order.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, fmt.Errorf("failed to find order: %w", err)
	}

	linesQuery := `
		SELECT order_id, product_id, title, quantity, unit_price
		FROM order_lines
		WHERE order_id = $1
		ORDER BY product_id
	`

	rows, err := r.db.QueryContext(ctx, linesQuery, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load order lines: %w", err)
	}
	defer rows.Close()

	lines := []domain.OrderLine{}
	for rows.Next() {
		var line domain.OrderLine
		err := rows.Scan(
			&line.OrderID,
			&line.ProductID,
			&line.Title,
			&line.Quantity,
			&line.UnitPrice,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating order lines: %w", err)
	}

	return order, lines, nil
}

// ListByUser retrieves a user's order history, newest first
func (r *orderRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	query := `
		SELECT id, reference, user_id, subtotal, tax, total, status, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order := &domain.Order{}
		err := rows.Scan(
			&order.ID,
			&order.Reference,
			&order.UserID,
			&order.Subtotal,
			&order.Tax,
			&order.Total,
			&order.Status,
			&order.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}
