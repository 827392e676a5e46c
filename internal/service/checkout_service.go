package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/invoice"
	"shopfront/internal/notify"
	"shopfront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmptyCart = errors.New("cart is empty")

	// ErrTransactionFailed is the generic infrastructure failure surfaced to
	// callers. The underlying cause is logged server-side, never exposed.
	ErrTransactionFailed = errors.New("checkout failed")
)

// InsufficientStockError identifies the first cart line whose quantity
// exceeds the product's available stock.
type InsufficientStockError struct {
	ProductTitle string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q", e.ProductTitle)
}

// stockRaceError marks a conditional decrement that failed after the
// read-time check passed: a concurrent checkout took the stock between the
// snapshot read and the write. The whole transaction is retried once before
// this surfaces as InsufficientStockError.
type stockRaceError struct {
	productTitle string
}

func (e *stockRaceError) Error() string {
	return fmt.Sprintf("lost stock race for %q", e.productTitle)
}

// Dispatcher accepts post-commit notification tasks.
type Dispatcher interface {
	Enqueue(task notify.Task)
}

// CheckoutService converts a user's cart into a durable order inside one
// atomic unit of work.
type CheckoutService interface {
	// PlaceOrder verifies stock, computes totals from a single price
	// snapshot, writes the order aggregate, decrements stock, clears the
	// cart and commits; the invoice notification is queued only after the
	// commit is durable.
	PlaceOrder(ctx context.Context, userID int64) (*domain.Order, []domain.OrderLine, error)

	// Invoice re-renders the invoice PDF from the persisted order aggregate.
	// Totals reproduce exactly because order lines carry snapshot prices.
	Invoice(ctx context.Context, orderID, userID int64) ([]byte, error)

	ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error)
}

type checkoutService struct {
	db         *sql.DB
	carts      repository.CartRepository
	catalog    repository.CatalogRepository
	orders     repository.OrderRepository
	users      repository.UserRepository
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewCheckoutService creates a new instance of CheckoutService
func NewCheckoutService(
	db *sql.DB,
	carts repository.CartRepository,
	catalog repository.CatalogRepository,
	orders repository.OrderRepository,
	users repository.UserRepository,
	dispatcher Dispatcher,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		db:         db,
		carts:      carts,
		catalog:    catalog,
		orders:     orders,
		users:      users,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// PlaceOrder runs the checkout transaction, retrying once when a conditional
// stock decrement loses a race that the read-time check had passed.
func (s *checkoutService) PlaceOrder(ctx context.Context, userID int64) (*domain.Order, []domain.OrderLine, error) {
	var raceErr *stockRaceError

	for attempt := 0; attempt < 2; attempt++ {
		order, lines, err := s.placeOrderOnce(ctx, userID)
		if err == nil {
			s.dispatchInvoice(ctx, order, lines)
			return order, lines, nil
		}

		if errors.As(err, &raceErr) {
			s.logger.Info("Checkout lost stock race, retrying",
				zap.Int64("user_id", userID),
				zap.String("product", raceErr.productTitle),
				zap.Int("attempt", attempt+1),
			)
			continue
		}

		return nil, nil, err
	}

	// Both attempts lost the race; to the caller this is ordinary
	// insufficient stock.
	return nil, nil, &InsufficientStockError{ProductTitle: raceErr.productTitle}
}

func (s *checkoutService) placeOrderOnce(ctx context.Context, userID int64) (*domain.Order, []domain.OrderLine, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, nil, s.infraFailure(userID, "begin transaction", err)
	}
	// Rollback is a no-op once the transaction has committed.
	defer tx.Rollback()

	// Step 1: read the cart joined with current price, stock and title.
	// These prices are the snapshot used for totals and order lines.
	snapshot, err := s.carts.ReadWithProductSnapshot(ctx, tx, userID)
	if err != nil {
		return nil, nil, s.infraFailure(userID, "read cart snapshot", err)
	}
	if len(snapshot) == 0 {
		return nil, nil, ErrEmptyCart
	}

	// Step 2: fail-fast stock check. All-or-nothing: the first short line
	// aborts the whole checkout.
	for _, line := range snapshot {
		if line.Stock < line.Quantity {
			return nil, nil, &InsufficientStockError{ProductTitle: line.Title}
		}
	}

	// Step 3: totals from the snapshot, in decimal arithmetic.
	subtotal, tax, total := domain.ComputeTotals(snapshot)

	// Step 4: write the order aggregate.
	order := &domain.Order{
		Reference: uuid.New(),
		UserID:    userID,
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     total,
		Status:    domain.OrderStatusCompleted,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	if err := s.orders.InsertOrder(ctx, tx, order); err != nil {
		return nil, nil, s.infraFailure(userID, "insert order", err)
	}

	lines := make([]domain.OrderLine, 0, len(snapshot))
	for _, cartLine := range snapshot {
		line := domain.OrderLine{
			OrderID:   order.ID,
			ProductID: cartLine.ProductID,
			Title:     cartLine.Title,
			Quantity:  cartLine.Quantity,
			UnitPrice: cartLine.UnitPrice,
		}

		if err := s.orders.InsertLine(ctx, tx, &line); err != nil {
			return nil, nil, s.infraFailure(userID, "insert order line", err)
		}

		// Step 5: conditional decrement re-validates stock at write time.
		// This, not the step 2 read, is the authoritative oversell guard.
		err := s.catalog.ConditionalDecrementStock(ctx, tx, cartLine.ProductID, cartLine.Quantity)
		if errors.Is(err, repository.ErrStockConflict) {
			return nil, nil, &stockRaceError{productTitle: cartLine.Title}
		}
		if err != nil {
			return nil, nil, s.infraFailure(userID, "decrement stock", err)
		}

		lines = append(lines, line)
	}

	// Step 6: empty the cart inside the same transaction.
	if err := s.carts.Clear(ctx, tx, userID); err != nil {
		return nil, nil, s.infraFailure(userID, "clear cart", err)
	}

	// Step 7: commit. Nothing above is observable until this succeeds.
	if err := tx.Commit(); err != nil {
		return nil, nil, s.infraFailure(userID, "commit", err)
	}

	s.logger.Info("Order placed",
		zap.Int64("user_id", userID),
		zap.Int64("order_id", order.ID),
		zap.String("total", order.Total.StringFixed(2)),
	)

	return order, lines, nil
}

// dispatchInvoice queues the invoice mail after commit. Any failure here is
// logged and swallowed: the order is already durable and must stand. The
// request context is detached first so a client disconnect after commit
// cannot cancel the recipient lookup.
func (s *checkoutService) dispatchInvoice(ctx context.Context, order *domain.Order, lines []domain.OrderLine) {
	ctx = context.WithoutCancel(ctx)

	user, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		s.logger.Error("Invoice dispatch: recipient lookup failed",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
		return
	}

	doc, err := invoice.Render(order, lines)
	if err != nil {
		s.logger.Error("Invoice dispatch: render failed",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
		return
	}

	s.dispatcher.Enqueue(notify.Task{
		Recipient: user.Email,
		Subject:   fmt.Sprintf("Your order %s", order.Reference),
		Body: fmt.Sprintf(
			"Hello %s,\n\nThank you for your order. Your invoice is attached.\n\nTotal: %s\n",
			user.DisplayName, order.Total.StringFixed(2),
		),
		Attachment: &notify.Attachment{
			Filename:    fmt.Sprintf("invoice-%s.pdf", order.Reference),
			ContentType: "application/pdf",
			Data:        doc,
		},
	})
}

// Invoice re-renders a persisted order. The render is deterministic, so the
// bytes match what was originally attached to the checkout mail.
func (s *checkoutService) Invoice(ctx context.Context, orderID, userID int64) ([]byte, error) {
	order, lines, err := s.orders.FindWithLines(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, repository.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	return invoice.Render(order, lines)
}

// ListOrders returns the user's order history
func (s *checkoutService) ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// infraFailure logs the storage-level cause and maps it to the generic
// transaction failure the caller sees.
func (s *checkoutService) infraFailure(userID int64, step string, err error) error {
	s.logger.Error("Checkout transaction failed",
		zap.Int64("user_id", userID),
		zap.String("step", step),
		zap.Error(err),
	)
	return ErrTransactionFailed
}
