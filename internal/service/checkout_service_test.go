package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newCheckoutService(dispatcher Dispatcher) CheckoutService {
	logger := zap.NewNop()
	return NewCheckoutService(
		testDB,
		repository.NewCartRepository(testDB),
		repository.NewCatalogRepository(testDB),
		repository.NewOrderRepository(testDB),
		repository.NewUserRepository(testDB),
		dispatcher,
		logger,
	)
}

func countRows(t *testing.T, table string) int {
	t.Helper()
	var count int
	if err := testDB.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return count
}

func productStock(t *testing.T, id int64) int {
	t.Helper()
	var stock int
	if err := testDB.QueryRow(`SELECT stock FROM products WHERE id = $1`, id).Scan(&stock); err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	return stock
}

func TestPlaceOrderHappyPath(t *testing.T) {
	resetTables(t)
	dispatcher := &fakeDispatcher{}
	checkout := newCheckoutService(dispatcher)
	ctx := context.Background()

	userID := seedUser(t, "buyer@example.com", "Buyer")
	appleID := seedProduct(t, "Apple", "10.00", 10)
	breadID := seedProduct(t, "Bread", "5.00", 10)
	seedCartLine(t, userID, appleID, 2)
	seedCartLine(t, userID, breadID, 1)

	order, lines, err := checkout.PlaceOrder(ctx, userID)
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	if got := order.Subtotal.StringFixed(2); got != "25.00" {
		t.Errorf("expected subtotal 25.00, got %s", got)
	}
	if got := order.Tax.StringFixed(2); got != "2.50" {
		t.Errorf("expected tax 2.50, got %s", got)
	}
	if got := order.Total.StringFixed(2); got != "27.50" {
		t.Errorf("expected total 27.50, got %s", got)
	}
	if order.Status != "completed" {
		t.Errorf("expected status completed, got %s", order.Status)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 order lines, got %d", len(lines))
	}

	// Stock decremented by purchased quantities
	if got := productStock(t, appleID); got != 8 {
		t.Errorf("expected apple stock 8, got %d", got)
	}
	if got := productStock(t, breadID); got != 9 {
		t.Errorf("expected bread stock 9, got %d", got)
	}

	// Cart emptied
	if got := countRows(t, "carts"); got != 0 {
		t.Errorf("expected empty cart, got %d lines", got)
	}

	// Exactly one order with one line per distinct product
	if got := countRows(t, "orders"); got != 1 {
		t.Errorf("expected 1 order, got %d", got)
	}
	if got := countRows(t, "order_lines"); got != 2 {
		t.Errorf("expected 2 order lines, got %d", got)
	}

	// Invoice mail queued post-commit with the PDF attached
	tasks := dispatcher.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 notification task, got %d", len(tasks))
	}
	if tasks[0].Recipient != "buyer@example.com" {
		t.Errorf("unexpected recipient %s", tasks[0].Recipient)
	}
	if tasks[0].Attachment == nil || !bytes.HasPrefix(tasks[0].Attachment.Data, []byte("%PDF-")) {
		t.Error("expected a PDF attachment on the invoice task")
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	resetTables(t)
	dispatcher := &fakeDispatcher{}
	checkout := newCheckoutService(dispatcher)
	ctx := context.Background()

	userID := seedUser(t, "empty@example.com", "Empty")

	_, _, err := checkout.PlaceOrder(ctx, userID)
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}

	if got := countRows(t, "orders"); got != 0 {
		t.Errorf("expected no orders, got %d", got)
	}
	if len(dispatcher.Tasks()) != 0 {
		t.Error("expected no notifications for a failed checkout")
	}
}

func TestPlaceOrderInsufficientStockHasNoPartialEffects(t *testing.T) {
	resetTables(t)
	dispatcher := &fakeDispatcher{}
	checkout := newCheckoutService(dispatcher)
	ctx := context.Background()

	userID := seedUser(t, "greedy@example.com", "Greedy")
	appleID := seedProduct(t, "Apple", "10.00", 10)
	breadID := seedProduct(t, "Bread", "5.00", 2)
	seedCartLine(t, userID, appleID, 2)
	seedCartLine(t, userID, breadID, 5) // more than the 2 in stock

	_, _, err := checkout.PlaceOrder(ctx, userID)

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.ProductTitle != "Bread" {
		t.Errorf("expected offending product Bread, got %s", stockErr.ProductTitle)
	}
	if !strings.Contains(stockErr.Error(), "Bread") {
		t.Errorf("error message should identify the product: %s", stockErr.Error())
	}

	// All-or-nothing: no order, no decrement, cart intact
	if got := countRows(t, "orders"); got != 0 {
		t.Errorf("expected no orders, got %d", got)
	}
	if got := countRows(t, "order_lines"); got != 0 {
		t.Errorf("expected no order lines, got %d", got)
	}
	if got := productStock(t, appleID); got != 10 {
		t.Errorf("expected apple stock untouched at 10, got %d", got)
	}
	if got := productStock(t, breadID); got != 2 {
		t.Errorf("expected bread stock untouched at 2, got %d", got)
	}
	if got := countRows(t, "carts"); got != 2 {
		t.Errorf("expected cart intact with 2 lines, got %d", got)
	}
}

// Two users race for the last unit: exactly one order, final stock zero.
func TestPlaceOrderConcurrentLastUnit(t *testing.T) {
	resetTables(t)
	dispatcher := &fakeDispatcher{}
	checkout := newCheckoutService(dispatcher)
	ctx := context.Background()

	aliceID := seedUser(t, "alice@example.com", "Alice")
	bobID := seedUser(t, "bob@example.com", "Bob")
	productID := seedProduct(t, "Last Widget", "49.99", 1)
	seedCartLine(t, aliceID, productID, 1)
	seedCartLine(t, bobID, productID, 1)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for _, userID := range []int64{aliceID, bobID} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _, err := checkout.PlaceOrder(ctx, id)
			results <- err
		}(userID)
	}

	wg.Wait()
	close(results)

	var successes, stockFailures int
	for err := range results {
		switch {
		case err == nil:
			successes++
		default:
			var stockErr *InsufficientStockError
			if errors.As(err, &stockErr) {
				stockFailures++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}
	}

	if successes != 1 || stockFailures != 1 {
		t.Errorf("expected 1 success and 1 insufficient-stock failure, got %d/%d", successes, stockFailures)
	}
	if got := productStock(t, productID); got != 0 {
		t.Errorf("expected final stock 0, got %d", got)
	}
	if got := countRows(t, "orders"); got != 1 {
		t.Errorf("expected exactly 1 order, got %d", got)
	}
}

// One user double-submits checkout with plenty of stock: the cart row locks
// serialize the two transactions, the loser re-reads an empty cart, and only
// one order is charged.
func TestPlaceOrderConcurrentSameUser(t *testing.T) {
	resetTables(t)
	dispatcher := &fakeDispatcher{}
	checkout := newCheckoutService(dispatcher)
	ctx := context.Background()

	userID := seedUser(t, "double@example.com", "Double")
	productID := seedProduct(t, "Widget", "10.00", 10)
	seedCartLine(t, userID, productID, 2)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := checkout.PlaceOrder(ctx, userID)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	var successes, emptyCarts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrEmptyCart):
			emptyCarts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 || emptyCarts != 1 {
		t.Errorf("expected 1 success and 1 empty-cart failure, got %d/%d", successes, emptyCarts)
	}

	// Charged once: one order, stock decremented by a single cart's quantity.
	if got := countRows(t, "orders"); got != 1 {
		t.Errorf("expected exactly 1 order, got %d", got)
	}
	if got := productStock(t, productID); got != 8 {
		t.Errorf("expected stock 8 after one checkout, got %d", got)
	}
	if got := countRows(t, "carts"); got != 0 {
		t.Errorf("expected empty cart, got %d lines", got)
	}
	if got := len(dispatcher.Tasks()); got != 1 {
		t.Errorf("expected 1 invoice task, got %d", got)
	}
}

// A client disconnect right after commit cancels the request context; the
// invoice dispatch must still go out.
func TestDispatchInvoiceSurvivesRequestCancellation(t *testing.T) {
	resetTables(t)
	dispatcher := &fakeDispatcher{}
	svc := newCheckoutService(dispatcher).(*checkoutService)

	userID := seedUser(t, "gone@example.com", "Gone")

	subtotal := decimal.RequireFromString("10.00")
	tax := decimal.RequireFromString("1.00")
	order := &domain.Order{
		ID:        1,
		Reference: uuid.New(),
		UserID:    userID,
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     subtotal.Add(tax),
		Status:    domain.OrderStatusCompleted,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	lines := []domain.OrderLine{
		{OrderID: 1, ProductID: 1, Title: "Widget", Quantity: 1, UnitPrice: subtotal},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc.dispatchInvoice(ctx, order, lines)

	tasks := dispatcher.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task despite canceled context, got %d", len(tasks))
	}
	if tasks[0].Recipient != "gone@example.com" {
		t.Errorf("unexpected recipient %s", tasks[0].Recipient)
	}
	if tasks[0].Attachment == nil || !bytes.HasPrefix(tasks[0].Attachment.Data, []byte("%PDF-")) {
		t.Error("expected a PDF attachment on the invoice task")
	}
}

func TestInvoiceReRenderIsIdentical(t *testing.T) {
	resetTables(t)
	dispatcher := &fakeDispatcher{}
	checkout := newCheckoutService(dispatcher)
	ctx := context.Background()

	userID := seedUser(t, "render@example.com", "Render")
	productID := seedProduct(t, "Apple", "19.99", 10)
	seedCartLine(t, userID, productID, 3)

	order, _, err := checkout.PlaceOrder(ctx, userID)
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	// 19.99 * 3 = 59.97; tax 5.997 rounds to 6.00
	if got := order.Tax.StringFixed(2); got != "6.00" {
		t.Errorf("expected tax 6.00, got %s", got)
	}
	if got := order.Total.StringFixed(2); got != "65.97" {
		t.Errorf("expected total 65.97, got %s", got)
	}

	first, err := checkout.Invoice(ctx, order.ID, userID)
	if err != nil {
		t.Fatalf("first render failed: %v", err)
	}
	second, err := checkout.Invoice(ctx, order.ID, userID)
	if err != nil {
		t.Fatalf("second render failed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("expected re-rendered invoice to be byte-identical")
	}
}

func TestInvoiceOrderNotFound(t *testing.T) {
	resetTables(t)
	dispatcher := &fakeDispatcher{}
	checkout := newCheckoutService(dispatcher)
	ctx := context.Background()

	userID := seedUser(t, "nobody@example.com", "Nobody")
	strangerID := seedUser(t, "stranger@example.com", "Stranger")
	productID := seedProduct(t, "Apple", "10.00", 10)
	seedCartLine(t, userID, productID, 1)

	order, _, err := checkout.PlaceOrder(ctx, userID)
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	// Missing order
	if _, err := checkout.Invoice(ctx, 99999, userID); !errors.Is(err, repository.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}

	// Foreign order looks the same as a missing one
	if _, err := checkout.Invoice(ctx, order.ID, strangerID); !errors.Is(err, repository.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound for foreign order, got %v", err)
	}
}

// Snapshot prices on order lines must survive later catalog price changes.
func TestOrderLinePricesAreSnapshots(t *testing.T) {
	resetTables(t)
	dispatcher := &fakeDispatcher{}
	checkout := newCheckoutService(dispatcher)
	ctx := context.Background()

	userID := seedUser(t, "snap@example.com", "Snap")
	productID := seedProduct(t, "Apple", "10.00", 10)
	seedCartLine(t, userID, productID, 1)

	order, _, err := checkout.PlaceOrder(ctx, userID)
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	invoiceBefore, err := checkout.Invoice(ctx, order.ID, userID)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	// Double the catalog price after the fact
	if _, err := testDB.Exec(`UPDATE products SET price = 20.00 WHERE id = $1`, productID); err != nil {
		t.Fatalf("price update failed: %v", err)
	}

	invoiceAfter, err := checkout.Invoice(ctx, order.ID, userID)
	if err != nil {
		t.Fatalf("render after price change failed: %v", err)
	}

	if !bytes.Equal(invoiceBefore, invoiceAfter) {
		t.Error("invoice changed after a catalog price update; order line prices must be snapshots")
	}
}
