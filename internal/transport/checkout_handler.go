package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"shopfront/internal/domain"
	"shopfront/internal/middleware"
	"shopfront/internal/repository"
	"shopfront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderResponse represents a placed order
type OrderResponse struct {
	OrderID   int64  `json:"order_id"`
	Reference string `json:"reference"`
	Subtotal  string `json:"subtotal"`
	Tax       string `json:"tax"`
	Total     string `json:"total"`
	CreatedAt string `json:"created_at"`
}

func newOrderResponse(order *domain.Order) OrderResponse {
	return OrderResponse{
		OrderID:   order.ID,
		Reference: order.Reference.String(),
		Subtotal:  order.Subtotal.StringFixed(2),
		Tax:       order.Tax.StringFixed(2),
		Total:     order.Total.StringFixed(2),
		CreatedAt: order.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// CheckoutHandler handles checkout and order endpoints
type CheckoutHandler struct {
	checkout service.CheckoutService
	logger   *zap.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkout service.CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, logger: logger}
}

// RegisterRoutes registers checkout routes, all behind authentication
func (h *CheckoutHandler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Post("/api/checkout", h.PlaceOrder)
		r.Get("/api/orders", h.ListOrders)
		r.Get("/api/orders/{orderID}/invoice", h.Invoice)
	})
}

// PlaceOrder converts the authenticated user's cart into an order
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	order, _, err := h.checkout.PlaceOrder(r.Context(), userID)
	if err != nil {
		var stockErr *service.InsufficientStockError

		switch {
		case errors.Is(err, service.ErrEmptyCart):
			middleware.RespondWithError(w, http.StatusBadRequest, "cart is empty")
		case errors.As(err, &stockErr):
			middleware.RespondWithError(w, http.StatusConflict,
				fmt.Sprintf("insufficient stock for %s", stockErr.ProductTitle))
		default:
			// Detail is already logged by the service; keep the response generic.
			middleware.RespondWithError(w, http.StatusInternalServerError, "checkout failed")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, newOrderResponse(order))
}

// ListOrders returns the user's order history
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	orders, err := h.checkout.ListOrders(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	responses := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		responses = append(responses, newOrderResponse(order))
	}

	middleware.RespondWithJSON(w, http.StatusOK, responses)
}

// Invoice streams the order's invoice PDF. Orders belonging to other users
// are indistinguishable from missing orders.
func (h *CheckoutHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	doc, err := h.checkout.Invoice(r.Context(), orderID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("Failed to render invoice", zap.Int64("order_id", orderID), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to render invoice")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%d.pdf", orderID))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}
