package transport

import (
	"net/http"
	"strconv"

	"shopfront/internal/middleware"
	"shopfront/internal/repository"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddCartLineRequest represents the add-to-cart request payload. Validation
// happens here at the boundary; malformed quantities never reach the
// checkout engine.
type AddCartLineRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,min=1"`
}

// CartHandler handles cart endpoints
type CartHandler struct {
	carts  repository.CartRepository
	logger *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts repository.CartRepository, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

// RegisterRoutes registers cart routes, all behind authentication
func (h *CartHandler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(auth)
		r.Get("/", h.List)
		r.Post("/items", h.AddLine)
		r.Delete("/items/{productID}", h.RemoveLine)
	})
}

// AddLine merge-inserts a cart line for the authenticated user
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req AddCartLineRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Add cart line validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.carts.AddLine(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		if err == repository.ErrProductNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to add cart line", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to add cart line")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveLine deletes one cart line
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.carts.RemoveLine(r.Context(), userID, productID); err != nil {
		if err == repository.ErrCartLineNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "cart line not found")
			return
		}
		h.logger.Error("Failed to remove cart line", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to remove cart line")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List returns the user's cart lines
func (h *CartHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	lines, err := h.carts.ListLines(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list cart lines", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list cart")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, lines)
}
