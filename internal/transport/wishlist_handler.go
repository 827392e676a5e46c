package transport

import (
	"net/http"
	"strconv"

	"shopfront/internal/middleware"
	"shopfront/internal/repository"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// WishlistHandler handles wishlist endpoints
type WishlistHandler struct {
	wishlists repository.WishlistRepository
	logger    *zap.Logger
}

// NewWishlistHandler creates a new WishlistHandler
func NewWishlistHandler(wishlists repository.WishlistRepository, logger *zap.Logger) *WishlistHandler {
	return &WishlistHandler{wishlists: wishlists, logger: logger}
}

// RegisterRoutes registers wishlist routes, all behind authentication
func (h *WishlistHandler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/api/wishlist", func(r chi.Router) {
		r.Use(auth)
		r.Get("/", h.List)
		r.Put("/{productID}", h.Add)
		r.Delete("/{productID}", h.Remove)
	})
}

// Add upserts a wishlist entry
func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
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

	if err := h.wishlists.Add(r.Context(), userID, productID); err != nil {
		h.logger.Error("Failed to add wishlist entry", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to add wishlist entry")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Remove deletes a wishlist entry
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
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

	if err := h.wishlists.Remove(r.Context(), userID, productID); err != nil {
		if err == repository.ErrWishlistEntryNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "wishlist entry not found")
			return
		}
		h.logger.Error("Failed to remove wishlist entry", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to remove wishlist entry")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List returns the user's wishlist
func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	entries, err := h.wishlists.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list wishlist", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list wishlist")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, entries)
}
